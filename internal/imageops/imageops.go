package imageops

import (
	"bytes"
	"encoding/base64"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"inventaire/internal/config"
	"inventaire/internal/faults"
	"inventaire/internal/fileutil"
)

// resizeFloorWidth is the narrowest the compression ladder will go; below
// this the photo stops being useful for review.
const resizeFloorWidth = 300

// ThumbnailBase64 renders a small JPEG preview of the image, base64-encoded
// for embedding in the ledger's Image column.
func ThumbnailBase64(path string, cfg config.Thumbnail) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", faults.Wrap(faults.ErrIO, "imageops", "thumbnail", path, err)
	}
	thumb := imaging.Fit(img, cfg.MaxWidth, cfg.MaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(cfg.JPEGQuality)); err != nil {
		return "", faults.Wrap(faults.ErrIO, "imageops", "thumbnail", path, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CompressToTarget moves src to dst, re-encoding on the way when the file
// exceeds the configured size budget. Oversized photos are first capped to
// the initial dimension, then walked down a JPEG quality ladder, then a 0.8
// resize ladder with a width floor; the best effort is kept even when the
// budget cannot be met. Small files move untouched. The returned path is
// the final destination, which gains a .jpg extension when re-encoded.
func CompressToTarget(src, dst string, cfg config.Compression) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", faults.Wrap(faults.ErrIO, "imageops", "compress", src, err)
	}
	maxBytes := int64(cfg.MaxSizeKB) * 1024
	if maxBytes <= 0 || info.Size() <= maxBytes {
		if err := fileutil.MoveFile(src, dst); err != nil {
			return "", faults.Wrap(faults.ErrIO, "imageops", "move", src, err)
		}
		return dst, nil
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		// Unreadable as an image; move it as-is rather than losing it.
		if moveErr := fileutil.MoveFile(src, dst); moveErr != nil {
			return "", faults.Wrap(faults.ErrIO, "imageops", "move", src, moveErr)
		}
		return dst, nil
	}

	dim := cfg.InitialMaxDim
	if dim > 0 && (img.Bounds().Dx() > dim || img.Bounds().Dy() > dim) {
		img = imaging.Fit(img, dim, dim, imaging.Lanczos)
	}

	final := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".jpg"
	encoded, ok := qualityLadder(img, cfg, maxBytes)
	if !ok {
		img, encoded = resizeLadder(img, cfg, maxBytes)
	}

	if err := os.WriteFile(final, encoded, 0o644); err != nil {
		return "", faults.Wrap(faults.ErrIO, "imageops", "compress", final, err)
	}
	if err := os.Remove(src); err != nil {
		return "", faults.Wrap(faults.ErrIO, "imageops", "compress", src, err)
	}
	return final, nil
}

// qualityLadder tries decreasing JPEG qualities and reports whether the
// budget was met. The last attempt is returned either way.
func qualityLadder(img image.Image, cfg config.Compression, maxBytes int64) ([]byte, bool) {
	var encoded []byte
	for quality := cfg.StartQuality; quality >= cfg.MinQuality; quality -= cfg.QualityStep {
		encoded = encodeJPEG(img, quality)
		if int64(len(encoded)) <= maxBytes {
			return encoded, true
		}
	}
	return encoded, false
}

// resizeLadder shrinks the image by steps of 0.8 at minimum quality until
// the budget is met or the width floor is reached.
func resizeLadder(img image.Image, cfg config.Compression, maxBytes int64) (image.Image, []byte) {
	encoded := encodeJPEG(img, cfg.MinQuality)
	for int64(len(encoded)) > maxBytes && img.Bounds().Dx() > resizeFloorWidth {
		width := img.Bounds().Dx() * 8 / 10
		if width < resizeFloorWidth {
			width = resizeFloorWidth
		}
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
		encoded = encodeJPEG(img, cfg.MinQuality)
	}
	return img, encoded
}

func encodeJPEG(img image.Image, quality int) []byte {
	if quality <= 0 {
		quality = 20
	}
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	return buf.Bytes()
}

// RotateQuarter turns the image file 90° in place and persists it before
// returning, re-encoded in the format its extension implies.
func RotateQuarter(path string, clockwise bool) error {
	img, err := imaging.Open(path)
	if err != nil {
		return faults.Wrap(faults.ErrIO, "imageops", "rotate", path, err)
	}
	// imaging rotates counter-clockwise; a 270° turn is one clockwise step.
	if clockwise {
		img = imaging.Rotate270(img)
	} else {
		img = imaging.Rotate90(img)
	}
	if err := imaging.Save(img, path); err != nil {
		// webp has no encoder; keep the path and store JPEG bytes instead.
		if _, formatErr := imaging.FormatFromFilename(path); formatErr != nil {
			if writeErr := os.WriteFile(path, encodeJPEG(img, 95), 0o644); writeErr != nil {
				return faults.Wrap(faults.ErrIO, "imageops", "rotate", path, writeErr)
			}
			return nil
		}
		return faults.Wrap(faults.ErrIO, "imageops", "rotate", path, err)
	}
	return nil
}
