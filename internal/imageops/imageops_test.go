package imageops

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"inventaire/internal/config"
	"inventaire/internal/testsupport"
)

func thumbnailConfig() config.Thumbnail {
	return config.Thumbnail{MaxWidth: 100, MaxHeight: 100, JPEGQuality: 70}
}

func compressionConfig() config.Compression {
	return config.Compression{MaxSizeKB: 40, InitialMaxDim: 400, StartQuality: 85, QualityStep: 10, MinQuality: 20}
}

// noisyImage produces an image that compresses poorly so size budgets bite.
func noisyImage(width, height int) *image.NRGBA {
	img := imaging.New(width, height, color.NRGBA{A: 255})
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8(x * y % 251),
				G: uint8((x + y) % 241),
				B: uint8(x % 239),
				A: 255,
			})
		}
	}
	return img
}

func savePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	if err := imaging.Save(noisyImage(width, height), path); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
}

func TestThumbnailBase64FitsBox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	savePNG(t, path, 640, 480)

	encoded, err := ThumbnailBase64(path, thumbnailConfig())
	if err != nil {
		t.Fatalf("ThumbnailBase64 returned error: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("thumbnail is not valid base64: %v", err)
	}
	thumb, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("thumbnail is not a decodable JPEG: %v", err)
	}
	if thumb.Bounds().Dx() > 100 || thumb.Bounds().Dy() > 100 {
		t.Fatalf("thumbnail exceeds box: %v", thumb.Bounds())
	}
}

func TestCompressToTargetSmallFileMovesUntouched(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	savePNG(t, src, 20, 20)
	dst := filepath.Join(dir, "out", "small.png")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	final, err := CompressToTarget(src, dst, compressionConfig())
	if err != nil {
		t.Fatalf("CompressToTarget returned error: %v", err)
	}
	if final != dst {
		t.Fatalf("small file should keep its name, got %q", final)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone after move")
	}
}

func TestCompressToTargetShrinksOversizedFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.png")
	savePNG(t, src, 1600, 1200)
	if info, _ := os.Stat(src); info.Size() <= 40*1024 {
		t.Skip("fixture unexpectedly small")
	}
	dst := filepath.Join(dir, "out", "big.png")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	final, err := CompressToTarget(src, dst, compressionConfig())
	if err != nil {
		t.Fatalf("CompressToTarget returned error: %v", err)
	}
	if filepath.Ext(final) != ".jpg" {
		t.Fatalf("re-encoded file should be .jpg, got %q", final)
	}
	info, err := os.Stat(final)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() > 40*1024 {
		t.Fatalf("compressed file still over budget: %d bytes", info.Size())
	}
	img, err := imaging.Open(final)
	if err != nil {
		t.Fatalf("compressed output unreadable: %v", err)
	}
	if img.Bounds().Dx() > 400 {
		t.Fatalf("initial dimension cap not applied: %v", img.Bounds())
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be removed after compression")
	}
}

func TestCompressToTargetUnreadableFileMovesAsIs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	// Oversized but not decodable as an image.
	testsupport.WriteFile(t, src, 100*1024)
	dst := filepath.Join(dir, "out", "broken.jpg")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	final, err := CompressToTarget(src, dst, compressionConfig())
	if err != nil {
		t.Fatalf("CompressToTarget returned error: %v", err)
	}
	if final != dst {
		t.Fatalf("unreadable file should keep its name, got %q", final)
	}
	info, err := os.Stat(final)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() != 100*1024 {
		t.Fatalf("unreadable file should move byte for byte, got %d bytes", info.Size())
	}
}

func TestRotateQuarterSwapsDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	savePNG(t, path, 40, 20)

	if err := RotateQuarter(path, true); err != nil {
		t.Fatalf("RotateQuarter returned error: %v", err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("rotated file unreadable: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 40 {
		t.Fatalf("dimensions not swapped: %v", img.Bounds())
	}

	// Three more turns land back on the original orientation.
	for i := 0; i < 3; i++ {
		if err := RotateQuarter(path, true); err != nil {
			t.Fatalf("turn %d: %v", i+2, err)
		}
	}
	img, _ = imaging.Open(path)
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Fatalf("four turns should restore orientation: %v", img.Bounds())
	}
}
