package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"inventaire/internal/faults"
	"inventaire/internal/fileutil"
)

const (
	// ProcessedDir receives images once their row is in the ledger.
	ProcessedDir = "traitees"
	// RedoDir receives images rejected during review; a later run moves
	// them back into the root and processes them again.
	RedoDir = "a_refaire"
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// IsImage reports whether the filename carries a supported image extension.
func IsImage(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// MimeType returns the MIME type matching the file extension, defaulting to
// JPEG for unknown extensions.
func MimeType(path string) string {
	if mime, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "image/jpeg"
}

// DiscoverPending returns the image files waiting in the folder root, sorted
// by name. Images parked in a_refaire/ are first moved back into the root so
// they are picked up again; traitees/ and other subfolders are never
// descended into. A missing or unreadable folder is a discovery error.
func DiscoverPending(folder string) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, faults.Wrap(faults.ErrDiscovery, "workdir", "discover", folder, err)
	}
	if !info.IsDir() {
		return nil, faults.Wrap(faults.ErrDiscovery, "workdir", "discover",
			fmt.Sprintf("%s is not a directory", folder), nil)
	}

	if err := restoreRedo(folder); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, faults.Wrap(faults.ErrDiscovery, "workdir", "discover", folder, err)
	}
	var pending []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		pending = append(pending, filepath.Join(folder, entry.Name()))
	}
	sort.Strings(pending)
	return pending, nil
}

// restoreRedo moves every image out of a_refaire/ back into the folder root,
// suffixing the name when the root already has a file with that name.
func restoreRedo(folder string) error {
	redo := filepath.Join(folder, RedoDir)
	entries, err := os.ReadDir(redo)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return faults.Wrap(faults.ErrDiscovery, "workdir", "restore-redo", redo, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		src := filepath.Join(redo, entry.Name())
		dst := fileutil.UniquePath(filepath.Join(folder, entry.Name()))
		if err := fileutil.MoveFile(src, dst); err != nil {
			return faults.Wrap(faults.ErrIO, "workdir", "restore-redo", src, err)
		}
	}
	return nil
}

// EnsureSubdirs creates traitees/ and a_refaire/ if they are missing.
func EnsureSubdirs(folder string, extra ...string) error {
	dirs := append([]string{ProcessedDir, RedoDir}, extra...)
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(folder, dir), 0o755); err != nil {
			return faults.Wrap(faults.ErrIO, "workdir", "mkdir", dir, err)
		}
	}
	return nil
}
