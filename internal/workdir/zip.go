package workdir

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inventaire/internal/faults"
)

// PrepareInput accepts either a folder or a zip archive of photos. An
// archive is extracted next to itself into a folder named after it; an
// existing folder with that name is backed up with a timestamp suffix
// first. The returned path is the folder to process, descending into the
// archive's own top-level directory when the photos are nested.
func PrepareInput(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", faults.Wrap(faults.ErrDiscovery, "workdir", "input", path, err)
	}
	if info.IsDir() {
		return path, nil
	}
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return "", faults.Wrap(faults.ErrDiscovery, "workdir", "input",
			fmt.Sprintf("%s is neither a folder nor a zip archive", path), nil)
	}

	dest := strings.TrimSuffix(path, filepath.Ext(path))
	if _, err := os.Stat(dest); err == nil {
		backup := fmt.Sprintf("%s_sauvegarde_%s", dest, time.Now().Format("20060102_150405"))
		if err := os.Rename(dest, backup); err != nil {
			return "", faults.Wrap(faults.ErrIO, "workdir", "backup-folder", dest, err)
		}
	}
	if err := extractZip(path, dest); err != nil {
		return "", err
	}
	return descendToImages(dest), nil
}

func extractZip(archive, dest string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return faults.Wrap(faults.ErrDiscovery, "workdir", "open-zip", archive, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return faults.Wrap(faults.ErrIO, "workdir", "extract", dest, err)
	}
	for _, file := range reader.File {
		target := filepath.Join(dest, filepath.Clean(file.Name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return faults.Wrap(faults.ErrFormat, "workdir", "extract",
				fmt.Sprintf("archive entry %q escapes the destination", file.Name), nil)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return faults.Wrap(faults.ErrIO, "workdir", "extract", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return faults.Wrap(faults.ErrIO, "workdir", "extract", target, err)
		}
		if err := extractFile(file, target); err != nil {
			return faults.Wrap(faults.ErrIO, "workdir", "extract", target, err)
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	in, err := file.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// descendToImages follows single nesting levels (archives often wrap their
// content in one top-level directory) until a level that holds images.
func descendToImages(folder string) string {
	for {
		entries, err := os.ReadDir(folder)
		if err != nil {
			return folder
		}
		var dirs []string
		for _, entry := range entries {
			if entry.IsDir() {
				dirs = append(dirs, entry.Name())
				continue
			}
			if IsImage(entry.Name()) {
				return folder
			}
		}
		if len(dirs) != 1 {
			return folder
		}
		folder = filepath.Join(folder, dirs[0])
	}
}
