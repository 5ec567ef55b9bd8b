package workdir

import (
	"os"
	"path/filepath"
	"strings"

	"inventaire/internal/faults"
)

// contextFiles are probed in order; the first one found wins.
var contextFiles = []string{"context.txt", "instructions.txt"}

// LoadContext reads the folder-scoped instruction text. The boolean reports
// whether a context file was found; absence is not an error.
func LoadContext(folder string) (string, bool, error) {
	for _, name := range contextFiles {
		data, err := os.ReadFile(filepath.Join(folder, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", false, faults.Wrap(faults.ErrIO, "workdir", "read-context", name, err)
		}
		return strings.TrimSpace(string(data)), true, nil
	}
	return "", false, nil
}

// SaveContext persists the instruction text as context.txt so every later
// run of the folder reuses it without prompting again.
func SaveContext(folder, text string) error {
	path := filepath.Join(folder, contextFiles[0])
	if err := os.WriteFile(path, []byte(strings.TrimSpace(text)+"\n"), 0o644); err != nil {
		return faults.Wrap(faults.ErrIO, "workdir", "save-context", path, err)
	}
	return nil
}
