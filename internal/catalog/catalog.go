package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"inventaire/internal/faults"
	"inventaire/internal/textutil"
)

// Category is one entry of the reference file.
type Category struct {
	Name string
	ID   string
}

// Registry is the immutable category lookup table.
type Registry struct {
	categories []Category
	byFolded   map[string]Category
	byID       map[string]Category
}

// Load reads the category reference CSV. The file must carry a header with
// at least the columns categorie and categorie_id (category/category_id are
// accepted too); anything else is a configuration error.
func Load(path string) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "catalog", "open", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "catalog", "parse", path, err)
	}
	if len(records) == 0 {
		return nil, faults.Wrap(faults.ErrConfiguration, "catalog", "parse", "empty category file", nil)
	}

	nameCol, idCol := -1, -1
	for i, header := range records[0] {
		switch textutil.Fold(strings.TrimPrefix(header, "\uFEFF")) {
		case "categorie", "category", "category_name", "nom":
			if nameCol < 0 {
				nameCol = i
			}
		case "categorie_id", "category_id", "id":
			if idCol < 0 {
				idCol = i
			}
		}
	}
	if nameCol < 0 || idCol < 0 {
		return nil, faults.Wrap(faults.ErrConfiguration, "catalog", "parse",
			"header must contain categorie and categorie_id columns", nil)
	}

	registry := &Registry{
		byFolded: make(map[string]Category),
		byID:     make(map[string]Category),
	}
	for _, record := range records[1:] {
		if nameCol >= len(record) || idCol >= len(record) {
			continue
		}
		name := strings.TrimSpace(record[nameCol])
		id := strings.TrimSpace(record[idCol])
		if name == "" || id == "" {
			continue
		}
		category := Category{Name: name, ID: id}
		registry.categories = append(registry.categories, category)
		registry.byFolded[textutil.Fold(name)] = category
		registry.byID[strings.ToLower(id)] = category
	}
	if len(registry.categories) == 0 {
		return nil, faults.Wrap(faults.ErrConfiguration, "catalog", "parse", "no categories in file", nil)
	}
	return registry, nil
}

// Categories returns the entries in file order.
func (r *Registry) Categories() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Resolve matches a label or id returned by the classifier against the
// registry, ignoring case and accents. Unknown labels return ErrNotFound;
// the caller decides whether to flag the row or reject it.
func (r *Registry) Resolve(label string) (Category, error) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return Category{}, faults.Wrap(faults.ErrNotFound, "catalog", "resolve", "empty category", nil)
	}
	if category, ok := r.byID[strings.ToLower(trimmed)]; ok {
		return category, nil
	}
	if category, ok := r.byFolded[textutil.Fold(trimmed)]; ok {
		return category, nil
	}
	return Category{}, faults.Wrap(faults.ErrNotFound, "catalog", "resolve", fmt.Sprintf("unknown category %q", trimmed), nil)
}

// PromptBlock renders the category list for inclusion in classification
// prompts, one "id | name" line per category.
func (r *Registry) PromptBlock() string {
	var b strings.Builder
	for _, category := range r.categories {
		b.WriteString(category.ID)
		b.WriteString(" | ")
		b.WriteString(category.Name)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
