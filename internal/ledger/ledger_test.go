package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inventaire/internal/faults"
)

func testOptions() Options {
	return Options{Separator: ",", Decimal: "."}
}

func openFast(t *testing.T, path string, opts Options) *Ledger {
	t.Helper()
	l, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	l.sleep = func(time.Duration) {}
	return l
}

func TestOpenMissingFileIsEmptyLedger(t *testing.T) {
	l := openFast(t, filepath.Join(t.TempDir(), "lot.csv"), testOptions())
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d rows", l.Len())
	}
	if got := l.NextID(); got != 1 {
		t.Fatalf("NextID on empty ledger = %d, want 1", got)
	}
}

func TestAppendCreatesFileWithBOMAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	l := openFast(t, path, testOptions())

	row := Row{ID: 1, Fichier: "3_Gants_1.jpg", Nom: "Gants", Categorie: "Outillage", CategorieID: "OUT", Quantite: 3, Fiabilite: 90}
	row.PrixUnitaire = 4.5
	row.RecomputeTotal()
	if err := l.Append(row); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "\uFEFF") {
		t.Fatal("ledger file should start with a UTF-8 BOM")
	}
	if !strings.Contains(content, "ID,Fichier Original") {
		t.Fatalf("header missing from ledger: %q", content)
	}
	if !strings.Contains(content, "13.50") {
		t.Fatalf("Prix Total should be quantity times unit price: %q", content)
	}
}

func TestAppendThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	l := openFast(t, path, testOptions())

	rows := []Row{
		{ID: 1, Fichier: "1_Lampe_1.jpg", Nom: "Lampe de bureau", Categorie: "Électroménager", CategorieID: "ELEC", Quantite: 1, Fiabilite: 95},
		{ID: 2, Fichier: "2_Chaises_2.jpg", Nom: "Chaises pliantes", Categorie: "Mobilier", CategorieID: "MOB", Quantite: 2, Fiabilite: 80, Remarques: "à revérifier"},
	}
	for _, row := range rows {
		if err := l.Append(row); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	reloaded := openFast(t, path, testOptions())
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded ledger has %d rows, want 2", reloaded.Len())
	}
	got := reloaded.Rows()
	if got[0].Nom != "Lampe de bureau" || got[1].Nom != "Chaises pliantes" {
		t.Fatalf("row order or content lost: %+v", got)
	}
	if got[1].Remarques != "à revérifier" {
		t.Fatalf("accented free text lost: %q", got[1].Remarques)
	}
	if reloaded.NextID() != 3 {
		t.Fatalf("NextID = %d, want 3", reloaded.NextID())
	}
}

func TestNextIDSkipsGapsForward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	l := openFast(t, path, testOptions())
	for _, id := range []int{1, 2, 5} {
		if err := l.Append(Row{ID: id, Fichier: "f.jpg", Nom: "Objet"}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}
	// Deleted-row gaps are never reused: ids keep climbing past the max.
	if got := l.NextID(); got != 6 {
		t.Fatalf("NextID = %d, want 6", got)
	}
}

func TestRewriteRoundTripPreservesIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	l := openFast(t, path, testOptions())
	for id := 1; id <= 3; id++ {
		if err := l.Append(Row{ID: id, Fichier: "f.jpg", Nom: "Objet", Quantite: id}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	rows := l.Rows()
	rows[1].Nom = "Objet corrigé"
	if err := l.Rewrite(rows); err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}

	reloaded := openFast(t, path, testOptions())
	got := reloaded.Rows()
	if len(got) != 3 {
		t.Fatalf("row count changed across rewrite: %d", len(got))
	}
	for i, row := range got {
		if row.ID != rows[i].ID || row.Nom != rows[i].Nom || row.Quantite != rows[i].Quantite {
			t.Fatalf("row %d mismatch after rewrite: got %+v want %+v", i, row, rows[i])
		}
	}
}

func TestRewriteAfterDeletionKeepsOriginalIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	l := openFast(t, path, testOptions())
	for id := 1; id <= 3; id++ {
		if err := l.Append(Row{ID: id, Fichier: "f.jpg", Nom: "Objet"}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	rows := l.Rows()
	if err := l.Rewrite(append(rows[:1:1], rows[2])); err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}

	reloaded := openFast(t, path, testOptions())
	got := reloaded.Rows()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("deletion should leave an id gap, got %+v", got)
	}
	if reloaded.NextID() != 4 {
		t.Fatalf("NextID after gap = %d, want 4", reloaded.NextID())
	}
}

func TestRewriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	l := openFast(t, filepath.Join(dir, "lot.csv"), testOptions())
	if err := l.Rewrite([]Row{{ID: 1, Fichier: "f.jpg"}}); err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "lot.csv" {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestOpenMissingFichierColumnIsFormatError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	if err := os.WriteFile(path, []byte("ID,Nom\r\n1,Objet\r\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := Open(path, testOptions())
	if !errors.Is(err, faults.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestOpenMalformedCSVIsFormatError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	content := "ID,Fichier Original,Nom\r\n1,\"broken\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := Open(path, testOptions())
	if !errors.Is(err, faults.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestOpenLegacyFileBackfillsIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	content := "Fichier Original,Nom,Quantite\r\na.jpg,Premier,1\r\nb.jpg,Deuxième,2\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l, err := Open(path, testOptions())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	got := l.Rows()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("legacy ids not backfilled: %+v", got)
	}

	// The upgrade must be persisted, not just in memory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read upgraded ledger: %v", err)
	}
	if !strings.Contains(string(data), "ID,Fichier Original") {
		t.Fatalf("upgraded file missing ID column: %q", string(data))
	}
}

func TestOpenToleratesReorderedAndExtraColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	content := "Nom,ID,Fichier Original,Couleur\r\nLampe,7,lamp.jpg,rouge\r\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l, err := Open(path, testOptions())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	row := l.Rows()[0]
	if row.ID != 7 || row.Nom != "Lampe" || row.Fichier != "lamp.jpg" {
		t.Fatalf("reordered columns misread: %+v", row)
	}
	if row.Extra["Couleur"] != "rouge" {
		t.Fatalf("unknown column dropped: %+v", row.Extra)
	}

	// A rewrite keeps the file's own column layout and the extra data.
	if err := l.Rewrite(l.Rows()); err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "rouge") {
		t.Fatalf("extra column value lost across rewrite: %q", string(data))
	}
}

func TestAppendSurfacesIOErrorAfterRetries(t *testing.T) {
	dir := t.TempDir()
	// A directory at the ledger path makes every open attempt fail.
	path := filepath.Join(dir, "lot.csv")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	l := &Ledger{path: path, opts: testOptions(), columns: defaultColumns(testOptions()), sleep: func(time.Duration) {}}
	err := l.Append(Row{ID: 1, Fichier: "f.jpg"})
	if !errors.Is(err, faults.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if l.Len() != 0 {
		t.Fatal("failed append must not change the in-memory rows")
	}
}

func TestSeparatorAndDecimalOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.csv")
	opts := Options{Separator: ";", Decimal: ","}
	l := openFast(t, path, opts)

	row := Row{ID: 1, Fichier: "f.jpg", Nom: "Objet", Quantite: 2, PrixUnitaire: 3.5}
	row.RecomputeTotal()
	if err := l.Append(row); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "3,50") {
		t.Fatalf("decimal comma not applied: %q", string(data))
	}

	reloaded := openFast(t, path, opts)
	got := reloaded.Rows()[0]
	if got.PrixUnitaire != 3.5 || got.PrixTotal != 7 {
		t.Fatalf("semicolon ledger misread: %+v", got)
	}
}
