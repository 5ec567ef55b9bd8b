package review

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"inventaire/internal/catalog"
	"inventaire/internal/config"
	"inventaire/internal/faults"
	"inventaire/internal/fileutil"
	"inventaire/internal/gemini"
	"inventaire/internal/imageops"
	"inventaire/internal/ledger"
	"inventaire/internal/workdir"
)

// Classifier is the slice of the Gemini client the review operations need.
type Classifier interface {
	Classify(ctx context.Context, req gemini.Request) (gemini.Classification, error)
	ClassifyMulti(ctx context.Context, req gemini.Request) ([]gemini.Classification, error)
}

// Session holds one ledger open for correction. The folder is the ledger's
// parent; images live in its traitees/ subfolder.
type Session struct {
	folder   string
	led      *ledger.Ledger
	cfg      *config.Config
	logger   *slog.Logger
	client   Classifier
	registry *catalog.Registry
}

// Open loads the ledger at path into a review session. The client may be
// nil when only local edits are needed; rescans then fail cleanly.
func Open(path string, cfg *config.Config, logger *slog.Logger, client Classifier, registry *catalog.Registry) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, faults.Wrap(faults.ErrDiscovery, "review", "open", path, err)
	}
	led, err := ledger.Open(path, ledger.Options{
		Separator:    cfg.CSV.Separator,
		Decimal:      cfg.CSV.Decimal,
		IncludeImage: cfg.CSV.IncludeImage,
		ExtraColumns: cfg.CSV.ExtraColumns,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		folder:   filepath.Dir(path),
		led:      led,
		cfg:      cfg,
		logger:   logger.With("component", "review"),
		client:   client,
		registry: registry,
	}, nil
}

// Rows returns the current rows in ledger order.
func (s *Session) Rows() []ledger.Row { return s.led.Rows() }

// Folder returns the folder the ledger belongs to.
func (s *Session) Folder() string { return s.folder }

// ImagePath locates the processed image backing a row.
func (s *Session) ImagePath(row ledger.Row) string {
	return filepath.Join(s.folder, workdir.ProcessedDir, row.Fichier)
}

// Edit sets one column of one row and rewrites the ledger. Price and
// quantity edits recompute Prix Total.
func (s *Session) Edit(id int, column, value string) error {
	rows := s.led.Rows()
	idx, err := indexOf(rows, id)
	if err != nil {
		return err
	}
	if column == ledger.ColID {
		return faults.Wrap(faults.ErrFormat, "review", "edit", "id is not editable", nil)
	}
	rows[idx].SetField(column, strings.TrimSpace(value))
	rows[idx].RecomputeTotal()
	if err := s.led.Rewrite(rows); err != nil {
		return err
	}
	s.logger.Info("row edited", "id", id, "colonne", column)
	return nil
}

// Validate sets a row's reliability to 100%, marking it human-confirmed.
func (s *Session) Validate(id int) error {
	rows := s.led.Rows()
	idx, err := indexOf(rows, id)
	if err != nil {
		return err
	}
	rows[idx].Fiabilite = 100
	if err := s.led.Rewrite(rows); err != nil {
		return err
	}
	s.logger.Info("row validated", "id", id)
	return nil
}

// Delete removes a row. The image stays in traitees/; use MarkRedo to
// requeue it instead.
func (s *Session) Delete(id int) error {
	rows := s.led.Rows()
	idx, err := indexOf(rows, id)
	if err != nil {
		return err
	}
	if err := s.led.Rewrite(append(rows[:idx:idx], rows[idx+1:]...)); err != nil {
		return err
	}
	s.logger.Info("row deleted", "id", id)
	return nil
}

// MarkRedo removes the row and parks its image in a_refaire/, so the next
// batch run of the folder picks it up again as pending. The image is moved
// before the ledger is rewritten: a crash in between leaves a row whose
// image will be re-processed, never a lost image.
func (s *Session) MarkRedo(id int) error {
	rows := s.led.Rows()
	idx, err := indexOf(rows, id)
	if err != nil {
		return err
	}
	src := s.ImagePath(rows[idx])
	dst := fileutil.UniquePath(filepath.Join(s.folder, workdir.RedoDir, rows[idx].Fichier))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return faults.Wrap(faults.ErrIO, "review", "mark-redo", dst, err)
	}
	if err := fileutil.MoveFile(src, dst); err != nil {
		return faults.Wrap(faults.ErrIO, "review", "mark-redo", src, err)
	}
	if err := s.led.Rewrite(append(rows[:idx:idx], rows[idx+1:]...)); err != nil {
		return err
	}
	s.logger.Info("row marked for redo", "id", id, "fichier", rows[idx].Fichier)
	return nil
}

// Rotate turns the row's image a quarter turn on disk. The ledger is not
// touched, but a stale embedded thumbnail is refreshed when present.
func (s *Session) Rotate(id int, clockwise bool) error {
	rows := s.led.Rows()
	idx, err := indexOf(rows, id)
	if err != nil {
		return err
	}
	path := s.ImagePath(rows[idx])
	if err := imageops.RotateQuarter(path, clockwise); err != nil {
		return err
	}
	if rows[idx].Image != "" {
		if thumbnail, err := imageops.ThumbnailBase64(path, s.cfg.Thumbnail); err == nil {
			rows[idx].Image = thumbnail
			return s.led.Rewrite(rows)
		}
	}
	return nil
}

// Rescan re-classifies the row's image with a human hint. On success the
// row's fields are overwritten and the hint archived into Remarques
// traitées; reliability is reset to the classifier's own confidence. On
// failure the row is untouched.
func (s *Session) Rescan(ctx context.Context, id int, hint string) error {
	rows := s.led.Rows()
	idx, err := indexOf(rows, id)
	if err != nil {
		return err
	}
	result, err := s.classifyRow(ctx, rows[idx], hint, false)
	if err != nil {
		return err
	}

	previousRemarks := rows[idx].Remarques
	applyClassification(&rows[idx], result[0])
	rows[idx].Remarques = ""
	rows[idx].RemarquesTraitees = archiveRemark(rows[idx].RemarquesTraitees, firstNonEmpty(hint, previousRemarks))
	if err := s.led.Rewrite(rows); err != nil {
		return err
	}
	s.logger.Info("row rescanned", "id", id, "nom", rows[idx].Nom, "fiabilite", rows[idx].Fiabilite)
	return nil
}

// MultiScan re-classifies the row's image in multi-detection mode. The
// original row is replaced by one row per detected object; new ids are
// appended after the current maximum and all rows share the source image.
func (s *Session) MultiScan(ctx context.Context, id int, hint string) error {
	rows := s.led.Rows()
	idx, err := indexOf(rows, id)
	if err != nil {
		return err
	}
	results, err := s.classifyRow(ctx, rows[idx], hint, true)
	if err != nil {
		return err
	}

	original := rows[idx]
	replaced := append(rows[:idx:idx], rows[idx+1:]...)
	nextID := maxID(replaced) + 1
	if original.ID >= nextID {
		nextID = original.ID + 1
	}
	for _, result := range results {
		row := ledger.Row{ID: nextID, Fichier: original.Fichier, Image: original.Image}
		applyClassification(&row, result)
		row.RemarquesTraitees = archiveRemark("", hint)
		replaced = append(replaced, row)
		nextID++
	}
	if err := s.led.Rewrite(replaced); err != nil {
		return err
	}
	s.logger.Info("row split by multi-scan", "id", id, "objets", len(results))
	return nil
}

// RescanPending walks the whole ledger and rescans every row whose
// Remarques column is non-empty, using the remark as the hint. Per-row
// failures are counted and the walk continues.
func (s *Session) RescanPending(ctx context.Context) (updated, failed int, err error) {
	for _, row := range s.led.Rows() {
		if strings.TrimSpace(row.Remarques) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return updated, failed, err
		}
		if err := s.Rescan(ctx, row.ID, strings.TrimSpace(row.Remarques)); err != nil {
			failed++
			s.logger.Error("rescan failed", "id", row.ID, "err", err)
			continue
		}
		updated++
	}
	return updated, failed, nil
}

func (s *Session) classifyRow(ctx context.Context, row ledger.Row, hint string, multi bool) ([]gemini.Classification, error) {
	if s.client == nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "review", "rescan", "no classifier configured", nil)
	}
	path := s.ImagePath(row)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, "review", "rescan", fmt.Sprintf("image missing for row %d: %s", row.ID, path), err)
	}

	contextText, _, err := workdir.LoadContext(s.folder)
	if err != nil {
		return nil, err
	}
	previous := &gemini.Classification{
		Nom:          row.Nom,
		Categorie:    row.Categorie,
		CategorieID:  row.CategorieID,
		Quantite:     gemini.FlexInt(row.Quantite),
		Etat:         row.Etat,
		Fiabilite:    gemini.FlexInt(row.Fiabilite),
		PrixUnitaire: gemini.FlexFloat(row.PrixUnitaire),
		PrixNeuf:     gemini.FlexFloat(row.PrixNeuf),
	}
	req := gemini.Request{
		ImageData:     data,
		MimeType:      workdir.MimeType(path),
		Context:       contextText,
		Hint:          hint,
		Previous:      previous,
		CategoryBlock: s.registry.PromptBlock(),
	}

	if multi {
		results, err := s.client.ClassifyMulti(ctx, req)
		if err != nil {
			return nil, err
		}
		return s.resolveAll(results), nil
	}
	result, err := s.client.Classify(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.resolveAll([]gemini.Classification{result}), nil
}

func (s *Session) resolveAll(results []gemini.Classification) []gemini.Classification {
	for i := range results {
		if category, err := s.registry.Resolve(results[i].CategorieID); err == nil {
			results[i].Categorie = category.Name
			results[i].CategorieID = category.ID
			continue
		}
		if category, err := s.registry.Resolve(results[i].Categorie); err == nil {
			results[i].Categorie = category.Name
			results[i].CategorieID = category.ID
			continue
		}
		results[i].CategorieID = "?"
	}
	return results
}

func applyClassification(row *ledger.Row, result gemini.Classification) {
	row.Nom = result.Nom
	row.Categorie = result.Categorie
	row.CategorieID = result.CategorieID
	row.Quantite = int(result.Quantite)
	row.Etat = result.Etat
	row.Fiabilite = int(result.Fiabilite)
	row.PrixUnitaire = float64(result.PrixUnitaire)
	row.PrixNeuf = float64(result.PrixNeuf)
	row.RecomputeTotal()
}

func archiveRemark(existing, remark string) string {
	remark = strings.TrimSpace(remark)
	if remark == "" {
		return existing
	}
	if existing == "" {
		return remark
	}
	return existing + " | " + remark
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func indexOf(rows []ledger.Row, id int) (int, error) {
	for i, row := range rows {
		if row.ID == id {
			return i, nil
		}
	}
	return 0, faults.Wrap(faults.ErrNotFound, "review", "find", fmt.Sprintf("no row with id %d", id), nil)
}

func maxID(rows []ledger.Row) int {
	max := 0
	for _, row := range rows {
		if row.ID > max {
			max = row.ID
		}
	}
	return max
}
