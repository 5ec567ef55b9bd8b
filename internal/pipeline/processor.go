package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"inventaire/internal/catalog"
	"inventaire/internal/config"
	"inventaire/internal/faults"
	"inventaire/internal/fileutil"
	"inventaire/internal/gemini"
	"inventaire/internal/imageops"
	"inventaire/internal/ledger"
	"inventaire/internal/textutil"
	"inventaire/internal/workdir"
)

// lockFileName guards a folder against two simultaneous runs. The lock is
// advisory; the ledger's single-writer contract depends on it.
const lockFileName = ".inventaire.lock"

// Classifier is the slice of the Gemini client the pipeline depends on.
type Classifier interface {
	Classify(ctx context.Context, req gemini.Request) (gemini.Classification, error)
	ClassifyMulti(ctx context.Context, req gemini.Request) ([]gemini.Classification, error)
}

// Options tunes one run.
type Options struct {
	// Target switches to counting mode: every image is scanned for the
	// named element only, and each detection gets its own row.
	Target string
	// Hinter is consulted when a low-confidence classification arrives
	// under the "ask" reliability action. It returns a correction hint
	// and whether to re-analyze; a nil Hinter downgrades "ask" to "keep".
	Hinter func(file string, result gemini.Classification) (string, bool)
}

// Summary reports what a run did. Skipped images stay in the folder root
// and are retried by the next run.
type Summary struct {
	Found         int
	Processed     int
	Skipped       int
	LowConfidence int
	LedgerPath    string
}

// Processor orchestrates batch runs.
type Processor struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   Classifier
	registry *catalog.Registry
}

// New builds a Processor. The logger may be nil.
func New(cfg *config.Config, logger *slog.Logger, client Classifier, registry *catalog.Registry) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{
		cfg:      cfg,
		logger:   logger.With("component", "pipeline"),
		client:   client,
		registry: registry,
	}
}

// Run processes every pending image of the folder. Fatal conditions
// (missing folder, malformed ledger, lock held elsewhere) return an error;
// per-image failures are logged, counted, and skipped.
func (p *Processor) Run(ctx context.Context, folder string, opts Options) (Summary, error) {
	var summary Summary

	folder, err := workdir.PrepareInput(folder)
	if err != nil {
		return summary, err
	}

	lock := flock.New(filepath.Join(folder, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return summary, faults.Wrap(faults.ErrIO, "pipeline", "lock", folder, err)
	}
	if !locked {
		return summary, faults.Wrap(faults.ErrIO, "pipeline", "lock",
			fmt.Sprintf("%s is already being processed", folder), nil)
	}
	defer lock.Unlock()

	if err := workdir.EnsureSubdirs(folder, p.cfg.Reliability.ReviewDir); err != nil {
		return summary, err
	}

	contextText, hasContext, err := workdir.LoadContext(folder)
	if err != nil {
		return summary, err
	}
	if !hasContext {
		p.logger.Warn("no context file found, classifying without folder instructions", "folder", folder)
	}

	ledgerPath := ledger.PathFor(folder)
	if opts.Target != "" {
		ledgerPath = ledger.CounterPathFor(folder)
	}
	led, err := ledger.Open(ledgerPath, ledger.Options{
		Separator:    p.cfg.CSV.Separator,
		Decimal:      p.cfg.CSV.Decimal,
		IncludeImage: p.cfg.CSV.IncludeImage,
		ExtraColumns: p.cfg.CSV.ExtraColumns,
	})
	if err != nil {
		return summary, err
	}
	summary.LedgerPath = ledgerPath

	pending, err := workdir.DiscoverPending(folder)
	if err != nil {
		return summary, err
	}
	summary.Found = len(pending)
	p.logger.Info("batch started",
		"folder", folder,
		"pending", len(pending),
		"ledger_rows", led.Len(),
		"target", opts.Target,
	)

	for _, path := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := p.processImage(ctx, folder, path, contextText, led, opts, &summary); err != nil {
			if faults.Fatal(err) || ctx.Err() != nil {
				return summary, err
			}
			summary.Skipped++
			p.logger.Error("image skipped", "fichier", filepath.Base(path), "err", err)
		}
	}

	p.logger.Info("batch finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"low_confidence", summary.LowConfidence,
	)
	return summary, nil
}

func (p *Processor) processImage(
	ctx context.Context,
	folder, path, contextText string,
	led *ledger.Ledger,
	opts Options,
	summary *Summary,
) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return faults.Wrap(faults.ErrIO, "pipeline", "read", path, err)
	}
	req := gemini.Request{
		ImageData:     data,
		MimeType:      workdir.MimeType(path),
		Context:       contextText,
		CategoryBlock: p.registry.PromptBlock(),
		Target:        opts.Target,
	}

	if opts.Target != "" {
		return p.processCounting(ctx, folder, path, req, led, opts, summary)
	}

	result, err := p.client.Classify(ctx, req)
	if err != nil {
		return err
	}
	result = p.resolveCategory(result)

	if int(result.Fiabilite) < p.cfg.Reliability.Threshold {
		keep, err := p.handleLowConfidence(ctx, folder, path, req, &result, opts)
		if err != nil {
			return err
		}
		if !keep {
			summary.Skipped++
			summary.LowConfidence++
			return nil
		}
		summary.LowConfidence++
	}

	row := p.buildRow(result, led.NextID())
	finalPath, err := p.moveProcessed(folder, path, row.Quantite, result.Nom, row.ID)
	if err != nil {
		return err
	}
	row.Fichier = filepath.Base(finalPath)
	p.attachThumbnail(&row, finalPath)

	if err := led.Append(row); err != nil {
		// The image would be orphaned in traitees/ with no row; put it
		// back so the next run retries it.
		if moveErr := fileutil.MoveFile(finalPath, fileutil.UniquePath(path)); moveErr != nil {
			p.logger.Error("could not restore image after failed append", "fichier", finalPath, "err", moveErr)
		}
		return err
	}
	summary.Processed++
	p.logger.Info("image classified",
		"fichier", row.Fichier,
		"id", row.ID,
		"nom", row.Nom,
		"quantite", row.Quantite,
		"fiabilite", row.Fiabilite,
	)
	return nil
}

// processCounting handles target-counting mode: one ledger row per
// detection of the target element, all sharing the moved source image.
func (p *Processor) processCounting(
	ctx context.Context,
	folder, path string,
	req gemini.Request,
	led *ledger.Ledger,
	opts Options,
	summary *Summary,
) error {
	results, err := p.client.ClassifyMulti(ctx, req)
	if err != nil {
		return err
	}

	total := 0
	for _, result := range results {
		total += int(result.Quantite)
	}
	firstID := led.NextID()
	finalPath, err := p.moveProcessed(folder, path, total, opts.Target, firstID)
	if err != nil {
		return err
	}
	fileName := filepath.Base(finalPath)

	var thumbnail string
	if p.cfg.CSV.IncludeImage {
		thumbnail, _ = imageops.ThumbnailBase64(finalPath, p.cfg.Thumbnail)
	}

	appended := 0
	for _, result := range results {
		result = p.resolveCategory(result)
		row := p.buildRow(result, led.NextID())
		row.Fichier = fileName
		row.Image = thumbnail
		if err := led.Append(row); err != nil {
			if appended == 0 {
				if moveErr := fileutil.MoveFile(finalPath, fileutil.UniquePath(path)); moveErr != nil {
					p.logger.Error("could not restore image after failed append", "fichier", finalPath, "err", moveErr)
				}
			}
			return err
		}
		appended++
	}
	summary.Processed++
	p.logger.Info("image counted", "fichier", fileName, "detections", appended, "total", total)
	return nil
}

// handleLowConfidence applies the configured reliability action. It reports
// whether the (possibly re-analyzed) result should be kept as a row.
func (p *Processor) handleLowConfidence(
	ctx context.Context,
	folder, path string,
	req gemini.Request,
	result *gemini.Classification,
	opts Options,
) (bool, error) {
	action := p.cfg.Reliability.Action
	if action == "ask" && opts.Hinter == nil {
		action = "keep"
	}

	switch action {
	case "keep":
		p.logger.Warn("low confidence kept",
			"fichier", filepath.Base(path),
			"fiabilite", int(result.Fiabilite),
			"seuil", p.cfg.Reliability.Threshold,
		)
		return true, nil
	case "ask":
		hint, retry := opts.Hinter(filepath.Base(path), *result)
		if !retry {
			return p.moveToManualReview(folder, path)
		}
		req.Hint = hint
		prev := *result
		req.Previous = &prev
		retried, err := p.client.Classify(ctx, req)
		if err != nil {
			return false, err
		}
		*result = p.resolveCategory(retried)
		return true, nil
	default: // "move"
		return p.moveToManualReview(folder, path)
	}
}

func (p *Processor) moveToManualReview(folder, path string) (bool, error) {
	dst := fileutil.UniquePath(filepath.Join(folder, p.cfg.Reliability.ReviewDir, filepath.Base(path)))
	if err := fileutil.MoveFile(path, dst); err != nil {
		return false, faults.Wrap(faults.ErrIO, "pipeline", "manual-review", path, err)
	}
	p.logger.Warn("low confidence, image moved to manual review", "fichier", filepath.Base(path))
	return false, nil
}

// moveProcessed renames the image to {quantity}_{name}_{id}{ext} and moves
// it into traitees/, compressing oversized files on the way.
func (p *Processor) moveProcessed(folder, path string, quantity int, name string, id int) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	base := textutil.SanitizeFileName(name, "objet")
	newName := fmt.Sprintf("%d_%s_%d%s", quantity, base, id, ext)
	dst := filepath.Join(folder, workdir.ProcessedDir, newName)

	finalPath, err := imageops.CompressToTarget(path, dst, p.cfg.Compression)
	if err != nil {
		return "", err
	}
	return finalPath, nil
}

func (p *Processor) buildRow(result gemini.Classification, id int) ledger.Row {
	row := ledger.Row{
		ID:           id,
		Nom:          result.Nom,
		Categorie:    result.Categorie,
		CategorieID:  result.CategorieID,
		Quantite:     int(result.Quantite),
		Etat:         result.Etat,
		Fiabilite:    int(result.Fiabilite),
		PrixUnitaire: float64(result.PrixUnitaire),
		PrixNeuf:     float64(result.PrixNeuf),
	}
	row.RecomputeTotal()
	return row
}

// resolveCategory validates the classifier's category against the registry.
// A match normalizes both fields to the registry values; a miss keeps the
// model's text and flags the row instead of rejecting it.
func (p *Processor) resolveCategory(result gemini.Classification) gemini.Classification {
	if category, err := p.registry.Resolve(result.CategorieID); err == nil {
		result.Categorie = category.Name
		result.CategorieID = category.ID
		return result
	}
	if category, err := p.registry.Resolve(result.Categorie); err == nil {
		result.Categorie = category.Name
		result.CategorieID = category.ID
		return result
	}
	p.logger.Warn("category not in registry", "categorie", result.Categorie, "categorie_id", result.CategorieID)
	result.CategorieID = "?"
	return result
}

func (p *Processor) attachThumbnail(row *ledger.Row, path string) {
	if !p.cfg.CSV.IncludeImage {
		return
	}
	thumbnail, err := imageops.ThumbnailBase64(path, p.cfg.Thumbnail)
	if err != nil {
		p.logger.Warn("thumbnail failed", "fichier", filepath.Base(path), "err", err)
		return
	}
	row.Image = thumbnail
}
