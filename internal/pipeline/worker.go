package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fsrecon/internal/config"
	"fsrecon/internal/dsd"
	"fsrecon/internal/mapping"
	"fsrecon/internal/model"
	"fsrecon/internal/parser"
	"fsrecon/internal/reconcile"
	"fsrecon/internal/report"
	"fsrecon/internal/segment"
	"fsrecon/internal/source"
)

// Worker processes a single reconciliation job.
type Worker struct {
	resolver *mapping.Resolver
	engine   *reconcile.Engine
	log      *slog.Logger
	cfg      config.Config
}

func NewWorker(resolver *mapping.Resolver, engine *reconcile.Engine, log *slog.Logger, cfg config.Config) *Worker {
	return &Worker{resolver: resolver, engine: engine, log: log, cfg: cfg}
}

// Process runs the full reconciliation pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)

	// Phase 1: Parse both sides. The sides are independent, so they parse
	// concurrently.
	job.SetStatus(StatusParsing, "parsing")

	var (
		wg       sync.WaitGroup
		sections []*model.SourceSection
		srcErr   error
		doc      *model.TargetDocument
		tgtErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sections, srcErr = w.parseSource(job)
	}()
	go func() {
		defer wg.Done()
		doc, tgtErr = w.parseTarget(job)
	}()
	wg.Wait()

	if srcErr != nil {
		log.Error("DSD parse failed", "error", srcErr)
		job.AddError(fmt.Sprintf("dsd: %s", srcErr))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if tgtErr != nil {
		log.Error("target parse failed", "error", tgtErr)
		job.AddError(fmt.Sprintf("target: %s", tgtErr))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if len(sections) == 0 {
		log.Error("no reconcilable sections in DSD filing")
		job.AddError("no reconcilable sections in DSD filing")
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	log.Info("parsed inputs",
		"source_sections", len(sections),
		"target_sections", len(doc.Sections))

	// Phase 2: Section mapping.
	job.SetStatus(StatusMapping, "mapping")
	mappings := w.resolver.Resolve(ctx, sections, doc)
	job.SetTotalSections(len(mappings))

	// Phase 3: Reconciliation.
	job.SetStatus(StatusReconciling, "reconciling")
	results := w.engine.ReconcileAll(ctx, mappings, func(done, total int) {
		job.SetSectionsDone(done)
	})

	total, matched, mismatched, unver := 0, 0, 0, 0
	for i := range results {
		total += results[i].TotalCells()
		matched += results[i].MatchedCount()
		mismatched += results[i].MismatchedCount()
		unver += results[i].UnverifiableCount()
	}
	job.SetTallies(total, matched, mismatched, unver)
	log.Info("reconciliation complete",
		"cells", total, "matched", matched,
		"mismatched", mismatched, "unverifiable", unver)

	// Phase 4: Report.
	job.SetStatus(StatusReporting, "reporting")
	outPath, err := w.renderReport(job, results)
	if err != nil {
		log.Error("report render failed", "error", err)
		job.AddError(fmt.Sprintf("report: %s", err))
		job.SetStatus(StatusFailed, "reporting")
		return
	}
	job.SetOutputPath(outPath)
	job.SetStatus(StatusCompleted, "done")
	log.Info("job complete", "output", outPath)
}

// parseSource reads the DSD archive into structured sections. The ZIP
// reader needs a file on disk, so the upload takes a round trip through a
// temp file.
func (w *Worker) parseSource(job *Job) ([]*model.SourceSection, error) {
	tmp, err := os.CreateTemp("", "fsrecon-*.dsd")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(job.dsdData); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	stream, err := dsd.Parse(tmp.Name())
	if err != nil {
		return nil, err
	}
	return source.BuildSections(stream.Blocks), nil
}

func (w *Worker) parseTarget(job *Job) (*model.TargetDocument, error) {
	p, err := parser.ForFile(job.TargetFilename)
	if err != nil {
		p, err = parser.Sniff(job.targetData)
		if err != nil {
			return nil, err
		}
	}
	if pdf, ok := p.(*parser.PDFParser); ok {
		pdf.FallbackPdftotext = w.cfg.PDFFallbackPdftotext
	}

	stream, err := p.Parse(bytes.NewReader(job.targetData), job.TargetFilename)
	if err != nil {
		return nil, err
	}
	return segment.Segment(stream), nil
}

func (w *Worker) renderReport(job *Job, results []model.SectionResult) (string, error) {
	if err := os.MkdirAll(w.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	wr, err := report.NewWriter()
	if err != nil {
		return "", err
	}
	outPath := filepath.Join(w.cfg.OutputDir, report.Filename(job.ID, time.Now()))
	if err := wr.Render(results, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}
