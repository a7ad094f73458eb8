package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gorestruct/internal/batch"
	"github.com/hyperifyio/gorestruct/internal/bundle"
	"github.com/hyperifyio/gorestruct/internal/cache"
	"github.com/hyperifyio/gorestruct/internal/classify"
	"github.com/hyperifyio/gorestruct/internal/fidelity"
	"github.com/hyperifyio/gorestruct/internal/ingest"
	"github.com/hyperifyio/gorestruct/internal/llm"
	"github.com/hyperifyio/gorestruct/internal/markup"
	"github.com/hyperifyio/gorestruct/internal/page"
	"github.com/hyperifyio/gorestruct/internal/render"
	"github.com/hyperifyio/gorestruct/internal/styling"
)

const probeTimeout = 5 * time.Second

type App struct {
	cfg       Config
	registry  *classify.Registry
	predCache *cache.PredictionCache
}

func New(ctx context.Context, cfg Config) (*App, error) {
	a := &App{cfg: cfg}

	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		if cfg.CacheMaxAge > 0 {
			// Purge by age; ignore errors to avoid failing startup
			_, _ = cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge)
		}
		if cfg.CacheMaxBytes > 0 || cfg.CacheMaxCount > 0 {
			_, _ = cache.EnforceLimits(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheMaxCount)
		}
		a.predCache = &cache.PredictionCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	a.registry = classify.NewRegistry(a.dial)

	// Quick connectivity check against the classifier backend. Best-effort:
	// a failed probe degrades to heuristics at classification time, so we
	// warn here instead of failing startup.
	if cfg.ClassifierEnabled && strings.TrimSpace(cfg.ClassifierModel) != "" {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		client := llm.Connect(cfg.LLMBaseURL, cfg.LLMAPIKey)
		if err := llm.ProbeModel(probeCtx, client, cfg.ClassifierModel); err != nil {
			log.Warn().Err(err).Str("model", cfg.ClassifierModel).
				Msg("classifier backend probe failed; continuing")
		} else {
			log.Info().Str("model", cfg.ClassifierModel).Msg("classifier backend ready")
		}
	}

	return a, nil
}

func (a *App) Close() {
	// nothing yet
}

func (a *App) dial(classify.Config) (llm.Client, error) {
	return llm.Connect(a.cfg.LLMBaseURL, a.cfg.LLMAPIKey), nil
}

func (a *App) classifierConfig() classify.Config {
	return classify.Config{
		Enabled:        a.cfg.ClassifierEnabled,
		Backend:        a.cfg.ClassifierBackend,
		ModelReference: a.cfg.ClassifierModel,
		Threshold:      a.cfg.ClassifierThreshold,
		FontRules:      a.cfg.FontRules,
		Monitoring:     classify.Monitoring{LogPredictions: a.cfg.LogPredictions},
	}
}

// Run executes the configured work: the single job from the flags, or every
// job in the batch manifest, under the bounded pool.
func (a *App) Run(ctx context.Context) error {
	specs, err := a.jobSpecs()
	if err != nil {
		return err
	}

	jobs := make([]batch.Job, 0, len(specs))
	for _, spec := range specs {
		spec := spec
		jobs = append(jobs, batch.Job{
			Name: spec.displayName(),
			Run: func(ctx context.Context) (batch.Artifact, error) {
				return a.process(ctx, spec)
			},
		})
	}

	results := batch.Run(ctx, jobs, a.cfg.BatchParallel)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.Error().Err(r.Err).Str("job", r.JobID).Str("name", r.Name).Msg("job failed")
			continue
		}
		for _, w := range r.Artifact.Warnings {
			log.Warn().Str("job", r.JobID).Str("name", r.Name).Msg(w)
		}
		log.Info().Str("job", r.JobID).Str("name", r.Name).
			Dur("elapsed", r.Elapsed).Str("path", r.Artifact.Path).Msg("job complete")
	}
	if failed > 0 {
		if len(results) == 1 {
			return results[0].Err
		}
		return fmt.Errorf("%d of %d jobs failed", failed, len(results))
	}
	return nil
}

func (a *App) jobSpecs() ([]jobSpec, error) {
	if strings.TrimSpace(a.cfg.BatchManifest) != "" {
		man, err := loadBatchManifest(a.cfg.BatchManifest)
		if err != nil {
			return nil, fmt.Errorf("load batch manifest: %w", err)
		}
		if len(man.Jobs) == 0 {
			return nil, fmt.Errorf("%w: batch manifest has no jobs", ErrInvalidConfig)
		}
		return man.Jobs, nil
	}
	return []jobSpec{{
		Input:      a.cfg.InputPath,
		Format:     a.cfg.InputFormat,
		Output:     a.cfg.OutputPath,
		Directives: a.cfg.DirectivesPath,
	}}, nil
}

// process runs the full chain for one job: ingest, classify, map, style,
// render, gate, bundle, artifacts.
func (a *App) process(ctx context.Context, spec jobSpec) (batch.Artifact, error) {
	var art batch.Artifact

	blocks, err := ingest.Read(spec.Input, spec.Format)
	if err != nil {
		return art, err
	}
	if len(blocks) == 0 {
		return art, fmt.Errorf("input %s: no text blocks", spec.Input)
	}
	rawPages := page.Pages(blocks)
	lines := documentLines(blocks)
	original := strings.Join(lines, "\n")

	preds := a.registry.Get(a.classifierConfig()).WithCache(a.predCache).Classify(ctx, blocks)

	labeled := make([]markup.Labeled, len(blocks))
	for i := range blocks {
		labeled[i] = markup.Labeled{Block: blocks[i], Prediction: preds[i]}
	}
	mapper := markup.Mapper{RootTag: a.cfg.RootTag}
	root := mapper.Map(labeled)
	title := documentTitle(root, spec.Input)

	format, err := resolveOutputFormat(spec.Output, a.cfg.OutputFormat)
	if err != nil {
		return art, err
	}

	styled, styleWarnings, err := a.loadStyling(spec, format, lines)
	if err != nil {
		return art, err
	}
	art.Warnings = append(art.Warnings, styleWarnings...)

	switch format {
	case FormatDocBook:
		err = a.writeDocBook(spec.Output, root, original)
	case FormatDOCX:
		var warnings []string
		warnings, err = a.writeDOCX(spec.Output, root, styled, original)
		art.Warnings = append(art.Warnings, warnings...)
	case FormatPDF:
		err = a.writePDF(spec.Output, title, root, styled)
	}
	if err != nil {
		return art, err
	}
	art.Path = spec.Output

	report := fidelity.Compute(rawPages, treePages(blocks, root))

	if a.cfg.Bundle && format == FormatDocBook {
		if err := a.writeBundle(spec.Output, root, title); err != nil {
			return art, err
		}
	}

	if a.cfg.ArtifactsDir != "" {
		if err := a.exportArtifacts(spec, preds, root, styled, report); err != nil {
			return art, fmt.Errorf("export artifacts: %w", err)
		}
	}
	return art, nil
}

// loadStyling reads and applies the formatting directives for a job. Nil
// styled lines mean "render the baseline". A styling pass that fails the
// exact-reproduction check is discarded with a warning rather than an error.
func (a *App) loadStyling(spec jobSpec, format string, lines []string) ([]styling.StyledLine, []string, error) {
	if strings.TrimSpace(spec.Directives) == "" {
		return nil, nil, nil
	}
	if format == FormatDocBook {
		return nil, []string{"formatting directives ignored for docbook output"}, nil
	}
	data, err := os.ReadFile(spec.Directives)
	if err != nil {
		return nil, nil, fmt.Errorf("read directives: %w", err)
	}
	d, err := styling.ParseDirectives(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse directives: %w", err)
	}
	styled := styling.Apply(lines, d)
	for i := range styled {
		var b strings.Builder
		for _, seg := range styled[i].Segments {
			b.WriteString(seg.Text)
		}
		if err := fidelity.CheckExact(lines[i], b.String()); err != nil {
			log.Warn().Err(err).Int("line", i+1).Str("job", spec.Input).
				Msg("styling altered text; keeping baseline")
			return nil, []string{fmt.Sprintf("enhancement discarded: line %d: %v", i+1, err)}, nil
		}
	}
	return styled, nil, nil
}

// writeDocBook emits the document and re-reads it through the XML parser.
// The extracted leaves must reproduce the tree text byte for byte, and their
// token sequence must match the source text; either divergence fails the job
// because the baseline itself would be unfaithful.
func (a *App) writeDocBook(path string, root *markup.Node, original string) error {
	if err := render.WriteDocBook(path, root, a.cfg.DTDPublic, a.cfg.DTDSystem); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read back document: %w", err)
	}
	texts, err := markup.ExtractText(string(data))
	if err != nil {
		return fmt.Errorf("re-parse document: %w", err)
	}
	extracted := strings.Join(texts, "\n")
	if err := fidelity.CheckExact(strings.Join(markup.Texts(root), "\n"), extracted); err != nil {
		return fmt.Errorf("document round-trip: %w", err)
	}
	if err := a.checkTokens(original, extracted); err != nil {
		return fmt.Errorf("document round-trip: %w", err)
	}
	return nil
}

// writeDOCX writes the enhanced document when styled lines exist and they
// survive the read-back gate; otherwise the baseline. A rejected enhancement
// is a warning, a rejected baseline is an error.
func (a *App) writeDOCX(path string, root *markup.Node, styled []styling.StyledLine, original string) ([]string, error) {
	if styled != nil {
		if err := render.WriteDOCX(path, render.DOCXFromStyledLines(styled)); err != nil {
			return nil, err
		}
		got, err := render.DOCXText(path)
		if err != nil {
			return nil, fmt.Errorf("read back docx: %w", err)
		}
		gateErr := a.checkTokens(original, got)
		if gateErr == nil {
			return nil, nil
		}
		log.Warn().Err(gateErr).Str("path", path).
			Msg("fidelity gate rejected enhanced docx; writing baseline")
		warnings := []string{fmt.Sprintf("enhanced docx discarded: %v", gateErr)}
		return warnings, a.writeBaselineDOCX(path, root, original)
	}
	return nil, a.writeBaselineDOCX(path, root, original)
}

func (a *App) writeBaselineDOCX(path string, root *markup.Node, original string) error {
	if err := render.WriteDOCX(path, render.DOCXFromTree(root)); err != nil {
		return err
	}
	got, err := render.DOCXText(path)
	if err != nil {
		return fmt.Errorf("read back docx: %w", err)
	}
	if err := a.checkTokens(original, got); err != nil {
		return fmt.Errorf("baseline docx failed the fidelity gate: %w", err)
	}
	return nil
}

func (a *App) writePDF(path, title string, root *markup.Node, styled []styling.StyledLine) error {
	if styled != nil {
		return render.WritePDF(path, render.PDFFromStyledLines(title, styled))
	}
	return render.WritePDF(path, render.PDFFromTree(title, root))
}

func (a *App) writeBundle(outputPath string, root *markup.Node, title string) error {
	book, chapters := bundle.Split(root)
	fragments := chapters
	if a.cfg.BundleTOC {
		fragments = append([]bundle.Fragment{bundle.TOC(chapters)}, chapters...)
	}
	dir, archive := deriveBundlePaths(outputPath, title)
	if err := bundle.WriteBook(dir, book, fragments, a.cfg.DTDPublic, a.cfg.DTDSystem); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := bundle.Pack(dir, archive); err != nil {
		return fmt.Errorf("pack bundle: %w", err)
	}
	log.Info().Str("dir", dir).Str("archive", archive).
		Int("chapters", len(chapters)).Msg("bundle written")
	return nil
}

func (a *App) checkTokens(original, enhanced string) error {
	if a.cfg.FidelityNFC {
		return fidelity.CheckTokensNFC(original, enhanced)
	}
	return fidelity.CheckTokens(original, enhanced)
}

// resolveOutputFormat picks the output format from the explicit setting or
// the output file extension.
func resolveOutputFormat(path, format string) (string, error) {
	switch format {
	case FormatDocBook, FormatDOCX, FormatPDF:
		return format, nil
	case "":
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatDocBook, nil
	case ".docx":
		return FormatDOCX, nil
	case ".pdf":
		return FormatPDF, nil
	}
	return FormatDocBook, nil
}

// documentLines flattens block texts into the line sequence the analyzer's
// directives address.
func documentLines(blocks []page.Block) []string {
	var lines []string
	for _, b := range blocks {
		lines = append(lines, strings.Split(b.Text, "\n")...)
	}
	return lines
}

// documentTitle returns the first title text of the tree, falling back to
// the input file name.
func documentTitle(root *markup.Node, inputPath string) string {
	for _, n := range root.Children {
		if n.Tag == "title" {
			return n.Text
		}
	}
	return strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
}

// treePages reassembles per-page text from the mapped tree, for the metrics
// report. Each block contributed exactly one text leaf in order, so the leaf
// texts re-associate with the source pages by index.
func treePages(blocks []page.Block, root *markup.Node) []page.Text {
	texts := markup.Texts(root)
	if len(texts) != len(blocks) {
		log.Error().Int("blocks", len(blocks)).Int("leaves", len(texts)).
			Msg("tree leaf count diverged from block count")
		return nil
	}
	out := make([]page.Block, len(blocks))
	copy(out, blocks)
	for i := range out {
		out[i].Text = texts[i]
	}
	return page.Pages(out)
}
