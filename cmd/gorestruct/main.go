package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gorestruct/internal/app"
	"github.com/hyperifyio/gorestruct/internal/markup"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// A local .env lands in the process environment before the flag
	// defaults below read it.
	_ = app.LoadEnvFiles(".env")

	var (
		inputPath      string
		inputFormat    string
		outputPath     string
		outputFormat   string
		directivesPath string

		llmBase string
		llmKey  string

		classifierOn      bool
		classifierBackend string
		classifierModel   string
		threshold         float64
		logPredictions    bool

		batchManifest string
		batchParallel int

		cacheDir      string
		cacheMaxAge   time.Duration
		cacheMaxBytes int64
		cacheMaxCount int
		cacheClear    bool
		cacheStrict   bool

		bundleOn  bool
		bundleTOC bool

		artifactsDir string
		artifactsTar bool

		rootTag   string
		dtdPublic string
		dtdSystem string

		fidelityNFC bool

		configPath  string
		verbose     bool
		showVersion bool
	)

	flag.StringVar(&inputPath, "input", "", "Path to the document text to restructure")
	flag.StringVar(&inputFormat, "input.format", "", "Input format: text, markdown or html (default: by extension)")
	flag.StringVar(&outputPath, "output", "", "Path to write the structured document")
	flag.StringVar(&outputFormat, "format", "", "Output format: docbook, docx or pdf (default: by extension)")
	flag.StringVar(&directivesPath, "directives", "", "Path to formatting directives JSON from the layout analyzer")
	flag.StringVar(&llmBase, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&llmKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for the OpenAI-compatible server")
	flag.BoolVar(&classifierOn, "classifier.enabled", false, "Label blocks through the model backend instead of heuristics only")
	flag.StringVar(&classifierBackend, "classifier.backend", "openai", "Classifier backend identifier")
	flag.StringVar(&classifierModel, "classifier.model", os.Getenv("LLM_MODEL"), "Model reference for the structure classifier")
	flag.Float64Var(&threshold, "classifier.threshold", 0.5, "Minimum confidence to keep a model label; below it the block abstains")
	flag.BoolVar(&logPredictions, "classifier.logPredictions", false, "Log per-label coverage after classification")
	flag.StringVar(&batchManifest, "batch", "", "Path to a batch manifest (YAML or JSON); replaces -input/-output")
	flag.IntVar(&batchParallel, "batch.parallel", 2, "Maximum jobs processed concurrently")
	flag.StringVar(&cacheDir, "cache.dir", ".gorestruct-cache", "Prediction cache directory path")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flag.Int64Var(&cacheMaxBytes, "cache.maxBytes", 0, "Prune oldest cache entries above this total size; 0 disables")
	flag.IntVar(&cacheMaxCount, "cache.maxCount", 0, "Prune oldest cache entries above this count; 0 disables")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear the cache directory before running")
	flag.BoolVar(&cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	flag.BoolVar(&bundleOn, "bundle", false, "Split a DocBook output into chapter fragments and pack them")
	flag.BoolVar(&bundleTOC, "bundle.toc", false, "Prepend a table-of-contents fragment to the bundle")
	flag.StringVar(&artifactsDir, "artifacts.dir", os.Getenv("ARTIFACTS_DIR"), "Directory for per-job audit artifacts; empty disables")
	flag.BoolVar(&artifactsTar, "artifacts.tar", false, "Pack each job's artifacts into a tar.xz as well")
	flag.StringVar(&rootTag, "docbook.root", "book", "Root element of the emitted document")
	flag.StringVar(&dtdPublic, "docbook.public", "", "DOCTYPE public identifier (default: DocBook XML V4.5)")
	flag.StringVar(&dtdSystem, "docbook.dtd", "", "DOCTYPE system identifier")
	flag.BoolVar(&fidelityNFC, "fidelity.nfc", false, "Compare fidelity tokens under NFC normalization")
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file; flags and env take precedence")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("gorestruct %s (commit %s, built %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := app.Config{
		InputPath:           inputPath,
		InputFormat:         inputFormat,
		OutputPath:          outputPath,
		OutputFormat:        outputFormat,
		DirectivesPath:      directivesPath,
		LLMBaseURL:          llmBase,
		LLMAPIKey:           llmKey,
		ClassifierEnabled:   classifierOn,
		ClassifierBackend:   classifierBackend,
		ClassifierModel:     classifierModel,
		ClassifierThreshold: threshold,
		LogPredictions:      logPredictions,
		BatchManifest:       batchManifest,
		BatchParallel:       batchParallel,
		RootTag:             rootTag,
		DTDPublic:           dtdPublic,
		DTDSystem:           dtdSystem,
		CacheDir:            cacheDir,
		CacheMaxAge:         cacheMaxAge,
		CacheMaxBytes:       cacheMaxBytes,
		CacheMaxCount:       cacheMaxCount,
		CacheClear:          cacheClear,
		CacheStrictPerms:    cacheStrict,
		Bundle:              bundleOn,
		BundleTOC:           bundleTOC,
		ArtifactsDir:        artifactsDir,
		ArtifactsTar:        artifactsTar,
		FidelityNFC:         fidelityNFC,
		Verbose:             verbose,
	}

	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("config file unreadable")
			os.Exit(2)
		}
		app.ApplyFileConfig(&cfg, fc)
		// Env still beats file values for keys present in both.
		app.ApplyEnvOverrides(&cfg)
	} else {
		app.ApplyEnvToConfig(&cfg)
	}
	if cfg.DTDPublic == "" && cfg.DTDSystem == "" {
		cfg.DTDPublic = markup.DocBookPublicID
		cfg.DTDSystem = markup.DocBookSystemID
	}

	if err := app.ValidateConfig(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		// Exit code policy: configuration problems exit 2, anything that
		// failed at run time exits 1. Fidelity warnings are logged by the
		// app and do not reach here.
		if errors.Is(err, app.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cfg app.Config) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	return a.Run(ctx)
}
