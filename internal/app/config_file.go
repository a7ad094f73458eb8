package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/gorestruct/internal/classify"
	"github.com/hyperifyio/gorestruct/internal/ingest"
)

// FileConfig represents the single-file configuration schema.
// Nested sections improve readability and map naturally to flags/env.
type FileConfig struct {
	Input struct {
		Path   string `yaml:"path" json:"path"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"input" json:"input"`

	Output struct {
		Path   string `yaml:"path" json:"path"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"output" json:"output"`

	Directives string `yaml:"directives" json:"directives"`

	LLM struct {
		BaseURL string `yaml:"base" json:"base"`
		APIKey  string `yaml:"key" json:"key"`
	} `yaml:"llm" json:"llm"`

	Classifier struct {
		Enable         bool                `yaml:"enable" json:"enable"`
		Backend        string              `yaml:"backend" json:"backend"`
		Model          string              `yaml:"model" json:"model"`
		Threshold      float64             `yaml:"threshold" json:"threshold"`
		LogPredictions bool                `yaml:"logPredictions" json:"logPredictions"`
		FontRules      []classify.FontRule `yaml:"fontRules" json:"fontRules"`
	} `yaml:"classifier" json:"classifier"`

	Batch struct {
		Manifest string `yaml:"manifest" json:"manifest"`
		Parallel int    `yaml:"parallel" json:"parallel"`
	} `yaml:"batch" json:"batch"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxCount    int           `yaml:"maxCount" json:"maxCount"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Bundle struct {
		Enable bool `yaml:"enable" json:"enable"`
		TOC    bool `yaml:"toc" json:"toc"`
	} `yaml:"bundle" json:"bundle"`

	Artifacts struct {
		Dir string `yaml:"dir" json:"dir"`
		Tar bool   `yaml:"tar" json:"tar"`
	} `yaml:"artifacts" json:"artifacts"`

	DocBook struct {
		RootTag   string `yaml:"rootTag" json:"rootTag"`
		DTDPublic string `yaml:"public" json:"public"`
		DTDSystem string `yaml:"dtd" json:"dtd"`
	} `yaml:"docbook" json:"docbook"`

	Fidelity struct {
		NFC bool `yaml:"nfc" json:"nfc"`
	} `yaml:"fidelity" json:"fidelity"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset/zero in cfg. Flags should already have been parsed; this
// function lets file config supply defaults while preserving explicit flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	// Defaults from flag parsing that file config may override when flags
	// were not set explicitly.
	const (
		cacheDirDefault  = ".gorestruct-cache"
		parallelDefault  = 2
		thresholdDefault = 0.5
		rootTagDefault   = "book"
	)

	if cfg.InputPath == "" && fc.Input.Path != "" {
		cfg.InputPath = fc.Input.Path
	}
	if cfg.InputFormat == "" && fc.Input.Format != "" {
		cfg.InputFormat = fc.Input.Format
	}
	if cfg.OutputPath == "" && fc.Output.Path != "" {
		cfg.OutputPath = fc.Output.Path
	}
	if cfg.OutputFormat == "" && fc.Output.Format != "" {
		cfg.OutputFormat = fc.Output.Format
	}
	if cfg.DirectivesPath == "" && fc.Directives != "" {
		cfg.DirectivesPath = fc.Directives
	}

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}

	if !cfg.ClassifierEnabled && fc.Classifier.Enable {
		cfg.ClassifierEnabled = true
	}
	if cfg.ClassifierBackend == "" && fc.Classifier.Backend != "" {
		cfg.ClassifierBackend = fc.Classifier.Backend
	}
	if cfg.ClassifierModel == "" && fc.Classifier.Model != "" {
		cfg.ClassifierModel = fc.Classifier.Model
	}
	if (cfg.ClassifierThreshold == 0 || cfg.ClassifierThreshold == thresholdDefault) && fc.Classifier.Threshold > 0 {
		cfg.ClassifierThreshold = fc.Classifier.Threshold
	}
	if !cfg.LogPredictions && fc.Classifier.LogPredictions {
		cfg.LogPredictions = true
	}
	if len(cfg.FontRules) == 0 && len(fc.Classifier.FontRules) > 0 {
		cfg.FontRules = append([]classify.FontRule{}, fc.Classifier.FontRules...)
	}

	if cfg.BatchManifest == "" && fc.Batch.Manifest != "" {
		cfg.BatchManifest = fc.Batch.Manifest
	}
	if (cfg.BatchParallel == 0 || cfg.BatchParallel == parallelDefault) && fc.Batch.Parallel > 0 {
		cfg.BatchParallel = fc.Batch.Parallel
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == cacheDirDefault) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if cfg.CacheMaxCount == 0 && fc.Cache.MaxCount > 0 {
		cfg.CacheMaxCount = fc.Cache.MaxCount
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}

	if !cfg.Bundle && fc.Bundle.Enable {
		cfg.Bundle = true
	}
	if !cfg.BundleTOC && fc.Bundle.TOC {
		cfg.BundleTOC = true
	}

	if cfg.ArtifactsDir == "" && fc.Artifacts.Dir != "" {
		cfg.ArtifactsDir = fc.Artifacts.Dir
	}
	if !cfg.ArtifactsTar && fc.Artifacts.Tar {
		cfg.ArtifactsTar = true
	}

	if (cfg.RootTag == "" || cfg.RootTag == rootTagDefault) && fc.DocBook.RootTag != "" {
		cfg.RootTag = fc.DocBook.RootTag
	}
	if cfg.DTDPublic == "" && fc.DocBook.DTDPublic != "" {
		cfg.DTDPublic = fc.DocBook.DTDPublic
	}
	if cfg.DTDSystem == "" && fc.DocBook.DTDSystem != "" {
		cfg.DTDSystem = fc.DocBook.DTDSystem
	}

	if !cfg.FidelityNFC && fc.Fidelity.NFC {
		cfg.FidelityNFC = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ErrInvalidConfig marks configuration the run could never start from. The
// CLI maps it to its configuration exit code.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig performs minimal schema validation for required settings.
// With a batch manifest, per-job paths come from the manifest instead. An
// enabled classifier without a model reference is deliberately not an error
// here: that combination degrades to heuristics with a logged warning.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.BatchManifest) == "" {
		if strings.TrimSpace(cfg.InputPath) == "" {
			return fmt.Errorf("%w: input path is required", ErrInvalidConfig)
		}
		if strings.TrimSpace(cfg.OutputPath) == "" {
			return fmt.Errorf("%w: output path is required", ErrInvalidConfig)
		}
	}
	if cfg.ClassifierThreshold < 0 || cfg.ClassifierThreshold > 1 {
		return fmt.Errorf("%w: classifier.threshold must be within [0,1]", ErrInvalidConfig)
	}
	if cfg.BatchParallel < 0 {
		return fmt.Errorf("%w: negative batch parallelism is not allowed", ErrInvalidConfig)
	}
	if cfg.CacheMaxAge < 0 {
		return fmt.Errorf("%w: negative cache.maxAge is not allowed", ErrInvalidConfig)
	}
	if cfg.InputFormat != "" {
		if _, err := ingest.ResolveFormat("", cfg.InputFormat); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	switch cfg.OutputFormat {
	case "", FormatDocBook, FormatDOCX, FormatPDF:
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, cfg.OutputFormat)
	}
	return nil
}
