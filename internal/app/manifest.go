package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/gorestruct/internal/ingest"
)

// jobSpec is one document job from the batch manifest, or the single job
// assembled from flags. Per-job fields override nothing globally; directives
// and format are optional.
type jobSpec struct {
	Name       string `yaml:"name" json:"name"`
	Input      string `yaml:"input" json:"input"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	Directives string `yaml:"directives" json:"directives"`
}

// displayName is the human label used in logs and results.
func (s jobSpec) displayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return filepath.Base(s.Input)
}

// batchManifest lists the jobs of one batch run, in submission order.
type batchManifest struct {
	Jobs []jobSpec `yaml:"jobs" json:"jobs"`
}

// loadBatchManifest reads a YAML or JSON manifest and validates every entry.
// A manifest error is a configuration error: it fails the run before any job
// starts rather than mid-batch.
func loadBatchManifest(path string) (batchManifest, error) {
	var man batchManifest
	b, err := os.ReadFile(path)
	if err != nil {
		return man, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &man); err != nil {
			return man, fmt.Errorf("%w: parse yaml: %w", ErrInvalidConfig, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &man); err != nil {
			return man, fmt.Errorf("%w: parse json: %w", ErrInvalidConfig, err)
		}
	default:
		if err := yaml.Unmarshal(b, &man); err != nil {
			if jerr := json.Unmarshal(b, &man); jerr != nil {
				return man, fmt.Errorf("%w: parse manifest: %v (yaml) / %v (json)", ErrInvalidConfig, err, jerr)
			}
		}
	}
	for i, job := range man.Jobs {
		if strings.TrimSpace(job.Input) == "" {
			return man, fmt.Errorf("%w: job %d (%s): input is required", ErrInvalidConfig, i, job.displayName())
		}
		if strings.TrimSpace(job.Output) == "" {
			return man, fmt.Errorf("%w: job %d (%s): output is required", ErrInvalidConfig, i, job.displayName())
		}
		if job.Format != "" {
			if _, err := ingest.ResolveFormat("", job.Format); err != nil {
				return man, fmt.Errorf("%w: job %d (%s): %w", ErrInvalidConfig, i, job.displayName(), err)
			}
		}
	}
	return man, nil
}
