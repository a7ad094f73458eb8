package app

import (
	"time"

	"github.com/hyperifyio/gorestruct/internal/classify"
)

// Output formats accepted by -format and the batch manifest.
const (
	FormatDocBook = "docbook"
	FormatDOCX    = "docx"
	FormatPDF     = "pdf"
)

// Config holds runtime configuration for the application.
type Config struct {
	InputPath    string
	InputFormat  string
	OutputPath   string
	OutputFormat string

	// Formatting directives from the external analyzer
	DirectivesPath string

	// LLM backend
	LLMBaseURL string
	LLMAPIKey  string

	// Classifier
	ClassifierEnabled   bool
	ClassifierBackend   string
	ClassifierModel     string
	ClassifierThreshold float64
	LogPredictions      bool
	FontRules           []classify.FontRule

	// Batch
	BatchManifest string
	BatchParallel int

	// Document shape
	RootTag   string
	DTDPublic string
	DTDSystem string

	// Behavior
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheMaxBytes    int64
	CacheMaxCount    int
	CacheClear       bool
	CacheStrictPerms bool
	Bundle           bool
	BundleTOC        bool
	ArtifactsDir     string
	ArtifactsTar     bool
	FidelityNFC      bool
	Verbose          bool
}
