package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	}
	if cfg.ClassifierModel == "" {
		cfg.ClassifierModel = os.Getenv("LLM_MODEL")
	}
	if cfg.ClassifierBackend == "" {
		cfg.ClassifierBackend = os.Getenv("CLASSIFIER_BACKEND")
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = os.Getenv("ARTIFACTS_DIR")
	}

	if cfg.ClassifierThreshold == 0 {
		if s := strings.TrimSpace(os.Getenv("CLASSIFIER_THRESHOLD")); s != "" {
			if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
				cfg.ClassifierThreshold = f
			}
		}
	}
	if cfg.BatchParallel == 0 {
		if s := strings.TrimSpace(os.Getenv("BATCH_PARALLEL")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				cfg.BatchParallel = n
			}
		}
	}
	if cfg.CacheMaxAge == 0 {
		if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheMaxAge = d
			}
		}
	}
	if cfg.CacheMaxBytes == 0 {
		if s := strings.TrimSpace(os.Getenv("CACHE_MAX_BYTES")); s != "" {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
				cfg.CacheMaxBytes = n
			}
		}
	}
	if cfg.CacheMaxCount == 0 {
		if s := strings.TrimSpace(os.Getenv("CACHE_MAX_COUNT")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				cfg.CacheMaxCount = n
			}
		}
	}

	// Booleans
	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			if s == "1" || s == "true" || s == "yes" || s == "on" {
				*dst = true
			}
		}
	}
	setBool(&cfg.ClassifierEnabled, "CLASSIFIER_ENABLED")
	setBool(&cfg.LogPredictions, "LOG_PREDICTIONS")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.Bundle, "BUNDLE")
	setBool(&cfg.BundleTOC, "BUNDLE_TOC")
	setBool(&cfg.ArtifactsTar, "ARTIFACTS_TAR")
	setBool(&cfg.FidelityNFC, "FIDELITY_NFC")
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment variables
// when the corresponding env vars are set. This is used to let env take
// precedence over values coming from a config file while still allowing flags
// to remain highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.ClassifierModel = v
	}
	if v := os.Getenv("CLASSIFIER_BACKEND"); v != "" {
		cfg.ClassifierBackend = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("ARTIFACTS_DIR"); v != "" {
		cfg.ArtifactsDir = v
	}

	if s := strings.TrimSpace(os.Getenv("CLASSIFIER_THRESHOLD")); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
			cfg.ClassifierThreshold = f
		}
	}
	if s := strings.TrimSpace(os.Getenv("BATCH_PARALLEL")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.BatchParallel = n
		}
	}
	if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.CacheMaxAge = d
		}
	}
	if s := strings.TrimSpace(os.Getenv("CACHE_MAX_BYTES")); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			cfg.CacheMaxBytes = n
		}
	}
	if s := strings.TrimSpace(os.Getenv("CACHE_MAX_COUNT")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.CacheMaxCount = n
		}
	}

	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, envKey string) {
		if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
			switch s {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}
	setBool(&cfg.ClassifierEnabled, "CLASSIFIER_ENABLED")
	setBool(&cfg.LogPredictions, "LOG_PREDICTIONS")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.Bundle, "BUNDLE")
	setBool(&cfg.BundleTOC, "BUNDLE_TOC")
	setBool(&cfg.ArtifactsTar, "ARTIFACTS_TAR")
	setBool(&cfg.FidelityNFC, "FIDELITY_NFC")
}
