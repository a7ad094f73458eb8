package classify

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gorestruct/internal/cache"
	"github.com/hyperifyio/gorestruct/internal/llm"
	"github.com/hyperifyio/gorestruct/internal/page"
)

// Prediction is one classified block.
type Prediction struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Monitoring toggles prediction observability.
type Monitoring struct {
	LogPredictions bool
}

// Config is the classifier configuration surface.
type Config struct {
	Enabled        bool
	Backend        string
	ModelReference string
	Threshold      float64
	AbstainLabel   Label
	FallbackLabel  Label
	FontRules      []FontRule
	Monitoring     Monitoring
}

// Classifier pairs the model path with the heuristic floor. The heuristic
// path is always present; the model path exists only when the config enables
// it and a client was dialed.
type Classifier struct {
	cfg       Config
	heuristic *Heuristic
	model     *Model
}

// New builds a classifier from cfg. A nil client yields a heuristic-only
// classifier regardless of cfg.Enabled.
func New(cfg Config, client llm.Client) *Classifier {
	if cfg.FallbackLabel == "" {
		cfg.FallbackLabel = Body
	}
	if cfg.AbstainLabel == "" {
		cfg.AbstainLabel = Abstain
	}
	c := &Classifier{
		cfg:       cfg,
		heuristic: &Heuristic{FontRules: cfg.FontRules, FallbackLabel: cfg.FallbackLabel},
	}
	if cfg.Enabled && client != nil && strings.TrimSpace(cfg.ModelReference) != "" {
		c.model = &Model{
			Client:        client,
			Reference:     cfg.ModelReference,
			Threshold:     cfg.Threshold,
			AbstainLabel:  cfg.AbstainLabel,
			FallbackLabel: cfg.FallbackLabel,
		}
	}
	return c
}

// WithCache attaches a prediction cache to the model path, if there is one.
func (c *Classifier) WithCache(pc *cache.PredictionCache) *Classifier {
	if c.model != nil {
		c.model.Cache = pc
	}
	return c
}

// Classify labels the blocks. The model path is used when configured; any
// model failure logs a warning and the heuristic result is returned instead,
// so a document never fails because of its classifier.
func (c *Classifier) Classify(ctx context.Context, blocks []page.Block) []Prediction {
	var preds []Prediction
	if c.model != nil {
		var err error
		preds, err = c.model.Classify(ctx, blocks)
		if err != nil {
			log.Warn().Err(err).Int("blocks", len(blocks)).
				Str("model", c.cfg.ModelReference).
				Msg("model classification failed; using heuristics")
			preds = nil
		}
	}
	if preds == nil {
		preds = c.heuristic.Classify(blocks)
	}
	if c.cfg.Monitoring.LogPredictions {
		logCoverage(preds)
	}
	return preds
}

func logCoverage(preds []Prediction) {
	counts := make(map[string]int, 8)
	abstained := 0
	for _, p := range preds {
		counts[string(p.Label)]++
		if p.Label == Abstain {
			abstained++
		}
	}
	log.Debug().Int("blocks", len(preds)).Int("abstained", abstained).
		Interface("labels", counts).Msg("classification coverage")
}

// Registry caches live classifiers keyed by backend and model reference so
// concurrent jobs share one instance per backend. Initialization is
// single-flight: the first caller dials, the rest wait and reuse.
type Registry struct {
	dial    func(Config) (llm.Client, error)
	mu      sync.Mutex
	entries map[registryKey]*registryEntry
}

type registryKey struct {
	backend string
	model   string
}

type registryEntry struct {
	once sync.Once
	c    *Classifier
}

// NewRegistry builds a registry around the given backend dialer.
func NewRegistry(dial func(Config) (llm.Client, error)) *Registry {
	return &Registry{dial: dial, entries: make(map[registryKey]*registryEntry)}
}

// Get returns the classifier for cfg, creating it on first use. A missing
// model reference or a failed dial degrades to heuristics with a logged
// warning; Get never fails the caller.
func (r *Registry) Get(cfg Config) *Classifier {
	key := registryKey{backend: cfg.Backend, model: cfg.ModelReference}
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &registryEntry{}
		r.entries[key] = e
	}
	r.mu.Unlock()
	e.once.Do(func() {
		e.c = r.build(cfg)
	})
	return e.c
}

func (r *Registry) build(cfg Config) *Classifier {
	if !cfg.Enabled {
		return New(cfg, nil)
	}
	if strings.TrimSpace(cfg.ModelReference) == "" {
		log.Warn().Str("backend", cfg.Backend).
			Msg("classifier enabled without a model reference; using heuristics only")
		return New(cfg, nil)
	}
	if r.dial == nil {
		log.Warn().Str("backend", cfg.Backend).
			Msg("no backend dialer configured; using heuristics only")
		return New(cfg, nil)
	}
	client, err := r.dial(cfg)
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.Backend).Str("model", cfg.ModelReference).
			Msg("classifier backend unavailable; using heuristics only")
		return New(cfg, nil)
	}
	return New(cfg, client)
}
