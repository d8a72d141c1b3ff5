package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/cache"
	"github.com/spacesedan/feedbackflow/internal/clients"
	"github.com/spacesedan/feedbackflow/internal/lexicon"
	"github.com/spacesedan/feedbackflow/internal/monitoring"
	"github.com/spacesedan/feedbackflow/internal/sentiment"
	"github.com/spacesedan/feedbackflow/internal/spectrum"
	"github.com/spacesedan/feedbackflow/internal/transformers"
)

// Build wires the engine from configuration. A missing or unreachable Valkey
// leaves the engine with the in-process cache only.
func Build(cfg config.Config, metrics *monitoring.Metrics) (*Engine, error) {
	table, err := spectrum.LoadTable(cfg.Engine.CategoriesFile)
	if err != nil {
		return nil, fmt.Errorf("load spectrum categories: %w", err)
	}

	model := transformers.NewLifecycleFromConfig(cfg.Neural, cfg.Engine.NeuralTimeout,
		transformers.WithTransitionHook(func(name string, _, to transformers.State, _ time.Duration) {
			metrics.ObserveTransition(name, to.String())
			metrics.SetModelReady(to == transformers.StateReady)
		}))

	analyzer := lexicon.NewAnalyzer(lexicon.NewVaderLexicon())
	sentimentEngine := sentiment.NewEngine(analyzer, model, sentiment.Options{
		LexicalWeight: cfg.Engine.LexicalWeight,
		NeuralWeight:  cfg.Engine.NeuralWeight,
		NeuralTimeout: cfg.Engine.NeuralTimeout,
		Metrics:       metrics,
	})
	spectrumClassifier := spectrum.NewClassifier(table, model, spectrum.Options{
		FastPathThreshold: cfg.Engine.FastPathThreshold,
		NeuralTimeout:     cfg.Engine.NeuralTimeout,
		Metrics:           metrics,
	})

	resultCache, closeCache := buildCache(cfg)
	e := New(model, sentimentEngine, spectrumClassifier, resultCache, metrics)
	if closeCache != nil {
		e.closers = append(e.closers, closeCache)
	}
	return e, nil
}

func buildCache(cfg config.Config) (cache.Cache, func()) {
	if cfg.Engine.ResultCacheTTL <= 0 {
		return nil, nil
	}
	local := cache.NewMemoryCache(cfg.Engine.ResultCacheTTL)
	if cfg.Valkey.Address == "" {
		return local, nil
	}

	vc, err := clients.NewValkeyClient(cfg.Valkey)
	if err != nil {
		slog.Warn("[Engine] Valkey unavailable, using in-process result cache",
			slog.String("error", err.Error()))
		return local, nil
	}
	return cache.NewLayered(local, cache.NewValkeyCache(vc, cfg.Engine.ResultCacheTTL)), vc.Close
}
