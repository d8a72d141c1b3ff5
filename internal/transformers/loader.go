package transformers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/clients"
)

// NewLoader picks the backend named by cfg.Backend. "none" and unknown
// backends yield a nil loader, which leaves the lifecycle unavailable and the
// engine on lexical scoring.
func NewLoader(cfg config.NeuralConfig, timeout time.Duration) Loader {
	switch cfg.Backend {
	case config.BackendONNX:
		return NewHugotLoader(HugotOptions{
			ModelName:   cfg.ModelName,
			ModelDir:    cfg.ModelDir,
			Runtime:     cfg.Runtime,
			OnnxLibrary: cfg.OnnxLibrary,
		})
	case config.BackendRemote:
		return NewRemoteLoader(clients.NewHuggingFaceClient(cfg.RemoteEndpoint, cfg.RemoteToken, timeout))
	case config.BackendOpenAI:
		return NewOpenAILoader(func() (chatClassifier, error) {
			return clients.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel)
		})
	case config.BackendNone:
		return nil
	}
	slog.Warn("[ModelLifecycle] Unknown neural backend, running lexical only",
		slog.String("backend", cfg.Backend))
	return nil
}

// NewLifecycleFromConfig wires the configured backend into a lifecycle handle.
func NewLifecycleFromConfig(cfg config.NeuralConfig, timeout time.Duration, opts ...LifecycleOption) *Lifecycle {
	return NewLifecycle(fmt.Sprintf("%s:%s", cfg.Backend, backendModel(cfg)), NewLoader(cfg, timeout), opts...)
}

func backendModel(cfg config.NeuralConfig) string {
	switch cfg.Backend {
	case config.BackendONNX:
		return cfg.ModelName
	case config.BackendOpenAI:
		return cfg.OpenAIModel
	case config.BackendRemote:
		return "endpoint"
	}
	return "none"
}
