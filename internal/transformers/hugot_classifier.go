package transformers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
)

const (
	RuntimeORT = "ort"
	RuntimeXLA = "xla"

	pipelineName = "feedbackSentimentPipeline"
)

type HugotOptions struct {
	ModelName   string
	ModelDir    string
	Runtime     string
	OnnxLibrary string
}

// HugotClassifier runs a local ONNX text-classification pipeline.
type HugotClassifier struct {
	pipeline *pipelines.TextClassificationPipeline
}

func (h *HugotClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	output, err := h.pipeline.RunPipeline([]string{text})
	if err != nil {
		return Prediction{}, fmt.Errorf("run pipeline: %w", err)
	}
	if len(output.ClassificationOutputs) == 0 || len(output.ClassificationOutputs[0]) == 0 {
		return Prediction{}, ErrNoPrediction
	}

	best := output.ClassificationOutputs[0][0]
	for _, candidate := range output.ClassificationOutputs[0][1:] {
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	return NewPrediction(best.Label, float64(best.Score))
}

type sessionCloser struct {
	session *hugot.Session
}

func (s sessionCloser) Close() error {
	return s.session.Destroy()
}

// NewHugotLoader downloads the model on first use, opens a CPU session and
// builds the pipeline.
func NewHugotLoader(opts HugotOptions) Loader {
	return func(ctx context.Context) (Classifier, io.Closer, error) {
		modelPath, err := ensureModel(opts)
		if err != nil {
			return nil, nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		session, err := newCPUSession(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("create %s session: %w", opts.Runtime, err)
		}

		config := hugot.TextClassificationConfig{
			ModelPath: modelPath,
			Name:      pipelineName,
		}
		pipeline, err := hugot.NewPipeline(session, config)
		if err != nil {
			if destroyErr := session.Destroy(); destroyErr != nil {
				slog.Warn("[HugotClassifier] Failed to destroy session",
					slog.String("error", destroyErr.Error()))
			}
			return nil, nil, fmt.Errorf("create pipeline: %w", err)
		}

		return &HugotClassifier{pipeline: pipeline}, sessionCloser{session: session}, nil
	}
}

func ensureModel(opts HugotOptions) (string, error) {
	if err := os.MkdirAll(opts.ModelDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	modelPath := filepath.Join(opts.ModelDir, strings.ReplaceAll(opts.ModelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		slog.Info("[HugotClassifier] Using existing model", slog.String("path", modelPath))
		return modelPath, nil
	}

	slog.Info("[HugotClassifier] Model not found, downloading...",
		slog.String("model", opts.ModelName))
	downloaded, err := hugot.DownloadModel(opts.ModelName, opts.ModelDir, hugot.NewDownloadOptions())
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", opts.ModelName, err)
	}
	slog.Info("[HugotClassifier] Model downloaded successfully", slog.String("path", downloaded))
	return downloaded, nil
}

// newCPUSession defaults to onnxruntime on its CPU execution provider. The
// shared library is looked up in the default location unless OnnxLibrary is
// set.
func newCPUSession(opts HugotOptions) (*hugot.Session, error) {
	switch opts.Runtime {
	case "", RuntimeORT:
		if opts.OnnxLibrary == "" {
			return hugot.NewORTSession()
		}
		return hugot.NewORTSession(options.WithOnnxLibraryPath(opts.OnnxLibrary))
	case RuntimeXLA:
		return newXLASession()
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedRuntime, opts.Runtime)
}
