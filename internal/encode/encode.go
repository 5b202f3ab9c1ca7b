// Package encode turns entity text into fixed-width vectors for semantic
// search. The default implementation runs a local sentence transformer via
// hugot, but callers may supply any Encoder (tests use a deterministic one).
package encode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knights-analytics/hugot"
)

// Encoder produces an embedding vector for one piece of text. All vectors
// from a single Encoder must have the same dimensionality.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to the Encoder interface.
type Func func(ctx context.Context, text string) ([]float32, error)

// Encode implements Encoder.
func (f Func) Encode(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

const defaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// HugotEncoder runs a local sentence transformer model. The all-MiniLM-L6-v2
// default produces 384-dimensional embeddings.
type HugotEncoder struct {
	session *hugot.Session
	run     func(text string) ([]float32, error)
}

// NewHugotEncoder downloads the model into modelDir on first use and starts
// an inference session on the pure Go backend.
func NewHugotEncoder(modelDir string) (*HugotEncoder, error) {
	modelPath, err := prepareModel(defaultModel, modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "entity-encoder",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create feature extraction pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	run := func(text string) ([]float32, error) {
		result, err := pipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("generate embedding: %w", err)
		}
		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}
		return result.Embeddings[0], nil
	}
	return &HugotEncoder{session: session, run: run}, nil
}

// Encode implements Encoder.
func (e *HugotEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.run(text)
}

// Close releases the inference session.
func (e *HugotEncoder) Close() error {
	return e.session.Destroy()
}

func prepareModel(modelName, modelDir string) (string, error) {
	sanitized := filepath.Join(modelDir, "sentence-transformers_all-MiniLM-L6-v2")
	if _, err := os.Stat(sanitized); err == nil {
		return sanitized, nil
	}
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(modelName, modelDir, opts)
	if err != nil {
		return "", fmt.Errorf("download model: %w", err)
	}
	return downloaded, nil
}
