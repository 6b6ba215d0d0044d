package model

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Runtime owns the ONNX Runtime environment and the set of live
// classifier sessions. Weights are downloaded on first acquisition and
// cached on disk; sessions are cached in memory for the process
// lifetime, so repeated classifications against the same model skip
// both the network and session creation.
type Runtime struct {
	fetcher *fetcher
	log     *zap.Logger

	mu          sync.Mutex
	classifiers map[Name]*Classifier
}

func NewRuntime(cacheDir string, log *zap.Logger) (*Runtime, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	return &Runtime{
		fetcher: &fetcher{
			cacheDir: cacheDir,
			client:   &http.Client{Timeout: 10 * time.Minute},
		},
		log:         log,
		classifiers: make(map[Name]*Classifier),
	}, nil
}

// Acquire returns a ready classifier for desc, downloading weights and
// label metadata if they are not cached yet. Progress events are
// delivered to opts.OnProgress during download and session creation.
func (r *Runtime) Acquire(ctx context.Context, desc Descriptor, opts AcquireOptions) (*Classifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.classifiers[desc.Name]; ok {
		return c, nil
	}

	emit := func(e ProgressEvent) {
		if opts.OnProgress != nil {
			opts.OnProgress(e)
		}
	}

	weightsPath := r.fetcher.cachePath(desc.ModelID, ".onnx")
	metaPath := r.fetcher.cachePath(desc.ModelID, ".config.json")

	r.log.Info("acquiring model",
		zap.String("model", string(desc.Name)),
		zap.String("model_id", desc.ModelID),
		zap.String("device", opts.Device))

	err := r.fetcher.fetch(ctx, desc.WeightsURL, weightsPath, func(loaded, total int64) {
		emit(ProgressEvent{Status: ProgressDownloading, Loaded: loaded, Total: total})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model weights: %w", err)
	}

	if err := r.fetcher.fetch(ctx, desc.MetadataURL, metaPath, nil); err != nil {
		return nil, fmt.Errorf("failed to fetch model metadata: %w", err)
	}

	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}
	meta, err := ParseMetadata(metaData)
	if err != nil {
		return nil, err
	}

	emit(ProgressEvent{Status: ProgressLoading, Loaded: 0, Total: 1})

	c, err := newClassifier(weightsPath, desc, meta, opts.Device, r.log)
	if err != nil {
		return nil, err
	}

	emit(ProgressEvent{Status: ProgressLoading, Loaded: 1, Total: 1})

	r.classifiers[desc.Name] = c
	r.log.Info("model ready",
		zap.String("model", string(desc.Name)),
		zap.Int("classes", len(meta.Classes)))
	return c, nil
}

func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.classifiers {
		c.Close()
	}
	r.classifiers = make(map[Name]*Classifier)
	ort.DestroyEnvironment()
}
