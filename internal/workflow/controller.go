package workflow

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"imgclassd/internal/model"

	"go.uber.org/zap"
)

// Phase enumerates the states of the classification workflow.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseImageLoaded  Phase = "image_loaded"
	PhaseModelLoading Phase = "model_loading"
	PhaseClassifying  Phase = "classifying"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// Runtime acquires classifiers for the workflow. Satisfied by the
// adapter over *model.Runtime; tests substitute fakes.
type Runtime interface {
	Acquire(ctx context.Context, desc model.Descriptor, opts model.AcquireOptions) (Classifier, error)
}

// Classifier runs the forward pass for one acquired model.
type Classifier interface {
	Classify(ctx context.Context, img image.Image, topK int) ([]model.Prediction, error)
}

type runtimeAdapter struct {
	rt *model.Runtime
}

// NewRuntime wraps a *model.Runtime for use by the controller.
func NewRuntime(rt *model.Runtime) Runtime {
	return runtimeAdapter{rt: rt}
}

func (a runtimeAdapter) Acquire(ctx context.Context, desc model.Descriptor, opts model.AcquireOptions) (Classifier, error) {
	c, err := a.rt.Acquire(ctx, desc, opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Options bounds the workflow.
type Options struct {
	MaxUploadBytes int64
	AllowedFormats []string
	TopK           int
	Device         string
}

// Snapshot is a read-only projection of the workflow state.
type Snapshot struct {
	Phase         Phase              `json:"phase"`
	Progress      int                `json:"progress"`
	Busy          bool               `json:"busy"`
	Results       []model.Prediction `json:"results,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty"`
	Image         *ImageInfo         `json:"image,omitempty"`
}

// Controller owns the upload -> validate -> invoke -> report -> render
// lifecycle for a single classification request at a time. All mutable
// view state lives here, guarded by one mutex; overlapping requests are
// rejected with ErrBusy rather than raced.
type Controller struct {
	runtime  Runtime
	notifier Notifier
	log      *zap.Logger
	opts     Options

	mu       sync.Mutex
	phase    Phase
	progress int
	busy     bool
	image    *UploadedImage
	results  []model.Prediction
	failure  string
}

func NewController(rt Runtime, notifier Notifier, log *zap.Logger, opts Options) *Controller {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 * 1024 * 1024
	}
	if len(opts.AllowedFormats) == 0 {
		opts.AllowedFormats = []string{"jpeg", "png", "webp"}
	}
	return &Controller{
		runtime:  rt,
		notifier: notifier,
		log:      log,
		opts:     opts,
		phase:    PhaseIdle,
	}
}

// Classify runs one classification request against the named model.
// An image must already be loaded. The busy flag and the progress value
// are reset on every exit path, success or failure, including a panic
// inside the runtime.
func (c *Controller) Classify(ctx context.Context, name model.Name) (preds []model.Prediction, err error) {
	desc, ok := model.Lookup(name)
	if !ok {
		c.notifier.Notify(LevelError, fmt.Sprintf("Unknown model %q.", name))
		return nil, fmt.Errorf("unknown model %q", name)
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		c.notifier.Notify(LevelError, "A classification is already in progress.")
		return nil, ErrBusy
	}
	if c.image == nil {
		c.mu.Unlock()
		c.notifier.Notify(LevelError, "Upload an image first.")
		return nil, ErrNoImage
	}
	img := c.image.Image
	c.busy = true
	c.phase = PhaseModelLoading
	c.progress = 0
	c.failure = ""
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: runtime panic: %v", ErrInference, r)
			c.fail(err)
		}
		c.mu.Lock()
		c.busy = false
		c.progress = 0
		c.mu.Unlock()
	}()

	c.notifier.Notify(LevelInfo, fmt.Sprintf("Loading model %s...", desc.Name))

	classifier, err := c.runtime.Acquire(ctx, desc, model.AcquireOptions{
		Device:     c.opts.Device,
		OnProgress: c.onProgress,
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrModelAcquisition, err)
		c.fail(err)
		return nil, err
	}

	c.advance(PhaseClassifying, 75)
	c.notifier.Notify(LevelInfo, "Classifying...")

	preds, cerr := classifier.Classify(ctx, img, c.opts.TopK)
	if cerr != nil {
		err = fmt.Errorf("%w: %v", ErrInference, cerr)
		c.fail(err)
		return nil, err
	}

	c.mu.Lock()
	if c.progress < 100 {
		c.progress = 100
	}
	c.results = preds
	c.failure = ""
	c.phase = PhaseDone
	c.mu.Unlock()

	c.log.Info("classification complete",
		zap.String("model", string(desc.Name)),
		zap.Int("predictions", len(preds)))
	c.notifier.Notify(LevelSuccess, "Classification complete.")
	return preds, nil
}

// onProgress maps a runtime progress event's fraction p into the
// displayed range [25,75]. Unrecognized statuses are ignored and the
// displayed value never decreases within an attempt.
func (c *Controller) onProgress(e model.ProgressEvent) {
	switch e.Status {
	case model.ProgressDownloading, model.ProgressLoading:
	default:
		return
	}

	displayed := 25 + int(math.Round(e.Fraction()*50))

	c.mu.Lock()
	if displayed > c.progress {
		c.progress = displayed
	}
	c.mu.Unlock()
}

func (c *Controller) advance(phase Phase, progress int) {
	c.mu.Lock()
	c.phase = phase
	if progress > c.progress {
		c.progress = progress
	}
	c.mu.Unlock()
}

// fail records the failure reason. A previously displayed result is
// left in place; only a new accepted upload clears it.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.phase = PhaseFailed
	c.failure = err.Error()
	c.mu.Unlock()

	c.log.Warn("classification failed", zap.Error(err))
	c.notifier.Notify(LevelError, "Classification failed. Please try again.")
}

// Snapshot returns the current workflow state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Phase:         c.phase,
		Progress:      c.progress,
		Busy:          c.busy,
		FailureReason: c.failure,
	}
	if c.results != nil {
		snap.Results = make([]model.Prediction, len(c.results))
		copy(snap.Results, c.results)
	}
	if c.image != nil {
		snap.Image = &ImageInfo{
			Filename: c.image.Filename,
			Format:   c.image.Format,
			Size:     c.image.Size,
			Preview:  c.image.Preview,
		}
	}
	return snap
}
