package model

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Classifier wraps a single ONNX session together with its label set.
// The input and output tensors are allocated once and reused across
// runs, so Classify serializes access with a mutex.
type Classifier struct {
	desc Descriptor
	meta Metadata

	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func newClassifier(weightsPath string, desc Descriptor, meta Metadata, device string, log *zap.Logger) (*Classifier, error) {
	size := int64(desc.ImageSize)
	inputShape := ort.NewShape(1, 3, size, size)
	outputShape := ort.NewShape(1, int64(len(meta.Classes)))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer sessionOpts.Destroy()

	if device == "gpu" {
		cudaOpts, cudaErr := ort.NewCUDAProviderOptions()
		if cudaErr == nil {
			if err := sessionOpts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
				log.Warn("CUDA provider unavailable, falling back to CPU", zap.Error(err))
			}
			cudaOpts.Destroy()
		} else {
			log.Warn("CUDA provider unavailable, falling back to CPU", zap.Error(cudaErr))
		}
	}

	session, err := ort.NewAdvancedSession(weightsPath,
		[]string{desc.InputName}, []string{desc.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		sessionOpts)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Classifier{
		desc:         desc,
		meta:         meta,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Classify runs the forward pass on img and returns the topK labels
// ordered by descending probability.
func (c *Classifier) Classify(ctx context.Context, img image.Image, topK int) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	input := preprocess(img, c.desc)
	copy(c.inputTensor.GetData(), input)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	probs := softmax(c.outputTensor.GetData())
	return topPredictions(probs, c.meta.Classes, topK), nil
}

func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
}

// preprocess resizes img to the model's input size and converts it to
// normalized NCHW float32 values.
func preprocess(img image.Image, desc Descriptor) []float32 {
	target := uint(desc.ImageSize)
	resized := resize.Resize(target, target, img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	inputData := make([]float32, 3*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			rNorm := (float32(r)/65535.0 - desc.Mean[0]) / desc.Std[0]
			gNorm := (float32(g)/65535.0 - desc.Mean[1]) / desc.Std[1]
			bNorm := (float32(b)/65535.0 - desc.Mean[2]) / desc.Std[2]

			pixelIndex := y*width + x
			inputData[pixelIndex] = rNorm
			inputData[width*height+pixelIndex] = gNorm
			inputData[2*width*height+pixelIndex] = bNorm
		}
	}
	return inputData
}

// softmax converts raw logits into probabilities.
func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}

	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

// topPredictions selects the k highest-scoring classes in descending
// order. Indexes past the known class list are skipped.
func topPredictions(probs []float32, classes []string, k int) []Prediction {
	n := len(probs)
	if len(classes) < n {
		n = len(classes)
	}

	preds := make([]Prediction, 0, n)
	for i := 0; i < n; i++ {
		preds = append(preds, Prediction{Label: classes[i], Score: probs[i]})
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })

	if k > 0 && len(preds) > k {
		preds = preds[:k]
	}
	return preds
}
