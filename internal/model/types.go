package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Name identifies one of the supported pretrained classifiers. The set
// is closed: there is no registration mechanism.
type Name string

const (
	MobileNetV4 Name = "mobilenetv4"
	ResNet50    Name = "resnet50"
)

// Descriptor describes a selectable model: where its ONNX weights and
// label metadata live, and how its input must be prepared.
type Descriptor struct {
	Name        Name   `json:"name"`
	Description string `json:"description"`
	ModelID     string `json:"model_id"`

	WeightsURL  string     `json:"-"`
	MetadataURL string     `json:"-"`
	InputName   string     `json:"-"`
	OutputName  string     `json:"-"`
	ImageSize   int        `json:"-"`
	Mean        [3]float32 `json:"-"`
	Std         [3]float32 `json:"-"`
}

var catalog = []Descriptor{
	{
		Name:        MobileNetV4,
		Description: "MobileNetV4 (small, 224px), fast ImageNet classifier",
		ModelID:     "onnx-community/mobilenetv4_conv_small.e2400_r224_in1k",
		WeightsURL:  "https://huggingface.co/onnx-community/mobilenetv4_conv_small.e2400_r224_in1k/resolve/main/onnx/model.onnx",
		MetadataURL: "https://huggingface.co/onnx-community/mobilenetv4_conv_small.e2400_r224_in1k/resolve/main/config.json",
		InputName:   "pixel_values",
		OutputName:  "logits",
		ImageSize:   224,
		Mean:        [3]float32{0.485, 0.456, 0.406},
		Std:         [3]float32{0.229, 0.224, 0.225},
	},
	{
		Name:        ResNet50,
		Description: "ResNet-50 (224px), higher accuracy but slower",
		ModelID:     "Xenova/resnet-50",
		WeightsURL:  "https://huggingface.co/Xenova/resnet-50/resolve/main/onnx/model.onnx",
		MetadataURL: "https://huggingface.co/Xenova/resnet-50/resolve/main/config.json",
		InputName:   "pixel_values",
		OutputName:  "logits",
		ImageSize:   224,
		Mean:        [3]float32{0.485, 0.456, 0.406},
		Std:         [3]float32{0.229, 0.224, 0.225},
	},
}

// Catalog returns the fixed set of selectable models.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup resolves a model name against the catalog.
func Lookup(name Name) (Descriptor, bool) {
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Metadata holds the label set parsed from a model's config.json.
type Metadata struct {
	Classes []string
}

// ParseMetadata reads the id2label mapping out of a HuggingFace-style
// config.json and flattens it into an index-ordered class list.
func ParseMetadata(data []byte) (Metadata, error) {
	var raw struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse model metadata: %w", err)
	}
	if len(raw.ID2Label) == 0 {
		return Metadata{}, fmt.Errorf("model metadata has no id2label mapping")
	}

	type entry struct {
		idx   int
		label string
	}
	entries := make([]entry, 0, len(raw.ID2Label))
	for k, label := range raw.ID2Label {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return Metadata{}, fmt.Errorf("non-numeric class index %q in metadata", k)
		}
		entries = append(entries, entry{idx: idx, label: label})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	classes := make([]string, len(entries))
	for i, e := range entries {
		classes[i] = e.label
	}
	return Metadata{Classes: classes}, nil
}

// Prediction is a single (label, score) pair. Scores are softmax
// probabilities in [0,1].
type Prediction struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// ProgressStatus tags a progress event emitted while a classifier is
// being acquired. Consumers must ignore statuses they do not recognize.
type ProgressStatus string

const (
	ProgressDownloading ProgressStatus = "downloading"
	ProgressLoading     ProgressStatus = "loading"
)

// ProgressEvent reports fractional completion of weight download or
// session creation. Total may be zero when the size is unknown.
type ProgressEvent struct {
	Status ProgressStatus
	Loaded int64
	Total  int64
}

// Fraction returns completion in [0,1], or 0 when the total is unknown.
func (e ProgressEvent) Fraction() float64 {
	if e.Total <= 0 {
		return 0
	}
	f := float64(e.Loaded) / float64(e.Total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// AcquireOptions configures classifier acquisition.
type AcquireOptions struct {
	// Device is the preferred execution device, "cpu" or "gpu". GPU is
	// advisory: when no CUDA provider is available the session falls
	// back to CPU.
	Device string
	// OnProgress receives progress events during weight download and
	// session creation. May be nil.
	OnProgress func(ProgressEvent)
}
