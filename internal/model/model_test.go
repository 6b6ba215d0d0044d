package model

import (
	"math"
	"testing"
)

func TestCatalogIsClosed(t *testing.T) {
	cat := Catalog()
	if len(cat) != 2 {
		t.Fatalf("expected exactly 2 models, got %d", len(cat))
	}
	for _, d := range cat {
		if d.ModelID == "" || d.WeightsURL == "" || d.MetadataURL == "" {
			t.Errorf("descriptor %q incomplete: %+v", d.Name, d)
		}
		if d.ImageSize <= 0 {
			t.Errorf("descriptor %q has no input size", d.Name)
		}
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(MobileNetV4); !ok {
		t.Error("mobilenetv4 missing from catalog")
	}
	if _, ok := Lookup(ResNet50); !ok {
		t.Error("resnet50 missing from catalog")
	}
	if _, ok := Lookup(Name("vgg16")); ok {
		t.Error("unexpected model found")
	}
}

func TestParseMetadata(t *testing.T) {
	data := []byte(`{"id2label": {"1": "goldfish", "0": "tench", "2": "great_white_shark"}}`)
	meta, err := ParseMetadata(data)
	if err != nil {
		t.Fatalf("ParseMetadata failed: %v", err)
	}
	want := []string{"tench", "goldfish", "great_white_shark"}
	if len(meta.Classes) != len(want) {
		t.Fatalf("expected %d classes, got %d", len(want), len(meta.Classes))
	}
	for i, w := range want {
		if meta.Classes[i] != w {
			t.Errorf("class %d: expected %q, got %q", i, w, meta.Classes[i])
		}
	}
}

func TestParseMetadataErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"missing mapping", `{"architectures": ["ResNet"]}`},
		{"non-numeric index", `{"id2label": {"zero": "tench"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseMetadata([]byte(tc.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestProgressEventFraction(t *testing.T) {
	cases := []struct {
		event ProgressEvent
		want  float64
	}{
		{ProgressEvent{Status: ProgressDownloading, Loaded: 50, Total: 100}, 0.5},
		{ProgressEvent{Status: ProgressDownloading, Loaded: 0, Total: 100}, 0},
		{ProgressEvent{Status: ProgressDownloading, Loaded: 100, Total: 100}, 1},
		{ProgressEvent{Status: ProgressDownloading, Loaded: 150, Total: 100}, 1},
		{ProgressEvent{Status: ProgressDownloading, Loaded: 10, Total: 0}, 0},
	}
	for _, tc := range cases {
		if got := tc.event.Fraction(); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Fraction(%+v) = %v, expected %v", tc.event, got, tc.want)
		}
	}
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{1, 2, 3})
	if len(probs) != 3 {
		t.Fatalf("expected 3 probabilities, got %d", len(probs))
	}

	var sum float64
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Errorf("probability out of range: %v", p)
		}
		sum += float64(p)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("probabilities sum to %v, expected 1", sum)
	}
	if !(probs[2] > probs[1] && probs[1] > probs[0]) {
		t.Errorf("softmax did not preserve ordering: %v", probs)
	}
}

func TestSoftmaxLargeLogits(t *testing.T) {
	// Large values must not overflow to Inf/NaN.
	probs := softmax([]float32{1000, 999})
	for _, p := range probs {
		if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
			t.Fatalf("softmax unstable for large logits: %v", probs)
		}
	}
	if probs[0] <= probs[1] {
		t.Errorf("ordering lost: %v", probs)
	}
}

func TestTopPredictions(t *testing.T) {
	probs := []float32{0.04, 0.82, 0.01, 0.10, 0.03}
	classes := []string{"egyptian_cat", "tabby_cat", "siamese_cat", "tiger_cat", "lynx"}

	preds := topPredictions(probs, classes, 3)
	if len(preds) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(preds))
	}
	if preds[0].Label != "tabby_cat" || preds[1].Label != "tiger_cat" {
		t.Errorf("unexpected ordering: %+v", preds)
	}
	for i := 1; i < len(preds); i++ {
		if preds[i].Score > preds[i-1].Score {
			t.Errorf("not descending at %d: %+v", i, preds)
		}
	}
}

func TestTopPredictionsKLargerThanClasses(t *testing.T) {
	preds := topPredictions([]float32{0.6, 0.4}, []string{"a", "b"}, 5)
	if len(preds) != 2 {
		t.Errorf("expected 2 predictions, got %d", len(preds))
	}
}
