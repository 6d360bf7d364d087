package extractor

import (
	"math"
	"testing"
)

func TestBoxIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 30, 30}, 0},
		{"touching", Box{0, 0, 10, 10}, Box{10, 0, 20, 10}, 0},
		{"half overlap", Box{0, 0, 10, 10}, Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"contained", Box{0, 0, 10, 10}, Box{0, 0, 5, 10}, 0.5},
		{"degenerate", Box{5, 5, 5, 5}, Box{0, 0, 10, 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.IoU(tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU = %v, want %v", got, tt.want)
			}
			if rev := tt.b.IoU(tt.a); math.Abs(rev-got) > 1e-9 {
				t.Errorf("IoU not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestBoxFromSlice(t *testing.T) {
	box, ok := BoxFromSlice([]float64{1, 2, 30, 40})
	if !ok {
		t.Fatal("expected valid box")
	}
	if box.Width() != 29 || box.Height() != 38 {
		t.Errorf("unexpected size %vx%v", box.Width(), box.Height())
	}
	if _, ok := BoxFromSlice([]float64{1, 2, 3}); ok {
		t.Error("expected short bbox to be rejected")
	}
}

func TestBoxRelative(t *testing.T) {
	rel := Box{X1: 10, Y1: 20, X2: 50, Y2: 60}.Relative(100, 200)
	want := Box{X1: 0.1, Y1: 0.1, X2: 0.5, Y2: 0.3}
	if rel != want {
		t.Errorf("Relative = %+v, want %+v", rel, want)
	}

	b := Box{X1: 1, Y1: 2, X2: 3, Y2: 4}
	if b.Relative(0, 100) != b {
		t.Error("zero dimensions should return the box unchanged")
	}
}

func TestBoxRect(t *testing.T) {
	r := Box{X1: 1.4, Y1: 1.6, X2: 10.5, Y2: 20.2}.Rect()
	if r.Min.X != 1 || r.Min.Y != 2 || r.Max.X != 11 || r.Max.Y != 20 {
		t.Errorf("unexpected rect %v", r)
	}
}

func TestCollapseDuplicates(t *testing.T) {
	obs := []Observation{
		{Box: Box{0, 0, 100, 100}, DetScore: 0.7, Embedding: []float32{1}},
		{Box: Box{200, 0, 300, 100}, DetScore: 0.8, Embedding: []float32{2}},
		{Box: Box{1, 1, 100, 100}, DetScore: 0.95, Embedding: []float32{3}},
	}

	got := CollapseDuplicates(obs, DuplicateIoU)
	if len(got) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(got))
	}
	// Order follows the input; the lower-scoring duplicate is the one dropped.
	if got[0].Embedding[0] != 2 || got[1].Embedding[0] != 3 {
		t.Errorf("unexpected survivors: %v, %v", got[0].Embedding, got[1].Embedding)
	}
}

func TestCollapseDuplicates_KeepsDistinctOverlaps(t *testing.T) {
	obs := []Observation{
		{Box: Box{0, 0, 100, 100}, DetScore: 0.9},
		{Box: Box{50, 0, 150, 100}, DetScore: 0.9},
	}
	if got := CollapseDuplicates(obs, DuplicateIoU); len(got) != 2 {
		t.Errorf("partially overlapping faces must both survive, got %d", len(got))
	}
	if got := CollapseDuplicates(nil, DuplicateIoU); len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

func TestLargest(t *testing.T) {
	obs := []Observation{
		{Box: Box{0, 0, 10, 10}},
		{Box: Box{0, 0, 40, 30}},
		{Box: Box{0, 0, 20, 20}},
	}
	if got := Largest(obs); got != 1 {
		t.Errorf("Largest = %d, want 1", got)
	}
	if got := Largest(nil); got != -1 {
		t.Errorf("Largest(nil) = %d, want -1", got)
	}
}
