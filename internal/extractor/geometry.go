package extractor

import (
	"image"
	"math"
	"sort"
)

// DuplicateIoU is the overlap above which two detections in one frame are
// treated as the same face.
const DuplicateIoU = 0.9

// Box is a face bounding box in pixel corner coordinates [X1,Y1]-[X2,Y2].
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// BoxFromSlice converts the embedding server's [x1, y1, x2, y2] bbox.
func BoxFromSlice(bbox []float64) (Box, bool) {
	if len(bbox) != 4 {
		return Box{}, false
	}
	return Box{X1: bbox[0], Y1: bbox[1], X2: bbox[2], Y2: bbox[3]}, true
}

func (b Box) Width() float64 {
	return math.Max(0, b.X2-b.X1)
}

func (b Box) Height() float64 {
	return math.Max(0, b.Y2-b.Y1)
}

func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// Rect rounds the box to integer pixels, for drawing.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.X1)), int(math.Round(b.Y1)),
		int(math.Round(b.X2)), int(math.Round(b.Y2)),
	)
}

// Relative converts the box to 0-1 coordinates of a width x height frame.
func (b Box) Relative(width, height int) Box {
	if width <= 0 || height <= 0 {
		return b
	}
	w, h := float64(width), float64(height)
	return Box{X1: b.X1 / w, Y1: b.Y1 / h, X2: b.X2 / w, Y2: b.Y2 / h}
}

// IoU calculates Intersection over Union with another box.
func (b Box) IoU(o Box) float64 {
	x1 := max(b.X1, o.X1)
	y1 := max(b.Y1, o.Y1)
	x2 := min(b.X2, o.X2)
	y2 := min(b.Y2, o.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := b.Area() + o.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// CollapseDuplicates drops detections overlapping a higher-scoring one by at
// least threshold IoU. The surviving observations keep their original order.
func CollapseDuplicates(obs []Observation, threshold float64) []Observation {
	if len(obs) < 2 {
		return obs
	}

	order := make([]int, len(obs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return obs[order[a]].DetScore > obs[order[b]].DetScore
	})

	dropped := make([]bool, len(obs))
	for i, oi := range order {
		if dropped[oi] {
			continue
		}
		for _, oj := range order[i+1:] {
			if !dropped[oj] && obs[oi].Box.IoU(obs[oj].Box) >= threshold {
				dropped[oj] = true
			}
		}
	}

	out := make([]Observation, 0, len(obs))
	for i, o := range obs {
		if !dropped[i] {
			out = append(out, o)
		}
	}
	return out
}

// Largest returns the index of the observation with the biggest box, or -1.
func Largest(obs []Observation) int {
	best := -1
	bestArea := -1.0
	for i, o := range obs {
		if a := o.Box.Area(); a > bestArea {
			best, bestArea = i, a
		}
	}
	return best
}
