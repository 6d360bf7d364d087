// Package render draws recognition results onto frames and keeps the most
// recent annotated frame for viewers.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// JPEGQuality of encoded annotated frames.
const JPEGQuality = 85

// Colors used for known and unknown faces.
var (
	KnownColor   = color.RGBA{G: 255, A: 255}
	UnknownColor = color.RGBA{R: 255, G: 64, B: 64, A: 255}
)

const (
	strokeWidth = 2
	labelOffset = 10 // label baseline sits this far above the box
)

// Annotation is one labeled box to draw.
type Annotation struct {
	Rect  image.Rectangle
	Label string
	Known bool
}

// Annotate returns a copy of img with a rectangle and label per annotation.
func Annotate(img image.Image, annotations []Annotation) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for _, a := range annotations {
		c := UnknownColor
		if a.Known {
			c = KnownColor
		}
		drawRect(out, a.Rect.Intersect(bounds), c)
		drawLabel(out, a.Rect.Min.X, a.Rect.Min.Y-labelOffset, a.Label, c)
	}
	return out
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	for i := 0; i < strokeWidth; i++ {
		draw.Draw(img, image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1).Intersect(r), src, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-i-1, r.Max.X, r.Max.Y-i).Intersect(r), src, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y).Intersect(r), src, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(r.Max.X-i-1, r.Min.Y, r.Max.X-i, r.Max.Y).Intersect(r), src, image.Point{}, draw.Src)
	}
}

func drawLabel(img *image.RGBA, x, y int, label string, c color.Color) {
	face := basicfont.Face7x13
	// Keep the text inside the frame when the box touches the top edge.
	if minY := img.Bounds().Min.Y + face.Ascent; y < minY {
		y = minY
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Sink receives annotated frames from the pipeline.
type Sink interface {
	Publish(img image.Image, at time.Time) error
}

// Latest is a Sink that keeps only the most recent frame, JPEG-encoded.
type Latest struct {
	mu   sync.RWMutex
	data []byte
	at   time.Time
}

// NewLatest creates an empty Latest sink.
func NewLatest() *Latest {
	return &Latest{}
}

// Publish encodes and stores img.
func (l *Latest) Publish(img image.Image, at time.Time) error {
	data, err := EncodeJPEG(img)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.data = data
	l.at = at
	l.mu.Unlock()
	return nil
}

// Frame returns the latest JPEG and its capture time. ok is false before the
// first publish.
func (l *Latest) Frame() (data []byte, at time.Time, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.data == nil {
		return nil, time.Time{}, false
	}
	return l.data, l.at, true
}
