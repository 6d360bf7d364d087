package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"
)

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

func TestAnnotate_DrawsBoxEdges(t *testing.T) {
	src := blank(100, 100)
	out := Annotate(src, []Annotation{
		{Rect: image.Rect(20, 30, 60, 80), Label: "Alice", Known: true},
	})

	if got := out.RGBAAt(20, 50); got != KnownColor {
		t.Errorf("left edge = %v, want %v", got, KnownColor)
	}
	if got := out.RGBAAt(59, 50); got != KnownColor {
		t.Errorf("right edge = %v, want %v", got, KnownColor)
	}
	if got := out.RGBAAt(40, 30); got != KnownColor {
		t.Errorf("top edge = %v, want %v", got, KnownColor)
	}
	if got := out.RGBAAt(40, 55); got != (color.RGBA{A: 255}) {
		t.Errorf("interior must stay untouched, got %v", got)
	}
	if src.RGBAAt(20, 50) != (color.RGBA{A: 255}) {
		t.Error("source image must not be modified")
	}
}

func TestAnnotate_UnknownColorAndClipping(t *testing.T) {
	out := Annotate(blank(50, 50), []Annotation{
		{Rect: image.Rect(-10, -10, 30, 30), Label: "Unknown"},
	})
	if got := out.RGBAAt(0, 29); got != UnknownColor {
		t.Errorf("clipped box edge = %v, want %v", got, UnknownColor)
	}
}

func TestAnnotate_DrawsLabel(t *testing.T) {
	out := Annotate(blank(120, 120), []Annotation{
		{Rect: image.Rect(10, 60, 100, 110), Label: "Bob", Known: true},
	})

	// Some pixels in the label band above the box must be painted.
	painted := 0
	for y := 35; y < 52; y++ {
		for x := 10; x < 40; x++ {
			if out.RGBAAt(x, y) == KnownColor {
				painted++
			}
		}
	}
	if painted == 0 {
		t.Error("expected label pixels above the box")
	}
}

func TestLatest(t *testing.T) {
	sink := NewLatest()
	if _, _, ok := sink.Frame(); ok {
		t.Fatal("new sink must be empty")
	}

	at := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	if err := sink.Publish(blank(16, 8), at); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	data, gotAt, ok := sink.Frame()
	if !ok {
		t.Fatal("expected a frame after publish")
	}
	if !gotAt.Equal(at) {
		t.Errorf("time = %v, want %v", gotAt, at)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("stored frame is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
}
