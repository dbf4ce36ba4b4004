// Package overlay draws the analysis result and composes the split view.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"facelens/internal/models"
	"facelens/processing/frame"
)

var (
	TextColor = color.RGBA{0, 255, 0, 255}
	BoxColor  = color.RGBA{0, 0, 255, 255}
)

const (
	// LabelPanelHeight is the strip below the face box that holds the text lines.
	LabelPanelHeight = 100
	BoxThickness     = 3
	lineSpacing      = 20

	LiveHeading      = "Real Time"
	AnnotatedHeading = "Face Detection"
)

var (
	HeadingOrigin = image.Pt(50, 30)
	CounterOrigin = image.Pt(400, 30)
)

// DrawText writes text with its baseline starting at at. Out of bounds
// glyphs are clipped.
func DrawText(img *image.RGBA, text string, at image.Point, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(text)
}

// DrawRect outlines r with the given thickness, drawn inwards.
func DrawRect(img *image.RGBA, r image.Rectangle, col color.Color, thickness int) {
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.Set(x, y, col)
		}
	}

	x1, y1, x2, y2 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

// FillRect paints r, clipped to the image.
func FillRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

// LabelLive returns a copy of src with the live heading.
func LabelLive(src image.Image) *image.RGBA {
	out := frame.Clone(src)
	DrawText(out, LiveHeading, HeadingOrigin, TextColor)
	return out
}

// Annotate returns a copy of src with the face box, the label panel below
// it and the session counter. src is left untouched.
func Annotate(src image.Image, a models.Annotation) *image.RGBA {
	out := frame.Clone(src)

	left, top := a.Rect.Left, a.Rect.Top
	right := left + a.Rect.Width
	faceBottom := top + a.Rect.Height
	panelBottom := faceBottom + LabelPanelHeight

	DrawRect(out, image.Rect(left, top, right, panelBottom), BoxColor, BoxThickness)
	FillRect(out, image.Rect(left, faceBottom, right, panelBottom), BoxColor)

	lines := []string{
		fmt.Sprintf("age: %d", a.Age),
		fmt.Sprintf("gender: %s", a.Gender),
		"emotion: ",
		a.Emotion,
	}
	for i, line := range lines {
		DrawText(out, line, image.Pt(left, faceBottom+lineSpacing*(i+1)), TextColor)
	}

	DrawText(out, AnnotatedHeading, HeadingOrigin, TextColor)
	DrawText(out, fmt.Sprintf("#emotions : %d", a.Distinct), CounterOrigin, TextColor)

	return out
}

// SideBySide places left and right next to each other. The canvas is as
// tall as the taller input; a nil side leaves its area black.
func SideBySide(left, right image.Image) *image.RGBA {
	var lb, rb image.Rectangle
	if left != nil {
		lb = left.Bounds()
	}
	if right != nil {
		rb = right.Bounds()
	}

	h := max(lb.Dy(), rb.Dy())
	out := image.NewRGBA(image.Rect(0, 0, lb.Dx()+rb.Dx(), h))
	FillRect(out, out.Bounds(), color.RGBA{0, 0, 0, 255})

	if left != nil {
		draw.Draw(out, image.Rect(0, 0, lb.Dx(), lb.Dy()), left, lb.Min, draw.Src)
	}
	if right != nil {
		draw.Draw(out, image.Rect(lb.Dx(), 0, lb.Dx()+rb.Dx(), rb.Dy()), right, rb.Min, draw.Src)
	}

	return out
}
