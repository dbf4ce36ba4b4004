package overlay

import (
	"image"
	"image/color"
	"testing"

	"facelens/internal/models"
)

func gray(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	FillRect(img, img.Bounds(), color.RGBA{128, 128, 128, 255})
	return img
}

func countColor(img *image.RGBA, r image.Rectangle, c color.RGBA) int {
	n := 0
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				n++
			}
		}
	}
	return n
}

func TestAnnotateGeometry(t *testing.T) {
	src := gray(640, 480)
	a := models.Annotation{
		Rect:     models.FaceRectangle{Left: 10, Top: 20, Width: 30, Height: 40},
		Age:      25,
		Gender:   "female",
		Emotion:  "happiness",
		Distinct: 1,
	}

	out := Annotate(src, a)

	if got := out.RGBAAt(10, 20); got != BoxColor {
		t.Errorf("box corner = %v, want box color", got)
	}
	// The outline reaches the bottom of the label panel.
	if got := out.RGBAAt(10, 20+40+LabelPanelHeight-1); got != BoxColor {
		t.Errorf("panel bottom-left = %v, want box color", got)
	}
	// Inside the face area, away from the outline, the frame is untouched.
	if got := out.RGBAAt(25, 40); got != (color.RGBA{128, 128, 128, 255}) {
		t.Errorf("face interior = %v, want untouched", got)
	}
	// The label panel is filled and carries green text.
	panel := image.Rect(10, 60, 40, 160)
	if countColor(out, panel, TextColor) == 0 {
		t.Error("expected text pixels in label panel")
	}
	if countColor(out, image.Rect(400, 15, 520, 35), TextColor) == 0 {
		t.Error("expected counter text near (400,30)")
	}
	if got := src.RGBAAt(10, 20); got == BoxColor {
		t.Error("Annotate must not modify its input")
	}
}

func TestAnnotateClipsOffscreenBox(t *testing.T) {
	src := gray(50, 50)
	a := models.Annotation{Rect: models.FaceRectangle{Left: 30, Top: 30, Width: 40, Height: 40}}

	out := Annotate(src, a)
	if out.Bounds() != src.Bounds() {
		t.Errorf("bounds changed to %v", out.Bounds())
	}
}

func TestLabelLive(t *testing.T) {
	src := gray(200, 60)
	out := LabelLive(src)

	if countColor(out, image.Rect(50, 15, 130, 35), TextColor) == 0 {
		t.Error("expected heading pixels near (50,30)")
	}
	if countColor(src, src.Bounds(), TextColor) != 0 {
		t.Error("LabelLive must not modify its input")
	}
}

func TestSideBySide(t *testing.T) {
	left := gray(4, 3)
	right := image.NewRGBA(image.Rect(0, 0, 2, 5))
	FillRect(right, right.Bounds(), color.RGBA{255, 0, 0, 255})

	out := SideBySide(left, right)
	if out.Bounds() != image.Rect(0, 0, 6, 5) {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	if got := out.RGBAAt(0, 0); got != (color.RGBA{128, 128, 128, 255}) {
		t.Errorf("left pixel = %v", got)
	}
	if got := out.RGBAAt(4, 4); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("right pixel = %v", got)
	}
	if got := out.RGBAAt(0, 4); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("padding = %v, want black", got)
	}
}

func TestSideBySideNilRight(t *testing.T) {
	out := SideBySide(gray(3, 3), nil)
	if out.Bounds().Dx() != 3 {
		t.Errorf("width = %d", out.Bounds().Dx())
	}
}

func TestDrawRectThickness(t *testing.T) {
	img := gray(20, 20)
	DrawRect(img, image.Rect(0, 0, 20, 20), BoxColor, 3)

	if img.RGBAAt(2, 10) != BoxColor {
		t.Error("third column should be painted")
	}
	if img.RGBAAt(3, 10) == BoxColor {
		t.Error("fourth column should not be painted")
	}
	if img.RGBAAt(19, 19) != BoxColor {
		t.Error("bottom-right corner should be painted")
	}
}
