package processing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"strings"

	"facelens/internal/models"
	"facelens/processing/overlay"
)

// NormalizeGender reduces "Gender.Female", " female " and the like to "female".
func NormalizeGender(g string) string {
	g = strings.ToLower(strings.TrimSpace(g))
	if i := strings.LastIndexByte(g, '.'); i >= 0 {
		g = g[i+1:]
	}
	return g
}

func DisplayAge(age float64) int {
	return int(math.Round(age))
}

// BuildAnnotation derives the overlay contents from one face and updates
// the session tally.
func BuildAnnotation(face models.DetectedFace, tally *EmotionTally) models.Annotation {
	top := Dominant(face.FaceAttributes.Emotion)
	novel := tally.Observe(top.Label)

	return models.Annotation{
		Rect:       face.FaceRectangle,
		Age:        DisplayAge(face.FaceAttributes.Age),
		Gender:     NormalizeGender(face.FaceAttributes.Gender),
		Emotion:    top.Label,
		Confidence: top.Confidence,
		Novel:      novel,
		Distinct:   tally.Count(),
	}
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Result is the outcome of analysing one frame. Found is false when the
// service returned no faces; Annotated is nil in that case.
type Result struct {
	Found      bool
	FaceCount  int
	Annotation models.Annotation
	Annotated  *image.RGBA
}

// AnalyzeFrame encodes img, submits it and, when at least one face comes
// back, annotates a copy of img using the first face only.
func AnalyzeFrame(ctx context.Context, analyzer FaceAnalyzer, img *image.RGBA, quality int, tally *EmotionTally) (Result, error) {
	data, err := EncodeJPEG(img, quality)
	if err != nil {
		return Result{}, err
	}

	faces, err := analyzer.Detect(ctx, data)
	if err != nil {
		return Result{}, err
	}
	if len(faces) == 0 {
		return Result{}, nil
	}

	ann := BuildAnnotation(faces[0], tally)
	return Result{
		Found:      true,
		FaceCount:  len(faces),
		Annotation: ann,
		Annotated:  overlay.Annotate(img, ann),
	}, nil
}
