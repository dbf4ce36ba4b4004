package cmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"facelens/internal/config"
)

const oneFace = `[{
  "faceRectangle": {"top": 4, "left": 6, "width": 20, "height": 16},
  "faceAttributes": {
    "age": 25.4,
    "gender": "female",
    "emotion": {"anger": 0, "contempt": 0, "disgust": 0, "fear": 0,
                "happiness": 0.9, "neutral": 0.1, "sadness": 0, "surprise": 0}
  }
}]`

func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})

	path := filepath.Join(dir, "face.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzePrintsAnnotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(oneFace))
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := writeTestPNG(t, dir)

	cfg = config.NewDefaultConfig()
	cfg.Analyzer.Endpoint = srv.URL
	cfg.Analyzer.SubscriptionKey = "test-key"
	annotatedOut = filepath.Join(dir, "annotated.png")
	defer func() { annotatedOut = "" }()

	var out bytes.Buffer
	if err := runAnalyze(context.Background(), in, &out); err != nil {
		t.Fatalf("runAnalyze: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"faces:      1",
		"age:        25",
		"gender:     female",
		"emotion:    happiness (0.900)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	f, err := os.Open(annotatedOut)
	if err != nil {
		t.Fatalf("annotated image not written: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("annotated bounds = %v", img.Bounds())
	}
}

func TestAnalyzeNoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	in := writeTestPNG(t, t.TempDir())

	cfg = config.NewDefaultConfig()
	cfg.Analyzer.Endpoint = srv.URL
	cfg.Analyzer.SubscriptionKey = "test-key"

	var out bytes.Buffer
	if err := runAnalyze(context.Background(), in, &out); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "no face detected" {
		t.Errorf("output = %q", out.String())
	}
}

func TestAnalyzeMissingImage(t *testing.T) {
	cfg = config.NewDefaultConfig()
	if err := runAnalyze(context.Background(), filepath.Join(t.TempDir(), "nope.png"), &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInitAndCheck(t *testing.T) {
	t.Setenv("FACE_ENDPOINT", "")
	t.Setenv("FACE_SUBSCRIPTION_KEY", "")
	forceInit = false

	path := filepath.Join(t.TempDir(), "facelens.json")

	out, err := execute(t, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "wrote "+path) {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "config", "init", "--config", path); err == nil {
		t.Error("second init without --force should fail")
	}

	// The default config has no endpoint or key.
	_, err = execute(t, "config", "check", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "analyzer.endpoint") {
		t.Errorf("check err = %v", err)
	}

	t.Setenv("FACE_ENDPOINT", "https://example.cognitiveservices.azure.com")
	t.Setenv("FACE_SUBSCRIPTION_KEY", "k")
	out, err = execute(t, "config", "check", "--config", path)
	if err != nil {
		t.Fatalf("check with env: %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("output = %q", out)
	}
}
