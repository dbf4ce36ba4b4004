package processing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"facelens/internal/config"
)

const detectReply = `[
  {
    "faceRectangle": {"top": 20, "left": 10, "width": 30, "height": 40},
    "faceAttributes": {
      "age": 25.4,
      "gender": "female",
      "emotion": {"anger": 0, "contempt": 0, "disgust": 0, "fear": 0,
                  "happiness": 0.9, "neutral": 0.1, "sadness": 0, "surprise": 0}
    }
  }
]`

func azureConfig(endpoint string) config.AnalyzerConfig {
	return config.AnalyzerConfig{
		Backend:         config.BackendAzure,
		Endpoint:        endpoint,
		SubscriptionKey: "test-key",
		DetectionModel:  "detection_01",
		TimeoutMS:       2000,
	}
}

func TestAzureDetectRequestShape(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/face/v1.0/detect" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("returnFaceAttributes") != "emotion,age,gender" {
			t.Errorf("attributes = %q", q.Get("returnFaceAttributes"))
		}
		if q.Get("detectionModel") != "detection_01" {
			t.Errorf("model = %q", q.Get("detectionModel"))
		}
		if q.Get("returnFaceId") != "false" {
			t.Errorf("returnFaceId = %q", q.Get("returnFaceId"))
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("missing subscription key header")
		}
		if r.Header.Get("Content-Type") != "application/octet-stream" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != string(payload) {
			t.Errorf("body = %x", body)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, detectReply)
	}))
	defer srv.Close()

	c, err := NewAzureFaceClient(azureConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	faces, err := c.Detect(context.Background(), payload)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("got %d faces", len(faces))
	}
	f := faces[0]
	if f.FaceRectangle.Left != 10 || f.FaceRectangle.Top != 20 || f.FaceRectangle.Width != 30 || f.FaceRectangle.Height != 40 {
		t.Errorf("rect = %+v", f.FaceRectangle)
	}
	if f.FaceAttributes.Age != 25.4 || f.FaceAttributes.Gender != "female" {
		t.Errorf("attributes = %+v", f.FaceAttributes)
	}
	if Dominant(f.FaceAttributes.Emotion).Label != "happiness" {
		t.Errorf("emotion scores not decoded: %+v", f.FaceAttributes.Emotion)
	}
}

func TestAzureDetectNoFaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "[]")
	}))
	defer srv.Close()

	c, err := NewAzureFaceClient(azureConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	faces, err := c.Detect(context.Background(), []byte{1})
	if err != nil || len(faces) != 0 {
		t.Errorf("faces=%v err=%v", faces, err)
	}
}

func TestAzureDetectServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"code":"429","message":"Rate limit is exceeded."}}`)
	}))
	defer srv.Close()

	c, err := NewAzureFaceClient(azureConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Detect(context.Background(), []byte{1})
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.StatusCode != 429 || se.Code != "429" || se.Message != "Rate limit is exceeded." {
		t.Errorf("unexpected error fields %+v", se)
	}
	if !se.Temporary() {
		t.Error("429 should be temporary")
	}
	if se.RetryAfter != 3*time.Second {
		t.Errorf("retry after = %v", se.RetryAfter)
	}
}

func TestAzureDetectUnauthorizedPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "access denied")
	}))
	defer srv.Close()

	c, _ := NewAzureFaceClient(azureConfig(srv.URL))
	_, err := c.Detect(context.Background(), []byte{1})

	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Message != "access denied" || se.Temporary() {
		t.Errorf("unexpected %+v", se)
	}
}

func TestAzureDetectMalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"faces":`)
	}))
	defer srv.Close()

	c, _ := NewAzureFaceClient(azureConfig(srv.URL))
	if _, err := c.Detect(context.Background(), []byte{1}); err == nil {
		t.Error("expected decode error")
	}
}

func TestAzureDetectHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := NewAzureFaceClient(azureConfig(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Detect(ctx, []byte{1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestNewAzureFaceClientValidation(t *testing.T) {
	cfg := azureConfig("")
	if _, err := NewAzureFaceClient(cfg); err == nil {
		t.Error("expected error for missing endpoint")
	}
	cfg = azureConfig("not-a-url")
	if _, err := NewAzureFaceClient(cfg); err == nil {
		t.Error("expected error for relative endpoint")
	}
	cfg = azureConfig("https://x.cognitiveservices.azure.com")
	cfg.SubscriptionKey = ""
	if _, err := NewAzureFaceClient(cfg); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestNewAnalyzerBackends(t *testing.T) {
	a, err := NewAnalyzer(azureConfig("https://x.cognitiveservices.azure.com"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.(*AzureFaceClient); !ok {
		t.Errorf("got %T", a)
	}

	a, err = NewAnalyzer(config.AnalyzerConfig{Backend: config.BackendWebsocket, SocketHost: "localhost:9"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.(*RemoteDetector); !ok {
		t.Errorf("got %T", a)
	}

	if _, err := NewAnalyzer(config.AnalyzerConfig{Backend: "grpc"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
