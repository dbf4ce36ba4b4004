package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"facelens/internal/config"
	"facelens/internal/httpc"
	"facelens/internal/models"
)

const (
	detectPath      = "face/v1.0/detect"
	faceAttributes  = "emotion,age,gender"
	subscriptionHdr = "Ocp-Apim-Subscription-Key"
)

// AzureFaceClient calls the Azure Face detect endpoint.
type AzureFaceClient struct {
	detectURL string
	key       string
	client    *http.Client
}

func NewAzureFaceClient(cfg config.AnalyzerConfig) (*AzureFaceClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure face: endpoint not set")
	}
	if cfg.SubscriptionKey == "" {
		return nil, fmt.Errorf("azure face: subscription key not set")
	}

	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("azure face: parse endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("azure face: endpoint %q must be an absolute URL", cfg.Endpoint)
	}

	u := base.JoinPath(detectPath)
	q := url.Values{}
	q.Set("returnFaceId", "false")
	q.Set("returnFaceAttributes", faceAttributes)
	q.Set("detectionModel", cfg.DetectionModel)
	u.RawQuery = q.Encode()

	return &AzureFaceClient{
		detectURL: u.String(),
		key:       cfg.SubscriptionKey,
		client:    httpc.NewClient(cfg.Timeout()),
	}, nil
}

func (c *AzureFaceClient) Detect(ctx context.Context, jpegData []byte) ([]models.DetectedFace, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.detectURL, bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("azure face: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(subscriptionHdr, c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure face: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure face: read response: %w", err)
	}

	if !httpc.IsSuccess(resp.StatusCode) {
		return nil, parseServiceError(resp.StatusCode, resp.Header, body)
	}

	var faces []models.DetectedFace
	if err := json.Unmarshal(body, &faces); err != nil {
		return nil, fmt.Errorf("azure face: decode response: %w (body: %s)", err, truncate(string(body), 200))
	}

	return faces, nil
}

func (c *AzureFaceClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
