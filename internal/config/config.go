package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

type SourceType string

const (
	SourceLocal  SourceType = "Local"
	SourceWebcam SourceType = "Web-Camera"

	DefaultConfigPath     string = "facelens.json"
	DefaultWindowTitle    string = "Face Detection - Azure"
	DefaultSocketHost     string = "localhost:8080"
	DefaultDetectionModel string = "detection_01"
)

type Backend string

const (
	BackendAzure     Backend = "azure"
	BackendWebsocket Backend = "websocket"
)

var SourcesList = [...]string{
	string(SourceWebcam),
	string(SourceLocal),
}

type LocalConfig struct {
	Path string `json:"path"`
}

type WebcamConfig struct {
	DeviceIndex int `json:"device_index"`
	Width       int `json:"width,omitempty"`
	Height      int `json:"height,omitempty"`
}

// AnalyzerConfig carries everything the face-analysis client needs,
// including credentials. It is handed to the analyzer constructor.
type AnalyzerConfig struct {
	Backend         Backend `json:"backend"`
	Endpoint        string  `json:"endpoint"`
	SubscriptionKey string  `json:"subscription_key"`
	DetectionModel  string  `json:"detection_model"`
	TimeoutMS       int     `json:"timeout_ms"`
	SocketHost      string  `json:"socket_host"`
}

func (a AnalyzerConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

type JournalConfig struct {
	DatabaseURL string `json:"database_url"`
}

type Config struct {
	mu sync.RWMutex

	ActiveSource SourceType `json:"active_source"`
	TargetFPS    uint       `json:"target_fps"`
	WindowTitle  string     `json:"window_title"`

	AnalysisIntervalMS int  `json:"analysis_interval_ms"`
	ReadinessTimeoutMS int  `json:"readiness_timeout_ms"`
	FailFast           bool `json:"fail_fast"`
	JPEGQuality        int  `json:"jpeg_quality"`

	LogLevel string `json:"log_level"`

	Local    LocalConfig    `json:"local"`
	Webcam   WebcamConfig   `json:"webcam"`
	Analyzer AnalyzerConfig `json:"analyzer"`
	Journal  JournalConfig  `json:"journal"`
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

// AnalysisInterval is the wait between two analysis ticks.
func (c *Config) AnalysisInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.AnalysisIntervalMS) * time.Millisecond
}

func (c *Config) SetAnalysisInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AnalysisIntervalMS = int(d / time.Millisecond)
}

func (c *Config) ReadinessTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.ReadinessTimeoutMS) * time.Millisecond
}

func (c *Config) GetAnalyzer() AnalyzerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Analyzer
}

// Validate returns every problem found; an empty slice means the config is usable.
func (c *Config) Validate() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var problems []string

	switch c.ActiveSource {
	case SourceWebcam:
		if c.Webcam.DeviceIndex < 0 {
			problems = append(problems, "webcam.device_index must be >= 0")
		}
	case SourceLocal:
		if c.Local.Path == "" {
			problems = append(problems, "local.path is required for the Local source")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown active_source %q", c.ActiveSource))
	}

	if c.TargetFPS == 0 {
		problems = append(problems, "target_fps must be > 0")
	}
	if c.AnalysisIntervalMS <= 0 {
		problems = append(problems, "analysis_interval_ms must be > 0")
	}
	if c.ReadinessTimeoutMS <= 0 {
		problems = append(problems, "readiness_timeout_ms must be > 0")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		problems = append(problems, "jpeg_quality must be within 1-100")
	}

	switch c.Analyzer.Backend {
	case BackendAzure:
		if c.Analyzer.Endpoint == "" {
			problems = append(problems, "analyzer.endpoint is required (or set FACE_ENDPOINT)")
		}
		if c.Analyzer.SubscriptionKey == "" {
			problems = append(problems, "analyzer.subscription_key is required (or set FACE_SUBSCRIPTION_KEY)")
		}
		if c.Analyzer.DetectionModel == "" {
			problems = append(problems, "analyzer.detection_model is required")
		}
	case BackendWebsocket:
		if c.Analyzer.SocketHost == "" {
			problems = append(problems, "analyzer.socket_host is required for the websocket backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown analyzer.backend %q", c.Analyzer.Backend))
	}
	if c.Analyzer.TimeoutMS <= 0 {
		problems = append(problems, "analyzer.timeout_ms must be > 0")
	}

	return problems
}

// ApplyEnv overrides file values with the environment. Secrets are
// expected to come from here rather than the file.
func (c *Config) ApplyEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("FACE_ENDPOINT"); v != "" {
		c.Analyzer.Endpoint = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("FACE_SUBSCRIPTION_KEY"); v != "" {
		c.Analyzer.SubscriptionKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Journal.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Save writes the config as indented JSON. The subscription key is not persisted.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	snapshot := c.clone()
	c.mu.RUnlock()

	snapshot.Analyzer.SubscriptionKey = ""

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) clone() *Config {
	return &Config{
		ActiveSource:       c.ActiveSource,
		TargetFPS:          c.TargetFPS,
		WindowTitle:        c.WindowTitle,
		AnalysisIntervalMS: c.AnalysisIntervalMS,
		ReadinessTimeoutMS: c.ReadinessTimeoutMS,
		FailFast:           c.FailFast,
		JPEGQuality:        c.JPEGQuality,
		LogLevel:           c.LogLevel,
		Local:              c.Local,
		Webcam:             c.Webcam,
		Analyzer:           c.Analyzer,
		Journal:            c.Journal,
	}
}

// LoadConfigFile reads path over the defaults. A missing file yields the
// defaults; an unreadable or malformed one is an error.
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	return cfg, nil
}

func NewDefaultConfig() *Config {
	return &Config{
		ActiveSource:       SourceWebcam,
		TargetFPS:          24,
		WindowTitle:        DefaultWindowTitle,
		AnalysisIntervalMS: 1000,
		ReadinessTimeoutMS: 5000,
		JPEGQuality:        90,
		LogLevel:           "info",
		Webcam:             WebcamConfig{DeviceIndex: 0},
		Analyzer: AnalyzerConfig{
			Backend:        BackendAzure,
			DetectionModel: DefaultDetectionModel,
			TimeoutMS:      10000,
			SocketHost:     DefaultSocketHost,
		},
	}
}
