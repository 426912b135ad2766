package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the monitor engine.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Clients ClientsConfig `yaml:"clients"`
	Monitor MonitorConfig `yaml:"monitor"`
	Cache   CacheConfig   `yaml:"cache"`
	Events  EventsConfig  `yaml:"events"`
	Clips   ClipsConfig   `yaml:"clips"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the admin API and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups the external collaborator endpoints.
type ClientsConfig struct {
	Control  ControlClientConfig  `yaml:"control"`
	Vision   VisionClientConfig   `yaml:"vision"`
	Notifier NotifierClientConfig `yaml:"notifier"`
}

// ControlClientConfig configures access to the feed control plane.
type ControlClientConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	LivenessPath   string        `yaml:"livenessPath"`
	FeedConfigPath string        `yaml:"feedConfigPath"`
	DetectionsPath string        `yaml:"detectionsPath"`
	AlertsPath     string        `yaml:"alertsPath"`
	Timeout        time.Duration `yaml:"timeout"`
}

// VisionClientConfig configures the frame/segment model gateway.
type VisionClientConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	ClassifyPath string        `yaml:"classifyPath"`
	AnalyzePath  string        `yaml:"analyzePath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// NotifierClientConfig configures the outbound notification service.
type NotifierClientConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	DispatchPath string        `yaml:"dispatchPath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// MonitorConfig holds engine-wide pipeline defaults. Per-feed values from
// the control plane override these at activation time.
type MonitorConfig struct {
	FramesDir        string        `yaml:"framesDir"`
	FPS              int           `yaml:"fps"`
	FrameSkip        int           `yaml:"frameSkip"`
	WindowSeconds    int           `yaml:"windowSeconds"`
	TriggerThreshold float64       `yaml:"triggerThreshold"`
	SegmentLength    int           `yaml:"segmentLength"`
	HistoryDepth     int           `yaml:"historyDepth"`
	CheckInterval    time.Duration `yaml:"checkInterval"`
	AutostartFeeds   []string      `yaml:"autostartFeeds"`
}

// CacheConfig controls the Redis-backed snapshot cache.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	DialTimeout    time.Duration `yaml:"dialTimeout"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	MaxRetries     int           `yaml:"maxRetries"`
	TLS            bool          `yaml:"tls"`
	WindowStatsTTL time.Duration `yaml:"windowStatsTTL"`
}

// EventsConfig controls NATS event publishing.
type EventsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	Name           string        `yaml:"name"`
	SubjectPrefix  string        `yaml:"subjectPrefix"`
	ReconnectWait  time.Duration `yaml:"reconnectWait"`
	MaxReconnects  int           `yaml:"maxReconnects"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// ClipsConfig controls object storage for triggered-segment clips.
type ClipsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SAFEX_MONITOR_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8085",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Control: ControlClientConfig{
				LivenessPath:   "/api/v1/feeds/%s/liveness",
				FeedConfigPath: "/api/v1/feeds/%s/monitoring-config",
				DetectionsPath: "/api/v1/feeds/%s/detections",
				AlertsPath:     "/api/v1/feeds/%s/alerts",
				Timeout:        5 * time.Second,
			},
			Vision: VisionClientConfig{
				ClassifyPath: "/api/v1/vision/classify-frame",
				AnalyzePath:  "/api/v1/vision/analyze-segment",
				Timeout:      30 * time.Second,
			},
			Notifier: NotifierClientConfig{
				DispatchPath: "/api/v1/notify/dispatch",
				Timeout:      10 * time.Second,
			},
		},
		Monitor: MonitorConfig{
			FramesDir:        "frames",
			FPS:              15,
			FrameSkip:        5,
			WindowSeconds:    5,
			TriggerThreshold: 0.7,
			SegmentLength:    10,
			HistoryDepth:     3,
			CheckInterval:    5 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:        false,
			DialTimeout:    2 * time.Second,
			ReadTimeout:    500 * time.Millisecond,
			WriteTimeout:   500 * time.Millisecond,
			MaxRetries:     2,
			WindowStatsTTL: 30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:        false,
			Name:           "safex-monitor",
			SubjectPrefix:  "safex.monitor",
			ReconnectWait:  2 * time.Second,
			MaxReconnects:  10,
			ConnectTimeout: 5 * time.Second,
		},
		Clips:   ClipsConfig{Enabled: false, Bucket: "safex-clips"},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAFEX_MONITOR_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SAFEX_MONITOR_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SAFEX_CONTROL_BASE_URL"); v != "" {
		cfg.Clients.Control.BaseURL = v
	}
	if v := os.Getenv("SAFEX_VISION_BASE_URL"); v != "" {
		cfg.Clients.Vision.BaseURL = v
	}
	if v := os.Getenv("SAFEX_NOTIFIER_BASE_URL"); v != "" {
		cfg.Clients.Notifier.BaseURL = v
	}
	if v := os.Getenv("SAFEX_MONITOR_FRAMES_DIR"); v != "" {
		cfg.Monitor.FramesDir = v
	}
	if v := os.Getenv("SAFEX_MONITOR_FRAME_SKIP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.FrameSkip = n
		}
	}
	if v := os.Getenv("SAFEX_MONITOR_TRIGGER_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Monitor.TriggerThreshold = f
		}
	}
	if v := os.Getenv("SAFEX_MONITOR_SEGMENT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.SegmentLength = n
		}
	}
	if v := os.Getenv("SAFEX_MONITOR_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.CheckInterval = d
		}
	}
	if v := os.Getenv("SAFEX_MONITOR_AUTOSTART_FEEDS"); v != "" {
		cfg.Monitor.AutostartFeeds = nil
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				cfg.Monitor.AutostartFeeds = append(cfg.Monitor.AutostartFeeds, f)
			}
		}
	}
	if v := os.Getenv("SAFEX_MONITOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SAFEX_MONITOR_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SAFEX_MONITOR_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("SAFEX_MONITOR_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SAFEX_MONITOR_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("SAFEX_MONITOR_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("SAFEX_MONITOR_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("SAFEX_MONITOR_CACHE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("SAFEX_MONITOR_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("SAFEX_MONITOR_EVENTS_ENABLED"); v != "" {
		cfg.Events.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SAFEX_MONITOR_CLIPS_ENDPOINT"); v != "" {
		cfg.Clips.Endpoint = v
	}
	if v := os.Getenv("SAFEX_MONITOR_CLIPS_ENABLED"); v != "" {
		cfg.Clips.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SAFEX_MONITOR_CLIPS_ACCESS_KEY"); v != "" {
		cfg.Clips.AccessKey = v
	}
	if v := os.Getenv("SAFEX_MONITOR_CLIPS_SECRET_KEY"); v != "" {
		cfg.Clips.SecretKey = v
	}
	if v := os.Getenv("SAFEX_MONITOR_CLIPS_BUCKET"); v != "" {
		cfg.Clips.Bucket = v
	}
}
