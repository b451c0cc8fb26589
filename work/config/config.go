package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"iptv-check/work/logger"
)

const (
	MinWorkers     = 1
	MaxWorkers     = 20
	DefaultWorkers = 10
	DefaultOutput  = "updated.m3u"
)

// Config holds all settings for a validation run. File values are loaded
// first, then command-line flags override them.
type Config struct {
	Workers         int               `json:"workers"`         // Parallel probe pipelines (1-20)
	Timeout         time.Duration     `json:"timeout"`         // Capture duration and network timeout per stream
	CaptureGrace    time.Duration     `json:"captureGrace"`    // Extra wall time allowed on top of Timeout before the capture is killed
	OCR             bool              `json:"ocr"`             // Enable the on-frame text recognition stage
	OCROffset       time.Duration     `json:"ocrOffset"`       // Offset into the capture of the sampled frame
	OCRLanguage     string            `json:"ocrLanguage"`     // Tesseract language code
	MinCaptureBytes int64             `json:"minCaptureBytes"` // Captures at or below this size are stubs
	Output          string            `json:"output"`          // Output playlist path
	LogFormat       string            `json:"logFormat"`       // Per-channel status shows "name" or "url"
	NoSkip          bool              `json:"noSkip"`          // Disable skipping of URLs already in the output
	Include         string            `json:"include"`         // Only check channels whose name or group matches
	Exclude         string            `json:"exclude"`         // Never check channels whose name or group matches
	LiveOnly        bool              `json:"liveOnly"`        // Skip series and VOD entries
	UserAgent       string            `json:"userAgent"`       // User-Agent for playlist downloads and captures
	AudioUserAgent  string            `json:"audioUserAgent"`  // User-Agent for audio-only stream patterns
	TempDir         string            `json:"tempDir"`         // Root for per-probe temporary artifacts
	DatabasePath    string            `json:"databasePath"`    // SQLite link database and run history
	UncheckablePath string            `json:"uncheckablePath"` // Side playlist for offline token-bearing URLs, empty disables
	DebugLogPath    string            `json:"debugLogPath"`    // Diagnostic log file, empty logs to stderr
	Debug           bool              `json:"debug"`           // Enable debug logging
	ObfuscateUrls   bool              `json:"obfuscateUrls"`   // Obfuscate URLs in diagnostic logs
	RateLimit       int               `json:"rateLimit"`       // Max probes started per second, 0 = unlimited
	StatusAddr      string            `json:"statusAddr"`      // Optional live status server address
	MetricsFile     string            `json:"metricsFile"`     // Optional Prometheus textfile written at run end
	StreamPatterns  map[string]string `json:"streamPatterns"`  // URL substring -> "video" or "audio"
	FFmpegPath      string            `json:"ffmpegPath"`      // Override for the ffmpeg binary
	FFprobePath     string            `json:"ffprobePath"`     // Override for the ffprobe binary
	TesseractPath   string            `json:"tesseractPath"`   // Override for the tesseract binary
	YtDlpPath       string            `json:"ytDlpPath"`       // Override for the yt-dlp binary
}

// ConfigFile represents the JSON file structure. Duration fields are strings
// (e.g. "5s") and are parsed into time.Duration values.
type ConfigFile struct {
	Workers         int               `json:"workers"`
	Timeout         string            `json:"timeout"`
	CaptureGrace    string            `json:"captureGrace"`
	OCR             bool              `json:"ocr"`
	OCROffset       string            `json:"ocrOffset"`
	OCRLanguage     string            `json:"ocrLanguage"`
	MinCaptureBytes int64             `json:"minCaptureBytes"`
	Output          string            `json:"output"`
	LogFormat       string            `json:"logFormat"`
	NoSkip          bool              `json:"noSkip"`
	Include         string            `json:"include"`
	Exclude         string            `json:"exclude"`
	LiveOnly        bool              `json:"liveOnly"`
	UserAgent       string            `json:"userAgent"`
	AudioUserAgent  string            `json:"audioUserAgent"`
	TempDir         string            `json:"tempDir"`
	DatabasePath    string            `json:"databasePath"`
	UncheckablePath *string           `json:"uncheckablePath"`
	DebugLogPath    string            `json:"debugLogPath"`
	Debug           bool              `json:"debug"`
	ObfuscateUrls   bool              `json:"obfuscateUrls"`
	RateLimit       int               `json:"rateLimit"`
	StatusAddr      string            `json:"statusAddr"`
	MetricsFile     string            `json:"metricsFile"`
	StreamPatterns  map[string]string `json:"streamPatterns"`
	FFmpegPath      string            `json:"ffmpegPath"`
	FFprobePath     string            `json:"ffprobePath"`
	TesseractPath   string            `json:"tesseractPath"`
	YtDlpPath       string            `json:"ytDlpPath"`
}

// LoadConfig loads the configuration file at path. A missing file is not an
// error: the defaults are returned. An unreadable or invalid file is logged
// and the defaults are used instead, matching how a fresh install behaves.
func LoadConfig(path string) *Config {
	if path == "" {
		cfg := DefaultConfig()
		validateAndSetDefaults(cfg)
		return cfg
	}

	cfg, err := loadFromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("{config - LoadConfig} no config file at %s, using defaults", path)
		} else {
			logger.Warn("{config - LoadConfig} failed to load config from %s: %v", path, err)
			logger.Warn("{config - LoadConfig} falling back to default configuration")
		}
		cfg = DefaultConfig()
	}

	validateAndSetDefaults(cfg)

	if cfg.Debug {
		logger.Debug("{config - LoadConfig} workers=%d timeout=%s ocr=%v output=%s",
			cfg.Workers, cfg.Timeout, cfg.OCR, cfg.Output)
	}

	return cfg
}

// loadFromFile reads and parses the configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config, parsing duration strings.
// Empty duration strings keep the default.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := DefaultConfig()
	config.Workers = cf.Workers
	config.OCR = cf.OCR
	config.MinCaptureBytes = cf.MinCaptureBytes
	config.NoSkip = cf.NoSkip
	config.Include = cf.Include
	config.Exclude = cf.Exclude
	config.LiveOnly = cf.LiveOnly
	config.Debug = cf.Debug
	config.ObfuscateUrls = cf.ObfuscateUrls
	config.RateLimit = cf.RateLimit

	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&config.OCRLanguage, cf.OCRLanguage)
	setString(&config.Output, cf.Output)
	setString(&config.LogFormat, cf.LogFormat)
	setString(&config.UserAgent, cf.UserAgent)
	setString(&config.AudioUserAgent, cf.AudioUserAgent)
	setString(&config.TempDir, cf.TempDir)
	setString(&config.DatabasePath, cf.DatabasePath)
	setString(&config.DebugLogPath, cf.DebugLogPath)
	setString(&config.StatusAddr, cf.StatusAddr)
	setString(&config.MetricsFile, cf.MetricsFile)
	setString(&config.FFmpegPath, cf.FFmpegPath)
	setString(&config.FFprobePath, cf.FFprobePath)
	setString(&config.TesseractPath, cf.TesseractPath)
	setString(&config.YtDlpPath, cf.YtDlpPath)

	if cf.UncheckablePath != nil {
		config.UncheckablePath = *cf.UncheckablePath
	}
	if len(cf.StreamPatterns) > 0 {
		config.StreamPatterns = cf.StreamPatterns
	}

	parse := func(name, v string, dst *time.Duration) error {
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = d
		return nil
	}
	if err := parse("timeout", cf.Timeout, &config.Timeout); err != nil {
		return nil, err
	}
	if err := parse("captureGrace", cf.CaptureGrace, &config.CaptureGrace); err != nil {
		return nil, err
	}
	if err := parse("ocrOffset", cf.OCROffset, &config.OCROffset); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns the baseline configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Workers:         DefaultWorkers,
		Timeout:         5 * time.Second,
		CaptureGrace:    10 * time.Second,
		OCR:             false,
		OCROffset:       2 * time.Second,
		OCRLanguage:     "eng",
		MinCaptureBytes: 500,
		Output:          DefaultOutput,
		LogFormat:       "name",
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		AudioUserAgent:  "iTunes/9.1.1",
		TempDir:         os.TempDir(),
		DatabasePath:    "iptv_checker_links.db",
		UncheckablePath: "uncheckable.m3u",
		StreamPatterns: map[string]string{
			".m3u8":   "video",
			".m3u":    "video",
			".ts":     "video",
			".mp3":    "audio",
			".aac":    "audio",
			"/stream": "audio",
		},
	}
}

// validateAndSetDefaults clamps values into their valid ranges and fills in
// anything left empty.
func validateAndSetDefaults(config *Config) {
	if config.Workers < MinWorkers {
		config.Workers = DefaultWorkers
	}
	if config.Workers > MaxWorkers {
		config.Workers = MaxWorkers
	}
	if config.Timeout < time.Second {
		config.Timeout = 5 * time.Second
	}
	if config.CaptureGrace <= 0 {
		config.CaptureGrace = 10 * time.Second
	}
	if config.OCROffset < 0 {
		config.OCROffset = 2 * time.Second
	}
	if config.OCRLanguage == "" {
		config.OCRLanguage = "eng"
	}
	if config.MinCaptureBytes <= 0 {
		config.MinCaptureBytes = 500
	}
	if config.Output == "" {
		config.Output = DefaultOutput
	}
	if config.LogFormat != "name" && config.LogFormat != "url" {
		config.LogFormat = "name"
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if config.RateLimit < 0 {
		config.RateLimit = 0
	}
	if config.StreamPatterns == nil {
		config.StreamPatterns = DefaultConfig().StreamPatterns
	}
}

// Validate checks values that come from the command line, where silently
// clamping would hide a user mistake.
func (c *Config) Validate() error {
	if c.Workers < MinWorkers || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between %d and %d, got %d", MinWorkers, MaxWorkers, c.Workers)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %s", c.Timeout)
	}
	if c.LogFormat != "name" && c.LogFormat != "url" {
		return fmt.Errorf("log format must be \"name\" or \"url\", got %q", c.LogFormat)
	}
	return nil
}

// CreateExampleConfig writes an example config file to path.
func CreateExampleConfig(path string) error {
	uncheckable := "uncheckable.m3u"
	example := ConfigFile{
		Workers:         DefaultWorkers,
		Timeout:         "5s",
		CaptureGrace:    "10s",
		OCR:             false,
		OCROffset:       "2s",
		OCRLanguage:     "eng",
		MinCaptureBytes: 500,
		Output:          DefaultOutput,
		LogFormat:       "name",
		DatabasePath:    "iptv_checker_links.db",
		UncheckablePath: &uncheckable,
		RateLimit:       0,
		StreamPatterns:  DefaultConfig().StreamPatterns,
	}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
