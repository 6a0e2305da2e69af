package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/units"
)

// DefaultConfigPath is the path to the canonical barn defaults file.
const DefaultConfigPath = "config/barn.defaults.json"

// Accumulator backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// BarnConfig describes one barn deployment: camera layout, classification
// thresholds and where accumulated time is kept. Every field is optional;
// the Get* accessors supply defaults for omitted values.
type BarnConfig struct {
	// Camera layout
	FrameWidthPx  *float64 `json:"frame_width_px,omitempty"`
	FrameHeightPx *float64 `json:"frame_height_px,omitempty"`
	CameraCount   *int     `json:"camera_count,omitempty"` // 0 = unbounded
	PixelToCm     *float64 `json:"pixel_to_cm,omitempty"`

	// Classifier thresholds
	FeedLineY               *float64 `json:"feed_line_y,omitempty"`
	DisplacementThresholdPx *float64 `json:"displacement_threshold_px,omitempty"`
	TiltThresholdDeg        *float64 `json:"tilt_threshold_deg,omitempty"`

	// Record formatting
	Timezone *string `json:"timezone,omitempty"`

	// Accumulator storage
	AccumulatorBackend *string `json:"accumulator_backend,omitempty"`
	RedisAddr          *string `json:"redis_addr,omitempty"`
	RedisKeyPrefix     *string `json:"redis_key_prefix,omitempty"`

	// MQTT ingest (disabled when broker is empty)
	MQTTBroker   *string `json:"mqtt_broker,omitempty"`
	MQTTTopic    *string `json:"mqtt_topic,omitempty"`
	MQTTClientID *string `json:"mqtt_client_id,omitempty"`
}

// EmptyBarnConfig returns a BarnConfig with all fields unset.
func EmptyBarnConfig() *BarnConfig {
	return &BarnConfig{}
}

// LoadBarnConfig loads a BarnConfig from a JSON file. Fields omitted from the
// file keep their defaults, so partial configs are safe.
func LoadBarnConfig(path string) (*BarnConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBarnConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// working directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *BarnConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadBarnConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *BarnConfig) Validate() error {
	if c.FrameWidthPx != nil && *c.FrameWidthPx <= 0 {
		return fmt.Errorf("frame_width_px must be positive, got %f", *c.FrameWidthPx)
	}
	if c.FrameHeightPx != nil && *c.FrameHeightPx <= 0 {
		return fmt.Errorf("frame_height_px must be positive, got %f", *c.FrameHeightPx)
	}
	if c.CameraCount != nil && *c.CameraCount < 0 {
		return fmt.Errorf("camera_count must be non-negative, got %d", *c.CameraCount)
	}
	if c.PixelToCm != nil && *c.PixelToCm <= 0 {
		return fmt.Errorf("pixel_to_cm must be positive, got %f", *c.PixelToCm)
	}
	if c.DisplacementThresholdPx != nil && *c.DisplacementThresholdPx < 0 {
		return fmt.Errorf("displacement_threshold_px must be non-negative, got %f", *c.DisplacementThresholdPx)
	}
	if c.TiltThresholdDeg != nil && (*c.TiltThresholdDeg < 0 || *c.TiltThresholdDeg > 360) {
		return fmt.Errorf("tilt_threshold_deg must be between 0 and 360, got %f", *c.TiltThresholdDeg)
	}
	if c.Timezone != nil && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("invalid timezone %q", *c.Timezone)
	}
	switch backend := c.GetAccumulatorBackend(); backend {
	case BackendSQLite:
	case BackendRedis:
		if c.GetRedisAddr() == "" {
			return fmt.Errorf("redis_addr is required when accumulator_backend is %q", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown accumulator_backend %q (want %q or %q)", backend, BackendSQLite, BackendRedis)
	}
	return nil
}

// GetFrameWidthPx returns the width of one camera frame in pixels.
func (c *BarnConfig) GetFrameWidthPx() float64 {
	if c.FrameWidthPx == nil {
		return 1920
	}
	return *c.FrameWidthPx
}

// GetFrameHeightPx returns the height of one camera frame in pixels.
func (c *BarnConfig) GetFrameHeightPx() float64 {
	if c.FrameHeightPx == nil {
		return 1300
	}
	return *c.FrameHeightPx
}

// GetCameraCount returns the number of cameras, or 0 when unbounded.
func (c *BarnConfig) GetCameraCount() int {
	if c.CameraCount == nil {
		return 4
	}
	return *c.CameraCount
}

// GetPixelToCm returns the pixel to centimetre scale.
func (c *BarnConfig) GetPixelToCm() float64 {
	if c.PixelToCm == nil {
		return 0.3125
	}
	return *c.PixelToCm
}

// GetFeedLineY returns the trough line image row.
func (c *BarnConfig) GetFeedLineY() float64 {
	if c.FeedLineY == nil {
		return 1200
	}
	return *c.FeedLineY
}

// GetDisplacementThresholdPx returns the stationary threshold in pixels.
func (c *BarnConfig) GetDisplacementThresholdPx() float64 {
	if c.DisplacementThresholdPx == nil {
		return 5
	}
	return *c.DisplacementThresholdPx
}

// GetTiltThresholdDeg returns the head tilt threshold in degrees.
func (c *BarnConfig) GetTiltThresholdDeg() float64 {
	if c.TiltThresholdDeg == nil {
		return 30
	}
	return *c.TiltThresholdDeg
}

// GetTimezone returns the zone used to format record timestamps.
func (c *BarnConfig) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "UTC"
	}
	return *c.Timezone
}

func (c *BarnConfig) GetAccumulatorBackend() string {
	if c.AccumulatorBackend == nil || *c.AccumulatorBackend == "" {
		return BackendSQLite
	}
	return *c.AccumulatorBackend
}

func (c *BarnConfig) GetRedisAddr() string {
	if c.RedisAddr == nil {
		return ""
	}
	return *c.RedisAddr
}

func (c *BarnConfig) GetRedisKeyPrefix() string {
	if c.RedisKeyPrefix == nil || *c.RedisKeyPrefix == "" {
		return "barn:acc:"
	}
	return *c.RedisKeyPrefix
}

func (c *BarnConfig) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

func (c *BarnConfig) GetMQTTTopic() string {
	if c.MQTTTopic == nil || *c.MQTTTopic == "" {
		return "barn/observations"
	}
	return *c.MQTTTopic
}

func (c *BarnConfig) GetMQTTClientID() string {
	if c.MQTTClientID == nil || *c.MQTTClientID == "" {
		return "barn-report"
	}
	return *c.MQTTClientID
}

// Stitcher builds the geometry stitcher for this barn.
func (c *BarnConfig) Stitcher() livestock.Stitcher {
	return livestock.Stitcher{
		FrameWidth: c.GetFrameWidthPx(),
		PixelToCm:  c.GetPixelToCm(),
	}
}

// Classifier builds the state classifier for this barn.
func (c *BarnConfig) Classifier() livestock.Classifier {
	return livestock.Classifier{
		DisplacementThreshold: c.GetDisplacementThresholdPx(),
		FeedLineY:             c.GetFeedLineY(),
		TiltThreshold:         c.GetTiltThresholdDeg(),
	}
}

// Effective returns a copy with every field populated from the getters, for
// display on the config endpoint.
func (c *BarnConfig) Effective() *BarnConfig {
	return &BarnConfig{
		FrameWidthPx:            ptrFloat64(c.GetFrameWidthPx()),
		FrameHeightPx:           ptrFloat64(c.GetFrameHeightPx()),
		CameraCount:             ptrInt(c.GetCameraCount()),
		PixelToCm:               ptrFloat64(c.GetPixelToCm()),
		FeedLineY:               ptrFloat64(c.GetFeedLineY()),
		DisplacementThresholdPx: ptrFloat64(c.GetDisplacementThresholdPx()),
		TiltThresholdDeg:        ptrFloat64(c.GetTiltThresholdDeg()),
		Timezone:                ptrString(c.GetTimezone()),
		AccumulatorBackend:      ptrString(c.GetAccumulatorBackend()),
		RedisAddr:               ptrString(c.GetRedisAddr()),
		RedisKeyPrefix:          ptrString(c.GetRedisKeyPrefix()),
		MQTTBroker:              ptrString(c.GetMQTTBroker()),
		MQTTTopic:               ptrString(c.GetMQTTTopic()),
		MQTTClientID:            ptrString(c.GetMQTTClientID()),
	}
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
