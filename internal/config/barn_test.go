package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyBarnConfig_Defaults(t *testing.T) {
	cfg := EmptyBarnConfig()

	assert.Equal(t, 1920.0, cfg.GetFrameWidthPx())
	assert.Equal(t, 1300.0, cfg.GetFrameHeightPx())
	assert.Equal(t, 4, cfg.GetCameraCount())
	assert.Equal(t, 0.3125, cfg.GetPixelToCm())
	assert.Equal(t, 1200.0, cfg.GetFeedLineY())
	assert.Equal(t, 5.0, cfg.GetDisplacementThresholdPx())
	assert.Equal(t, 30.0, cfg.GetTiltThresholdDeg())
	assert.Equal(t, "UTC", cfg.GetTimezone())
	assert.Equal(t, BackendSQLite, cfg.GetAccumulatorBackend())
	assert.Equal(t, "barn:acc:", cfg.GetRedisKeyPrefix())
	assert.Equal(t, "", cfg.GetMQTTBroker())
	assert.NoError(t, cfg.Validate())
}

func TestMustLoadDefaultConfig_MatchesGetters(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyBarnConfig()

	// The defaults file and the getter fallbacks must agree.
	assert.Equal(t, empty.Effective(), cfg.Effective())
}

func TestLoadBarnConfig_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barn.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"feed_line_y": 900, "tilt_threshold_deg": 45}`), 0o644))

	cfg, err := LoadBarnConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 900.0, cfg.GetFeedLineY())
	assert.Equal(t, 45.0, cfg.GetTiltThresholdDeg())
	assert.Equal(t, 5.0, cfg.GetDisplacementThresholdPx(), "omitted fields keep defaults")

	c := cfg.Classifier()
	assert.Equal(t, 900.0, c.FeedLineY)
	assert.Equal(t, 45.0, c.TiltThreshold)
	s := cfg.Stitcher()
	assert.Equal(t, 1920.0, s.FrameWidth)
}

func TestLoadBarnConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("wrong extension", func(t *testing.T) {
		_, err := LoadBarnConfig(filepath.Join(dir, "barn.yaml"))
		assert.ErrorContains(t, err, ".json extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadBarnConfig(filepath.Join(dir, "missing.json"))
		assert.ErrorContains(t, err, "failed to stat")
	})

	t.Run("bad json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
		_, err := LoadBarnConfig(path)
		assert.ErrorContains(t, err, "failed to parse")
	})

	t.Run("invalid value", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"pixel_to_cm": 0}`), 0o644))
		_, err := LoadBarnConfig(path)
		assert.ErrorContains(t, err, "pixel_to_cm")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BarnConfig
		wantErr string
	}{
		{"negative frame width", BarnConfig{FrameWidthPx: ptrFloat64(-1)}, "frame_width_px"},
		{"zero frame height", BarnConfig{FrameHeightPx: ptrFloat64(0)}, "frame_height_px"},
		{"negative camera count", BarnConfig{CameraCount: ptrInt(-2)}, "camera_count"},
		{"negative displacement", BarnConfig{DisplacementThresholdPx: ptrFloat64(-0.5)}, "displacement_threshold_px"},
		{"tilt out of range", BarnConfig{TiltThresholdDeg: ptrFloat64(400)}, "tilt_threshold_deg"},
		{"bad timezone", BarnConfig{Timezone: ptrString("Mars/Olympus")}, "timezone"},
		{"unknown backend", BarnConfig{AccumulatorBackend: ptrString("etcd")}, "accumulator_backend"},
		{"redis without addr", BarnConfig{AccumulatorBackend: ptrString(BackendRedis)}, "redis_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.cfg.Validate(), tt.wantErr)
		})
	}

	ok := BarnConfig{AccumulatorBackend: ptrString(BackendRedis), RedisAddr: ptrString("localhost:6379")}
	assert.NoError(t, ok.Validate())
}
