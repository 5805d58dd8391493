// clipforge/config/config_test.go
package config_test // Use an external test package

import (
	"testing"
	"time"

	"clipforge/config"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		// Ensure no env vars are lingering from other tests
		t.Setenv("CLIPFORGE_PORT", "")
		t.Setenv("CLIPFORGE_UPLOAD_DIR", "")
		t.Setenv("CLIPFORGE_POLL_INTERVAL", "")
		t.Setenv("CLIPFORGE_MAX_UPLOAD_SIZE", "")
		t.Setenv("CLIPFORGE_AUTH_ENABLE", "")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "uploads", cfg.UploadDir)
		assert.Equal(t, "outputs", cfg.OutputDir)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, "ffprobe", cfg.FFProbeBin)
		assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, 3*time.Second, cfg.ImageDuration)
		assert.Equal(t, "720p", cfg.DefaultQuality)
		assert.Equal(t, false, cfg.AuthEnable)
		assert.Equal(t, int64(100*1024*1024), cfg.MaxUploadSize)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("CLIPFORGE_PORT", "9999")
		t.Setenv("CLIPFORGE_UPLOAD_DIR", "/srv/clipforge/in")
		t.Setenv("CLIPFORGE_POLL_INTERVAL", "250ms")
		t.Setenv("CLIPFORGE_MAX_UPLOAD_SIZE", "50MB")
		t.Setenv("CLIPFORGE_AUTH_ENABLE", "true")
		t.Setenv("CLIPFORGE_AUTH_KEY", "newsecret")
		t.Setenv("CLIPFORGE_EXTRA_ENCODE_ARGS", "-preset fast -crf 23")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, "/srv/clipforge/in", cfg.UploadDir)
		assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, true, cfg.AuthEnable)
		assert.Equal(t, "newsecret", cfg.AuthKey)
		assert.Equal(t, "-preset fast -crf 23", cfg.ExtraEncodeArgs)
	})
}
