package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		level     string
		enabled   zapcore.Level
		disabled  []zapcore.Level
		wantError bool
	}{
		{name: "development default", env: "dev", enabled: zapcore.DebugLevel},
		{name: "production default", env: "prod", enabled: zapcore.InfoLevel, disabled: []zapcore.Level{zapcore.DebugLevel}},
		{name: "production upper case", env: "PROD", enabled: zapcore.InfoLevel, disabled: []zapcore.Level{zapcore.DebugLevel}},
		{name: "explicit level", env: "dev", level: "warn", enabled: zapcore.WarnLevel, disabled: []zapcore.Level{zapcore.InfoLevel}},
		{name: "invalid level", env: "prod", level: "loud", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.env, tt.level)
			if tt.wantError {
				assert.ErrorContains(t, err, "invalid level")
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = logger.Sync() })

			assert.True(t, logger.Core().Enabled(tt.enabled))
			for _, lvl := range tt.disabled {
				assert.False(t, logger.Core().Enabled(lvl))
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	assert.False(t, OrNop(nil).Core().Enabled(zapcore.ErrorLevel))

	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
