package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	logger, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New(Config{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}
