package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	logger, err := New("bikeshop-pos", "test", "warn")
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("bikeshop-pos", "test", "loud")
	assert.Error(t, err)
}

func TestNamed_NilBase(t *testing.T) {
	l := Named(nil, "sales")
	require.NotNil(t, l)
	l.Info("dropped")
}
