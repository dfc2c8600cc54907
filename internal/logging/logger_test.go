package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	logger, err := New("production", "debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("production", "nonsense")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestMaskPhone(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"6281234567890", "62********890"},
		{"62812", "*****"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.out, MaskPhone(c.in), "MaskPhone(%q)", c.in)
	}
}
