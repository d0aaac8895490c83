package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	Logger().Warn("skipped member", zap.String("member", "method Foo::bar()"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "skipped member", entry.Message)
	assert.Equal(t, "method Foo::bar()", entry.ContextMap()["member"])

	SetLogger(nil)
	assert.NotNil(t, Logger())
}

func TestConfigure(t *testing.T) {
	defer SetLogger(nil)

	require.NoError(t, Configure(""))
	assert.False(t, Logger().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger().Core().Enabled(zapcore.WarnLevel))

	require.NoError(t, Configure("debug"))
	assert.True(t, Logger().Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, Configure("loud"))
}
