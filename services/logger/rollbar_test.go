package logsvc

import (
	"errors"
	"testing"

	"github.com/rollbar/rollbar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/elimu/core"
)

func TestRollbarLogger(t *testing.T) {
	rollbar.SetEnabled(false)
	obsCore, logs := observer.New(zapcore.DebugLevel)
	l := &RollbarLogger{zl: zap.New(obsCore).Sugar()}

	l.Info("hello")
	l.Warn("careful", map[string]interface{}{"k": "v"})
	l.Error("boom", errors.New("db down"), userA, userB)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Empty(t, entries[0].Context)

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, map[string]interface{}{"k": "v"}, entries[1].ContextMap()["arg0"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	fields := entries[2].ContextMap()
	assert.Equal(t, "db down", fields["error"])
	assert.Equal(t, "u-1", fields["user_id"])
}

var (
	userA = core.LogUser{ID: "u-1", Email: "a@elimu.test"}
	userB = core.LogUser{ID: "u-2", Email: "b@elimu.test"}
)
