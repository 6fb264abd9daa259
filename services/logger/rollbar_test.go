package logsvc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/darasa/core/user"
)

func TestRollbarLogger_Fields(t *testing.T) {
	ann := user.User{ID: "u1", Username: "ann"}
	bob := user.User{ID: "u2", Username: "bob"}
	boom := errors.New("boom")

	tests := []struct {
		name string
		args []interface{}
		want map[string]interface{}
	}{
		{name: "none", want: map[string]interface{}{}},
		{name: "user and error", args: []interface{}{ann, boom}, want: map[string]interface{}{"user_id": "u1", "error": "boom"}},
		{name: "first user wins", args: []interface{}{ann, bob}, want: map[string]interface{}{"user_id": "u1"}},
		{
			name: "extra and arg",
			args: []interface{}{map[string]interface{}{"course_id": "c1"}, 42},
			want: map[string]interface{}{"extra": map[string]interface{}{"course_id": "c1"}, "arg": int64(42)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			l := NewLocalLogger(zap.New(core))
			l.Warn("something happened", tt.args...)

			entries := logs.AllUntimed()
			if assert.Len(t, entries, 1) {
				assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
				assert.Equal(t, "something happened", entries[0].Message)
				assert.Equal(t, tt.want, entries[0].ContextMap())
			}
		})
	}
}

func TestRollbarLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLocalLogger(zap.New(core))

	l.Debug("hidden")
	l.Info("info")
	l.Error("error")

	assert.Equal(t, 0, logs.FilterMessage("hidden").Len())
	assert.Equal(t, 1, logs.FilterMessage("info").Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Same(t, l.zl, l.Zap())
}
