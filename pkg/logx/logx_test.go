package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgbot/internal/transport/transporttest"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf)).With(String("comp", "test"))
	log.Info("hello", Int64("user_id", 42), Err(errors.New("bad")), Err(nil))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "hello", m["message"])
	assert.Equal(t, "test", m["comp"])
	assert.EqualValues(t, 42, m["user_id"])
	assert.Contains(t, m["caller"], "logx_test.go")
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var log Logger
	assert.True(t, log.IsZero())
	log.Error("dropped")
	assert.False(t, Nop().IsZero())
}

func TestFormatChatLine(t *testing.T) {
	line := []byte(`{"level":"warn","time":"x","message":"send failed","user_id":7,"comp":"broadcast"}`)
	assert.Equal(t, "[WARN] send failed\n- comp=broadcast\n- user_id=7", formatChatLine(line))
	assert.Equal(t, "plain", formatChatLine([]byte("plain\n")))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug", zerolog.InfoLevel))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" WARNING ", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("chatty", zerolog.InfoLevel))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}, nil)
	log.Info("to file", String("k", "v"))
	log.Debug("below level")
	require.NoError(t, svc.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
	assert.NotContains(t, string(data), "below level")
}

func TestTelegramSinkForwardsWarnings(t *testing.T) {
	ad := &transporttest.Adapter{}
	svc, log := New(Config{
		Level:    "info",
		Telegram: TelegramConfig{Enabled: true, MinLevel: "warn", RatePerSec: 10},
	}, ad)
	defer svc.Close()
	svc.SetTelegramChat(99)

	log.Info("quiet")
	log.Warn("loud", String("why", "test"))

	require.Eventually(t, func() bool { return len(ad.SentTo(99)) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, ad.SentTo(99)[0], "[WARN] loud")
}
