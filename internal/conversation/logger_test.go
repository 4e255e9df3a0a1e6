package conversation

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesPerConversationNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewLogger(LogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	logger.Log(LogEvent{
		UserID:     "user-1",
		SessionID:  "unified_abc",
		Channel:    "chat_http",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: "oi   Sofia",
	})

	line := waitForLogLine(t, filepath.Join(dir, "user-1", "unified_abc.ndjson"))
	var got LogEvent
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, "oi   Sofia", got.ContentRaw)
	assert.Equal(t, "oi Sofia", got.Content)
	assert.NotEmpty(t, got.Timestamp)
}

func TestLoggerCloseDrainsQueueAndWritesGlobal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all", "all.ndjson")
	logger, err := NewLogger(LogConfig{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    global,
		QueueSize:     16,
	}, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		logger.Log(LogEvent{UserID: "u", SessionID: "s", ContentRaw: "msg"})
	}
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(global)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	// Logging after close is ignored.
	logger.Log(LogEvent{UserID: "u", SessionID: "s"})
}

func TestLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(LogConfig{Enabled: false}, nil)
	require.NoError(t, err)
	logger.Log(LogEvent{UserID: "u"})
	assert.NoError(t, logger.Close())
}

func TestSafeSegment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", safeSegment(""))
	assert.Equal(t, "unknown", safeSegment(".."))
	assert.Equal(t, "_etc_passwd", safeSegment("/etc/passwd"))
	assert.Equal(t, "unified_1f2e", safeSegment("unified_1f2e"))
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	clean := cleanForReadability("\x1b[31merror\x1b[0m plain")
	assert.NotContains(t, clean, "\x1b[31m")
	assert.Equal(t, "error plain", clean)
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			return lines[len(lines)-1]
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
