package logx_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Abraxas-365/drugcontent/pkg/logx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(format logx.Format, level logx.Level) (*logx.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := logx.DefaultConfig()
	cfg.Format = format
	cfg.Level = level
	cfg.EnableColors = false
	cfg.EnableTimestamp = false
	cfg.Output = buf
	return logx.NewLogger(cfg), buf
}

func TestConsoleLineIsStable(t *testing.T) {
	l, buf := newBufferLogger(logx.FormatConsole, logx.LevelDebug)

	l.Component("jobx").WithFields(logx.Fields{"queue": "q1", "job_id": "abc"}).Info("claimed")

	assert.Equal(t, "[INFO ] jobx: claimed job_id=abc queue=q1\n", buf.String())
}

func TestJSONIncludesFieldsAndError(t *testing.T) {
	l, buf := newBufferLogger(logx.FormatJSON, logx.LevelInfo)

	l.WithField("drug_id", 42).WithError(errors.New("boom")).Error("generation failed")

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ERROR", got["level"])
	assert.Equal(t, "generation failed", got["message"])
	assert.Equal(t, float64(42), got["drug_id"])
	assert.Equal(t, "boom", got["error"])
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(logx.FormatConsole, logx.LevelWarn)

	l.WithField("k", 1).Info("hidden")
	l.WithField("k", 2).Warn("shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "shown")
}

func TestEntriesDoNotShareFields(t *testing.T) {
	l, buf := newBufferLogger(logx.FormatConsole, logx.LevelInfo)

	base := l.Component("scanner")
	base.WithField("kind", "missing").Info("a")
	base.Info("b")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "kind=missing")
	assert.NotContains(t, lines[1], "kind=missing")
}

func TestLevelDecoding(t *testing.T) {
	var lvl logx.Level
	require.NoError(t, lvl.UnmarshalText([]byte("warning")))
	assert.Equal(t, logx.LevelWarn, lvl)
	assert.Error(t, lvl.UnmarshalText([]byte("loud")))
	assert.Equal(t, logx.LevelInfo, logx.ParseLevel("nope"))
}
