package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{" WARN ", WARN},
		{"error", ERROR},
		{"verbose", INFO},
		{"", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New("WARN", &buf)

	l.Debug("probe %d", 1)
	l.Info("probe %d", 2)
	assert.Empty(t, buf.String())

	l.Warn("capture failed for %s", "BBC One")
	assert.Contains(t, buf.String(), "[IPTV-CHECK] ")
	assert.Contains(t, buf.String(), "[WARN] capture failed for BBC One")

	l.SetLevel("DEBUG")
	assert.Equal(t, "DEBUG", l.Level().String())
	l.Debug("probe %d", 3)
	assert.Contains(t, buf.String(), "[DEBUG] probe 3")
}

func TestRunTag(t *testing.T) {
	var buf bytes.Buffer
	l := New("INFO", &buf)

	l.SetRun("0f8fad5b-d9cb-469f-a165-70867728950e")
	l.Info("started")
	assert.Contains(t, buf.String(), "[INFO] (0f8fad5b) started")

	buf.Reset()
	l.SetRun("")
	l.Info("finished")
	assert.NotContains(t, buf.String(), "(")
}

func TestSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := New("ERROR", &first)

	l.Error("one")
	l.SetOutput(&second)
	l.Error("two")

	assert.Contains(t, first.String(), "one")
	assert.NotContains(t, first.String(), "two")
	assert.Contains(t, second.String(), "two")
}
