// Package testutils contains helpers shared by the tests of this module.
package testutils

import (
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogHook is a logrus.Hook recording every entry it is fired with, so tests
// can assert on what a component logged.
type LogHook struct {
	levels  []logrus.Level
	mu      sync.Mutex
	entries []logrus.Entry
}

var _ logrus.Hook = &LogHook{}

// NewLogHook creates a LogHook firing on the given levels, or on all of them
// if none is given.
func NewLogHook(levels ...logrus.Level) *LogHook {
	if len(levels) == 0 {
		levels = logrus.AllLevels
	}
	return &LogHook{levels: levels}
}

// Levels implements logrus.Hook.
func (h *LogHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook.
func (h *LogHook) Fire(e *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, *e)
	return nil
}

// Drain returns the recorded entries and forgets them.
func (h *LogHook) Drain() []logrus.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	res := h.entries
	h.entries = nil
	return res
}

// Messages returns the messages of the recorded entries, without draining them.
func (h *LogHook) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	lines := make([]string, len(h.entries))
	for i, entry := range h.entries {
		lines[i] = entry.Message
	}
	return lines
}

// Contains reports whether an entry of the given level containing msg was recorded.
func (h *LogHook) Contains(level logrus.Level, msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(FilterEntries(h.entries, level, msg)) > 0
}

// NewLogger returns a discarding logger at debug level, recording everything
// to the returned hook.
func NewLogger() (*logrus.Logger, *LogHook) {
	hook := NewLogHook()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(hook)
	return logger, hook
}

// FilterEntries returns the entries of the given level whose message contains msg.
func FilterEntries(entries []logrus.Entry, level logrus.Level, msg string) []logrus.Entry {
	var filtered []logrus.Entry
	for _, entry := range entries {
		if entry.Level == level && strings.Contains(entry.Message, msg) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}
