// Package log provides named loggers for the search pipeline.
//
// Every component logs through its own logger obtained with ForService, and
// each line carries a "[name>]" prefix. Levels are INFO, WARN, ERROR and
// DEBUG; debug output is off unless enabled globally or for one service:
//
//	l := log.ForService("fanout")
//	l.Infof("queried %d modules", n)
//	l.Debugf("GET %s", path) // only with log.SetGlobalDebug(true) or log.EnableDebugFor("fanout")
//
// Level tags are styled with lipgloss. The renderer is bound to the output
// writer, so terminals get colours while files and buffers get plain text.
//
// The package name collides with the standard library "log"; alias one of
// them when both are needed.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelDebug = "DEBUG"
)

// Logger is a named logger.
type Logger struct {
	name string
	std  *log.Logger
}

// levelStyles holds the rendered level tags for the current writer.
type levelStyles map[string]string

// writerHolder keeps atomic.Value storing a single concrete type.
type writerHolder struct {
	w io.Writer
}

var (
	globalDebug  atomic.Bool
	serviceDebug sync.Map // map[string]*atomic.Bool
	loggers      sync.Map // map[string]*Logger

	outputWriter atomic.Value // writerHolder
	styles       atomic.Pointer[levelStyles]
)

func init() {
	setWriter(os.Stderr)
}

func newStyles(w io.Writer) *levelStyles {
	r := lipgloss.NewRenderer(w)
	colors := map[string]string{
		LevelInfo:  "39",
		LevelWarn:  "214",
		LevelError: "196",
		LevelDebug: "244",
	}
	s := make(levelStyles, len(colors))
	for level, color := range colors {
		s[level] = r.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(level)
	}
	return &s
}

func setWriter(w io.Writer) {
	outputWriter.Store(writerHolder{w: w})
	styles.Store(newStyles(w))
}

// ForService returns the memoized logger for name.
func ForService(name string) *Logger {
	if name == "" {
		name = "unknown"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	w := outputWriter.Load().(writerHolder).w
	logger := &Logger{name: name, std: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
	actual, _ := loggers.LoadOrStore(name, logger)
	return actual.(*Logger)
}

// SetOutput redirects every logger, existing and future, to w.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	setWriter(w)
	loggers.Range(func(_, v any) bool {
		v.(*Logger).std.SetOutput(w)
		return true
	})
}

func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

func GlobalDebug() bool {
	return globalDebug.Load()
}

// EnableDebugFor turns on debug output for one service only.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	val, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	val.(*atomic.Bool).Store(true)
}

func DisableDebugFor(name string) {
	if val, ok := serviceDebug.Load(name); ok {
		val.(*atomic.Bool).Store(false)
	}
}

// DebugEnabledFor reports whether debug output is on for name.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if val, ok := serviceDebug.Load(name); ok {
		return val.(*atomic.Bool).Load()
	}
	return false
}

// Name returns the service name of the logger.
func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) output(level, msg string) {
	tag := level
	if s := styles.Load(); s != nil {
		if styled, ok := (*s)[level]; ok {
			tag = styled
		}
	}
	l.std.Println(tag + " [" + l.name + ">] " + msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.output(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.output(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.output(LevelError, fmt.Sprintf(format, args...))
}

// Debugf logs only when debug is enabled for this logger's service.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.output(LevelDebug, fmt.Sprintf(format, args...))
}
