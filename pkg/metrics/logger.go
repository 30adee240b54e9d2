package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "SILENT"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

var levelStyles = map[Level]lipgloss.Style{
	LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// ParseLevel is ParseLevelStrict with unknown input mapped to LevelInfo.
func ParseLevel(s string) Level {
	l, _ := ParseLevelStrict(s)
	return l
}

// ParseLevelStrict accepts LOG_LEVEL spellings, case-insensitively.
func ParseLevelStrict(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "SILENT", "OFF", "NONE":
		return LevelSilent, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Format selects how entries are rendered.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}

// Fields are structured key/value pairs attached to an entry.
type Fields map[string]any

// RedactedKeys lists field names whose values are never written. Matching is
// case-insensitive.
var RedactedKeys = []string{
	"key", "secret", "secret_key", "sk", "shared_secret",
	"plaintext", "password", "passphrase", "symmetric_key",
}

const redacted = "[REDACTED]"

func redact(f Fields) {
	for k := range f {
		if slices.Contains(RedactedKeys, strings.ToLower(k)) {
			f[k] = redacted
		}
	}
}

// Logger writes leveled entries. A Logger is safe for concurrent use and its
// derived loggers share the parent's output lock.
type Logger struct {
	mu     *sync.Mutex
	out    io.Writer
	level  Level
	format Format
	color  bool
	fields Fields
	name   string
	now    func() time.Time
}

// LoggerOption configures NewLogger.
type LoggerOption func(*Logger)

func WithOutput(w io.Writer) LoggerOption   { return func(l *Logger) { l.out = w } }
func WithLevel(level Level) LoggerOption    { return func(l *Logger) { l.level = level } }
func WithFormat(f Format) LoggerOption      { return func(l *Logger) { l.format = f } }
func WithColor(enabled bool) LoggerOption   { return func(l *Logger) { l.color = enabled } }
func WithFields(fields Fields) LoggerOption { return func(l *Logger) { l.fields = maps.Clone(fields) } }
func WithName(name string) LoggerOption     { return func(l *Logger) { l.name = name } }

// NewLogger defaults to INFO text on stderr.
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{
		mu:     new(sync.Mutex),
		out:    os.Stderr,
		level:  LevelInfo,
		fields: Fields{},
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.fields == nil {
		l.fields = Fields{}
	}
	return l
}

func (l *Logger) derive() *Logger {
	c := *l
	c.fields = maps.Clone(l.fields)
	return &c
}

// With returns a child logger carrying extra fields.
func (l *Logger) With(fields Fields) *Logger {
	c := l.derive()
	maps.Copy(c.fields, fields)
	return c
}

// Named returns a child logger; names nest with dots.
func (l *Logger) Named(name string) *Logger {
	c := l.derive()
	if c.name != "" {
		name = c.name + "." + name
	}
	c.name = name
	return c
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Fields) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, extra []Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level || level == LevelSilent {
		return
	}

	f := maps.Clone(l.fields)
	for _, e := range extra {
		maps.Copy(f, e)
	}
	redact(f)

	var line []byte
	if l.format == FormatJSON {
		line = l.renderJSON(level, msg, f)
	} else {
		line = l.renderText(level, msg, f)
	}
	_, _ = l.out.Write(line)
}

func (l *Logger) renderJSON(level Level, msg string, f Fields) []byte {
	entry := maps.Clone(f)
	entry["time"] = l.now().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	if l.name != "" {
		entry["logger"] = l.name
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Appendf(nil, "LOG_ERROR: %v\n", err)
	}
	return append(b, '\n')
}

func (l *Logger) renderText(level Level, msg string, f Fields) []byte {
	var b strings.Builder
	b.WriteString(l.now().Format("15:04:05.000"))
	b.WriteByte(' ')

	lvl := fmt.Sprintf("%-5s", level)
	if style, ok := levelStyles[level]; ok && l.color {
		lvl = style.Render(lvl)
	}
	b.WriteString(lvl)
	b.WriteByte(' ')

	if l.name != "" {
		fmt.Fprintf(&b, "[%s] ", l.name)
	}
	b.WriteString(msg)
	for _, k := range slices.Sorted(maps.Keys(f)) {
		fmt.Fprintf(&b, " %s=%v", k, f[k])
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

var (
	globalMu     sync.RWMutex
	globalLogger = NewLogger()
)

// SetLogger replaces the package-level logger used by Debug, Info, Warn and
// Error.
func SetLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func GetLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func Debug(msg string, fields ...Fields) { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...Fields)  { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...Fields)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...Fields) { GetLogger().Error(msg, fields...) }

// NullLogger discards everything.
func NullLogger() *Logger { return NewLogger(WithLevel(LevelSilent), WithOutput(io.Discard)) }

// TestLogger writes DEBUG text to w.
func TestLogger(w io.Writer) *Logger {
	return NewLogger(WithOutput(w), WithLevel(LevelDebug))
}
