package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

type Format int

const (
	JSON Format = iota
	Text
)

var levelNames = map[Level]string{Debug: "debug", Info: "info", Warn: "warn", Error: "error"}
var nameToLevel = map[string]Level{"debug": Debug, "info": Info, "warn": Warn, "error": Error}

type Logger struct {
	out    io.Writer
	level  Level
	format Format
	fields map[string]string
	mu     *sync.Mutex
}

// New builds a stderr logger from AUTOCOMPLETE_LOG_LEVEL and
// AUTOCOMPLETE_LOG_FORMAT. Without an explicit format, terminals get text
// and everything else JSON.
func New() *Logger {
	lvl := ParseLevel(os.Getenv("AUTOCOMPLETE_LOG_LEVEL"))
	format := JSON
	switch strings.ToLower(os.Getenv("AUTOCOMPLETE_LOG_FORMAT")) {
	case "text":
		format = Text
	case "json":
	default:
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = Text
		}
	}
	return NewWriter(os.Stderr, lvl, format)
}

func NewWriter(out io.Writer, level Level, format Format) *Logger {
	return &Logger{out: out, level: level, format: format, fields: make(map[string]string), mu: &sync.Mutex{}}
}

// ParseLevel maps a level name to a Level; unknown names give Info.
func ParseLevel(s string) Level {
	if l, ok := nameToLevel[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return Info
}

func (l *Logger) With(kv map[string]string) *Logger {
	child := &Logger{out: l.out, level: l.level, format: l.format, fields: make(map[string]string, len(l.fields)+len(kv)), mu: l.mu}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range kv {
		child.fields[k] = v
	}
	return child
}

func (l *Logger) Enabled(level Level) bool { return level >= l.level }

func (l *Logger) write(level Level, msg string, kv map[string]any) {
	if level < l.level {
		return
	}
	rec := make(map[string]any, 3+len(l.fields)+len(kv))
	for k, v := range l.fields {
		rec[k] = v
	}
	for k, v := range kv {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		rec[k] = v
	}
	maskSecrets(rec)
	now := time.Now()
	var line []byte
	if l.format == Text {
		line = textLine(now, level, msg, rec)
	} else {
		rec["ts"] = now.Format(time.RFC3339)
		rec["level"] = levelNames[level]
		rec["msg"] = msg
		line, _ = json.Marshal(rec)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(line, '\n'))
}

func textLine(now time.Time, level Level, msg string, rec map[string]any) []byte {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", now.Format("15:04:05"), strings.ToUpper(levelNames[level]), msg)
	for _, k := range keys {
		v := fmt.Sprint(rec[k])
		if strings.ContainsAny(v, " \t\"=") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return []byte(b.String())
}

func (l *Logger) Debug(msg string, kv ...any) { l.write(Debug, msg, toMap(kv...)) }
func (l *Logger) Info(msg string, kv ...any)  { l.write(Info, msg, toMap(kv...)) }
func (l *Logger) Warn(msg string, kv ...any)  { l.write(Warn, msg, toMap(kv...)) }
func (l *Logger) Error(msg string, kv ...any) { l.write(Error, msg, toMap(kv...)) }

func toMap(kv ...any) map[string]any {
	m := make(map[string]any)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		m[k] = kv[i+1]
	}
	return m
}

var secretKeys = []string{"key", "token", "secret", "password", "authorization", "bearer"}

// maskSecrets redacts likely secret values in place.
func maskSecrets(m map[string]any) {
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		m[k] = maskValue(strings.ToLower(k), s)
	}
}

func maskValue(key, s string) string {
	for _, p := range secretKeys {
		if strings.Contains(key, p) {
			return redact(s)
		}
	}
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return "Bearer " + redact(s[len("bearer "):])
	}
	if looksSecret(s) {
		return redact(s)
	}
	return s
}

var secretLike = regexp.MustCompile(`^[A-Za-z0-9_\-]{32,}$`)
var hasDigit = regexp.MustCompile(`[0-9]`)

// looksSecret flags long opaque tokens. UUIDs are identifiers, not secrets.
func looksSecret(s string) bool {
	if !secretLike.MatchString(s) || !hasDigit.MatchString(s) {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return false
	}
	return true
}

func redact(s string) string {
	n := len(s)
	if n <= 8 {
		return "***"
	}
	return fmt.Sprintf("%s***%s", s[:4], s[n-4:])
}
