package logx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	colorReset      = "\033[0m"
	colorRed        = "\033[31m"
	colorCyan       = "\033[36m"
	colorGray       = "\033[90m"
	colorWhite      = "\033[97m"
	colorMagenta    = "\033[35m"
	colorBoldRed    = "\033[1;31m"
	colorBoldYellow = "\033[1;33m"
	colorBoldCyan   = "\033[1;36m"
	colorBoldGreen  = "\033[1;32m"
)

// Fields is a map of structured data
type Fields map[string]interface{}

// Record is a single log line before formatting
type Record struct {
	Level     Level
	Message   string
	Fields    Fields
	Error     error
	Timestamp time.Time
	Caller    string
}

// Formatter turns a record into bytes
type Formatter interface {
	Format(r *Record) ([]byte, error)
}

func newFormatter(cfg *Config) Formatter {
	if cfg.Format == FormatJSON {
		return &JSONFormatter{config: cfg}
	}
	return &ConsoleFormatter{config: cfg}
}

func sortedKeys(f Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatTimestamp(t time.Time, layout string) string {
	switch layout {
	case "unix":
		return strconv.FormatInt(t.Unix(), 10)
	case "unixmilli":
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.Format(layout)
	}
}

// JSONFormatter formats logs as JSON
type JSONFormatter struct {
	config *Config
}

func (f *JSONFormatter) Format(r *Record) ([]byte, error) {
	data := make(map[string]interface{}, len(r.Fields)+4)
	for k, v := range r.Fields {
		data[k] = v
	}
	data["level"] = r.Level.String()
	data["message"] = r.Message
	if f.config.EnableTimestamp {
		data["timestamp"] = r.Timestamp.Format(time.RFC3339Nano)
	}
	if f.config.EnableCaller && r.Caller != "" {
		data["caller"] = r.Caller
	}
	if r.Error != nil {
		data["error"] = r.Error.Error()
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// ConsoleFormatter writes `time [LEVEL] component: message k=v` lines.
type ConsoleFormatter struct {
	config *Config
}

func (f *ConsoleFormatter) paint(b *strings.Builder, color, s string) {
	if f.config.EnableColors {
		b.WriteString(color)
		b.WriteString(s)
		b.WriteString(colorReset)
		return
	}
	b.WriteString(s)
}

func (f *ConsoleFormatter) Format(r *Record) ([]byte, error) {
	var b strings.Builder

	if f.config.EnableTimestamp {
		f.paint(&b, colorGray, formatTimestamp(r.Timestamp, f.config.TimeFormat))
		b.WriteByte(' ')
	}
	f.paint(&b, levelColor(r.Level), fmt.Sprintf("[%-5s]", r.Level.String()))
	b.WriteByte(' ')
	if f.config.EnableCaller && r.Caller != "" {
		f.paint(&b, colorGray, "["+r.Caller+"] ")
	}

	fields := r.Fields
	if c, ok := fields["component"]; ok {
		f.paint(&b, colorMagenta, fmt.Sprintf("%v: ", c))
	}
	f.paint(&b, colorWhite, r.Message)

	var kv []string
	for _, k := range sortedKeys(fields) {
		if k == "component" || k == "error" {
			continue
		}
		kv = append(kv, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	if len(kv) > 0 {
		b.WriteByte(' ')
		f.paint(&b, colorCyan, strings.Join(kv, " "))
	}
	if r.Error != nil {
		b.WriteString("\n")
		f.paint(&b, colorRed, "  ╰─→ error: "+r.Error.Error())
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func levelColor(l Level) string {
	switch l {
	case LevelTrace:
		return colorGray
	case LevelDebug:
		return colorBoldCyan
	case LevelInfo:
		return colorBoldGreen
	case LevelWarn:
		return colorBoldYellow
	default:
		return colorBoldRed
	}
}
