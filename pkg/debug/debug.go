// Package debug builds the process logger: structured JSON when the output
// feeds a collector, a compact colored console when a human is watching.
package debug

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

const consoleTimeFormat = "15:04:05.000"

// ParseLevel maps a config string to a zerolog level. Unknown strings fall
// back to info rather than erroring; a bad log_level should never stop the
// process.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger builds the root logger writing to w. With pretty set the output
// is the colored console format, otherwise one JSON object per line.
func NewLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	var out io.Writer = w
	if pretty {
		out = zerolog.ConsoleWriter{
			Out:          w,
			TimeFormat:   consoleTimeFormat,
			FormatLevel:  formatLevel,
			FormatCaller: formatCaller,
		}
	}
	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

var levelColors = map[string]*color.Color{
	zerolog.LevelTraceValue: color.New(color.Faint),
	zerolog.LevelDebugValue: color.New(color.Faint),
	zerolog.LevelInfoValue:  color.New(color.FgGreen),
	zerolog.LevelWarnValue:  color.New(color.FgYellow),
	zerolog.LevelErrorValue: color.New(color.FgRed, color.Bold),
	zerolog.LevelFatalValue: color.New(color.FgHiRed, color.Bold),
	zerolog.LevelPanicValue: color.New(color.FgHiRed, color.Bold),
}

func formatLevel(i any) string {
	lvl, ok := i.(string)
	if !ok {
		return "???"
	}
	padded := fmt.Sprintf("%-5s", strings.ToUpper(lvl))
	if c, ok := levelColors[lvl]; ok {
		return c.Sprint(padded)
	}
	return padded
}

func formatCaller(i any) string {
	caller, ok := i.(string)
	if !ok || caller == "" {
		return ""
	}
	file, line := splitCaller(caller)
	return fmt.Sprintf("%s%s%s",
		color.New(color.Bold).Sprint(ShortFile(file)),
		color.New(color.Faint).Sprint(":"),
		color.New(color.FgHiRed).Sprint(line))
}

// ShortFile trims a caller path to its final path element.
func ShortFile(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// splitCaller splits zerolog's "path/file.go:123" caller value. A value
// without a colon comes back with an empty line part.
func splitCaller(caller string) (file, line string) {
	if i := strings.LastIndexByte(caller, ':'); i >= 0 {
		return caller[:i], caller[i+1:]
	}
	return caller, ""
}
