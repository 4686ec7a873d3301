// Package diff renders readable diffs: structured values for test failures,
// line diffs for rendered HTML. Output is plain text, safe for test logs and
// terminals alike.
package diff

import (
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/kylelemons/godebug/diff"
)

// Values pretty-prints both values, exported fields only, and diffs the
// renderings line by line. Empty means equal.
func Values[T any](want, got T) string {
	printer := pp.New()
	printer.SetExportedOnly(true)
	printer.SetColoringEnabled(false)
	return Text(printer.Sprint(want), printer.Sprint(got))
}

// Text line-diffs two strings. Empty means equal; otherwise the result is a
// header plus the diff with "-" lines belonging to want and "+" lines to got.
func Text(want, got string) string {
	d := diff.Diff(want, got)
	if d == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n(-want +got)\n")
	b.WriteString(d)
	return b.String()
}

// Lines diffs two documents line by line and returns only the changed lines,
// prefixed with "-" and "+". Nil means equal.
func Lines(want, got string) []string {
	d := diff.Diff(want, got)
	if d == "" {
		return nil
	}
	var changed []string
	for _, line := range strings.Split(d, "\n") {
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "+") {
			changed = append(changed, line)
		}
	}
	return changed
}
