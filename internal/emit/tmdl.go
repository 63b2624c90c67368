package emit

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// lineageNamespace seeds lineage tags so regenerated projects keep them.
var lineageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/leapstack-labs/leapbi/lineage"))

func lineageTag(parts ...string) string {
	return uuid.NewSHA1(lineageNamespace, []byte(strings.Join(parts, "/"))).String()
}

var plainName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Quote returns name as a TMDL object name, single-quoted when it is not a
// plain identifier.
func Quote(name string) string {
	if plainName.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// tmdlWriter writes tab-indented TMDL.
type tmdlWriter struct {
	buf bytes.Buffer
}

func (w *tmdlWriter) line(depth int, format string, args ...any) {
	w.buf.WriteString(strings.Repeat("\t", depth))
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func (w *tmdlWriter) blank() {
	w.buf.WriteByte('\n')
}

// property writes "key: value" when value is set.
func (w *tmdlWriter) property(depth int, key, value string) {
	if value != "" {
		w.line(depth, "%s: %s", key, value)
	}
}

// expression writes "head = expr". A multi-line expression starts on the
// next line, two levels deeper than head.
func (w *tmdlWriter) expression(depth int, head, expr string) {
	expr = strings.TrimRight(expr, " \t\r\n")
	if !strings.Contains(expr, "\n") {
		w.line(depth, "%s = %s", head, expr)
		return
	}
	w.line(depth, "%s =", head)
	for _, l := range strings.Split(expr, "\n") {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			w.blank()
			continue
		}
		w.line(depth+2, "%s", l)
	}
}

// description writes a /// doc comment for the object that follows.
func (w *tmdlWriter) description(depth int, text string) {
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			w.line(depth, "/// %s", l)
		}
	}
}

// bytes returns the document with exactly one trailing newline.
func (w *tmdlWriter) bytes() []byte {
	return append(bytes.TrimRight(w.buf.Bytes(), "\n"), '\n')
}
