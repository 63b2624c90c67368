package mcode

import "strings"

// Collapse reduces M text to a single line. Comments are dropped, whitespace
// runs outside text literals become one space, and spaces just inside
// brackets or before commas are removed. Text literals are kept verbatim.
func Collapse(s string) (string, error) {
	tokens, err := Tokenize(s)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	pendingSpace := false
	var prev Token
	for _, t := range tokens {
		switch t.Kind {
		case KindEOF:
			return b.String(), nil
		case KindWhitespace, KindComment:
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace && !tightAfter(prev) && !tightBefore(t) {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteString(t.Value)
		prev = t
	}
	return b.String(), nil
}

func tightAfter(t Token) bool {
	return t.Kind == KindPunct && (t.Value == "(" || t.Value == "[" || t.Value == "{")
}

func tightBefore(t Token) bool {
	return t.Kind == KindPunct && (t.Value == ")" || t.Value == "]" || t.Value == "}" || t.Value == ",")
}

// NormalizeLines canonicalizes multi-line M text: CRLF becomes LF, trailing
// whitespace is stripped, blank lines are dropped, and the result is trimmed.
func NormalizeLines(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Indent prefixes every line of s with prefix.
func Indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
