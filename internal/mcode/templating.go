package mcode

import (
	"regexp"
	"sort"
	"strings"
)

// TemplateMarker is a residual template delimiter found in M text.
type TemplateMarker struct {
	Pos  Position
	Text string
}

var templatePatterns = []*regexp.Regexp{
	// {{ name }}, {{ src.database }}, {{ value | upper }}
	regexp.MustCompile(`\{\{\s*[A-Za-z_][\w.]*\s*(\|[^{}]*)?\}\}`),
	// {% if %}, {% endfor %}
	regexp.MustCompile(`(?s)\{%.*?%\}`),
	// {# comment #}
	regexp.MustCompile(`(?s)\{#.*?#\}`),
	// {* stmt *}
	regexp.MustCompile(`(?s)\{\*.*?\*\}`),
}

// FindTemplateSyntax reports template delimiters left in M text. Text
// literals are searched too, since interpolating into a string is the most
// common way a template leaks. Comments are ignored. Nested M lists such as
// {{"A", type text}} are not template syntax and are not reported.
func FindTemplateSyntax(src string) []TemplateMarker {
	masked := maskComments(src)

	var found []TemplateMarker
	for _, re := range templatePatterns {
		for _, loc := range re.FindAllStringIndex(masked, -1) {
			found = append(found, TemplateMarker{
				Pos:  positionAt(src, loc[0]),
				Text: src[loc[0]:loc[1]],
			})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Pos.Offset < found[j].Pos.Offset })
	return found
}

// maskComments blanks out comment bodies while keeping offsets stable. Text
// that fails to tokenize is returned unchanged so scanning still happens.
func maskComments(src string) string {
	toks, err := Tokenize(src)
	if err != nil {
		return src
	}
	b := []byte(src)
	for _, t := range toks {
		if t.Kind != KindComment {
			continue
		}
		for k := t.Pos.Offset; k < t.Pos.Offset+len(t.Value); k++ {
			if b[k] != '\n' {
				b[k] = ' '
			}
		}
	}
	return string(b)
}

func positionAt(src string, offset int) Position {
	before := src[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndex(before, "\n")
	return Position{Offset: offset, Line: line, Column: col}
}
