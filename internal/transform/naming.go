package transform

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GeneratedPrefix starts every published transform identifier.
const GeneratedPrefix = "Fx"

var (
	identPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	invalidIdentCh = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// CanonicalName derives a transform name from its file path: the file stem
// with every character outside [A-Za-z0-9_] replaced by '_', and a leading
// '_' when the result would start with a digit.
func CanonicalName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	safe := invalidIdentCh.ReplaceAllString(stem, "_")
	if !identPattern.MatchString(safe) {
		safe = "_" + safe
	}
	return safe
}

// GeneratedName converts a canonical name into the published M identifier:
// Fx followed by each '_', '-' or space separated part with its first letter
// upper-cased. limit_rows becomes FxLimitRows, fix_URL becomes FxFixURL.
func GeneratedName(canonical string) string {
	parts := strings.FieldsFunc(canonical, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	// A Caser keeps state between calls and must not be shared.
	caser := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	b.WriteString(GeneratedPrefix)
	for _, p := range parts {
		b.WriteString(caser.String(p))
	}
	return b.String()
}
