package recognizer

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls cleanup of decoded text. Custom alphabets may carry
// punctuation and full-width symbols; the default OpenVINO alphabet only
// benefits from trimming and case folding.
type CleanOptions struct {
	NormalizeForm      string            // "NFC" (default), "NFKC", "NFD", "NFKD"; "none" disables
	CollapseWhitespace bool              // runs of whitespace become one space
	Trim               bool              // strip leading and trailing whitespace
	RemoveInvisible    bool              // drop control and zero-width runes
	Replace            map[string]string // applied longest key first
	Typographic        bool              // map curly quotes, dashes and odd spaces to ASCII
	Lowercase          bool
}

// DefaultCleanOptions returns the cleanup applied to recognized text.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		CollapseWhitespace: true,
		Trim:               true,
		RemoveInvisible:    true,
	}
}

var typographic = map[string]string{
	"\u2018": "'",
	"\u2019": "'",
	"\u201C": "\"",
	"\u201D": "\"",
	"\u201E": "\"",
	"\u00AB": "\"",
	"\u00BB": "\"",
	"\u2013": "-",
	"\u2014": "-",
	"\u00A0": " ",
	"\u2009": " ",
}

// PostProcessText normalizes and cleans decoded text.
func PostProcessText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	for _, step := range opts.steps() {
		s = step(s)
	}
	return s
}

func (o CleanOptions) steps() []func(string) string {
	var steps []func(string) string
	if f := normalizer(o.NormalizeForm); f != nil {
		steps = append(steps, f)
	}
	if o.RemoveInvisible {
		steps = append(steps, removeInvisible)
	}
	if r := o.replacer(); r != nil {
		steps = append(steps, r.Replace)
	}
	if o.CollapseWhitespace {
		steps = append(steps, func(s string) string { return strings.Join(strings.Fields(s), " ") })
	}
	if o.Trim {
		steps = append(steps, strings.TrimSpace)
	}
	if o.Lowercase {
		steps = append(steps, strings.ToLower)
	}
	return steps
}

func validNormalizeForm(form string) bool {
	return strings.EqualFold(form, "none") || normalizer(form) != nil
}

func normalizer(form string) func(string) string {
	switch strings.ToUpper(form) {
	case "NFC", "":
		return norm.NFC.String
	case "NFKC":
		return norm.NFKC.String
	case "NFD":
		return norm.NFD.String
	case "NFKD":
		return norm.NFKD.String
	}
	return nil
}

// replacer merges the typographic table with the user map; user entries win.
func (o CleanOptions) replacer() *strings.Replacer {
	m := make(map[string]string, len(o.Replace)+len(typographic))
	if o.Typographic {
		for k, v := range typographic {
			m[k] = v
		}
	}
	for k, v := range o.Replace {
		m[k] = v
	}
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	// Replacer tries pairs in argument order, so longer keys go first.
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return strings.NewReplacer(pairs...)
}

func removeInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case unicode.IsControl(r), r == '\u200B', r == '\u200C', r == '\u200D', r == '\uFEFF':
			return -1
		}
		return r
	}, s)
}
