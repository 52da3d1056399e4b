package stub

import (
	"strings"
	"unicode"
)

// words splits s on case changes, underscores, hyphens, spaces and other
// non-alphanumeric runes.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			// fooBar -> foo|Bar, HTTPServer -> HTTP|Server
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// Snake converts any casing to snake_case: "UserLogin" -> "user_login".
func Snake(s string) string {
	parts := words(s)
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, "_")
}

// Pascal converts any casing to PascalCase: "user_login" -> "UserLogin".
func Pascal(s string) string {
	parts := words(s)
	for i, p := range parts {
		parts[i] = capitalize(strings.ToLower(p))
	}
	return strings.Join(parts, "")
}

// Camel converts any casing to camelCase: "user_login" -> "userLogin".
func Camel(s string) string {
	p := Pascal(s)
	if p == "" {
		return ""
	}
	r := []rune(p)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Plural pluralizes the last word of s, keeping its casing:
// "user_profile" -> "user_profiles", "Category" -> "Categories".
func Plural(s string) string {
	if s == "" {
		return ""
	}
	// Pluralize only the trailing word of snake or Pascal identifiers.
	cut := strings.LastIndexFunc(s, func(r rune) bool { return r == '_' || r == ' ' || r == '-' })
	head, word := s[:cut+1], s[cut+1:]
	if cut < 0 {
		if ws := words(s); len(ws) > 1 {
			last := ws[len(ws)-1]
			head, word = s[:len(s)-len(last)], last
		}
	}
	return head + pluralWord(word)
}

var irregulars = map[string]string{
	"person": "people",
	"child":  "children",
	"man":    "men",
	"woman":  "women",
	"mouse":  "mice",
	"goose":  "geese",
}

func pluralWord(word string) string {
	if word == "" {
		return ""
	}
	lower := strings.ToLower(word)

	if plural, ok := irregulars[lower]; ok {
		if unicode.IsUpper([]rune(word)[0]) {
			return capitalize(plural)
		}
		return plural
	}

	switch {
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"), strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return word + "es"
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(lower, "fe"):
		return word[:len(word)-2] + "ves"
	}
	return word + "s"
}

func isVowel(c byte) bool {
	return strings.IndexByte("aeiou", c) >= 0
}

// featureWords is how many leading words of a prompt name the feature.
const featureWords = 2

// stopWords are skipped when deriving a feature name from a prompt.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "add": true, "create": true,
	"build": true, "make": true, "generate": true, "new": true, "for": true,
	"with": true, "and": true, "of": true, "to": true,
}

// FeatureName derives a snake_case feature name from the first meaningful
// words of a prompt: "Create a user profile screen" -> "user_profile".
// Prompts with no usable words yield "feature".
func FeatureName(prompt string) string {
	var picked []string
	for _, w := range words(prompt) {
		lw := strings.ToLower(w)
		if stopWords[lw] || !unicode.IsLetter([]rune(lw)[0]) {
			continue
		}
		picked = append(picked, lw)
		if len(picked) == featureWords {
			break
		}
	}
	if len(picked) == 0 {
		return "feature"
	}
	return strings.Join(picked, "_")
}
