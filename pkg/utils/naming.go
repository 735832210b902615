// Package utils holds small helpers shared by the IDL tooling.
package utils

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts camelCase, PascalCase and kebab-case names to snake_case.
func ToSnakeCase(s string) string {
	words := SplitWords(s)
	for i := range words {
		words[i] = strings.ToLower(words[i])
	}
	return strings.Join(words, "_")
}

// ToCamelCase converts snake_case names to camelCase.
func ToCamelCase(s string) string {
	words := SplitWords(s)
	var result strings.Builder
	for i, word := range words {
		if len(word) == 0 {
			continue
		}
		if i == 0 {
			result.WriteString(strings.ToLower(word))
			continue
		}
		result.WriteString(strings.ToUpper(string(word[0])))
		result.WriteString(strings.ToLower(word[1:]))
	}
	return result.String()
}

// SameName reports whether two identifiers name the same thing once casing
// style is ignored ("systemProgram", "system_program" and "SystemProgram"
// are all the same name).
func SameName(a, b string) bool {
	return ToSnakeCase(a) == ToSnakeCase(b)
}

// SameNameAny reports whether name matches any of the candidates under SameName.
func SameNameAny(name string, candidates ...string) bool {
	snake := ToSnakeCase(name)
	for _, c := range candidates {
		if snake == ToSnakeCase(c) {
			return true
		}
	}
	return false
}

func SplitWords(s string) []string {
	var words []string
	var current strings.Builder

	for i, r := range s {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			continue
		}

		if unicode.IsUpper(r) && i > 0 {
			prev := rune(s[i-1])
			if !unicode.IsUpper(prev) && prev != '_' && prev != '-' && prev != ' ' && prev != '.' {
				if current.Len() > 0 {
					words = append(words, current.String())
					current.Reset()
				}
			}
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}
