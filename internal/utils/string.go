package utils

import (
	"strings"
	"unicode"
)

// CapitalInfo records where a typed prefix carried upper case runes
type CapitalInfo struct {
	positions []int
	allUpper  bool
}

// ProcessCapitals returns the lowercase form of s and its capitalization, or nil info
// when s has no upper case runes.
func ProcessCapitals(s string) (string, *CapitalInfo) {
	info := &CapitalInfo{}
	letters := 0
	for i, r := range []rune(s) {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			info.positions = append(info.positions, i)
		}
	}
	if len(info.positions) == 0 {
		return strings.ToLower(s), nil
	}
	info.allUpper = letters > 1 && len(info.positions) == letters
	return strings.ToLower(s), info
}

// ApplyCapitals re-applies captured capitalization to a suggested word. An all caps
// prefix of two or more letters upper cases the whole word; otherwise only the rune
// positions that were upper case are.
func ApplyCapitals(word string, info *CapitalInfo) string {
	if info == nil {
		return word
	}
	if info.allUpper {
		return strings.ToUpper(word)
	}

	runes := []rune(word)
	for _, pos := range info.positions {
		if pos < len(runes) {
			runes[pos] = unicode.ToUpper(runes[pos])
		}
	}
	return string(runes)
}
