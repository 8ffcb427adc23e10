// Package tokenize splits raw text into the lower-cased word and punctuation tokens
// the language model is trained on, grouped into sentences.
package tokenize

import (
	"bufio"
	"io"
	"iter"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFC composition and Unicode lower-casing.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// Tokenize returns the tokens of text. A token is a maximal run of letters, digits,
// combining marks and underscores, or a single punctuation or symbol rune.
// Whitespace and control characters separate tokens and are dropped.
func Tokenize(text string) []string {
	text = Normalize(text)

	var tokens []string
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, text[start:i])
			start = -1
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		tokens = append(tokens, string(r))
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// Words is Tokenize restricted to word tokens.
func Words(text string) []string {
	tokens := Tokenize(text)
	words := tokens[:0]
	for _, tok := range tokens {
		if IsWord(tok) {
			words = append(words, tok)
		}
	}
	return words
}

// IsWord reports whether tok starts with a word rune.
func IsWord(tok string) bool {
	for _, r := range tok {
		return isWordRune(r)
	}
	return false
}

// IsTerminal reports whether tok closes a sentence.
func IsTerminal(tok string) bool {
	switch tok {
	case ".", "!", "?", "…":
		return true
	}
	return false
}

// Sentences tokenizes text and splits the tokens into sentences. A sentence ends after
// a terminal punctuation token or at a paragraph break (a blank line). Terminal
// punctuation stays attached to the sentence it closes. Empty sentences are omitted.
func Sentences(text string) [][]string {
	var out [][]string
	for _, para := range paragraphs(text) {
		out = appendSentences(out, Tokenize(para))
	}
	return out
}

// Stream reads r paragraph by paragraph and yields its sentences without holding the
// whole input in memory. A read error is yielded once as the final element.
func Stream(r io.Reader) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		var para strings.Builder
		flush := func() bool {
			if para.Len() == 0 {
				return true
			}
			sentences := appendSentences(nil, Tokenize(para.String()))
			para.Reset()
			for _, s := range sentences {
				if !yield(s, nil) {
					return false
				}
			}
			return true
		}

		for sc.Scan() {
			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				if !flush() {
					return
				}
				continue
			}
			para.WriteString(line)
			para.WriteByte('\n')
		}
		if !flush() {
			return
		}
		if err := sc.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func appendSentences(out [][]string, tokens []string) [][]string {
	start := 0
	for i, tok := range tokens {
		if IsTerminal(tok) {
			out = append(out, tokens[start:i+1:i+1])
			start = i + 1
		}
	}
	if start < len(tokens) {
		out = append(out, tokens[start:len(tokens):len(tokens)])
	}
	return out
}

func paragraphs(text string) []string {
	var (
		out  []string
		cur  strings.Builder
		rest = text
	)
	for rest != "" {
		line, tail, _ := strings.Cut(rest, "\n")
		rest = tail
		if strings.TrimSpace(line) == "" {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}
