// Package cli handles cmd line input and predictions for debugging and trying out models
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bastiangx/nextword/internal/utils"
	"github.com/bastiangx/nextword/pkg/suggest"
	"github.com/bastiangx/nextword/pkg/tokenize"
	"github.com/charmbracelet/log"
)

// Input is a line of typed text split into what the engine needs.
type Input struct {
	// Context holds the tokens of the current sentence before the word being typed.
	Context []string
	// Prefix is the normalized partial word, empty when the text ends in a space or
	// punctuation.
	Prefix string
	// Raw is the partial word as typed, used to restore its capitalization.
	Raw string
}

// ParseInput splits text the way a keyboard sees it: a trailing word is still being
// typed and gets completed, anything else asks for the next word. Context stops at
// the last sentence terminator.
func ParseInput(text string) Input {
	raw := trailingWord(text)
	tokens := tokenize.Tokenize(text[:len(text)-len(raw)])
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokenize.IsTerminal(tokens[i]) {
			tokens = tokens[i+1:]
			break
		}
	}
	if len(tokens) == 0 {
		tokens = nil
	}
	return Input{Context: tokens, Prefix: tokenize.Normalize(raw), Raw: raw}
}

func trailingWord(text string) string {
	end := len(text)
	start := end
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !tokenize.IsWord(string(r)) {
			break
		}
		start -= size
	}
	return text[start:end]
}

// InputHandler reads lines from stdin and prints predictions for each.
type InputHandler struct {
	predictor    suggest.Predictor
	suggestLimit int
	maxPrefix    int
	requestCount int
	out          io.Writer
}

// NewInputHandler creates a handler asking p for up to limit predictions per line.
func NewInputHandler(p suggest.Predictor, limit, maxPrefix int) *InputHandler {
	return &InputHandler{
		predictor:    p,
		suggestLimit: limit,
		maxPrefix:    maxPrefix,
		out:          os.Stdout,
	}
}

// Start begins the interface loop on stdin.
func (h *InputHandler) Start() error {
	log.Print("nextword REPL")
	log.Print("type some text and press Enter; end with a space to predict the next word (Ctrl+C to exit):")
	return h.Run(os.Stdin)
}

// Run handles every line of r until EOF.
func (h *InputHandler) Run(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		fmt.Fprint(h.out, "> ")
		line, err := reader.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			h.handleInput(line)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Suggest returns the predicted words for text, capitalized like the partial word.
func (h *InputHandler) Suggest(text string) ([]suggest.Suggestion, Input) {
	in := ParseInput(text)
	suggestions := h.predictor.Predict(suggest.Request{
		Context: in.Context,
		Prefix:  in.Prefix,
		Limit:   h.suggestLimit,
	})

	_, info := utils.ProcessCapitals(in.Raw)
	if info == nil && in.Raw == "" && startsSentence(text) {
		_, info = utils.ProcessCapitals("X")
	}
	for i := range suggestions {
		suggestions[i].Word = utils.ApplyCapitals(suggestions[i].Word, info)
	}
	return suggestions, in
}

// startsSentence reports whether the next word begins a sentence.
func startsSentence(text string) bool {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	return tokenize.IsTerminal(string(r))
}

func (h *InputHandler) handleInput(text string) {
	h.requestCount++

	if utf8.RuneCountInString(trailingWord(text)) > h.maxPrefix {
		log.Errorf("Word too long: %s", trailingWord(text))
		return
	}

	start := time.Now()
	suggestions, in := h.Suggest(text)
	elapsed := time.Since(start)
	log.Debugf("Took [ %v ] for context %q prefix %q", elapsed, in.Context, in.Prefix)

	if len(suggestions) == 0 {
		log.Warnf("No predictions for '%s'", text)
		return
	}

	fmt.Fprintf(h.out, "%s predictions:\n", suggest.ModeOf(suggest.Request{Context: in.Context, Prefix: in.Prefix}))
	for i, s := range suggestions {
		clWord := fmt.Sprintf("\033[38;5;75m%s\033[0m", s.Word)
		fmt.Fprintf(h.out, "%2d. %-40s %.4f (freq: %8s)\n", i+1, clWord, s.Score, utils.FormatWithCommas(s.Frequency))
	}
}
