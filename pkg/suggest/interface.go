// Package suggest is the prediction engine. It ranks next-word and completion
// candidates from a trained model, backing off from longer to shorter contexts and
// blending completion and context probabilities when both are available.
package suggest

// Predictor defines the queries answered by a prediction engine
type Predictor interface {
	// Predict dispatches on the request shape, see ModeOf
	Predict(req Request) []Suggestion

	// PredictNext ranks the tokens most likely to follow context
	PredictNext(context []string, limit int) []Suggestion

	// PredictCompletion ranks the tokens that extend prefix
	PredictCompletion(prefix string, limit int) []Suggestion

	// PredictCombined ranks completions of prefix, re-scored by context
	PredictCombined(context []string, prefix string, limit int) []Suggestion

	// Stats returns statistics about the loaded model and cache
	Stats() map[string]int
}

// Request is one prediction query. Limit <= 0 returns every candidate.
type Request struct {
	Context []string
	Prefix  string
	Limit   int
}

// Suggestion is one ranked candidate. Score is in [0,1].
type Suggestion struct {
	Word      string  `json:"word" msgpack:"w"`
	Score     float64 `json:"score" msgpack:"s"`
	Frequency int     `json:"frequency" msgpack:"f"`
}

// Mode is the prediction algorithm chosen for a request.
type Mode int

const (
	// ModeNext predicts the next token from context alone.
	ModeNext Mode = iota
	// ModeCompletion completes a prefix without context.
	ModeCompletion
	// ModeCombined completes a prefix and re-ranks with context.
	ModeCombined
)

func (m Mode) String() string {
	switch m {
	case ModeNext:
		return "next"
	case ModeCompletion:
		return "completion"
	case ModeCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// ModeOf picks the mode for req: no prefix predicts the next word, a prefix alone is
// completed, a prefix with context is combined.
func ModeOf(req Request) Mode {
	switch {
	case req.Prefix == "":
		return ModeNext
	case len(req.Context) == 0:
		return ModeCompletion
	default:
		return ModeCombined
	}
}
