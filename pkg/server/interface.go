/*
Package server implements msgpack IPC for next-word prediction services.

The server reads a stream of msgpack values from stdin and answers each with one
msgpack value on stdout. The same messages are accepted as binary frames on a
websocket at /ws when an HTTP listener is configured.

# IPC

Each message is a map with an "id" field. Messages carrying an "action" key are model
operations; everything else is a prediction request.

Prediction requests carry the preceding words, the partial word being typed and a limit:

	{"id": "req_001", "ctx": ["good", "morning"], "p": "sun", "l": 5}

The server responds with ranked suggestions, the mode that produced them and the time
taken in microseconds:

	{"id": "req_001", "s": [{"w": "sunshine", "s": 0.85, "f": 12}], "c": 1, "m": "combined", "t": 41}

Leaving "p" empty predicts the next word; leaving "ctx" empty completes the prefix alone.

Model operations report statistics or reload the model from its store:

	{"id": "m_001", "action": "info"}
	{"id": "m_002", "action": "reload"}

Failures are reported as {"id": ..., "e": "message", "c": code} with HTTP-like codes.
*/
package server

import "github.com/bastiangx/nextword/pkg/suggest"

// Model actions
const (
	ActionInfo   = "info"
	ActionReload = "reload"
)

// PredictionRequest - prediction request
type PredictionRequest struct {
	ID      string   `msgpack:"id"`
	Context []string `msgpack:"ctx,omitempty"`
	Prefix  string   `msgpack:"p"`
	Limit   int      `msgpack:"l,omitempty"`
}

// PredictionResponse - prediction response
type PredictionResponse struct {
	ID          string               `msgpack:"id"`
	Suggestions []suggest.Suggestion `msgpack:"s"`
	Count       int                  `msgpack:"c"`
	Mode        string               `msgpack:"m"`
	TimeTaken   int64                `msgpack:"t"`
}

// ModelRequest - model management request
type ModelRequest struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"action"`
}

// ModelResponse - model operation response
type ModelResponse struct {
	ID     string         `msgpack:"id"`
	Status string         `msgpack:"status"`
	Error  string         `msgpack:"error,omitempty"`
	Stats  map[string]int `msgpack:"stats,omitempty"`
}

// PredictionError holds basic error information for failed requests
type PredictionError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}

// envelope is decoded first to route a message.
type envelope struct {
	ID      string   `msgpack:"id"`
	Action  string   `msgpack:"action"`
	Context []string `msgpack:"ctx"`
	Prefix  string   `msgpack:"p"`
	Limit   int      `msgpack:"l"`
}
