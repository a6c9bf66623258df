package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrParse is matched by every decoder failure.
var ErrParse = errors.New("parse inbound message")

// DecodeError reports a payload that is not valid JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) match.
func (e *DecodeError) Is(target error) bool { return target == ErrParse }

// UnexpectedShapeError reports valid JSON that is neither a status notice nor
// a file event.
type UnexpectedShapeError struct {
	Reason string
	Raw    string
}

func (e *UnexpectedShapeError) Error() string {
	return fmt.Sprintf("unexpected message shape: %s", e.Reason)
}

// Is lets errors.Is(err, ErrParse) match.
func (e *UnexpectedShapeError) Is(target error) bool { return target == ErrParse }

const maxRawInError = 256

type wireMessage struct {
	Message json.RawMessage `json:"message"`
	Event   json.RawMessage `json:"event"`
	Path    json.RawMessage `json:"path"`
	Content json.RawMessage `json:"content"`
}

// Decode parses a raw inbound payload. A non-empty "message" string makes a
// status notice; otherwise "event", "path" and "content" must all be strings,
// with event and path non-empty. Everything else is an error matching
// ErrParse.
func Decode(raw []byte) (Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if !json.Valid(trimmed) {
		var anyValue any
		err := json.Unmarshal(trimmed, &anyValue)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return Message{}, &DecodeError{Err: err}
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Message{}, shapeError("payload is not an object", trimmed)
	}

	var wire wireMessage
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Message{}, &DecodeError{Err: err}
	}

	if msg, ok := stringField(wire.Message); ok && msg != "" {
		return Message{Notice: &StatusNotice{Message: msg}}, nil
	}

	kind, ok := stringField(wire.Event)
	if !ok || kind == "" {
		return Message{}, shapeError(`missing "event"`, trimmed)
	}
	if wire.Content == nil {
		return Message{}, shapeError(`missing "content"`, trimmed)
	}
	content, ok := stringField(wire.Content)
	if !ok {
		return Message{}, shapeError(`"content" is not a string`, trimmed)
	}
	path, ok := stringField(wire.Path)
	if !ok || path == "" {
		return Message{}, shapeError(`missing "path"`, trimmed)
	}

	return Message{Event: &FileEvent{Kind: kind, Path: path, Content: content}}, nil
}

// stringField decodes a raw field as a JSON string. Absent and null fields
// report false.
func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func shapeError(reason string, raw []byte) *UnexpectedShapeError {
	text := string(raw)
	if len(text) > maxRawInError {
		text = text[:maxRawInError] + "…"
	}
	return &UnexpectedShapeError{Reason: reason, Raw: text}
}
