package tumblr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mikequentel/tumblrclient/internal/model"
)

// Document is a parsed JSON object. Numbers are json.Number.
type Document map[string]any

// Response returns the "response" member of d when it is an object.
func (d Document) Response() Document {
	if r, ok := d["response"].(map[string]any); ok {
		return r
	}
	return nil
}

// ParseError is returned when a response body is not the JSON expected.
type ParseError struct {
	Body []byte
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("invalid response: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes raw as a single JSON object.
func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := decode(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &ParseError{Body: raw, Err: errors.New("response is not a JSON object")}
	}
	return doc, nil
}

func decodeEnvelope[T any](raw []byte) (model.Envelope[T], error) {
	var env model.Envelope[T]
	err := decode(raw, &env)
	return env, err
}

func decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &ParseError{Body: raw, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &ParseError{Body: raw, Err: errors.New("trailing data after JSON value")}
	}
	return nil
}
