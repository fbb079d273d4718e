package domain

import (
	"bytes"
	"encoding/json"
)

// AnswerKind is the JSON kind carried by an Answer.
type AnswerKind int

const (
	AnswerNone AnswerKind = iota
	AnswerBool
	AnswerText
	AnswerOther
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerBool:
		return "boolean"
	case AnswerText:
		return "string"
	case AnswerNone:
		return "null"
	default:
		return "unsupported value"
	}
}

// Answer is a canonical or submitted answer. It keeps the JSON kind so that grading
// can reject a value of the wrong type instead of coercing it.
type Answer struct {
	kind AnswerKind
	b    bool
	s    string
	raw  json.RawMessage
}

func BoolAnswer(v bool) Answer   { return Answer{kind: AnswerBool, b: v} }
func TextAnswer(v string) Answer { return Answer{kind: AnswerText, s: v} }

func (a Answer) Kind() AnswerKind { return a.kind }
func (a Answer) IsZero() bool     { return a.kind == AnswerNone }

func (a Answer) Bool() (bool, bool) { return a.b, a.kind == AnswerBool }

func (a Answer) Text() (string, bool) { return a.s, a.kind == AnswerText }

// Equal is strict: kinds must match and values compare without normalisation.
func (a Answer) Equal(o Answer) bool {
	if a.kind != o.kind {
		return false
	}
	switch a.kind {
	case AnswerBool:
		return a.b == o.b
	case AnswerText:
		return a.s == o.s
	case AnswerOther:
		return bytes.Equal(a.raw, o.raw)
	}
	return true
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AnswerBool:
		return json.Marshal(a.b)
	case AnswerText:
		return json.Marshal(a.s)
	case AnswerOther:
		return a.raw, nil
	}
	return []byte("null"), nil
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*a = Answer{}
	case bool:
		*a = BoolAnswer(t)
	case string:
		*a = TextAnswer(t)
	default:
		*a = Answer{kind: AnswerOther, raw: append(json.RawMessage(nil), bytes.TrimSpace(data)...)}
	}
	return nil
}
