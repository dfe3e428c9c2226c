package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one violated rule on one payload field. Field is the
// JSON name; it is empty for errors about the body as a whole.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError enumerates every rule a payload violates.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Field == "" {
			msgs = append(msgs, fe.Message)
			continue
		}
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, rule, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Rule: rule, Message: msg})
}

func (e *ValidationError) has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// feedbackFields maps JSON keys to FeedbackInput field names, in the order
// errors are reported.
var feedbackFields = []struct {
	key    string
	goName string
}{
	{"name", "Name"},
	{"email", "Email"},
	{"rating", "Rating"},
	{"comment", "Comment"},
}

var feedbackMessages = map[string]map[string]string{
	"name": {
		"min": "Name is required",
		"max": "Name must be less than 100 characters",
	},
	"email": {
		"email": "Please enter a valid email",
	},
	"rating": {
		"min": "Please select a rating",
		"max": "Rating must be between 1-5",
	},
	"comment": {
		"min": "Please enter your feedback",
		"max": "Feedback must be less than 500 characters",
	},
}

var typeMessages = map[string]string{
	"name":    "Name must be a string",
	"email":   "Email must be a string",
	"rating":  "Rating must be an integer",
	"comment": "Feedback must be a string",
}

func messageFor(field, rule string) string {
	if m, ok := feedbackMessages[field][rule]; ok {
		return m
	}
	return "Invalid value for " + field
}

// DecodeFeedbackInput parses and validates a creation payload. Unknown keys,
// including server-assigned ones, are ignored.
func DecodeFeedbackInput(data []byte) (FeedbackInput, error) {
	in, _, verr := decodeFeedback(data)
	if verr == nil {
		return FeedbackInput{}, malformedBody()
	}

	collect(verr, validate.Struct(in))
	if len(verr.Errors) > 0 {
		return FeedbackInput{}, verr
	}
	return in, nil
}

// DecodeFeedbackPatch parses and validates an update payload. Only the keys
// present in the body are validated and only they end up in the patch.
func DecodeFeedbackPatch(data []byte) (FeedbackPatch, error) {
	in, present, verr := decodeFeedback(data)
	if verr == nil {
		return FeedbackPatch{}, malformedBody()
	}

	if len(present) > 0 {
		collect(verr, validate.StructPartial(in, present...))
	}
	if len(verr.Errors) > 0 {
		return FeedbackPatch{}, verr
	}

	var p FeedbackPatch
	for _, name := range present {
		switch name {
		case "Name":
			p.Name = &in.Name
		case "Email":
			p.Email = &in.Email
		case "Rating":
			p.Rating = &in.Rating
		case "Comment":
			p.Comment = &in.Comment
		}
	}
	return p, nil
}

// decodeFeedback decodes each known key on its own so every type mismatch is
// reported. A nil *ValidationError means the body is not a JSON object.
func decodeFeedback(data []byte) (FeedbackInput, []string, *ValidationError) {
	var in FeedbackInput
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return in, nil, nil
	}

	targets := map[string]any{
		"name":    &in.Name,
		"email":   &in.Email,
		"rating":  (*wholeNumber)(&in.Rating),
		"comment": &in.Comment,
	}

	verr := &ValidationError{}
	var present []string
	for _, f := range feedbackFields {
		msg, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, targets[f.key]); err != nil {
			verr.add(f.key, "type", typeMessages[f.key])
			continue
		}
		present = append(present, f.goName)
	}
	return in, present, verr
}

// wholeNumber accepts any JSON number with an integral value, so 5 and 5.0
// decode alike while 4.5 is a type error.
type wholeNumber int

func (n *wholeNumber) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<31 {
		return errors.New("not a whole number")
	}
	*n = wholeNumber(f)
	return nil
}

// collect appends validator failures to verr, skipping fields that already
// failed to decode.
func collect(verr *ValidationError, err error) {
	if err == nil {
		return
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		verr.add("", "invalid", err.Error())
		return
	}
	for _, fe := range ves {
		field := fe.Field()
		if verr.has(field) {
			continue
		}
		verr.add(field, fe.Tag(), messageFor(field, fe.Tag()))
	}
}

func malformedBody() *ValidationError {
	return &ValidationError{Errors: []FieldError{{Rule: "json", Message: "Request body must be a JSON object"}}}
}

// Validate checks a user creation payload.
func (in UserInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	verr := &ValidationError{}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	for _, fe := range ves {
		verr.add(fe.Field(), fe.Tag(), fe.Field()+" failed on the '"+fe.Tag()+"' rule")
	}
	return verr
}
