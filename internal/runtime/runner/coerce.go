package runner

import (
	"fmt"

	"github.com/GriffinCanCode/modhost/internal/runtime/sandbox"
)

// Shape names the structure an entry point expects
type Shape string

const (
	ShapeMapping            Shape = "mapping"
	ShapeSequenceOfStrings  Shape = "sequence of strings"
	ShapeSequenceOfMappings Shape = "sequence of mappings"
)

// ShapeError reports a resolved value that does not coerce
type ShapeError struct {
	Want Shape
	Got  sandbox.Kind
	At   int // offending sequence index, -1 for the value itself
}

func (e *ShapeError) Error() string {
	if e.At >= 0 {
		return fmt.Sprintf("expected %s, item %d is %s", e.Want, e.At, e.Got)
	}
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

// Is lets errors.Is(err, sandbox.ErrInvalidReturnShape) match.
func (e *ShapeError) Is(target error) bool {
	return target == sandbox.ErrInvalidReturnShape
}

// AsMapping coerces v into a mapping of plain Go values
func AsMapping(v sandbox.Value) (map[string]interface{}, error) {
	m, ok := v.Map()
	if !ok {
		return nil, &ShapeError{Want: ShapeMapping, Got: v.Kind(), At: -1}
	}
	out := make(map[string]interface{}, len(m))
	for k, item := range m {
		out[k] = item.Interface()
	}
	return out, nil
}

// AsSequenceOfStrings coerces v into strings. Numbers and booleans are
// rendered as text; nulls and containers are rejected.
func AsSequenceOfStrings(v sandbox.Value) ([]string, error) {
	items, ok := v.Seq()
	if !ok {
		return nil, &ShapeError{Want: ShapeSequenceOfStrings, Got: v.Kind(), At: -1}
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.Text()
		if !ok {
			return nil, &ShapeError{Want: ShapeSequenceOfStrings, Got: item.Kind(), At: i}
		}
		out[i] = s
	}
	return out, nil
}

// AsSequenceOfMappings coerces v into a list of mappings
func AsSequenceOfMappings(v sandbox.Value) ([]map[string]interface{}, error) {
	items, ok := v.Seq()
	if !ok {
		return nil, &ShapeError{Want: ShapeSequenceOfMappings, Got: v.Kind(), At: -1}
	}
	out := make([]map[string]interface{}, len(items))
	for i, item := range items {
		m, err := AsMapping(item)
		if err != nil {
			return nil, &ShapeError{Want: ShapeSequenceOfMappings, Got: item.Kind(), At: i}
		}
		out[i] = m
	}
	return out, nil
}
