package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind is the structural kind of a guest value
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a guest value detached from its runtime. It is safe to use from
// any goroutine once delivered.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	seq  []Value
	m    map[string]Value
}

// Null returns the null value
func Null() Value {
	return Value{kind: KindNull}
}

// String returns a string value
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Number returns a numeric value
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// Bool returns a boolean value
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Sequence returns a sequence value
func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, seq: items}
}

// Mapping returns a mapping value
func Mapping(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMapping, m: m}
}

const (
	// MaxDepth bounds sequence and mapping nesting in converted values.
	MaxDepth = 64
	// MaxNodes bounds the total number of converted values.
	MaxNodes = 100000
)

// Convert turns an exported runtime value into a Value. Self-referencing
// structures and values past MaxDepth or MaxNodes fail with
// ErrInvalidReturnShape. Unknown types fall back to their string form.
func Convert(x interface{}) (Value, error) {
	c := converter{budget: MaxNodes}
	return c.convert(x, 0)
}

// FromGo is Convert for trusted host data; an unconvertible value is Null.
func FromGo(x interface{}) Value {
	v, err := Convert(x)
	if err != nil {
		return Null()
	}
	return v
}

type converter struct {
	budget int
}

func (c *converter) convert(x interface{}, depth int) (Value, error) {
	c.budget--
	if c.budget < 0 {
		return Null(), fmt.Errorf("%w: value has more than %d elements", ErrInvalidReturnShape, MaxNodes)
	}

	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case int:
		return Number(float64(v)), nil
	case int32:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case uint32:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case float32:
		return Number(float64(v)), nil
	case float64:
		return Number(v), nil
	case []string:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = String(item)
		}
		return Sequence(items...), nil
	case map[string]string:
		m := make(map[string]Value, len(v))
		for k, item := range v {
			m[k] = String(item)
		}
		return Mapping(m), nil
	case []interface{}:
		if depth >= MaxDepth {
			return Null(), errTooDeep()
		}
		items := make([]Value, len(v))
		for i, item := range v {
			converted, err := c.convert(item, depth+1)
			if err != nil {
				return Null(), err
			}
			items[i] = converted
		}
		return Sequence(items...), nil
	case []map[string]interface{}:
		if depth >= MaxDepth {
			return Null(), errTooDeep()
		}
		items := make([]Value, len(v))
		for i, item := range v {
			converted, err := c.convert(item, depth+1)
			if err != nil {
				return Null(), err
			}
			items[i] = converted
		}
		return Sequence(items...), nil
	case map[string]interface{}:
		if depth >= MaxDepth {
			return Null(), errTooDeep()
		}
		m := make(map[string]Value, len(v))
		for k, item := range v {
			converted, err := c.convert(item, depth+1)
			if err != nil {
				return Null(), err
			}
			m[k] = converted
		}
		return Mapping(m), nil
	case fmt.Stringer:
		return String(v.String()), nil
	default:
		return String(fmt.Sprint(v)), nil
	}
}

// cyclic values surface here too: a cycle never bottoms out
func errTooDeep() error {
	return fmt.Errorf("%w: value nests deeper than %d levels or refers to itself", ErrInvalidReturnShape, MaxDepth)
}

// Kind returns the structural kind
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload and whether v is a bool
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Number returns the numeric payload and whether v is a number
func (v Value) Number() (float64, bool) { return v.n, v.kind == KindNumber }

// Str returns the string payload and whether v is a string
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Seq returns the items and whether v is a sequence
func (v Value) Seq() ([]Value, bool) { return v.seq, v.kind == KindSequence }

// Map returns the entries and whether v is a mapping
func (v Value) Map() (map[string]Value, bool) { return v.m, v.kind == KindMapping }

// Len returns the item count of a sequence or mapping, else 0
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.m)
	}
	return 0
}

// Interface converts v back into plain Go data: nil, bool, float64,
// string, []interface{} or map[string]interface{}
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindSequence:
		out := make([]interface{}, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Interface()
		}
		return out
	case KindMapping:
		out := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Text renders scalars as text. Whole numbers print without a fraction.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindNumber:
		if v.n == math.Trunc(v.n) && math.Abs(v.n) < 1e15 {
			return strconv.FormatInt(int64(v.n), 10), true
		}
		return strconv.FormatFloat(v.n, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	}
	return "", false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindSequence:
		return fmt.Sprintf("sequence[%d]", len(v.seq))
	case KindMapping:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("mapping%v", keys)
	}
	s, _ := v.Text()
	return s
}
