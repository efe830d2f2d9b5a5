package contracts

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scalar is a loosely typed value as it appears in plans and extracted
// reports: a number, a numeric string such as "1,250", free text, or null.
type Scalar struct {
	text string
	num  *float64
}

// Num wraps a number
func Num(f float64) Scalar {
	return Scalar{num: &f, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Text wraps a string
func Text(s string) Scalar {
	return Scalar{text: strings.TrimSpace(s)}
}

// IsNull reports whether the value is absent or blank
func (s Scalar) IsNull() bool {
	return s.num == nil && s.text == ""
}

// String returns the trimmed textual form
func (s Scalar) String() string {
	return s.text
}

// Number coerces the value with ParseNumber
func (s Scalar) Number() *float64 {
	if s.num != nil {
		if math.IsNaN(*s.num) || math.IsInf(*s.num, 0) {
			return nil
		}
		v := *s.num
		return &v
	}
	return ParseNumber(s.text)
}

// Truthy is true for a number > 0 or a non-empty trimmed string
func (s Scalar) Truthy() bool {
	if s.num != nil {
		return *s.num > 0
	}
	return s.text != ""
}

// decimalPattern accepts plain decimal notation only. Go literal forms that
// strconv also takes (hex floats, underscores, Inf) are rejected.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber strips thousands separators and surrounding space, then parses.
// Empty or non-decimal input yields nil, never 0, so "absent" stays
// distinguishable from "reported as zero".
func ParseNumber(raw string) *float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if !decimalPattern.MatchString(s) {
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// MarshalJSON emits a number when numeric input was given, else a string or null
func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.num != nil {
		return json.Marshal(*s.num)
	}
	if s.text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s.text)
}

// UnmarshalJSON accepts numbers, strings, booleans and null
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = Scalar{}
	case data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Text(str)
	case bytes.Equal(data, []byte("true")):
		*s = Num(1)
	case bytes.Equal(data, []byte("false")):
		*s = Num(0)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*s = Num(f)
	}
	return nil
}

// UnmarshalYAML accepts scalar nodes; quoted numbers stay text
func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return &yaml.TypeError{Errors: []string{"target value must be a scalar"}}
	}
	switch node.ShortTag() {
	case "!!null":
		*s = Scalar{}
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*s = Num(f)
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			*s = Num(1)
		} else {
			*s = Num(0)
		}
	default:
		*s = Text(node.Value)
	}
	return nil
}

// MarshalYAML mirrors MarshalJSON
func (s Scalar) MarshalYAML() (interface{}, error) {
	if s.num != nil {
		return *s.num, nil
	}
	if s.text == "" {
		return nil, nil
	}
	return s.text, nil
}
