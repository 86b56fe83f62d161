package post

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidID is returned by ParseID for tokens that are not finite numbers.
var ErrInvalidID = errors.New("identifier must be a number")

// ID is a stored post_id. Only numeric ids (or strings holding a finite
// number) are valid; anything else never matches a lookup and is written
// back exactly as it was read.
type ID struct {
	value float64
	valid bool
	raw   json.RawMessage
}

// NewID returns a valid numeric id.
func NewID(v float64) ID {
	return ID{value: v, valid: true}
}

// ParseID parses a request token such as a path segment or query value.
// Decimal and exponent forms are accepted, as are unsigned 0x, 0o and 0b
// integer literals.
func ParseID(token string) (float64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrInvalidID
	}
	if v, ok := parsePrefixedInt(token); ok {
		return v, nil
	}
	if strings.ContainsAny(token, "_xXpP") {
		return 0, ErrInvalidID
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidID
	}
	return v, nil
}

// parsePrefixedInt reads 0x, 0o and 0b literals of any length.
func parsePrefixedInt(token string) (float64, bool) {
	if len(token) < 3 || token[0] != '0' {
		return 0, false
	}
	var base float64
	switch token[1] {
	case 'x', 'X':
		base = 16
	case 'o', 'O':
		base = 8
	case 'b', 'B':
		base = 2
	default:
		return 0, false
	}

	var v float64
	for _, c := range token[2:] {
		var d float64
		switch {
		case c >= '0' && c <= '9':
			d = float64(c - '0')
		case c >= 'a' && c <= 'f':
			d = float64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = float64(c-'A') + 10
		default:
			return 0, false
		}
		if d >= base {
			return 0, false
		}
		v = v*base + d
	}
	if math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatID renders an id the way it appears in JSON and in URLs.
func FormatID(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Value returns the numeric id and whether it is valid.
func (id ID) Value() (float64, bool) {
	return id.value, id.valid
}

// Matches reports whether the id is valid and equal to v.
func (id ID) Matches(v float64) bool {
	return id.valid && id.value == v
}

// Number returns the id for max computations; invalid ids count as 0.
func (id ID) Number() float64 {
	if !id.valid {
		return 0
	}
	return id.value
}

func (id ID) String() string {
	if id.valid {
		return FormatID(id.value)
	}
	return string(id.raw)
}

func (id ID) present() bool {
	return id.valid || id.raw != nil
}

// MarshalJSON emits the preserved encoding when the id was not a plain number.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.raw != nil {
		return id.raw, nil
	}
	if !id.valid {
		return []byte("null"), nil
	}
	return []byte(FormatID(id.value)), nil
}

// UnmarshalJSON never fails; see decodeID.
func (id *ID) UnmarshalJSON(data []byte) error {
	*id = decodeID(data)
	return nil
}

func decodeID(raw json.RawMessage) ID {
	kept := append(json.RawMessage(nil), raw...)
	if string(bytes.TrimSpace(raw)) == "null" {
		return ID{raw: kept}
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return NewID(n)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := ParseID(s); err == nil {
			return ID{value: v, valid: true, raw: kept}
		}
	}
	return ID{raw: kept}
}
