// Package jsonbig implements big-integer-safe JSON encoding for hub exchanges.
// The hub transmits token amounts, nonces and channel identifiers as bare JSON
// numbers that routinely exceed float64 precision, so all numeric protocol
// fields use Int and documents are decoded through Decode/Unmarshal, which
// never pass numbers through float64.
package jsonbig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
)

// Int is a JSON-round-trip-safe arbitrary precision integer. It marshals as a
// bare JSON number and accepts either a number or a quoted decimal string on
// input, so the exact wire digits survive a decode/encode cycle.
type Int struct {
	big.Int
}

// NewInt returns an Int holding x.
func NewInt(x int64) *Int {
	i := &Int{}
	i.SetInt64(x)
	return i
}

// FromBig returns an Int holding a copy of b. A nil b yields zero.
func FromBig(b *big.Int) *Int {
	i := &Int{}
	if b != nil {
		i.Set(b)
	}
	return i
}

// ParseInt parses a decimal string into an Int.
func ParseInt(s string) (*Int, error) {
	i := &Int{}
	if _, ok := i.SetString(s, 10); !ok {
		return nil, fmt.Errorf("jsonbig: invalid integer %q", s)
	}
	return i, nil
}

// Copy returns an independent copy of i. A nil receiver yields nil.
func (i *Int) Copy() *Int {
	if i == nil {
		return nil
	}
	return FromBig(&i.Int)
}

// MarshalJSON encodes the integer as a bare JSON number.
func (i Int) MarshalJSON() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalJSON decodes a JSON number or quoted decimal string.
func (i *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	if _, ok := i.SetString(string(data), 10); !ok {
		return fmt.Errorf("jsonbig: invalid integer %q", string(data))
	}
	return nil
}

// Equal reports whether both integers hold the same value. Two nil pointers
// compare equal.
func (i *Int) Equal(other *Int) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.Cmp(&other.Int) == 0
}

// Decode reads one JSON document from r into v without losing numeric
// precision. Numbers that land in interface{} positions stay json.Number.
func Decode(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// Unmarshal is Decode over a byte slice.
func Unmarshal(data []byte, v interface{}) error {
	return Decode(bytes.NewReader(data), v)
}

// Marshal encodes v with the standard encoder; Int fields emit bare numbers.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
