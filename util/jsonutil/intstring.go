package jsonutil

import (
	"errors"
	"strconv"
)

// IntString accepts either a JSON string or a JSON number and keeps its text.
// A JSON null leaves it empty.
type IntString string

func (st *IntString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty IntString value")
	}

	switch {
	case string(b) == "null":
		*st = ""
		return nil
	case b[0] == '"':
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*st = IntString(s)
		return nil
	default:
		if _, err := strconv.ParseFloat(string(b), 64); err != nil {
			return errors.New("value must be a string or a number")
		}
		*st = IntString(b)
		return nil
	}
}

// Int64 parses the held text as a base 10 integer.
func (st IntString) Int64() (int64, error) {
	return strconv.ParseInt(string(st), 10, 64)
}
