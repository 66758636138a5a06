package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonConfig = jsoniter.ConfigCompatibleWithStandardLibrary

var errInvalidJSON = errors.New("invalid JSON document")

// Marshal encodes v with the standard library's semantics, HTML escaping included.
func Marshal(v interface{}) ([]byte, error) {
	return jsonConfig.Marshal(v)
}

// Unmarshal decodes data into v. Errors are trimmed to the part a publisher can act on.
func Unmarshal(data []byte, v interface{}) error {
	if err := jsonConfig.Unmarshal(data, v); err != nil {
		return errors.New(tryExtractErrorMessage(err))
	}
	return nil
}

// UnmarshalValid checks that data is a complete JSON document before decoding it.
func UnmarshalValid(data []byte, v interface{}) error {
	if !json.Valid(data) {
		return errInvalidJSON
	}
	return Unmarshal(data, v)
}

// IsEmpty reports whether data holds no JSON value at all.
func IsEmpty(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// jsoniter errors carry a trailing excerpt of the document after "error found in".
func tryExtractErrorMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ", error found in #"); i > 0 {
		msg = msg[:i]
	}
	return strings.TrimPrefix(msg, "json: ")
}
