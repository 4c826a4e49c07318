// Package codec converts document bytes into the text-safe form carried by
// inference requests.
package codec

import (
	"encoding/base64"
	"fmt"
)

// Encode returns the standard padded base64 form of data. It is total and
// deterministic; a nil or empty slice encodes to "".
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return data, nil
}

// EncodedLen reports the length of Encode's output for n input bytes.
func EncodedLen(n int) int {
	return base64.StdEncoding.EncodedLen(n)
}
