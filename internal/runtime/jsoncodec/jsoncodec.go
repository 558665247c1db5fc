// Package jsoncodec is the single JSON entry point of the runtime. It uses
// sonic's standard-compatible configuration, which sorts map keys, so encoded
// envelopes are deterministic.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Valid reports whether data is a single well-formed JSON document.
func Valid(data []byte) bool {
	return defaultConfig.Valid(data)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}
