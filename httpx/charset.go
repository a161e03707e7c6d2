package httpx

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// encoderFor returns the encoder for charset, or nil for UTF-8.
func encoderFor(charset string) (*encoding.Encoder, error) {
	if charset == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("httpx: charset %q: %w", charset, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return nil, nil
	}
	return enc.NewEncoder(), nil
}
