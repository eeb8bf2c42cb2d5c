package proto

import (
	"github.com/fxamacker/cbor/v2"
)

// Message bodies are CBOR. Encoding uses Core Deterministic Encoding so the
// same message always produces the same bytes; decoding ignores unknown
// fields so newer clients can talk to older daemons.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("proto: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: 65536,
		MaxMapPairs:      65536,
		MaxNestedLevels:  16,
	}.DecMode()
	if err != nil {
		panic("proto: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes a message body.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes a message body into v. Any failure is reported as
// ErrMalformedBody so callers can tell it apart from framing errors.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return &BodyError{Err: err}
	}
	return nil
}
