package wire

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode produces deterministic (canonical, sorted-map-key) CBOR output so
// that two encodes of an equal value always produce byte-identical frames
// (exercised by the round-trip property test in protocol_test.go).
var encMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err) // static options, can only fail at development time
	}
	return mode
}()

var decMode = func() cbor.DecMode {
	opts := cbor.DecOptions{}
	mode, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// encode marshals v into a self-describing CBOR byte string (spec §4.5).
func encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return encMode.Marshal(v)
}

// decode unmarshals CBOR bytes into v.
func decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return decMode.Unmarshal(data, v)
}
