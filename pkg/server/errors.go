package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cuemby/docstore/pkg/protocol"
)

func errUnhandledVariant(msg protocol.Message) error {
	return fmt.Errorf("server: no handler for message type %T", msg)
}

// encodeOpeValue CBOR-encodes an InsertOpe value as the plain float it
// is (see DESIGN.md for why this is not pkg/ope's big-integer encoding):
// spec.md §4.6's range predicate decodes stored bytes as a CBOR float
// directly, so that is what InsertOpe must store.
func encodeOpeValue(v float64) ([]byte, error) {
	raw, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("server: failed to encode ope value: %w", err)
	}
	return raw, nil
}
