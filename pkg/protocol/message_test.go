package protocol

import (
	"fmt"
	"reflect"
	"testing"
)

// roundtrip asserts Decode(Encode(m)) reproduces m exactly, which is
// property P1 of spec.md §8.
func roundtrip(t *testing.T, m Message) Message {
	t.Helper()
	payload, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode(%T) error = %v", m, err)
	}
	got, err := Decode(m.Tag(), payload)
	if err != nil {
		t.Fatalf("Decode(%T) error = %v", m, err)
	}
	if !reflect.DeepEqual(m, got) {
		t.Fatalf("roundtrip mismatch: got %#v, want %#v", got, m)
	}
	return got
}

func TestRoundtripAllVariants(t *testing.T) {
	lower, upper := 1.0, 100.0

	variants := []Message{
		NewClientSetup("1.0", []byte{1, 2, 3}, []string{"kyber768", "falcon"}, "none"),
		NewClientAuthentication("alice", "hunter2"),
		NewInsert("widgets", []string{"owner:alice"}, []byte{0xDE, 0xAD}, []string{"by-name"}, []byte{1}),
		NewInsertOpe("widgets", []string{"owner:alice"}, 42.5, []string{"by-price"}),
		NewInsertResponse("01H000"),
		NewQueryMessage(NewSingleRangeQuery("widgets", "by-price", &lower, &upper)),
		NewQueryResponse([][]byte{{1}, {2}}, [][]byte{{9}, {9}}),
		NewSingleValueResponse([]byte{1, 2}, []byte{3, 4}),
		NewCountCollection("widgets"),
		NewCountUsecase("widgets", "by-price"),
		NewCountResponse(7),
		NewUpdate("widgets", "01H000", []byte{0xBE, 0xEF}),
		NewUpdateResponse(UpdateSuccess),
		NewDelete("widgets", "01H000"),
		NewDeleteResult(true),
		NewDeleteForUsecase("widgets", "by-price"),
		NewDrop("widgets"),
		NewDropResult(true),
		NewEndOfCommunication(),
		NewCloseCommunication(),
	}

	for _, m := range variants {
		m := m
		t.Run(fmt.Sprintf("tag=%d", m.Tag()), func(t *testing.T) {
			roundtrip(t, m)
		})
	}
}

func TestDecodeRejectsTagDiscriminatorMismatch(t *testing.T) {
	payload, err := Encode(NewInsertResponse("01H000"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Claim this payload is a DeleteResult (tag 11) when its CBOR
	// discriminator says "insert_response".
	if _, err := Decode(TagDeleteResult, payload); err == nil {
		t.Fatal("Decode() with mismatched tag succeeded, want error")
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	if _, err := Decode(255, []byte{}); err == nil {
		t.Fatal("Decode() with unknown tag succeeded, want error")
	}
}

func TestRequestResponseTagsAreDisjoint(t *testing.T) {
	for tag := byte(0); tag <= TagCountResponse; tag++ {
		if IsRequestTag(tag) && IsResponseTag(tag) {
			t.Fatalf("tag %d classified as both request and response", tag)
		}
	}
}

func TestQueryValidate(t *testing.T) {
	valid := NewCompoundQuery(CompoundAnd,
		NewGetByIDQuery("widgets", "01H000"),
		NewSingleQuery("widgets", "by-price"),
	)
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on well-formed query error = %v", err)
	}

	malformed := Query{Kind: QuerySingle}
	if err := malformed.Validate(); err == nil {
		t.Fatal("Validate() on missing branch succeeded, want error")
	}

	emptyCompound := Query{Kind: QueryCompound, Compound: &CompoundQuery{Kind: CompoundOr}}
	if err := emptyCompound.Validate(); err == nil {
		t.Fatal("Validate() on empty compound succeeded, want error")
	}
}
