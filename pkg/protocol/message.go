// Package protocol implements the message algebra (C2): a tagged union
// of every request/response variant the wire protocol carries, with a
// fixed tag↔variant table and CBOR round-trip encode/decode.
package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Canonical tag table (spec.md §6). InsertOpe and CountResponse are not
// part of the dense 0–16 table the distilled spec documents; both are
// assigned tags in the extended range per the decisions recorded in
// DESIGN.md.
const (
	TagClientSetup          byte = 0
	TagClientAuthentication byte = 1
	TagInsert               byte = 2
	TagInsertResponse       byte = 3
	TagQuery                byte = 4
	TagQueryResponse        byte = 5
	TagSingleValueResponse  byte = 6
	TagCount                byte = 7
	TagUpdate               byte = 8
	TagUpdateResponse       byte = 9
	TagDelete               byte = 10
	TagDeleteResult         byte = 11
	TagDeleteForUsecase     byte = 12
	TagDrop                 byte = 13
	TagDropResult           byte = 14
	TagEndOfCommunication   byte = 15
	TagCloseCommunication   byte = 16
	TagInsertOpe            byte = 17
	TagCountResponse        byte = 18
)

// variantNames is the CBOR-level discriminator. Each message struct
// carries a Type field matching its entry here; Decode checks the tag
// byte and the CBOR discriminator agree (spec.md §4.2) before trusting
// the payload.
var variantNames = map[byte]string{
	TagClientSetup:          "client_setup",
	TagClientAuthentication: "client_authentication",
	TagInsert:               "insert",
	TagInsertResponse:       "insert_response",
	TagQuery:                "query",
	TagQueryResponse:        "query_response",
	TagSingleValueResponse:  "single_value_response",
	TagCount:                "count",
	TagUpdate:               "update",
	TagUpdateResponse:       "update_response",
	TagDelete:               "delete",
	TagDeleteResult:         "delete_result",
	TagDeleteForUsecase:     "delete_for_usecase",
	TagDrop:                 "drop",
	TagDropResult:           "drop_result",
	TagEndOfCommunication:   "end_of_communication",
	TagCloseCommunication:   "close_communication",
	TagInsertOpe:            "insert_ope",
	TagCountResponse:        "count_response",
}

// requestTags is the set of variants a server may legally receive from a
// client. Response variants are disjoint from this set (spec.md §4.2).
var requestTags = map[byte]bool{
	TagClientSetup:          true,
	TagClientAuthentication: true,
	TagInsert:               true,
	TagInsertOpe:            true,
	TagQuery:                true,
	TagCount:                true,
	TagUpdate:               true,
	TagDelete:               true,
	TagDeleteForUsecase:     true,
	TagDrop:                 true,
	TagEndOfCommunication:   true,
}

// IsRequestTag reports whether tag names a client→server request variant.
func IsRequestTag(tag byte) bool { return requestTags[tag] }

// IsResponseTag reports whether tag names a server→client response
// variant (including the internal CloseCommunication sentinel).
func IsResponseTag(tag byte) bool {
	_, known := variantNames[tag]
	return known && !requestTags[tag]
}

// Message is implemented by every request/response variant.
type Message interface {
	Tag() byte
}

// ClientSetup is the first message on a new connection (NEW→SETUP).
type ClientSetup struct {
	Type            string   `cbor:"type"`
	ProtocolVersion string   `cbor:"protocol_version"`
	ClientPublicKey []byte   `cbor:"client_public_key"`
	CipherSuites    []string `cbor:"cipher_suites"`
	Compression     string   `cbor:"compression"`
}

func (ClientSetup) Tag() byte { return TagClientSetup }

// NewClientSetup builds a ClientSetup with the discriminator populated.
func NewClientSetup(protocolVersion string, clientPublicKey []byte, cipherSuites []string, compression string) ClientSetup {
	return ClientSetup{
		Type:            variantNames[TagClientSetup],
		ProtocolVersion: protocolVersion,
		ClientPublicKey: clientPublicKey,
		CipherSuites:    cipherSuites,
		Compression:     compression,
	}
}

// ClientAuthentication moves a connection SETUP→READY. Credentials are
// accepted but never validated (spec.md §9, Open Question 3): this is an
// unimplemented extension point, not a faithful auth mechanism.
type ClientAuthentication struct {
	Type     string `cbor:"type"`
	Username string `cbor:"username"`
	Password string `cbor:"password"`
}

func (ClientAuthentication) Tag() byte { return TagClientAuthentication }

func NewClientAuthentication(username, password string) ClientAuthentication {
	return ClientAuthentication{
		Type:     variantNames[TagClientAuthentication],
		Username: username,
		Password: password,
	}
}

// Insert carries an opaque, client-encrypted row (spec.md §3).
type Insert struct {
	Type       string   `cbor:"type"`
	Collection string   `cbor:"collection"`
	ACL        []string `cbor:"acl"`
	Data       []byte   `cbor:"data"`
	Usecases   []string `cbor:"usecases"`
	Nonce      []byte   `cbor:"nonce,omitempty"`
}

func (Insert) Tag() byte { return TagInsert }

func NewInsert(collection string, acl []string, data []byte, usecases []string, nonce []byte) Insert {
	return Insert{
		Type:       variantNames[TagInsert],
		Collection: collection,
		ACL:        acl,
		Data:       data,
		Usecases:   usecases,
		Nonce:      nonce,
	}
}

// InsertOpe carries a row whose value is a range-queryable real number
// rather than opaque bytes (spec.md §4.6's OPE predicate path operates
// on this encoding — see DESIGN.md for why the stored value is the plain
// CBOR float rather than pkg/ope's big-integer encoding).
type InsertOpe struct {
	Type       string   `cbor:"type"`
	Collection string   `cbor:"collection"`
	ACL        []string `cbor:"acl"`
	Value      float64  `cbor:"value"`
	Usecases   []string `cbor:"usecases"`
}

func (InsertOpe) Tag() byte { return TagInsertOpe }

func NewInsertOpe(collection string, acl []string, value float64, usecases []string) InsertOpe {
	return InsertOpe{
		Type:       variantNames[TagInsertOpe],
		Collection: collection,
		ACL:        acl,
		Value:      value,
		Usecases:   usecases,
	}
}

// InsertResponse is the reply to Insert/InsertOpe.
type InsertResponse struct {
	Type       string `cbor:"type"`
	InsertedID string `cbor:"inserted_id"`
}

func (InsertResponse) Tag() byte { return TagInsertResponse }

func NewInsertResponse(id string) InsertResponse {
	return InsertResponse{Type: variantNames[TagInsertResponse], InsertedID: id}
}

// QueryMessage carries the recursive query algebra (see query.go).
type QueryMessage struct {
	Type  string `cbor:"type"`
	Query Query  `cbor:"query"`
}

func (QueryMessage) Tag() byte { return TagQuery }

func NewQueryMessage(q Query) QueryMessage {
	return QueryMessage{Type: variantNames[TagQuery], Query: q}
}

// QueryResponse carries batch results.
type QueryResponse struct {
	Type   string   `cbor:"type"`
	Data   [][]byte `cbor:"data"`
	Nonces [][]byte `cbor:"nonces,omitempty"`
}

func (QueryResponse) Tag() byte { return TagQueryResponse }

func NewQueryResponse(data [][]byte, nonces [][]byte) QueryResponse {
	return QueryResponse{Type: variantNames[TagQueryResponse], Data: data, Nonces: nonces}
}

// SingleValueResponse carries the reply to GetById.
type SingleValueResponse struct {
	Type  string `cbor:"type"`
	Data  []byte `cbor:"data,omitempty"`
	Nonce []byte `cbor:"nonce,omitempty"`
}

func (SingleValueResponse) Tag() byte { return TagSingleValueResponse }

func NewSingleValueResponse(data, nonce []byte) SingleValueResponse {
	return SingleValueResponse{Type: variantNames[TagSingleValueResponse], Data: data, Nonce: nonce}
}

// CountSubjectKind discriminates what a Count message is counting.
type CountSubjectKind string

const (
	CountCollection CountSubjectKind = "collection"
	CountUsecase    CountSubjectKind = "usecase"
)

// Count requests the size of a collection's key index or a usecase index.
type Count struct {
	Type       string           `cbor:"type"`
	Kind       CountSubjectKind `cbor:"kind"`
	Collection string           `cbor:"collection"`
	Usecase    string           `cbor:"usecase,omitempty"`
}

func (Count) Tag() byte { return TagCount }

func NewCountCollection(collection string) Count {
	return Count{Type: variantNames[TagCount], Kind: CountCollection, Collection: collection}
}

func NewCountUsecase(collection, usecase string) Count {
	return Count{Type: variantNames[TagCount], Kind: CountUsecase, Collection: collection, Usecase: usecase}
}

// CountResponse is the reply to Count.
type CountResponse struct {
	Type string `cbor:"type"`
	N    int64  `cbor:"n"`
}

func (CountResponse) Tag() byte { return TagCountResponse }

func NewCountResponse(n int64) CountResponse {
	return CountResponse{Type: variantNames[TagCountResponse], N: n}
}

// Update overwrites an existing row's data (I3: never creates a new row).
type Update struct {
	Type       string `cbor:"type"`
	Collection string `cbor:"collection"`
	ID         string `cbor:"id"`
	NewValue   []byte `cbor:"new_value"`
}

func (Update) Tag() byte { return TagUpdate }

func NewUpdate(collection, id string, newValue []byte) Update {
	return Update{Type: variantNames[TagUpdate], Collection: collection, ID: id, NewValue: newValue}
}

// UpdateStatus is the outcome of an Update.
type UpdateStatus string

const (
	UpdateSuccess     UpdateStatus = "success"
	UpdateKeyNotFound UpdateStatus = "key_not_found"
	UpdateFailure     UpdateStatus = "failure"
)

// UpdateResponse is the reply to Update.
type UpdateResponse struct {
	Type   string       `cbor:"type"`
	Status UpdateStatus `cbor:"status"`
}

func (UpdateResponse) Tag() byte { return TagUpdateResponse }

func NewUpdateResponse(status UpdateStatus) UpdateResponse {
	return UpdateResponse{Type: variantNames[TagUpdateResponse], Status: status}
}

// Delete removes a single row by id.
type Delete struct {
	Type       string `cbor:"type"`
	Collection string `cbor:"collection"`
	ID         string `cbor:"id"`
}

func (Delete) Tag() byte { return TagDelete }

func NewDelete(collection, id string) Delete {
	return Delete{Type: variantNames[TagDelete], Collection: collection, ID: id}
}

// DeleteResult is the reply to Delete.
type DeleteResult struct {
	Type string `cbor:"type"`
	OK   bool   `cbor:"ok"`
}

func (DeleteResult) Tag() byte { return TagDeleteResult }

func NewDeleteResult(ok bool) DeleteResult {
	return DeleteResult{Type: variantNames[TagDeleteResult], OK: ok}
}

// DeleteForUsecase drops a usecase index without touching its rows.
type DeleteForUsecase struct {
	Type       string `cbor:"type"`
	Collection string `cbor:"collection"`
	Usecase    string `cbor:"usecase"`
}

func (DeleteForUsecase) Tag() byte { return TagDeleteForUsecase }

func NewDeleteForUsecase(collection, usecase string) DeleteForUsecase {
	return DeleteForUsecase{Type: variantNames[TagDeleteForUsecase], Collection: collection, Usecase: usecase}
}

// Drop removes every row and index entry belonging to a collection.
type Drop struct {
	Type       string `cbor:"type"`
	Collection string `cbor:"collection"`
}

func (Drop) Tag() byte { return TagDrop }

func NewDrop(collection string) Drop {
	return Drop{Type: variantNames[TagDrop], Collection: collection}
}

// DropResult is the reply to Drop.
type DropResult struct {
	Type string `cbor:"type"`
	OK   bool   `cbor:"ok"`
}

func (DropResult) Tag() byte { return TagDropResult }

func NewDropResult(ok bool) DropResult {
	return DropResult{Type: variantNames[TagDropResult], OK: ok}
}

// EndOfCommunication is client→server only: it requests a graceful
// shutdown (READY→CLOSING).
type EndOfCommunication struct {
	Type string `cbor:"type"`
}

func (EndOfCommunication) Tag() byte { return TagEndOfCommunication }

func NewEndOfCommunication() EndOfCommunication {
	return EndOfCommunication{Type: variantNames[TagEndOfCommunication]}
}

// CloseCommunication is never accepted from a client: the server's
// dispatcher enqueues it to the connection's writer goroutine after
// EndOfCommunication, and the writer sends it to the client as the last
// frame before the connection closes (spec.md §9, Open Question 4).
type CloseCommunication struct {
	Type string `cbor:"type"`
}

func (CloseCommunication) Tag() byte { return TagCloseCommunication }

func NewCloseCommunication() CloseCommunication {
	return CloseCommunication{Type: variantNames[TagCloseCommunication]}
}

// Encode CBOR-encodes m. The caller (pkg/wire) prepends the tag and length.
func Encode(m Message) ([]byte, error) {
	payload, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode %T: %w", m, err)
	}
	return payload, nil
}

// discriminator peeks at the CBOR payload's "type" field without fully
// decoding into a concrete struct, so Decode can check it against the
// tag byte before trusting the payload shape.
func discriminator(payload []byte) (string, error) {
	var probe struct {
		Type string `cbor:"type"`
	}
	if err := cbor.Unmarshal(payload, &probe); err != nil {
		return "", fmt.Errorf("protocol: malformed CBOR payload: %w", err)
	}
	return probe.Type, nil
}

// Decode dispatches on tag, verifying the CBOR payload's own
// discriminator agrees with it (spec.md §4.2: disagreement is a
// protocol error).
func Decode(tag byte, payload []byte) (Message, error) {
	expected, known := variantNames[tag]
	if !known {
		return nil, fmt.Errorf("protocol: unknown tag %d", tag)
	}

	got, err := discriminator(payload)
	if err != nil {
		return nil, err
	}
	if got != expected {
		return nil, fmt.Errorf("protocol: tag %d expects discriminator %q, got %q", tag, expected, got)
	}

	switch tag {
	case TagClientSetup:
		var m ClientSetup
		return m, cbor.Unmarshal(payload, &m)
	case TagClientAuthentication:
		var m ClientAuthentication
		return m, cbor.Unmarshal(payload, &m)
	case TagInsert:
		var m Insert
		return m, cbor.Unmarshal(payload, &m)
	case TagInsertOpe:
		var m InsertOpe
		return m, cbor.Unmarshal(payload, &m)
	case TagInsertResponse:
		var m InsertResponse
		return m, cbor.Unmarshal(payload, &m)
	case TagQuery:
		var m QueryMessage
		return m, cbor.Unmarshal(payload, &m)
	case TagQueryResponse:
		var m QueryResponse
		return m, cbor.Unmarshal(payload, &m)
	case TagSingleValueResponse:
		var m SingleValueResponse
		return m, cbor.Unmarshal(payload, &m)
	case TagCount:
		var m Count
		return m, cbor.Unmarshal(payload, &m)
	case TagCountResponse:
		var m CountResponse
		return m, cbor.Unmarshal(payload, &m)
	case TagUpdate:
		var m Update
		return m, cbor.Unmarshal(payload, &m)
	case TagUpdateResponse:
		var m UpdateResponse
		return m, cbor.Unmarshal(payload, &m)
	case TagDelete:
		var m Delete
		return m, cbor.Unmarshal(payload, &m)
	case TagDeleteResult:
		var m DeleteResult
		return m, cbor.Unmarshal(payload, &m)
	case TagDeleteForUsecase:
		var m DeleteForUsecase
		return m, cbor.Unmarshal(payload, &m)
	case TagDrop:
		var m Drop
		return m, cbor.Unmarshal(payload, &m)
	case TagDropResult:
		var m DropResult
		return m, cbor.Unmarshal(payload, &m)
	case TagEndOfCommunication:
		var m EndOfCommunication
		return m, cbor.Unmarshal(payload, &m)
	case TagCloseCommunication:
		var m CloseCommunication
		return m, cbor.Unmarshal(payload, &m)
	}

	return nil, fmt.Errorf("protocol: unhandled tag %d", tag)
}
