/*
Package client provides a Go client for docstore's wire protocol.

The client opens a TCP connection, performs the ClientSetup /
ClientAuthentication handshake, and then exposes one method per
request/response pair in pkg/protocol: Insert, InsertOpe, Query,
GetByID, Count, Update, Delete, DeleteForUsecase, and Drop. Each method
encodes its request with pkg/protocol, frames it with pkg/wire, and
blocks for the matching reply frame.

# Architecture

	┌──────────────────── APPLICATION CODE ──────────────────────┐
	│                                                              │
	│  import "github.com/cuemby/docstore/pkg/client"             │
	│                                                              │
	│  c, err := client.Dial("127.0.0.1:5545", user, pass)        │
	│  id, err := c.Insert("docs", acl, data, usecases, nonce)    │
	│                                                              │
	└──────────────────┬───────────────────────────────────────┘
	                   │
	┌──────────────────▼──── pkg/client ─────────────────────────┐
	│                                                              │
	│  Client{conn, reader, writer}                                │
	│    - one roundTrip per request                               │
	│    - pkg/protocol.Encode/Decode for the CBOR payload          │
	│    - pkg/wire.Reader/Writer for the tag+length framing        │
	└──────────────────┬───────────────────────────────────────┘
	                   │ TCP
	                   ▼
	              docstore server

A Client is not safe for concurrent use. The protocol is strictly
request/reply per connection, so concurrent callers should hold a pool
of Clients rather than share one — mirroring the server's own
one-reader/one-writer-goroutine-per-connection design (pkg/server).

Encryption of row contents (AES-256-GCM-SIV, Kyber768 key exchange) is
the caller's responsibility: Insert's data/nonce arguments are already
ciphertext by the time they reach this package. See pkg/security.
*/
package client
