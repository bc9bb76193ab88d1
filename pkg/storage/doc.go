/*
Package storage provides BoltDB-backed persistence for the document store.

BoltStore implements the Store interface directly on top of bbolt,
giving every mutation (insert/update/delete/drop) a single ACID
transaction and every read method its own consistent read snapshot.
A pkg/query query calls several read methods in turn (index lookup,
BatchGet, BatchGetNonces), each in a separate read transaction, so the
query as a whole does not see one snapshot; rows deleted in between are
skipped.

# Key layout

All data lives in one bucket, "rows", keyed by flat UTF-8 strings built
from the collection name and row id:

	{collection}:{id}              data row (opaque bytes)
	{collection}:{id}:acl          CBOR-encoded []string
	{collection}:{id}:nonce        AEAD nonce for the data row
	{collection}:{usecase}:usecase CBOR-encoded list of byte strings (data keys)
	{collection}:keys              CBOR-encoded list of byte strings (data keys)

The usecase and collection-keys indexes are append-only lists: inserting
a row appends its data key to every index it participates in; deleting a
row removes only the data key itself, leaving index entries dangling
until the next Drop of that collection/usecase. Readers are expected to
skip absent entries from a batch get rather than treat them as errors —
see pkg/query.

# Transactions

bbolt's db.Update serializes all writers through a single file lock, so
there is no commit-time conflict to detect or retry: a mutation either
completes in full or (on I/O failure) not at all. This satisfies the
optimistic-transaction contract the wire protocol assumes, at a strictly
stronger guarantee (see DESIGN.md, Open Question 5).
*/
package storage
