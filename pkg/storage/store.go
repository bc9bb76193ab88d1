package storage

// Store defines the storage engine used by the mutation and query engines.
// A Store exposes the spec's flat key grammar directly rather than a
// collection of per-entity CRUD methods: every row lives at
// "{collection}:{id}", its ACL at "{collection}:{id}:acl", its OPE/plain
// nonce at "{collection}:{id}:nonce", and use-case membership is tracked
// by appending to the CBOR-encoded list at "{collection}:{usecase}:usecase".
type Store interface {
	// Insert writes the data row, acl row and (when nonce is non-nil)
	// nonce row for a freshly generated id, and appends the data key to every usecase index
	// named in usecases. All writes happen in one transaction (I1).
	Insert(collection string, acl []string, data []byte, nonce []byte, usecases []string) (id string, err error)

	// Update overwrites the data row at collection:id. Returns
	// ErrKeyNotFound if the row does not exist (I3); no row is created.
	Update(collection, id string, newValue []byte) error

	// Delete removes the data row at collection:id. Ancillary acl/nonce/
	// index entries are left in place (I4). Returns true if a row was
	// present and removed.
	Delete(collection, id string) (bool, error)

	// DeleteForUsecase drops the usecase index for (collection, usecase)
	// without touching the rows it referenced.
	DeleteForUsecase(collection, usecase string) error

	// Drop removes every row, acl, nonce and index entry belonging to a
	// collection.
	Drop(collection string) (bool, error)

	// GetData reads the data row at collection:id. ok is false if absent.
	GetData(collection, id string) (data []byte, ok bool, err error)

	// GetNonce reads the nonce row at collection:id. ok is false if absent.
	GetNonce(collection, id string) (nonce []byte, ok bool, err error)

	// BatchGet reads many data rows in one transaction, skipping absent
	// keys (dangling index tolerance, §4.6).
	BatchGet(keys []string) (map[string][]byte, error)

	// BatchGetNonces reads the nonce row paired with each data key,
	// skipping data keys with no nonce row.
	BatchGetNonces(dataKeys []string) (map[string][]byte, error)

	// UsecaseIndex decodes the list of data keys indexed under
	// collection:usecase:usecase. Returns an empty slice if absent.
	UsecaseIndex(collection, usecase string) ([]string, error)

	// CountUsecase returns the number of entries in a usecase index.
	CountUsecase(collection, usecase string) (int, error)

	// CountCollection returns the number of entries in a collection's
	// key index.
	CountCollection(collection string) (int, error)

	// Close releases the underlying database handle.
	Close() error
}

// ErrKeyNotFound is returned by Update when the target row is absent.
var ErrKeyNotFound = errKeyNotFound{}

type errKeyNotFound struct{}

func (errKeyNotFound) Error() string { return "storage: key not found" }
