// Package store provides durable key/blob persistence for tasks, decisions
// and adaptive state. Two backends exist: a SQLite store for normal runs and
// a file store matching the original JSON-file layout, handy for tests.
package store

// BlobStore is the durable persistence capability the core consumes.
type BlobStore interface {
	// Save writes a blob under key, replacing any previous value.
	Save(key string, blob []byte) error
	// Load returns the blob for key. The bool reports whether it exists.
	Load(key string) ([]byte, bool, error)
	// Delete removes the blob for key. Deleting a missing key is not an error.
	Delete(key string) error
}
