package blob

// Blob is an immutable record of one file upload: the client's
// compressed payload and the recovered original bytes, identified by
// the SHA-1 of the original content plus the path it arrived under.
// Identical content at the same path maps to a single row; identical
// content at two paths yields two rows sharing a hash.
type Blob struct {
	SHA1           string `json:"sha1_hash"`
	Path           string `json:"path"`
	Size           int    `json:"file_size"`
	CompressedSize int    `json:"compressed_size"`
	Compressed     []byte `json:"compressed_data"`
	Content        []byte `json:"content"`
}

// Key is the dedup identity of a blob row.
type Key struct {
	SHA1 string `json:"sha1"`
	Path string `json:"path"`
}

// ID renders the storage key. SHA1 is fixed-width hex, so the first
// colon always separates hash from path even when the path contains
// colons itself.
func (k Key) ID() string {
	return k.SHA1 + ":" + k.Path
}

func (b *Blob) Key() Key {
	return Key{SHA1: b.SHA1, Path: b.Path}
}

// Store is the ingestion and lookup contract for blob rows.
type Store interface {
	// Ingest decodes and decompresses a base64 payload, then
	// gets-or-creates the row for (content hash, path). Re-ingesting
	// identical content at the same path returns the existing row.
	Ingest(path string, compressedPayload string) (*Blob, error)

	// Get returns the row for key, or a not-found error.
	Get(key Key) (*Blob, error)

	// Content returns the original (decompressed) bytes for key.
	Content(key Key) ([]byte, error)

	List() ([]*Blob, error)
	Delete(key Key) error
}
