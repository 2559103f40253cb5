package uploads

import "time"

// StoredFile is an accepted upload. It becomes visible to callers only after
// every pipeline gate, including the malware scan, has passed. Immutable
// except for deletion.
type StoredFile struct {
	ID           string
	OwnerID      string
	OriginalName string
	StorageKey   string
	SizeBytes    int64
	Extension    string
	MediaType    string // empty when the sniffer could not classify the content
	CreatedAt    time.Time
}
