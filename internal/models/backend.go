// Package models defines the backup catalog record types and the archival
// job/inventory types shared by repositories and services.
package models

import "fmt"

// Backend identifies which remote store holds a backup.
type Backend int

const (
	// BackendS3 is the immediate-consistency object store.
	BackendS3 Backend = iota
	// BackendGlacier is the archival store with asynchronous retrieval.
	BackendGlacier
)

func (b Backend) String() string {
	switch b {
	case BackendS3:
		return "s3"
	case BackendGlacier:
		return "glacier"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// ParseBackend converts the wire/config name of a backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "s3":
		return BackendS3, nil
	case "glacier":
		return BackendGlacier, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", s)
	}
}
