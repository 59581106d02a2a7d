// Package common defines shared constants and sentinel errors used across
// bakthat components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Catalog-level errors.
	ErrNotFound = errors.New("not found")

	// Archival retrieval errors.
	ErrJobPending      = errors.New("retrieval job pending")
	ErrNoJob           = errors.New("no retrieval job")
	ErrRetrievalFailed = errors.New("retrieval failed")

	// Configuration errors.
	ErrRotationConfigMissing = errors.New("rotation configuration missing")
	ErrProfileNotFound       = errors.New("profile not found")
)
