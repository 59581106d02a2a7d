// Package backend abstracts the two remote object stores behind one
// capability interface: S3 with immediate consistency, and Glacier where
// retrieval and listing go through asynchronous jobs and a locally held
// inventory index.
package backend

import (
	"context"
	"io"

	"github.com/yoyama/bakthat/internal/models"
)

// Backend is the uniform contract over both stores.
//
// Download is two-phase on the archival store: with jobCheck=false it
// initiates (or reuses) a retrieval job and reports common.ErrJobPending;
// with jobCheck=true it probes the job and returns the byte stream once the
// remote side has staged it. The immediate store ignores jobCheck and
// returns the stream directly.
type Backend interface {
	// Kind identifies the store variant.
	Kind() models.Backend

	// Container returns the bucket or vault name this backend writes to.
	Container() string

	// List returns every stored key, aggregating paginated listings. On the
	// archival store the listing is served from the local inventory index.
	List(ctx context.Context) ([]string, error)

	// Upload stores the stream under key and returns a backend-specific
	// handle (ETag or archive ID). On the archival store the object is not
	// visible to List until the next inventory rebuild reaches it, but the
	// local index is primed immediately.
	Upload(ctx context.Context, key string, body io.Reader) (string, error)

	// Delete removes the object. Archival removal may lag by hours; callers
	// must not expect immediate absence from a freshly rebuilt inventory.
	Delete(ctx context.Context, key string) error

	// Download fetches the object's byte stream. See the type comment for
	// the archival two-phase protocol.
	Download(ctx context.Context, key string, jobCheck bool) (io.ReadCloser, error)
}
