package sourceprovider

import (
	"context"
)

type SourceProvider interface {
	// Returns the body of the script at url.
	//
	// Returns domain.ErrSourceNotFound if the server reports that the script does not exist.
	// Returns domain.ErrTemporarilyUnavailable if the provider implementation receives an error believed to be intermittent. The call may be retried later.
	GetSource(ctx context.Context, url string) ([]byte, error)
}
