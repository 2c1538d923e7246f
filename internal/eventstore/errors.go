package eventstore

import (
	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

// Sentinel errors for history operations. Returned errors match them with
// errors.Is and carry the driver error as cause.
var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.EventStoreError("could not open event store database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize event store schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.EventStoreError("failed to append event to store").Build()

	// ErrEventQueryFailed indicates querying or scanning events failed.
	ErrEventQueryFailed = errors.EventStoreError("failed to query events from store").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of event payload failed.
	ErrMarshalPayloadFailed = errors.EventStoreError("failed to marshal event payload").Build()
)

// wrap returns a fresh error matching sentinel, with err as cause.
func wrap(sentinel *errors.ClassifiedError, err error) error {
	return errors.EventStoreError(sentinel.Message()).WithCause(err).Build()
}
