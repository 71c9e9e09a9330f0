// Package remote describes the incremental listing protocol of the remote
// calendar service, independent of any particular client library.
package remote

import (
	"errors"
	"fmt"
	"time"

	"calsync/internal/domain"
)

// ErrCursorInvalid is returned by ListEvents when the supplied cursor has
// expired or been revoked. The caller must restart with a full listing.
var ErrCursorInvalid = errors.New("sync cursor is no longer valid")

// ListEventsRequest asks for one page of changes. With Cursor set only
// changes since that cursor are returned; otherwise everything from TimeMin
// onwards. Deleted records and expanded single instances are always
// included.
type ListEventsRequest struct {
	CalendarID string
	Cursor     string
	PageToken  string
	TimeMin    time.Time
	PageSize   int
}

// Page is one page of a change listing. NextCursor is only set on the final
// page.
type Page struct {
	Records       []domain.RemoteChangeRecord
	NextPageToken string
	NextCursor    string
}

// ProtocolError is an unexpected status or malformed response from the
// remote service.
type ProtocolError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
