package domain

import "strings"

const (
	correlationPrefix = "[gcal_id:"
	correlationSuffix = "]"
)

// CorrelationSentinel is the marker that ties a local event to a remote id.
func CorrelationSentinel(remoteID string) string {
	return correlationPrefix + remoteID + correlationSuffix
}

// EmbedCorrelation appends the sentinel for remoteID to notes. Notes are
// rebuilt from remote data on every run, so the result is never deduplicated.
func EmbedCorrelation(notes, remoteID string) string {
	return notes + "\n\n" + CorrelationSentinel(remoteID)
}

func HasCorrelation(notes, remoteID string) bool {
	return strings.Contains(notes, CorrelationSentinel(remoteID))
}
