package metrics

import "time"

// ArchiveMetrics provides observability for archive reads.
//
// This interface is optional - components given a nil ArchiveMetrics fall
// back to NewNoopArchiveMetrics.
type ArchiveMetrics interface {
	// RecordLoad records one metadata file load.
	//
	// Parameters:
	//   - kind: record kind ("study", "series", "instance")
	//   - duration: time spent reading, validating and decoding the file
	//   - outcome: "ok" or the archive error category (e.g. "malformed")
	RecordLoad(kind string, duration time.Duration, outcome string)

	// RecordDropped records a listing entry skipped because it failed to load.
	RecordDropped(kind string)

	// RecordFrame records one extracted frame.
	//
	// Parameters:
	//   - transferSyntax: transfer syntax UID the bytes are encoded in
	//   - bytes: frame size
	RecordFrame(transferSyntax string, bytes int)
}

// NewNoopArchiveMetrics returns an ArchiveMetrics that records nothing.
func NewNoopArchiveMetrics() ArchiveMetrics {
	return noopArchiveMetrics{}
}

type noopArchiveMetrics struct{}

func (noopArchiveMetrics) RecordLoad(kind string, duration time.Duration, outcome string) {}
func (noopArchiveMetrics) RecordDropped(kind string)                                      {}
func (noopArchiveMetrics) RecordFrame(transferSyntax string, bytes int)                   {}
