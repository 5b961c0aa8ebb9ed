package ddns

import "time"

// Recorder receives instrumentation events from the client and resolvers.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ProviderFailed(family Family, url string)
	TickCompleted(result string, d time.Duration)
	UpdateDispatched(kind ErrorKind)
}

// Tick results passed to Recorder.TickCompleted.
const (
	ResultUpdated   = "updated"
	ResultUnchanged = "unchanged"
	ResultFailed    = "failed"
)

type nopRecorder struct{}

func (nopRecorder) ProviderFailed(Family, string)       {}
func (nopRecorder) TickCompleted(string, time.Duration) {}
func (nopRecorder) UpdateDispatched(ErrorKind)          {}
