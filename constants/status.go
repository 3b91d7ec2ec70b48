package constants

// JobState is the reporting state derived from a CacheStatus row.
type JobState string

// Stable values (used in reports and status output).
const (
	JobStateUnfinished JobState = "UNFINISHED" // started, never committed (or crashed)
	JobStateFinished   JobState = "FINISHED"   // rows committed and ledger updated
)

// StateOf maps the ledger's finished flag to a JobState.
func StateOf(finished bool) JobState {
	if finished {
		return JobStateFinished
	}
	return JobStateUnfinished
}
