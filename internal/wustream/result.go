package wustream

// Stage is the point of the fetch lifecycle a Result ended in.
type Stage int

const (
	StageConnecting Stage = iota
	StageSending
	StageAwaitingStatus
	StageLocatingArray
	StageDecoding
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageConnecting:
		return "connecting"
	case StageSending:
		return "sending"
	case StageAwaitingStatus:
		return "awaiting_status"
	case StageLocatingArray:
		return "locating_array"
	case StageDecoding:
		return "decoding"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// StopReason says why decoding ended.
type StopReason string

const (
	// StopArrayEnd means the server's array closed.
	StopArrayEnd StopReason = "array_end"
	// StopCapacity means the caller's capacity was reached first. More
	// records may have been available.
	StopCapacity StopReason = "capacity"
	// StopFailed means the fetch ended on an error.
	StopFailed StopReason = "failed"
)

// Result reports how a fetch ended. Count is the number of leading slots of
// the output buffer that hold freshly decoded records; slots past Count are
// untouched.
type Result struct {
	Count int
	Stage Stage
	Stop  StopReason
	Err   error
}

// Complete reports whether the fetch ended without error.
func (r Result) Complete() bool {
	return r.Err == nil
}

// TotalFailure reports whether the fetch failed before reaching the array.
func (r Result) TotalFailure() bool {
	return r.Err != nil && r.Stage < StageDecoding
}

// Partial reports whether decoding failed after the array was reached. Count
// records (possibly zero) are still valid.
func (r Result) Partial() bool {
	return r.Err != nil && r.Stage == StageDecoding
}

// Outcome is the metrics label for the result: the stop reason on success,
// the error kind otherwise.
func (r Result) Outcome() string {
	if r.Err != nil {
		return string(KindOf(r.Err))
	}
	return string(r.Stop)
}

func failed(stage Stage, err error) Result {
	return Result{Stage: stage, Stop: StopFailed, Err: err}
}
