package wustream

import "errors"

// Failures before the array is reached are total (no records); failures while
// decoding are partial (records decoded so far are kept).
var (
	ErrConnection      = errors.New("connect to api server")
	ErrSend            = errors.New("send request")
	ErrBadStatus       = errors.New("unexpected http status")
	ErrArrayNotFound   = errors.New("array marker not found")
	ErrMalformedRecord = errors.New("malformed record")
	ErrStreamTruncated = errors.New("stream truncated")
)

// ErrArrayEnd is returned by Decoder.DecodeOne when the array closes where an
// object was expected. It is a clean end, not a failure.
var ErrArrayEnd = errors.New("array end")

// Kind is a stable label for an error in the taxonomy above.
type Kind string

const (
	KindConnection      Kind = "connection_failure"
	KindSend            Kind = "send_failure"
	KindBadStatus       Kind = "bad_status"
	KindArrayNotFound   Kind = "array_not_found"
	KindMalformedRecord Kind = "malformed_record"
	KindStreamTruncated Kind = "stream_truncated"
	KindUnknown         Kind = "unknown"
)

// KindOf classifies err. It returns "" for a nil error.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.Is(err, ErrSend):
		return KindSend
	case errors.Is(err, ErrBadStatus):
		return KindBadStatus
	case errors.Is(err, ErrArrayNotFound):
		return KindArrayNotFound
	case errors.Is(err, ErrMalformedRecord):
		return KindMalformedRecord
	case errors.Is(err, ErrStreamTruncated):
		return KindStreamTruncated
	default:
		return KindUnknown
	}
}

// Total reports whether the kind aborts a fetch before any record is decoded.
func (k Kind) Total() bool {
	switch k {
	case KindConnection, KindSend, KindBadStatus, KindArrayNotFound:
		return true
	default:
		return false
	}
}
