package uploads

import "errors"

var (
	// ErrNotFound is returned when a stored file does not exist or is not
	// visible to the requesting identity.
	ErrNotFound = errors.New("stored file not found")
	// ErrInvalidInput flags client-input problems that are not pipeline
	// rejections (missing file, empty payload, bad id).
	ErrInvalidInput = errors.New("invalid input")
)

// Reason is a machine-checkable rejection code emitted by the intake pipeline.
type Reason string

const (
	ReasonRateLimited         Reason = "rate_limited"
	ReasonOversized           Reason = "oversized"
	ReasonDisallowedExtension Reason = "disallowed_extension"
	ReasonDisallowedContent   Reason = "disallowed_content"
	ReasonContentMismatch     Reason = "content_mismatch"
	ReasonUnverifiable        Reason = "unverifiable_content"
	ReasonInfected            Reason = "infected"
	ReasonScannerUnavailable  Reason = "scanner_unavailable"
)

// Rejection is a terminal pipeline verdict. Every rejection short-circuits the
// remaining stages; no partial side effects survive it.
type Rejection struct {
	Reason            Reason
	Message           string
	RetryAfterSeconds int
	Signatures        []string
}

func (r *Rejection) Error() string {
	return string(r.Reason) + ": " + r.Message
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
