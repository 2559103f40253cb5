package uploads

import (
	"context"
	"fmt"
	"io"

	clamd "github.com/dutchcoders/go-clamd"
)

// Verdict is the outcome of a malware scan. It is never persisted; only its
// consequence (accept or reject) is durable.
type Verdict struct {
	Infected   bool
	Signatures []string
}

// Scanner submits already-stored content to an external scanning engine. The
// pipeline re-opens the stored object and streams it, so write-then-scan
// ordering holds for both filesystem and object-store backends.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) (Verdict, error)
}

// ClamdScanner scans content through a clamd daemon (INSTREAM).
type ClamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner connects to clamd at addr, e.g. "tcp://127.0.0.1:3310" or
// "/var/run/clamav/clamd.ctl".
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{client: clamd.NewClamd(addr)}
}

// Ping checks daemon reachability.
func (s *ClamdScanner) Ping() error {
	return s.client.Ping()
}

// Scan streams r to clamd and collects the verdict. A transport or engine
// error is returned as-is; the caller decides the fail-open/fail-closed
// policy.
func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	results, err := s.client.ScanStream(r, make(chan bool))
	if err != nil {
		return Verdict{}, fmt.Errorf("clamd scan: %w", err)
	}

	var verdict Verdict
	for res := range results {
		if res == nil {
			continue
		}
		switch res.Status {
		case clamd.RES_FOUND:
			verdict.Infected = true
			verdict.Signatures = append(verdict.Signatures, res.Description)
		case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
			return Verdict{}, fmt.Errorf("clamd scan: %s", res.Raw)
		}
	}
	return verdict, nil
}

var _ Scanner = (*ClamdScanner)(nil)
