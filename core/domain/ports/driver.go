package ports

import "context"

// SessionDriver is the contract a vendor protocol driver must satisfy:
// an authenticated interactive remote-shell session to one device.
type SessionDriver interface {
	// Open dials, authenticates and prepares the session (privileged
	// mode, paging disabled). Cancelling ctx aborts the attempt.
	Open(ctx context.Context) error
	// Send writes one command and returns the raw text up to the next
	// prompt.
	Send(ctx context.Context, command string) (string, error)
	// Close tears the session down. Safe to call repeatedly; close
	// failures are not actionable and are dropped.
	Close()
	IsAlive() bool
}
