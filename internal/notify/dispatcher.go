// README: Notification dispatcher port. Transport and retries belong to implementations.
package notify

import (
	"context"

	"fieldops/internal/types"
)

// Result is the per-recipient delivery outcome.
type Result struct {
	RecipientID types.ID
	Success     bool
	Error       string
}

// Dispatcher delivers one notification to a set of recipients and
// reports per-recipient success. Callers treat delivery as best-effort:
// a failed result is recorded, never retried by the core.
type Dispatcher interface {
	Notify(ctx context.Context, recipients []types.ID, title, body string, data map[string]string) ([]Result, error)
}
