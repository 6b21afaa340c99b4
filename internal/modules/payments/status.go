package payments

// Internal payment statuses. pending -> {completed, failed, refunded,
// cancelled}; everything except pending is terminal.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
	StatusCancelled = "cancelled"
)

func IsTerminal(status string) bool {
	return status != StatusPending
}

// Coarse client-facing vocabulary for the poll path; "expired" is produced
// by the client-side countdown, never by the server.
const (
	ClientPending  = "pending"
	ClientApproved = "approved"
	ClientRejected = "rejected"
	ClientExpired  = "expired"
)

// MapExternalStatus maps the processor's loosely-typed status strings onto
// the internal vocabulary at the boundary. Unknown or future processor
// strings stay pending rather than failing.
func MapExternalStatus(external string) string {
	switch external {
	case "approved":
		return StatusCompleted
	case "rejected", "cancelled":
		return StatusFailed
	case "refunded":
		return StatusRefunded
	case "in_process", "pending":
		return StatusPending
	default:
		return StatusPending
	}
}

// ClientStatus collapses an internal payment status to the poll vocabulary.
func ClientStatus(internal string) string {
	switch internal {
	case StatusCompleted:
		return ClientApproved
	case StatusFailed, StatusCancelled:
		return ClientRejected
	default:
		return ClientPending
	}
}
