package models

// Lockout layers
const (
	LayerNone     = ""
	LayerIP       = "ip"
	LayerUsername = "username"
)

// Decision is the outcome of evaluating the lockout layers for one attempt
type Decision struct {
	Allowed           bool
	Layer             string
	Attempts          int
	RetryAfterMinutes int
}

// Allow is the zero-risk decision
func Allow() Decision {
	return Decision{Allowed: true}
}
