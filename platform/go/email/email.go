package email

import "context"

// Sender is the outbound email capability consumed by the signup flow.
// Code-send failures abort the flow, so implementations must report delivery
// errors rather than swallowing them.
type Sender interface {
	SendVerificationCode(ctx context.Context, to, code string) error
}
