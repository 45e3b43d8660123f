package notify

import (
	"context"
	"errors"
)

// ErrPermanent marks a delivery failure that will not succeed on retry —
// malformed request, revoked credentials, blocked recipient. Senders wrap it
// so callers can classify with errors.Is.
var ErrPermanent = errors.New("permanent delivery failure")

// Sink delivers one text message to one recipient. A nil return means the
// message was accepted; an error wrapping ErrPermanent must not be retried;
// any other error is transient and may be retried.
type Sink interface {
	Send(ctx context.Context, recipient int64, text string) error
}

// IsPermanent reports whether err is a non-retryable delivery failure.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
