package messaging

import "context"

type (
	// Receipt is the provider's acknowledgement of a sent message.
	Receipt struct {
		ID     string
		Status string
	}

	// Provider sends WhatsApp messages. Failures are returned as *DispatchError.
	Provider interface {
		SendText(ctx context.Context, to, body string) (Receipt, error)
		SendTemplate(ctx context.Context, to string, tmpl Template, vars []string) (Receipt, error)
	}

	// Dispatcher hands queued messages over for background delivery.
	Dispatcher interface {
		Dispatch(ctx context.Context, messageID string) error
	}

	// Deliverer delivers queued messages; used by background workers.
	Deliverer interface {
		Deliver(ctx context.Context, messageID string) error
		MarkFailed(ctx context.Context, messageID string, cause error) error
	}

	ParticipantResolver interface {
		ResolveParticipant(ctx context.Context, phone string) (Participant, error)
	}
)

// providerStatuses maps provider statuses to message statuses; empty means "nothing to record".
var providerStatuses = map[string]Status{
	"accepted":    "",
	"scheduled":   "",
	"queued":      "",
	"sending":     "",
	"sent":        StatusSent,
	"delivered":   StatusDelivered,
	"read":        StatusRead,
	"failed":      StatusFailed,
	"undelivered": StatusFailed,
	"canceled":    StatusFailed,
}

// ProviderStatus maps a provider status to a message status.
func ProviderStatus(status string) (Status, error) {
	st, ok := providerStatuses[status]
	if !ok {
		return "", ErrUnknownStatus
	}
	return st, nil
}
