package messaging

import "time"

// MessagingWindow is the period after a participant's last inbound message during which
// freeform replies are allowed by the provider. Outside of it, only approved templates may be sent.
const MessagingWindow = 24 * time.Hour

type WindowReason string

const (
	ReasonNoInboundYet  WindowReason = "no-inbound-message-yet"
	ReasonWithinWindow  WindowReason = "within-24h-window"
	ReasonWindowExpired WindowReason = "window-expired"
)

// WindowDecision tells whether a freeform message may be sent to a conversation.
type WindowDecision struct {
	FreeformAllowed  bool         `json:"freeform_allowed"`
	Reason           WindowReason `json:"reason"`
	LastInboundAt    *time.Time   `json:"last_inbound_at"`
	TemplateRequired bool         `json:"template_required"`
}

// Evaluate decides whether a freeform message may be sent at `now`, given the time of the
// participant's last inbound message (nil if none was ever received).
// A `now` earlier than `lastInboundAt` (clock skew) resolves to ReasonWindowExpired.
func Evaluate(lastInboundAt *time.Time, now time.Time) WindowDecision {
	if lastInboundAt == nil {
		return newDecision(false, ReasonNoInboundYet, nil)
	}

	at := *lastInboundAt
	elapsed := now.Sub(at)
	if now.Before(at) || elapsed >= MessagingWindow {
		return newDecision(false, ReasonWindowExpired, &at)
	}
	return newDecision(true, ReasonWithinWindow, &at)
}

func newDecision(allowed bool, reason WindowReason, lastInboundAt *time.Time) WindowDecision {
	return WindowDecision{
		FreeformAllowed:  allowed,
		Reason:           reason,
		LastInboundAt:    lastInboundAt,
		TemplateRequired: !allowed,
	}
}

// ExpiresAt returns when the window of a conversation closes, if it ever opened.
func (d WindowDecision) ExpiresAt() *time.Time {
	if d.LastInboundAt == nil {
		return nil
	}
	exp := d.LastInboundAt.Add(MessagingWindow)
	return &exp
}
