package messaging

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConversationExists  = errors.New("a conversation with this phone already exists")
	ErrDuplicateMessage    = errors.New("a message with this provider id already exists")
	ErrStatusConflict      = errors.New("message status has changed")
	ErrTemplateExists      = errors.New("a template with this name already exists")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrTemplateNotApproved = errors.New("template is not approved")
	ErrTemplateVariables   = errors.New("wrong number of template variables")
	ErrNotRetryable        = errors.New("only failed outbound messages can be retried")
	ErrUnknownStatus       = errors.New("unknown message status")
)

// PolicyDeniedError is returned when a freeform message is attempted outside the messaging window.
// Decision tells callers why, so they can switch to sending a template.
type PolicyDeniedError struct {
	Decision WindowDecision
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("freeform message not allowed (%s): a template is required", e.Decision.Reason)
}

// DispatchError is a failure to hand a message over to the provider.
type DispatchError struct {
	Err       error
	Code      string // provider error code, if any
	Retryable bool
}

func (e *DispatchError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dispatching message: [%s] %v", e.Code, e.Err)
	}
	return fmt.Sprintf("dispatching message: %v", e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// IsRetryable tells whether `err` is a DispatchError worth retrying.
func IsRetryable(err error) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Retryable
}

// asDispatchError makes sure provider failures are DispatchErrors; unknown errors are retryable.
func asDispatchError(err error) *DispatchError {
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}
	return &DispatchError{Err: err, Retryable: true}
}

// storeError wraps a repository failure met while delivering, so that the delivery is retried.
func storeError(err error, msg string) *DispatchError {
	return &DispatchError{Err: errors.Wrap(err, msg), Code: "store", Retryable: true}
}
