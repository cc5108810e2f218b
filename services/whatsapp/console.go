package whatsappsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

// SentMessage is a message recorded by the console provider.
type SentMessage struct {
	To       string
	Body     string
	Template string
	Vars     []string
	Receipt  messaging.Receipt
}

// consoleProvider logs messages instead of sending them. Used in debug & test modes.
type consoleProvider struct {
	mu     sync.Mutex
	sent   []SentMessage
	fail   error
	logger core.Logger
}

var _ messaging.Provider = (*consoleProvider)(nil) // interface compliance check

func NewConsoleProvider(logger core.Logger) *consoleProvider {
	return &consoleProvider{logger: logger}
}

// FailWith makes the next sends fail with `err` (nil to stop failing).
func (p *consoleProvider) FailWith(err error) {
	p.mu.Lock()
	p.fail = err
	p.mu.Unlock()
}

// SentMessages returns a copy of the messages sent so far.
func (p *consoleProvider) SentMessages() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	sent := make([]SentMessage, len(p.sent))
	copy(sent, p.sent)
	return sent
}

func (p *consoleProvider) record(msg SentMessage) (messaging.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail != nil {
		return messaging.Receipt{}, p.fail
	}
	msg.Receipt = messaging.Receipt{ID: "SM" + uuid.New().String(), Status: "queued"}
	p.sent = append(p.sent, msg)
	if p.logger != nil {
		p.logger.Debug(fmt.Sprintf("whatsapp message to %s (%s): %s", msg.To, msg.Receipt.ID, msg.Body))
	}
	return msg.Receipt, nil
}

func (p *consoleProvider) SendText(_ context.Context, to, body string) (messaging.Receipt, error) {
	return p.record(SentMessage{To: address(to), Body: body})
}

func (p *consoleProvider) SendTemplate(_ context.Context, to string, tmpl messaging.Template, vars []string) (messaging.Receipt, error) {
	body, err := tmpl.Render(vars)
	if err != nil {
		return messaging.Receipt{}, &messaging.DispatchError{Err: err, Code: "template-variables"}
	}
	return p.record(SentMessage{To: address(to), Body: body, Template: tmpl.Name, Vars: vars})
}
