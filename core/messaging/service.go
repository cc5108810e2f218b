package messaging

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core"
)

var NowFunc = func() time.Time { return time.Now().UTC() } // mockable

const newConversationTemplate = "new_conversation"

type (
	Repository interface {
		// CreateConversation returns ErrConversationExists if the phone already has a conversation.
		CreateConversation(ctx context.Context, conv Conversation) (Conversation, error)
		GetConversation(ctx context.Context, filter GetFilter) (Conversation, error)
		QueryConversations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Conversation, error)
		// UpdateConversation only saves the participant fields & metadata.
		UpdateConversation(ctx context.Context, conv Conversation) (Conversation, error)
		// TouchConversation atomically records a message at `at`: LastMessageAt/LastMessageFrom and
		// LastInboundAt (inbound only) never move backwards.
		TouchConversation(ctx context.Context, id string, dir Direction, at time.Time, unreadDelta int) (Conversation, error)
		// MarkConversationRead marks all the received messages read & resets the unread count.
		MarkConversationRead(ctx context.Context, id string, at time.Time) (Conversation, error)

		// CreateMessage returns ErrDuplicateMessage if the provider id is already known.
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		GetMessage(ctx context.Context, filter MessageGetFilter) (Message, error)
		// QueryMessages returns the conversation messages, oldest first.
		QueryMessages(ctx context.Context, conversationID string) ([]Message, error)
		// UpdateMessageStatus returns ErrStatusConflict if the message status is not one of chg.From.
		UpdateMessageStatus(ctx context.Context, id string, chg StatusChange) (Message, error)

		// CreateTemplate returns ErrTemplateExists if the name is taken.
		CreateTemplate(ctx context.Context, tmpl Template) (Template, error)
		UpdateOrCreateTemplate(ctx context.Context, tmpl Template) (Template, error)
		GetTemplate(ctx context.Context, name string) (Template, error)
		QueryTemplates(ctx context.Context, filter *TemplateQueryFilter) ([]Template, error)
	}

	ServiceInterface interface {
		Window(ctx context.Context, conversationID string) (WindowDecision, error)
		ReceiveInbound(ctx context.Context, in InboundMessage) (Conversation, Message, error)
		StartConversation(ctx context.Context, nc NewConversation) (Conversation, error)
		SendText(ctx context.Context, conversationID string, nm NewTextMessage, sentBy string) (Message, error)
		SendTemplate(ctx context.Context, conversationID string, nm NewTemplateMessage, sentBy string) (Message, error)
		Retry(ctx context.Context, messageID string) (Message, error)
		ApplyStatus(ctx context.Context, upd StatusUpdate) (Message, error)
		MarkRead(ctx context.Context, conversationID string) (Conversation, error)
		GetConversation(ctx context.Context, id string) (Conversation, error)
		QueryConversations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Conversation, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		QueryMessages(ctx context.Context, conversationID string) ([]Message, error)
		CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error)
		QueryTemplates(ctx context.Context, filter *TemplateQueryFilter) ([]Template, error)
		DefaultCountryCode() string
		Deliverer
	}

	Service struct {
		repo         Repository
		provider     Provider
		resolver     ParticipantResolver
		dispatcher   Dispatcher // nil: deliver inline
		mailSvc      core.EmailService
		logger       core.Logger
		defaultCC    string
		notifyEmails []mail.Address
	}
)

var (
	_ ServiceInterface = (*Service)(nil)
	_ Deliverer        = (*Service)(nil)
)

func NewService(
	repo Repository,
	provider Provider,
	resolver ParticipantResolver,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	notify := make([]mail.Address, 0, len(conf.Messaging.NotifyEmails))
	for _, email := range conf.Messaging.NotifyEmails {
		if addr, err := mail.ParseAddress(email); err == nil {
			notify = append(notify, *addr)
		} else {
			logger.Warn(fmt.Sprintf("invalid notify email %q: %v", email, err))
		}
	}
	return &Service{
		repo:         repo,
		provider:     provider,
		resolver:     resolver,
		mailSvc:      mailSvc,
		logger:       logger,
		defaultCC:    conf.Messaging.DefaultCountryCode,
		notifyEmails: notify,
	}
}

// UseDispatcher makes the service hand queued messages over to `d` instead of delivering them inline.
func (svc *Service) UseDispatcher(d Dispatcher) {
	svc.dispatcher = d
}

func (svc *Service) DefaultCountryCode() string { return svc.defaultCC }

func (svc *Service) Window(ctx context.Context, conversationID string) (WindowDecision, error) {
	conv, err := svc.GetConversation(ctx, conversationID)
	if err != nil {
		return WindowDecision{}, err
	}
	return Evaluate(conv.LastInboundAt, NowFunc()), nil
}

func (svc *Service) resolveParticipant(ctx context.Context, phone string) Participant {
	if svc.resolver != nil {
		pt, err := svc.resolver.ResolveParticipant(ctx, phone)
		if err == nil {
			return pt
		}
		svc.logger.Error(fmt.Sprintf("resolving participant: %v", err), err)
	}
	return Participant{Type: ParticipantUnknown, Metadata: map[string]string{MetaIdentifiedBy: "none"}}
}

// getOrCreateConversation returns the conversation for `phone`, creating it if need be (created = true).
func (svc *Service) getOrCreateConversation(ctx context.Context, phone, profileName string) (Conversation, bool, error) {
	conv, err := svc.repo.GetConversation(ctx, GetFilter{Phone: phone})
	if err == nil {
		if conv.ParticipantType == ParticipantUnknown {
			conv = svc.reidentify(ctx, conv)
		}
		return conv, false, nil
	} else if errors.Cause(err) != ErrNotFound {
		return Conversation{}, false, errors.Wrap(err, "finding conversation by phone")
	}

	pt := svc.resolveParticipant(ctx, phone)
	meta := make(map[string]string, len(pt.Metadata)+1)
	for k, v := range pt.Metadata {
		meta[k] = v
	}
	name := pt.Name
	if profileName != "" {
		meta[MetaProfileName] = profileName
		if name == "" {
			name = profileName
		}
	}

	now := NowFunc()
	conv, err = svc.repo.CreateConversation(ctx, Conversation{
		Phone:           phone,
		ParticipantType: pt.Type,
		ParticipantID:   pt.ID,
		ParticipantName: name,
		Metadata:        meta,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		if errors.Cause(err) == ErrConversationExists { // created concurrently
			conv, err = svc.repo.GetConversation(ctx, GetFilter{Phone: phone})
			return conv, false, errors.Wrap(err, "finding conversation by phone")
		}
		return Conversation{}, false, errors.Wrap(err, "creating conversation")
	}
	return conv, true, nil
}

// reidentify resolves the participant of a conversation started by an unknown contact again,
// in case their phone has since been added to the school directory.
func (svc *Service) reidentify(ctx context.Context, conv Conversation) Conversation {
	pt := svc.resolveParticipant(ctx, conv.Phone)
	if pt.Type == ParticipantUnknown {
		return conv
	}

	meta := make(map[string]string, len(pt.Metadata)+1)
	for k, v := range pt.Metadata {
		meta[k] = v
	}
	if profileName := conv.Metadata[MetaProfileName]; profileName != "" {
		meta[MetaProfileName] = profileName
	}
	conv.ParticipantType = pt.Type
	conv.ParticipantID = pt.ID
	if pt.Name != "" {
		conv.ParticipantName = pt.Name
	}
	conv.Metadata = meta

	updated, err := svc.repo.UpdateConversation(ctx, conv)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("updating conversation %s participant: %v", conv.ID, err), err)
		return conv
	}
	return updated
}

// ReceiveInbound records a message received from a participant. Provider retries are deduplicated
// on the provider id.
func (svc *Service) ReceiveInbound(ctx context.Context, in InboundMessage) (Conversation, Message, error) {
	phone := core.NormalizePhone(in.From, svc.defaultCC)
	if phone == "" {
		return Conversation{}, Message{}, core.NewValidationError(nil, core.FieldError{Field: "from", Error: "invalid phone number"})
	}

	if in.ProviderID != "" {
		if conv, msg, err := svc.findInbound(ctx, in.ProviderID); err == nil {
			return conv, msg, nil
		} else if errors.Cause(err) != ErrNotFound {
			return Conversation{}, Message{}, err
		}
	}

	conv, created, err := svc.getOrCreateConversation(ctx, phone, core.CleanString(in.ProfileName))
	if err != nil {
		return Conversation{}, Message{}, err
	}

	at := in.ReceivedAt.UTC()
	if in.ReceivedAt.IsZero() {
		at = NowFunc()
	}
	kind := in.Kind
	if kind == "" {
		kind = KindText
	}
	msg, err := svc.repo.CreateMessage(ctx, Message{
		ConversationID: conv.ID,
		ProviderID:     in.ProviderID,
		Direction:      DirectionInbound,
		Kind:           kind,
		Content:        in.Content,
		MediaURL:       in.MediaURL,
		Status:         StatusReceived,
		CreatedAt:      at,
		UpdatedAt:      at,
	})
	if err != nil {
		if errors.Cause(err) == ErrDuplicateMessage { // provider retried concurrently
			return svc.findInbound(ctx, in.ProviderID)
		}
		return Conversation{}, Message{}, errors.Wrap(err, "creating message")
	}

	conv, err = svc.repo.TouchConversation(ctx, conv.ID, DirectionInbound, at, 1)
	if err != nil {
		return Conversation{}, Message{}, errors.Wrap(err, "touching conversation")
	}

	if created && conv.ParticipantType == ParticipantUnknown {
		svc.notifyNewConversation(conv, msg)
	}
	return conv, msg, nil
}

func (svc *Service) findInbound(ctx context.Context, providerID string) (Conversation, Message, error) {
	msg, err := svc.repo.GetMessage(ctx, MessageGetFilter{ProviderID: providerID})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Conversation{}, Message{}, ErrNotFound
		}
		return Conversation{}, Message{}, errors.Wrap(err, "finding message by provider id")
	}
	conv, err := svc.repo.GetConversation(ctx, GetFilter{ID: msg.ConversationID})
	if err != nil {
		return Conversation{}, Message{}, errors.Wrap(err, "finding conversation by id")
	}
	return conv, msg, nil
}

func (svc *Service) notifyNewConversation(conv Conversation, msg Message) {
	if svc.mailSvc == nil || len(svc.notifyEmails) == 0 {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           svc.notifyEmails,
		Subject:      "New WhatsApp conversation from " + conv.Phone,
		Categories:   []string{newConversationTemplate},
		CustomArgs:   map[string]string{"conversation_id": conv.ID},
		TemplateName: newConversationTemplate,
		TemplateData: struct {
			ConversationID string
			Phone          string
			ProfileName    string
			Content        string
		}{
			ConversationID: conv.ID,
			Phone:          conv.Phone,
			ProfileName:    conv.Metadata[MetaProfileName],
			Content:        msg.Content,
		},
	})
}

// StartConversation returns the conversation with `nc.Phone`, creating it if need be.
// New conversations have no inbound message yet, so only templates may be sent to them.
func (svc *Service) StartConversation(ctx context.Context, nc NewConversation) (Conversation, error) {
	phone := core.NormalizePhone(nc.Phone, svc.defaultCC)
	if phone == "" {
		return Conversation{}, core.NewValidationError(nil, core.FieldError{Field: "phone", Error: "invalid phone number"})
	}
	conv, _, err := svc.getOrCreateConversation(ctx, phone, "")
	return conv, err
}

// SendText sends a freeform message, which is only allowed within the messaging window.
// Returns a *PolicyDeniedError otherwise; nothing is stored in that case.
func (svc *Service) SendText(ctx context.Context, conversationID string, nm NewTextMessage, sentBy string) (Message, error) {
	content := core.CleanString(nm.Content)
	if content == "" {
		return Message{}, core.NewValidationError(nil, core.FieldError{Field: "content", Error: "this field is required"})
	}

	conv, err := svc.GetConversation(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}
	now := NowFunc()
	if decision := Evaluate(conv.LastInboundAt, now); decision.TemplateRequired {
		return Message{}, &PolicyDeniedError{Decision: decision}
	}

	return svc.queue(ctx, Message{
		ConversationID: conv.ID,
		Direction:      DirectionOutbound,
		Kind:           KindText,
		Content:        content,
		SentBy:         sentBy,
		CreatedAt:      now,
	})
}

// SendTemplate sends an approved template, whatever the state of the messaging window.
func (svc *Service) SendTemplate(ctx context.Context, conversationID string, nm NewTemplateMessage, sentBy string) (Message, error) {
	conv, err := svc.GetConversation(ctx, conversationID)
	if err != nil {
		return Message{}, err
	}

	tmpl, err := svc.repo.GetTemplate(ctx, core.CleanString(nm.Template, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Message{}, core.NewValidationError(ErrTemplateNotFound, core.FieldError{Field: "template", Error: ErrTemplateNotFound.Error()})
		}
		return Message{}, errors.Wrap(err, "finding template")
	}
	if !tmpl.IsApproved() {
		return Message{}, core.NewValidationError(ErrTemplateNotApproved, core.FieldError{Field: "template", Error: ErrTemplateNotApproved.Error()})
	}
	body, err := tmpl.Render(nm.Variables)
	if err != nil {
		return Message{}, core.NewValidationError(ErrTemplateVariables, core.FieldError{Field: "variables", Error: err.Error()})
	}

	return svc.queue(ctx, Message{
		ConversationID:    conv.ID,
		Direction:         DirectionOutbound,
		Kind:              KindText,
		Content:           body,
		TemplateName:      tmpl.Name,
		TemplateVariables: nm.Variables,
		SentBy:            sentBy,
		CreatedAt:         NowFunc(),
	})
}

// queue stores an outbound message as queued, then dispatches it.
func (svc *Service) queue(ctx context.Context, msg Message) (Message, error) {
	msg.Status = StatusQueued
	msg.UpdatedAt = msg.CreatedAt

	msg, err := svc.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	if _, err = svc.repo.TouchConversation(ctx, msg.ConversationID, DirectionOutbound, msg.CreatedAt, 0); err != nil {
		return Message{}, errors.Wrap(err, "touching conversation")
	}
	return svc.dispatch(ctx, msg)
}

func (svc *Service) dispatch(ctx context.Context, msg Message) (Message, error) {
	var dispatchErr error
	if svc.dispatcher != nil {
		if err := svc.dispatcher.Dispatch(ctx, msg.ID); err != nil {
			dispatchErr = &DispatchError{Err: errors.Wrap(err, "enqueuing message"), Code: "enqueue", Retryable: true}
			if err := svc.MarkFailed(ctx, msg.ID, dispatchErr); err != nil {
				return msg, errors.Wrap(err, "marking message failed")
			}
		}
	} else if err := svc.Deliver(ctx, msg.ID); err != nil {
		// nothing retries inline deliveries
		dispatchErr = err
		if err := svc.MarkFailed(ctx, msg.ID, err); err != nil {
			return msg, errors.Wrap(err, "marking message failed")
		}
	}

	refreshed, err := svc.repo.GetMessage(ctx, MessageGetFilter{ID: msg.ID})
	if err != nil {
		return msg, errors.Wrap(err, "finding message by id")
	}
	return refreshed, dispatchErr
}

// Deliver sends a queued message through the provider. Messages that are not queued are skipped.
// Returns a *DispatchError on failure; non-retryable failures mark the message failed.
// Store errors are retryable, so a queued message is never left behind.
func (svc *Service) Deliver(ctx context.Context, messageID string) error {
	msg, err := svc.repo.GetMessage(ctx, MessageGetFilter{ID: messageID})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return err
		}
		return storeError(err, "finding message by id")
	}
	if !msg.IsOutbound() || msg.Status != StatusQueued {
		return nil
	}

	var receipt Receipt
	conv, err := svc.repo.GetConversation(ctx, GetFilter{ID: msg.ConversationID})
	switch {
	case errors.Cause(err) == ErrNotFound:
		err = &DispatchError{Err: ErrNotFound, Code: "conversation-not-found"}
	case err != nil:
		err = storeError(err, "finding conversation by id")
	case msg.IsTemplate():
		receipt, err = svc.deliverTemplate(ctx, conv, msg)
	default:
		// the window may have closed while the message was queued
		if decision := Evaluate(conv.LastInboundAt, NowFunc()); decision.TemplateRequired {
			err = &DispatchError{Err: &PolicyDeniedError{Decision: decision}, Code: string(decision.Reason)}
		} else {
			receipt, err = svc.provider.SendText(ctx, conv.Phone, msg.Content)
		}
	}

	if err != nil {
		de := asDispatchError(err)
		if !de.Retryable {
			if err := svc.MarkFailed(ctx, msg.ID, de); err != nil {
				return storeError(err, "marking message failed")
			}
		}
		return de
	}

	_, err = svc.repo.UpdateMessageStatus(ctx, msg.ID, StatusChange{
		From:       []Status{StatusQueued},
		To:         StatusSent,
		ProviderID: receipt.ID,
		At:         NowFunc(),
	})
	if err != nil && errors.Cause(err) != ErrStatusConflict {
		return errors.Wrap(err, "updating message status")
	}
	return nil
}

// deliverTemplate sends a template message; the template may have been rejected while the message was queued.
func (svc *Service) deliverTemplate(ctx context.Context, conv Conversation, msg Message) (Receipt, error) {
	tmpl, err := svc.repo.GetTemplate(ctx, msg.TemplateName)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Receipt{}, &DispatchError{Err: ErrTemplateNotFound, Code: "template-not-found"}
		}
		return Receipt{}, storeError(err, "finding template")
	}
	if !tmpl.IsApproved() {
		return Receipt{}, &DispatchError{Err: ErrTemplateNotApproved, Code: "template-not-approved"}
	}
	return svc.provider.SendTemplate(ctx, conv.Phone, tmpl, msg.TemplateVariables)
}

// MarkFailed records that a message could not be delivered.
func (svc *Service) MarkFailed(ctx context.Context, messageID string, cause error) error {
	chg := StatusChange{
		From: TransitionSources(StatusFailed),
		To:   StatusFailed,
		At:   NowFunc(),
	}
	if cause != nil {
		chg.ErrorCode = asDispatchError(cause).Code
		chg.ErrorMessage = cause.Error()
	}
	if _, err := svc.repo.UpdateMessageStatus(ctx, messageID, chg); err != nil && errors.Cause(err) != ErrStatusConflict {
		return errors.Wrap(err, "updating message status")
	}
	return nil
}

// Retry re-queues a failed outbound message. Freeform messages are checked against the window again.
func (svc *Service) Retry(ctx context.Context, messageID string) (Message, error) {
	msg, err := svc.GetMessage(ctx, messageID)
	if err != nil {
		return Message{}, err
	}
	if !msg.IsOutbound() || msg.Status != StatusFailed {
		return Message{}, core.NewValidationError(ErrNotRetryable)
	}
	if !msg.IsTemplate() {
		conv, err := svc.GetConversation(ctx, msg.ConversationID)
		if err != nil {
			return Message{}, err
		}
		if decision := Evaluate(conv.LastInboundAt, NowFunc()); decision.TemplateRequired {
			return Message{}, &PolicyDeniedError{Decision: decision}
		}
	}

	msg, err = svc.repo.UpdateMessageStatus(ctx, msg.ID, StatusChange{
		From: []Status{StatusFailed},
		To:   StatusQueued,
		At:   NowFunc(),
	})
	if err != nil {
		if errors.Cause(err) == ErrStatusConflict {
			return Message{}, core.NewValidationError(ErrNotRetryable)
		}
		return Message{}, errors.Wrap(err, "updating message status")
	}
	return svc.dispatch(ctx, msg)
}

// ApplyStatus records a delivery status reported by the provider.
// Updates that would move a message status backwards are ignored.
func (svc *Service) ApplyStatus(ctx context.Context, upd StatusUpdate) (Message, error) {
	to, err := ProviderStatus(upd.Status)
	if err != nil {
		return Message{}, core.NewValidationError(err, core.FieldError{Field: "status", Error: err.Error()})
	}

	msg, err := svc.repo.GetMessage(ctx, MessageGetFilter{ProviderID: upd.ProviderID})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Message{}, ErrNotFound
		}
		return Message{}, errors.Wrap(err, "finding message by provider id")
	}
	if to == "" || !CanTransition(msg.Status, to) {
		return msg, nil
	}

	at := upd.At.UTC()
	if upd.At.IsZero() {
		at = NowFunc()
	}
	updated, err := svc.repo.UpdateMessageStatus(ctx, msg.ID, StatusChange{
		From:         TransitionSources(to),
		To:           to,
		ErrorCode:    upd.ErrorCode,
		ErrorMessage: upd.ErrorMessage,
		At:           at,
	})
	if err != nil {
		if errors.Cause(err) == ErrStatusConflict { // a concurrent update got there first
			return svc.GetMessage(ctx, msg.ID)
		}
		return Message{}, errors.Wrap(err, "updating message status")
	}
	return updated, nil
}

func (svc *Service) MarkRead(ctx context.Context, conversationID string) (Conversation, error) {
	conv, err := svc.repo.MarkConversationRead(ctx, conversationID, NowFunc())
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, errors.Wrap(err, "marking conversation read")
	}
	return conv, nil
}

func (svc *Service) GetConversation(ctx context.Context, id string) (Conversation, error) {
	conv, err := svc.repo.GetConversation(ctx, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, errors.Wrap(err, "finding conversation by id")
	}
	return conv, nil
}

func (svc *Service) QueryConversations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Conversation, error) {
	ordering = core.CleanOrderings(ordering, ConversationOrderings)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "last_message_at"}}
	}
	return svc.repo.QueryConversations(ctx, filter, ordering)
}

func (svc *Service) GetMessage(ctx context.Context, id string) (Message, error) {
	msg, err := svc.repo.GetMessage(ctx, MessageGetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Message{}, ErrNotFound
		}
		return Message{}, errors.Wrap(err, "finding message by id")
	}
	return msg, nil
}

func (svc *Service) QueryMessages(ctx context.Context, conversationID string) ([]Message, error) {
	if _, err := svc.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMessages(ctx, conversationID)
}

func (svc *Service) CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error) {
	now := NowFunc()
	tmpl := Template{
		Name:       nt.Name,
		ContentSID: nt.ContentSID,
		Body:       nt.Body,
		Language:   nt.Language,
		Category:   nt.Category,
		Status:     nt.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if tmpl.Language == "" {
		tmpl.Language = "en"
	}
	if tmpl.Category == "" {
		tmpl.Category = CategoryUtility
	}
	if tmpl.Status == "" {
		tmpl.Status = TemplatePending
	}

	tmpl, err := svc.repo.CreateTemplate(ctx, tmpl)
	if err != nil {
		if errors.Cause(err) == ErrTemplateExists {
			return Template{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return Template{}, errors.Wrap(err, "creating template")
	}
	return tmpl, nil
}

func (svc *Service) QueryTemplates(ctx context.Context, filter *TemplateQueryFilter) ([]Template, error) {
	return svc.repo.QueryTemplates(ctx, filter)
}
