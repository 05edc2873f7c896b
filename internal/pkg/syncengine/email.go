package syncengine

import (
	"context"
	"errors"
	"fmt"
	nmail "net/mail"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
	"github.com/fielddesk/fielddesk/internal/pkg/metrics/counter"
)

// mailboxPageSize bounds one sync pass; a webhook burst triggers another pass
// instead of an unbounded fetch.
const mailboxPageSize int64 = 50

// MailboxSyncResult summarizes one mailbox sync pass. Per-message failures are
// collected instead of aborting the pass so one broken message cannot block
// the rest of the inbox.
type MailboxSyncResult struct {
	NewMessages    int      `json:"new_messages"`
	UpdatedThreads int      `json:"updated_threads"`
	HistoryID      uint64   `json:"history_id,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// SyncMailbox pulls new and changed messages from the provider into threads
// and message links. With a stored history cursor only the delta is fetched;
// an expired cursor falls back to a bounded recent listing, where the unique
// message-link index keeps the re-scan idempotent.
func (e *Engine) SyncMailbox(ctx context.Context, integration *models.Integration) (*MailboxSyncResult, error) {
	if !integration.SyncEnabled {
		return nil, integrations.ErrSyncDisabled
	}

	adapter, err := e.MailFor(integration.Provider)
	if err != nil {
		return nil, err
	}
	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return nil, err
	}

	result := &MailboxSyncResult{}
	var msgs []integrations.EmailMessage

	if integration.WatchHistoryID > 0 {
		ids, cursor, herr := adapter.ListChangedMessageIDs(ctx, token, integration.WatchHistoryID, mailboxPageSize)
		if isGone(herr) {
			log.Infof("[SyncEngine] History cursor %d for integration %d expired, falling back to full listing",
				integration.WatchHistoryID, integration.ID)
			msgs, err = adapter.ListMessages(ctx, token, mailboxPageSize)
			if err != nil {
				return nil, err
			}
		} else if herr != nil {
			return nil, herr
		} else {
			result.HistoryID = cursor
			for _, id := range ids {
				msg, gerr := adapter.GetMessage(ctx, token, id)
				if gerr != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", id, gerr))
					continue
				}
				msgs = append(msgs, *msg)
			}
		}
	} else {
		msgs, err = adapter.ListMessages(ctx, token, mailboxPageSize)
		if err != nil {
			return nil, err
		}
	}

	for i := range msgs {
		created, uerr := e.upsertMessage(ctx, integration, &msgs[i], false)
		if uerr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("message %s: %v", msgs[i].ID, uerr))
			continue
		}
		if created {
			result.NewMessages++
		} else {
			result.UpdatedThreads++
		}
	}

	if result.HistoryID > 0 && result.HistoryID != integration.WatchHistoryID {
		if err := e.Repos.Integration.UpdateHistoryID(integration.ID, result.HistoryID); err != nil {
			return result, err
		}
		integration.WatchHistoryID = result.HistoryID
	}

	if result.NewMessages > 0 {
		if err := counter.AddMessagesSynced(integration.ID, int64(result.NewMessages)); err != nil {
			log.Warnf("[SyncEngine] Failed to bump sync counter for integration %d: %v", integration.ID, err)
		}
	}
	if err := e.Repos.Integration.TouchLastSynced(integration.ID, int64(result.NewMessages)); err != nil {
		return result, err
	}
	return result, nil
}

// upsertMessage mirrors one provider message. For an already-linked message
// only the thread's read state is reconciled; Unread is the single field the
// provider may write back into a thread.
func (e *Engine) upsertMessage(ctx context.Context, integration *models.Integration, msg *integrations.EmailMessage, outbound bool) (bool, error) {
	_, err := e.Repos.Email.GetMessageLink(integration.ID, msg.ID)
	if err == nil {
		thread, terr := e.Repos.Email.GetThreadByProviderThreadID(integration.ID, msg.ThreadID)
		if terr != nil {
			if errors.Is(terr, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, terr
		}
		if thread.Unread != msg.Unread {
			return false, e.Repos.Email.SetThreadUnread(thread.ID, msg.Unread)
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	thread, err := e.Repos.Email.GetThreadByProviderThreadID(integration.ID, msg.ThreadID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		thread = &models.EmailThread{
			UserID:        integration.UserID,
			IntegrationID: integration.ID,
			CustomerID:    e.matchCustomer(integration.UserID, msg),
			Subject:       msg.Subject,
			Participants:  participantList(msg),
		}
		if err := e.Repos.Email.CreateThread(thread); err != nil {
			return false, err
		}
	} else if err != nil {
		return false, err
	}

	link := &models.SyncedEmailMessage{
		ThreadID:          thread.ID,
		IntegrationID:     integration.ID,
		ProviderMessageID: msg.ID,
		ProviderThreadID:  msg.ThreadID,
		Outbound:          outbound,
		InternalDate:      msg.InternalDate,
	}
	if err := e.Repos.Email.CreateMessageLink(link); err != nil {
		return false, err
	}

	thread.MessageCount++
	if msg.Snippet != "" {
		thread.Snippet = msg.Snippet
	}
	if thread.LastMessageAt == nil || msg.InternalDate.After(*thread.LastMessageAt) {
		t := msg.InternalDate
		thread.LastMessageAt = &t
	}
	if msg.Unread {
		thread.Unread = true
	}
	if err := e.Repos.Email.UpdateThread(thread); err != nil {
		return false, err
	}

	e.offloadAttachments(ctx, integration, thread.ID, link.ID, msg)
	return true, nil
}

// SendEmail sends a message through the integration's mail provider and, when
// the provider returns the sent message's ID, mirrors it right away so the
// next sync pass does not import it as new.
func (e *Engine) SendEmail(ctx context.Context, integration *models.Integration, out *integrations.OutgoingMessage) (string, error) {
	if !integration.SyncEnabled {
		return "", integrations.ErrSyncDisabled
	}

	adapter, err := e.MailFor(integration.Provider)
	if err != nil {
		return "", err
	}
	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return "", err
	}

	messageID, err := adapter.SendMessage(ctx, token, out)
	if err != nil {
		return "", err
	}

	if messageID != "" {
		msg, gerr := adapter.GetMessage(ctx, token, messageID)
		if gerr != nil {
			log.Warnf("[SyncEngine] Sent message %s could not be mirrored: %v", messageID, gerr)
			return messageID, nil
		}
		if _, uerr := e.upsertMessage(ctx, integration, msg, true); uerr != nil {
			log.Warnf("[SyncEngine] Sent message %s could not be mirrored: %v", messageID, uerr)
		}
	}
	return messageID, nil
}

// MarkThreadRead syncs a local read-state change back to the provider and the
// thread row.
func (e *Engine) MarkThreadRead(ctx context.Context, integration *models.Integration, thread *models.EmailThread, read bool) error {
	adapter, err := e.MailFor(integration.Provider)
	if err != nil {
		return err
	}
	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return err
	}

	links, err := e.Repos.Email.ListLinksByThread(thread.ID)
	if err != nil {
		return err
	}
	for i := range links {
		if err := adapter.MarkRead(ctx, token, links[i].ProviderMessageID, read); err != nil {
			return err
		}
	}
	return e.Repos.Email.SetThreadUnread(thread.ID, !read)
}

// matchCustomer attaches a thread to a known customer when a participant
// address matches one.
func (e *Engine) matchCustomer(userID uint, msg *integrations.EmailMessage) *uint {
	candidates := append([]string{msg.From}, msg.To...)
	for _, raw := range candidates {
		addr, err := nmail.ParseAddress(raw)
		if err != nil {
			continue
		}
		customer, err := e.Repos.Customer.GetByEmail(userID, addr.Address)
		if err != nil {
			continue
		}
		return &customer.ID
	}
	return nil
}

func participantList(msg *integrations.EmailMessage) string {
	parts := make([]string, 0, 1+len(msg.To)+len(msg.Cc))
	if msg.From != "" {
		parts = append(parts, msg.From)
	}
	parts = append(parts, msg.To...)
	parts = append(parts, msg.Cc...)
	return strings.Join(parts, ", ")
}

// offloadAttachments pushes attachment blobs to object storage and records
// the metadata rows. Failures are logged and skipped; attachments are not
// worth failing a mailbox sync over.
func (e *Engine) offloadAttachments(ctx context.Context, integration *models.Integration, threadID, linkID uint, msg *integrations.EmailMessage) {
	if e.Store == nil {
		return
	}
	for _, att := range msg.Attachments {
		if len(att.Data) == 0 || att.Filename == "" {
			continue
		}
		key := e.Store.ObjectKey(integration.ID, msg.ID, att.Filename)
		if _, err := e.Store.Upload(ctx, key, att.MimeType, att.Data); err != nil {
			log.Warnf("[SyncEngine] Attachment upload %s failed: %v", key, err)
			continue
		}
		record := &models.EmailAttachment{
			ThreadID:      threadID,
			MessageLinkID: linkID,
			Filename:      att.Filename,
			MimeType:      att.MimeType,
			SizeBytes:     att.Size,
			StorageKey:    key,
		}
		if err := e.Repos.Email.CreateAttachment(record); err != nil {
			log.Warnf("[SyncEngine] Attachment record %s failed: %v", key, err)
		}
	}
}
