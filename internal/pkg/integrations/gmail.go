package integrations

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GmailAdapter wraps the Gmail v1 API. Watch notifications are delivered via
// a Cloud Pub/Sub topic rather than a direct webhook, so StartWatch ignores
// the webhook URL and subscribes the configured topic instead.
type GmailAdapter struct {
	conf      *oauth2.Config
	topicName string
}

// NewGmailAdapter creates a new Gmail adapter. topicName is the full Pub/Sub
// topic resource name (projects/<p>/topics/<t>) used for push notifications.
func NewGmailAdapter(conf *oauth2.Config, topicName string) *GmailAdapter {
	return &GmailAdapter{conf: conf, topicName: topicName}
}

func (a *GmailAdapter) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return gmail.NewService(ctx, option.WithTokenSource(src))
}

func (a *GmailAdapter) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	return exchangeCode(ctx, a.conf, code)
}

func (a *GmailAdapter) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	return refreshTokens(ctx, a.conf, refreshToken)
}

func (a *GmailAdapter) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := goauth2.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return "", err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError("userinfo get", err)
	}
	return info.Email, nil
}

func (a *GmailAdapter) ListMessages(ctx context.Context, accessToken string, maxResults int64) ([]EmailMessage, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	res, err := srv.Users.Messages.List("me").MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return nil, wrapGoogleError("messages list", err)
	}

	messages := make([]EmailMessage, 0, len(res.Messages))
	for _, ref := range res.Messages {
		msg, err := a.getMessage(ctx, srv, ref.Id)
		if err != nil {
			return messages, err
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}

func (a *GmailAdapter) GetMessage(ctx context.Context, accessToken, messageID string) (*EmailMessage, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return a.getMessage(ctx, srv, messageID)
}

func (a *GmailAdapter) getMessage(ctx context.Context, srv *gmail.Service, messageID string) (*EmailMessage, error) {
	msg, err := srv.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapGoogleError("message get", err)
	}

	out := &EmailMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Snippet:      msg.Snippet,
		InternalDate: time.UnixMilli(msg.InternalDate),
	}
	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			out.Unread = true
		}
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				out.From = h.Value
			case "To":
				out.To = splitAddressList(h.Value)
			case "Cc":
				out.Cc = splitAddressList(h.Value)
			case "Subject":
				out.Subject = h.Value
			}
		}
		collectGmailParts(ctx, srv, msg.Id, msg.Payload, out)
	}
	return out, nil
}

// collectGmailParts walks the MIME tree extracting bodies and attachments.
func collectGmailParts(ctx context.Context, srv *gmail.Service, messageID string, part *gmail.MessagePart, out *EmailMessage) {
	if part == nil {
		return
	}
	if part.Filename != "" && part.Body != nil {
		att := MessageAttachment{
			Filename: part.Filename,
			MimeType: part.MimeType,
			Size:     part.Body.Size,
		}
		if part.Body.AttachmentId != "" {
			body, err := srv.Users.Messages.Attachments.Get("me", messageID, part.Body.AttachmentId).Context(ctx).Do()
			if err == nil {
				att.Data, _ = decodeBase64URL(body.Data)
			}
		} else if part.Body.Data != "" {
			att.Data, _ = decodeBase64URL(part.Body.Data)
		}
		out.Attachments = append(out.Attachments, att)
		return
	}
	if part.Body != nil && part.Body.Data != "" {
		data, err := decodeBase64URL(part.Body.Data)
		if err == nil {
			switch part.MimeType {
			case "text/plain":
				if out.BodyText == "" {
					out.BodyText = string(data)
				}
			case "text/html":
				if out.BodyHTML == "" {
					out.BodyHTML = string(data)
				}
			}
		}
	}
	for _, child := range part.Parts {
		collectGmailParts(ctx, srv, messageID, child, out)
	}
}

func (a *GmailAdapter) SendMessage(ctx context.Context, accessToken string, msg *OutgoingMessage) (string, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	raw := buildRFC822(msg)
	sent, err := srv.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString([]byte(raw)),
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError("message send", err)
	}
	return sent.Id, nil
}

func (a *GmailAdapter) MarkRead(ctx context.Context, accessToken, messageID string, read bool) error {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}

	req := &gmail.ModifyMessageRequest{}
	if read {
		req.RemoveLabelIds = []string{"UNREAD"}
	} else {
		req.AddLabelIds = []string{"UNREAD"}
	}
	_, err = srv.Users.Messages.Modify("me", messageID, req).Context(ctx).Do()
	if err != nil {
		return wrapGoogleError("message modify", err)
	}
	return nil
}

// ListChangedMessageIDs consumes the Gmail history feed from sinceHistoryID
// and returns the IDs of added messages plus the new history cursor. A 404
// means the cursor is too old; callers fall back to a bounded listing.
func (a *GmailAdapter) ListChangedMessageIDs(ctx context.Context, accessToken string, sinceHistoryID uint64, maxResults int64) ([]string, uint64, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, 0, err
	}

	call := srv.Users.History.List("me").
		StartHistoryId(sinceHistoryID).
		HistoryTypes("messageAdded").
		MaxResults(maxResults)
	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, 0, wrapGoogleError("history list", err)
	}

	var ids []string
	for _, h := range res.History {
		for _, added := range h.MessagesAdded {
			if added.Message != nil {
				ids = append(ids, added.Message.Id)
			}
		}
	}
	return ids, res.HistoryId, nil
}

// StartWatch subscribes the mailbox to the configured Pub/Sub topic. The
// returned HistoryID is the cursor notifications will be relative to.
func (a *GmailAdapter) StartWatch(ctx context.Context, accessToken, channelID, webhookURL string) (*WatchSubscription, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	res, err := srv.Users.Watch("me", &gmail.WatchRequest{
		TopicName: a.topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, wrapGoogleError("users watch", err)
	}

	return &WatchSubscription{
		ChannelID:  channelID,
		Expiration: time.UnixMilli(res.Expiration),
		HistoryID:  res.HistoryId,
	}, nil
}

func (a *GmailAdapter) StopWatch(ctx context.Context, accessToken, channelID, resourceID string) error {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop("me").Context(ctx).Do(); err != nil {
		return wrapGoogleError("users stop", err)
	}
	return nil
}

// buildRFC822 renders an outgoing message as a minimal RFC 822 document.
func buildRFC822(msg *OutgoingMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.Cc, ", "))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\r\n", strings.Join(msg.Bcc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if msg.BodyHTML != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.BodyHTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.BodyText)
	}
	return b.String()
}

// decodeBase64URL decodes Gmail's base64url payloads with or without padding.
func decodeBase64URL(data string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(data)
}

func splitAddressList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
