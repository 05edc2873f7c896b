package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const msGraphBaseURL = "https://graph.microsoft.com/v1.0"

// OutlookAdapter implements MailProvider for Microsoft Outlook/365 against
// the Graph API. Graph has no Gmail-style history feed on v1.0 messages, so
// the changed-since strategy falls back to a bounded recent listing.
type OutlookAdapter struct {
	conf    *oauth2.Config
	baseURL string
}

// NewOutlookAdapter creates a new Outlook adapter.
func NewOutlookAdapter(conf *oauth2.Config) *OutlookAdapter {
	return &OutlookAdapter{conf: conf, baseURL: msGraphBaseURL}
}

// NewOutlookAdapterWithBaseURL is used by tests to point the adapter at a
// local server.
func NewOutlookAdapterWithBaseURL(conf *oauth2.Config, baseURL string) *OutlookAdapter {
	return &OutlookAdapter{conf: conf, baseURL: baseURL}
}

func (a *OutlookAdapter) client(ctx context.Context, accessToken string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return oauth2.NewClient(ctx, src)
}

func (a *OutlookAdapter) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	return exchangeCode(ctx, a.conf, code)
}

func (a *OutlookAdapter) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	return refreshTokens(ctx, a.conf, refreshToken)
}

func (a *OutlookAdapter) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	var me struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := a.getJSON(ctx, accessToken, "/me", nil, &me); err != nil {
		return "", err
	}
	if me.Mail != "" {
		return me.Mail, nil
	}
	return me.UserPrincipalName, nil
}

type outlookMessage struct {
	ID               string `json:"id"`
	ConversationID   string `json:"conversationId"`
	Subject          string `json:"subject"`
	BodyPreview      string `json:"bodyPreview"`
	IsRead           bool   `json:"isRead"`
	ReceivedDateTime string `json:"receivedDateTime"`
	Body             struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	From struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	ToRecipients []outlookRecipient `json:"toRecipients"`
	CcRecipients []outlookRecipient `json:"ccRecipients"`
}

type outlookRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func (a *OutlookAdapter) ListMessages(ctx context.Context, accessToken string, maxResults int64) ([]EmailMessage, error) {
	params := url.Values{}
	params.Set("$top", fmt.Sprintf("%d", maxResults))
	params.Set("$orderby", "receivedDateTime desc")

	var result struct {
		Value []outlookMessage `json:"value"`
	}
	if err := a.getJSON(ctx, accessToken, "/me/messages", params, &result); err != nil {
		return nil, err
	}

	messages := make([]EmailMessage, 0, len(result.Value))
	for i := range result.Value {
		messages = append(messages, *convertOutlookMessage(&result.Value[i]))
	}
	return messages, nil
}

func (a *OutlookAdapter) GetMessage(ctx context.Context, accessToken, messageID string) (*EmailMessage, error) {
	var msg outlookMessage
	if err := a.getJSON(ctx, accessToken, "/me/messages/"+messageID, nil, &msg); err != nil {
		return nil, err
	}
	return convertOutlookMessage(&msg), nil
}

func (a *OutlookAdapter) SendMessage(ctx context.Context, accessToken string, msg *OutgoingMessage) (string, error) {
	contentType, content := "Text", msg.BodyText
	if msg.BodyHTML != "" {
		contentType, content = "HTML", msg.BodyHTML
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"subject": msg.Subject,
			"body": map[string]string{
				"contentType": contentType,
				"content":     content,
			},
			"toRecipients": toOutlookRecipients(msg.To),
			"ccRecipients": toOutlookRecipients(msg.Cc),
		},
		"saveToSentItems": true,
	}

	resp, err := a.do(ctx, accessToken, "POST", "/me/sendMail", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", providerErrorFromResponse("send mail", resp)
	}
	// Graph sendMail returns no message ID
	return "", nil
}

func (a *OutlookAdapter) MarkRead(ctx context.Context, accessToken, messageID string, read bool) error {
	resp, err := a.do(ctx, accessToken, "PATCH", "/me/messages/"+messageID, map[string]bool{"isRead": read})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providerErrorFromResponse("mark read", resp)
	}
	return nil
}

// ListChangedMessageIDs is the bounded-polling fallback: Graph v1.0 has no
// cheap history cursor for messages, so re-sync fetches the most recent IDs
// and relies on the link table to dedup. The returned cursor is always 0.
func (a *OutlookAdapter) ListChangedMessageIDs(ctx context.Context, accessToken string, sinceHistoryID uint64, maxResults int64) ([]string, uint64, error) {
	params := url.Values{}
	params.Set("$top", fmt.Sprintf("%d", maxResults))
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$select", "id")

	var result struct {
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if err := a.getJSON(ctx, accessToken, "/me/messages", params, &result); err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(result.Value))
	for _, v := range result.Value {
		ids = append(ids, v.ID)
	}
	return ids, 0, nil
}

// StartWatch creates a Graph change-notification subscription on the mailbox.
// Graph caps mailbox subscriptions at about three days.
func (a *OutlookAdapter) StartWatch(ctx context.Context, accessToken, channelID, webhookURL string) (*WatchSubscription, error) {
	expiration := time.Now().Add(3 * 24 * time.Hour)
	payload := map[string]interface{}{
		"changeType":         "created,updated",
		"notificationUrl":    webhookURL,
		"resource":           "/me/messages",
		"expirationDateTime": expiration.UTC().Format(time.RFC3339),
		"clientState":        channelID,
	}

	resp, err := a.do(ctx, accessToken, "POST", "/subscriptions", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, providerErrorFromResponse("create subscription", resp)
	}

	var sub struct {
		ID                 string `json:"id"`
		ExpirationDateTime string `json:"expirationDateTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription response: %w", err)
	}

	out := &WatchSubscription{ChannelID: channelID, ResourceID: sub.ID, Expiration: expiration}
	if t, err := time.Parse(time.RFC3339, sub.ExpirationDateTime); err == nil {
		out.Expiration = t
	}
	return out, nil
}

func (a *OutlookAdapter) StopWatch(ctx context.Context, accessToken, channelID, resourceID string) error {
	resp, err := a.do(ctx, accessToken, "DELETE", "/subscriptions/"+resourceID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return providerErrorFromResponse("delete subscription", resp)
	}
	return nil
}

func (a *OutlookAdapter) getJSON(ctx context.Context, accessToken, path string, params url.Values, out interface{}) error {
	endpoint := a.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Prefer", "outlook.timezone=\"UTC\"")

	resp, err := a.client(ctx, accessToken).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrReauthRequired
	}
	if resp.StatusCode != http.StatusOK {
		return providerErrorFromResponse("GET "+path, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *OutlookAdapter) do(ctx context.Context, accessToken, method, path string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client(ctx, accessToken).Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, ErrReauthRequired
	}
	return resp, nil
}

func convertOutlookMessage(msg *outlookMessage) *EmailMessage {
	out := &EmailMessage{
		ID:       msg.ID,
		ThreadID: msg.ConversationID,
		Subject:  msg.Subject,
		Snippet:  msg.BodyPreview,
		From:     msg.From.EmailAddress.Address,
		Unread:   !msg.IsRead,
	}
	if t, err := time.Parse(time.RFC3339, msg.ReceivedDateTime); err == nil {
		out.InternalDate = t
	}
	for _, r := range msg.ToRecipients {
		out.To = append(out.To, r.EmailAddress.Address)
	}
	for _, r := range msg.CcRecipients {
		out.Cc = append(out.Cc, r.EmailAddress.Address)
	}
	switch msg.Body.ContentType {
	case "html", "HTML":
		out.BodyHTML = msg.Body.Content
	default:
		out.BodyText = msg.Body.Content
	}
	return out
}

func toOutlookRecipients(addresses []string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(addresses))
	for _, addr := range addresses {
		out = append(out, map[string]interface{}{
			"emailAddress": map[string]string{"address": addr},
		})
	}
	return out
}

func providerErrorFromResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}
