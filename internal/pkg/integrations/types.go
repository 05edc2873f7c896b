package integrations

import (
	"context"
	"time"
)

// Tokens is the provider-independent OAuth token set.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// CalendarEvent is the provider-independent calendar event shape.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
}

// EmailMessage is the provider-independent mailbox message shape.
type EmailMessage struct {
	ID           string
	ThreadID     string
	From         string
	To           []string
	Cc           []string
	Bcc          []string
	Subject      string
	Snippet      string
	BodyText     string
	BodyHTML     string
	Unread       bool
	InternalDate time.Time
	Attachments  []MessageAttachment
}

// MessageAttachment is attachment metadata plus (optionally) its content.
type MessageAttachment struct {
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

// OutgoingMessage describes a message to send through a mail provider.
type OutgoingMessage struct {
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	BodyText string
	BodyHTML string
}

// WatchSubscription is the result of registering a push channel.
type WatchSubscription struct {
	ChannelID  string
	ResourceID string
	Expiration time.Time
	HistoryID  uint64
}

// ReviewData is a business-profile review as returned by the provider.
type ReviewData struct {
	ID           string
	ReviewerName string
	StarRating   int
	Comment      string
	ReplyText    string
	ReviewedAt   *time.Time
	RepliedAt    *time.Time
}

// Refresher is the token-refresh slice of a provider adapter, used by the
// integration manager without caring which provider it talks to.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
}

// CalendarProvider wraps a provider's calendar API. Each method is a single
// network call with no internal retry; callers are responsible for token
// freshness and idempotence.
type CalendarProvider interface {
	Refresher
	ExchangeCode(ctx context.Context, code string) (*Tokens, error)
	AccountEmail(ctx context.Context, accessToken string) (string, error)
	ListEvents(ctx context.Context, accessToken, calendarID string, from, to time.Time) ([]CalendarEvent, error)
	CreateEvent(ctx context.Context, accessToken, calendarID string, event *CalendarEvent) (string, error)
	UpdateEvent(ctx context.Context, accessToken, calendarID string, event *CalendarEvent) error
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
	StartWatch(ctx context.Context, accessToken, calendarID, channelID, webhookURL string) (*WatchSubscription, error)
	StopWatch(ctx context.Context, accessToken, channelID, resourceID string) error
}

// MailProvider wraps a provider's mailbox API.
type MailProvider interface {
	Refresher
	ExchangeCode(ctx context.Context, code string) (*Tokens, error)
	AccountEmail(ctx context.Context, accessToken string) (string, error)
	ListMessages(ctx context.Context, accessToken string, maxResults int64) ([]EmailMessage, error)
	GetMessage(ctx context.Context, accessToken, messageID string) (*EmailMessage, error)
	SendMessage(ctx context.Context, accessToken string, msg *OutgoingMessage) (string, error)
	MarkRead(ctx context.Context, accessToken, messageID string, read bool) error
	// ListChangedMessageIDs is the pluggable changed-since strategy: providers
	// with a history/delta API consume sinceHistoryID and return the new
	// cursor; providers without one fall back to a bounded recent listing and
	// return cursor 0.
	ListChangedMessageIDs(ctx context.Context, accessToken string, sinceHistoryID uint64, maxResults int64) ([]string, uint64, error)
	StartWatch(ctx context.Context, accessToken, channelID, webhookURL string) (*WatchSubscription, error)
	StopWatch(ctx context.Context, accessToken, channelID, resourceID string) error
}

// ReviewProvider wraps a business-profile reviews API.
type ReviewProvider interface {
	Refresher
	ExchangeCode(ctx context.Context, code string) (*Tokens, error)
	AccountEmail(ctx context.Context, accessToken string) (string, error)
	ListReviews(ctx context.Context, accessToken, locationID string) ([]ReviewData, error)
	ReplyToReview(ctx context.Context, accessToken, locationID, reviewID, reply string) error
	DeleteReply(ctx context.Context, accessToken, locationID, reviewID string) error
}
