package syncengine

import (
	"context"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

type fakeEmailRepo struct {
	threads     map[uint]*models.EmailThread
	links       map[uint]*models.SyncedEmailMessage
	attachments []*models.EmailAttachment
	nextID      uint
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{
		threads: make(map[uint]*models.EmailThread),
		links:   make(map[uint]*models.SyncedEmailMessage),
		nextID:  1,
	}
}

func (r *fakeEmailRepo) CreateThread(thread *models.EmailThread) error {
	thread.ID = r.nextID
	r.nextID++
	clone := *thread
	r.threads[thread.ID] = &clone
	return nil
}

func (r *fakeEmailRepo) UpdateThread(thread *models.EmailThread) error {
	clone := *thread
	r.threads[thread.ID] = &clone
	return nil
}

func (r *fakeEmailRepo) GetThreadByID(id uint) (*models.EmailThread, error) {
	if t, ok := r.threads[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEmailRepo) GetThreadByProviderThreadID(integrationID uint, providerThreadID string) (*models.EmailThread, error) {
	for _, l := range r.links {
		if l.IntegrationID == integrationID && l.ProviderThreadID == providerThreadID {
			return r.GetThreadByID(l.ThreadID)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEmailRepo) ListThreadsByUser(userID uint, offset, limit int) ([]models.EmailThread, error) {
	var out []models.EmailThread
	for _, t := range r.threads {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeEmailRepo) SetThreadUnread(threadID uint, unread bool) error {
	t, ok := r.threads[threadID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.Unread = unread
	return nil
}

func (r *fakeEmailRepo) CreateMessageLink(link *models.SyncedEmailMessage) error {
	for _, l := range r.links {
		if l.IntegrationID == link.IntegrationID && l.ProviderMessageID == link.ProviderMessageID {
			return gorm.ErrDuplicatedKey
		}
	}
	link.ID = r.nextID
	r.nextID++
	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *fakeEmailRepo) GetMessageLink(integrationID uint, providerMessageID string) (*models.SyncedEmailMessage, error) {
	for _, l := range r.links {
		if l.IntegrationID == integrationID && l.ProviderMessageID == providerMessageID {
			clone := *l
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEmailRepo) ListMessageIDs(integrationID uint) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, l := range r.links {
		if l.IntegrationID == integrationID {
			out[l.ProviderMessageID] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeEmailRepo) ListLinksByThread(threadID uint) ([]models.SyncedEmailMessage, error) {
	var out []models.SyncedEmailMessage
	for _, l := range r.links {
		if l.ThreadID == threadID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InternalDate.Before(out[j].InternalDate) })
	return out, nil
}

func (r *fakeEmailRepo) CreateAttachment(attachment *models.EmailAttachment) error {
	r.attachments = append(r.attachments, attachment)
	return nil
}

type fakeCustomerRepo struct {
	customers map[uint]*models.Customer
}

func newFakeCustomerRepo(list ...*models.Customer) *fakeCustomerRepo {
	r := &fakeCustomerRepo{customers: make(map[uint]*models.Customer)}
	for _, c := range list {
		r.customers[c.ID] = c
	}
	return r
}

func (r *fakeCustomerRepo) Create(customer *models.Customer) error { return nil }

func (r *fakeCustomerRepo) GetByID(id uint) (*models.Customer, error) {
	if c, ok := r.customers[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCustomerRepo) GetByIDForUser(id, userID uint) (*models.Customer, error) {
	c, err := r.GetByID(id)
	if err != nil || c.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *fakeCustomerRepo) GetByEmail(userID uint, email string) (*models.Customer, error) {
	for _, c := range r.customers {
		if c.UserID == userID && c.Email == email {
			clone := *c
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCustomerRepo) Update(customer *models.Customer) error { return nil }
func (r *fakeCustomerRepo) Delete(id uint) error                   { return nil }

func (r *fakeCustomerRepo) ListByUser(userID uint, offset, limit int) ([]models.Customer, error) {
	return nil, nil
}

func (r *fakeCustomerRepo) CountByUser(userID uint) (int64, error) { return 0, nil }

func (r *fakeCustomerRepo) Search(userID uint, query string) ([]models.Customer, error) {
	return nil, nil
}

// fakeMail is a scriptable MailProvider.
type fakeMail struct {
	messages    map[string]*integrations.EmailMessage
	changedIDs  []string
	nextCursor  uint64
	historyErr  error
	sent        []*integrations.OutgoingMessage
	sentID      string
	read        map[string]bool
	listCalls   int
	changeCalls int
}

func newFakeMail() *fakeMail {
	return &fakeMail{
		messages: make(map[string]*integrations.EmailMessage),
		read:     make(map[string]bool),
	}
}

func (f *fakeMail) Refresh(ctx context.Context, refreshToken string) (*integrations.Tokens, error) {
	return nil, integrations.ErrReauthRequired
}

func (f *fakeMail) ExchangeCode(ctx context.Context, code string) (*integrations.Tokens, error) {
	return nil, integrations.ErrReauthRequired
}

func (f *fakeMail) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	return "owner@example.com", nil
}

func (f *fakeMail) ListMessages(ctx context.Context, accessToken string, maxResults int64) ([]integrations.EmailMessage, error) {
	f.listCalls++
	var out []integrations.EmailMessage
	for _, m := range f.messages {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeMail) GetMessage(ctx context.Context, accessToken, messageID string) (*integrations.EmailMessage, error) {
	if m, ok := f.messages[messageID]; ok {
		clone := *m
		return &clone, nil
	}
	return nil, &integrations.ProviderError{Op: "get message", StatusCode: http.StatusNotFound}
}

func (f *fakeMail) SendMessage(ctx context.Context, accessToken string, msg *integrations.OutgoingMessage) (string, error) {
	f.sent = append(f.sent, msg)
	return f.sentID, nil
}

func (f *fakeMail) MarkRead(ctx context.Context, accessToken, messageID string, read bool) error {
	f.read[messageID] = read
	return nil
}

func (f *fakeMail) ListChangedMessageIDs(ctx context.Context, accessToken string, sinceHistoryID uint64, maxResults int64) ([]string, uint64, error) {
	f.changeCalls++
	if f.historyErr != nil {
		return nil, 0, f.historyErr
	}
	return f.changedIDs, f.nextCursor, nil
}

func (f *fakeMail) StartWatch(ctx context.Context, accessToken, channelID, webhookURL string) (*integrations.WatchSubscription, error) {
	return &integrations.WatchSubscription{
		ChannelID:  channelID,
		Expiration: time.Now().Add(24 * time.Hour),
		HistoryID:  100,
	}, nil
}

func (f *fakeMail) StopWatch(ctx context.Context, accessToken, channelID, resourceID string) error {
	return nil
}

func testMailIntegration(id, userID uint) *models.Integration {
	return &models.Integration{
		ID:          id,
		UserID:      userID,
		Provider:    models.IntegrationProviderGmail,
		AccessToken: "token",
		TokenExpiry: futureExpiry(),
		SyncEnabled: true,
	}
}

func testMessage(id, threadID, from string, at time.Time) *integrations.EmailMessage {
	return &integrations.EmailMessage{
		ID:           id,
		ThreadID:     threadID,
		From:         from,
		To:           []string{"owner@example.com"},
		Subject:      "Quote request",
		Snippet:      "Hi there",
		Unread:       true,
		InternalDate: at,
	}
}

func newMailTestEngine(intRepo *fakeIntegrationRepo, emailRepo *fakeEmailRepo, customerRepo *fakeCustomerRepo, mailer *fakeMail) *Engine {
	repos := &repository.Repositories{
		Integration: intRepo,
		Email:       emailRepo,
		Customer:    customerRepo,
	}
	manager := integrations.NewManagerWithLocker(intRepo, map[string]integrations.Refresher{}, noopLocker{})
	return &Engine{
		Repos:   repos,
		Manager: manager,
		MailFor: func(provider string) (integrations.MailProvider, error) { return mailer, nil },
	}
}

func TestSyncMailboxImportsAndLinksCustomer(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	integration := testMailIntegration(1, 10)
	customer := &models.Customer{ID: 3, UserID: 10, Name: "Jamie", Email: "customer@example.com"}

	mailer := newFakeMail()
	mailer.messages["msg-1"] = testMessage("msg-1", "thr-1", "customer@example.com", at)

	emailRepo := newFakeEmailRepo()
	engine := newMailTestEngine(newFakeIntegrationRepo(integration), emailRepo, newFakeCustomerRepo(customer), mailer)

	result, err := engine.SyncMailbox(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewMessages)
	assert.Empty(t, result.Errors)

	thread, err := emailRepo.GetThreadByProviderThreadID(integration.ID, "thr-1")
	require.NoError(t, err)
	assert.Equal(t, "Quote request", thread.Subject)
	assert.True(t, thread.Unread)
	assert.Equal(t, 1, thread.MessageCount)
	require.NotNil(t, thread.CustomerID)
	assert.Equal(t, customer.ID, *thread.CustomerID)
}

func TestSyncMailboxIsIdempotent(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	integration := testMailIntegration(1, 10)

	mailer := newFakeMail()
	mailer.messages["msg-1"] = testMessage("msg-1", "thr-1", "someone@example.com", at)

	emailRepo := newFakeEmailRepo()
	engine := newMailTestEngine(newFakeIntegrationRepo(integration), emailRepo, newFakeCustomerRepo(), mailer)

	first, err := engine.SyncMailbox(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, 1, first.NewMessages)

	// Re-processing the same listing must not duplicate links or threads
	second, err := engine.SyncMailbox(context.Background(), integration)
	require.NoError(t, err)
	assert.Zero(t, second.NewMessages)
	assert.Len(t, emailRepo.links, 1)
	assert.Len(t, emailRepo.threads, 1)
}

func TestSyncMailboxHistoryPathAdvancesCursor(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	integration := testMailIntegration(1, 10)
	integration.WatchHistoryID = 500

	mailer := newFakeMail()
	mailer.messages["msg-2"] = testMessage("msg-2", "thr-1", "someone@example.com", at)
	mailer.changedIDs = []string{"msg-2"}
	mailer.nextCursor = 600

	intRepo := newFakeIntegrationRepo(integration)
	engine := newMailTestEngine(intRepo, newFakeEmailRepo(), newFakeCustomerRepo(), mailer)

	result, err := engine.SyncMailbox(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewMessages)
	assert.Equal(t, uint64(600), result.HistoryID)
	assert.Equal(t, uint64(600), integration.WatchHistoryID)
	assert.Zero(t, mailer.listCalls)

	stored, err := intRepo.GetByID(integration.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), stored.WatchHistoryID)
}

func TestSyncMailboxExpiredCursorFallsBack(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	integration := testMailIntegration(1, 10)
	integration.WatchHistoryID = 500

	mailer := newFakeMail()
	mailer.messages["msg-1"] = testMessage("msg-1", "thr-1", "someone@example.com", at)
	mailer.historyErr = &integrations.ProviderError{Op: "history list", StatusCode: http.StatusNotFound}

	engine := newMailTestEngine(newFakeIntegrationRepo(integration), newFakeEmailRepo(), newFakeCustomerRepo(), mailer)

	result, err := engine.SyncMailbox(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewMessages)
	assert.Equal(t, 1, mailer.listCalls)
}

func TestSendEmailMirrorsSentMessage(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	integration := testMailIntegration(1, 10)

	mailer := newFakeMail()
	mailer.sentID = "sent-1"
	mailer.messages["sent-1"] = &integrations.EmailMessage{
		ID: "sent-1", ThreadID: "thr-9", From: "owner@example.com",
		To: []string{"customer@example.com"}, Subject: "Re: Quote", InternalDate: at,
	}

	emailRepo := newFakeEmailRepo()
	engine := newMailTestEngine(newFakeIntegrationRepo(integration), emailRepo, newFakeCustomerRepo(), mailer)

	messageID, err := engine.SendEmail(context.Background(), integration, &integrations.OutgoingMessage{
		To: []string{"customer@example.com"}, Subject: "Re: Quote", BodyText: "On my way",
	})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", messageID)
	require.Len(t, mailer.sent, 1)

	link, err := emailRepo.GetMessageLink(integration.ID, "sent-1")
	require.NoError(t, err)
	assert.True(t, link.Outbound)
}

func TestMarkThreadReadSyncsEveryMessage(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	integration := testMailIntegration(1, 10)

	mailer := newFakeMail()
	mailer.messages["msg-1"] = testMessage("msg-1", "thr-1", "someone@example.com", at)
	mailer.messages["msg-2"] = testMessage("msg-2", "thr-1", "someone@example.com", at.Add(time.Hour))

	emailRepo := newFakeEmailRepo()
	engine := newMailTestEngine(newFakeIntegrationRepo(integration), emailRepo, newFakeCustomerRepo(), mailer)

	_, err := engine.SyncMailbox(context.Background(), integration)
	require.NoError(t, err)

	thread, err := emailRepo.GetThreadByProviderThreadID(integration.ID, "thr-1")
	require.NoError(t, err)
	require.True(t, thread.Unread)

	require.NoError(t, engine.MarkThreadRead(context.Background(), integration, thread, true))

	assert.True(t, mailer.read["msg-1"])
	assert.True(t, mailer.read["msg-2"])

	updated, err := emailRepo.GetThreadByID(thread.ID)
	require.NoError(t, err)
	assert.False(t, updated.Unread)
}
