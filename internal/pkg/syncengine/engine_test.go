package syncengine

import (
	"context"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

// Test fakes backed by in-memory maps. Only the methods the engine exercises
// carry real logic; the rest satisfy the repository interfaces.

type fakeIntegrationRepo struct {
	integrations map[uint]*models.Integration
	touched      map[uint]int
}

func newFakeIntegrationRepo(list ...*models.Integration) *fakeIntegrationRepo {
	r := &fakeIntegrationRepo{
		integrations: make(map[uint]*models.Integration),
		touched:      make(map[uint]int),
	}
	for _, i := range list {
		r.integrations[i.ID] = i
	}
	return r
}

func (r *fakeIntegrationRepo) Create(integration *models.Integration) error {
	r.integrations[integration.ID] = integration
	return nil
}

func (r *fakeIntegrationRepo) GetByID(id uint) (*models.Integration, error) {
	if i, ok := r.integrations[id]; ok {
		clone := *i
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeIntegrationRepo) GetByIDForUser(id, userID uint) (*models.Integration, error) {
	i, err := r.GetByID(id)
	if err != nil || i.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return i, nil
}

func (r *fakeIntegrationRepo) GetByUserAndProvider(userID uint, provider string) (*models.Integration, error) {
	for _, i := range r.integrations {
		if i.UserID == userID && i.Provider == provider {
			clone := *i
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeIntegrationRepo) GetByProviderAccount(userID uint, provider, accountEmail string) (*models.Integration, error) {
	for _, i := range r.integrations {
		if i.UserID == userID && i.Provider == provider && i.AccountEmail == accountEmail {
			clone := *i
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeIntegrationRepo) GetByWatchChannelID(channelID string) (*models.Integration, error) {
	for _, i := range r.integrations {
		if i.WatchChannelID == channelID {
			clone := *i
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeIntegrationRepo) GetByAccountEmail(provider, accountEmail string) (*models.Integration, error) {
	for _, i := range r.integrations {
		if i.Provider == provider && i.AccountEmail == accountEmail {
			clone := *i
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeIntegrationRepo) ListByUser(userID uint) ([]models.Integration, error) {
	var out []models.Integration
	for _, i := range r.integrations {
		if i.UserID == userID {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (r *fakeIntegrationRepo) ListSyncEnabled(userID uint, provider string) ([]models.Integration, error) {
	var out []models.Integration
	for _, i := range r.integrations {
		if i.UserID == userID && i.Provider == provider && i.SyncEnabled {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (r *fakeIntegrationRepo) ListWatchExpiring(before time.Time) ([]models.Integration, error) {
	var out []models.Integration
	for _, i := range r.integrations {
		if i.WatchChannelID != "" && i.WatchExpiration != nil && i.WatchExpiration.Before(before) {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (r *fakeIntegrationRepo) Update(integration *models.Integration) error {
	clone := *integration
	r.integrations[integration.ID] = &clone
	return nil
}

func (r *fakeIntegrationRepo) UpdateTokens(id uint, accessToken, refreshToken string, expiry time.Time) error {
	i, ok := r.integrations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	i.AccessToken = accessToken
	i.RefreshToken = refreshToken
	i.TokenExpiry = &expiry
	return nil
}

func (r *fakeIntegrationRepo) UpdateWatch(id uint, channelID, resourceID string, expiration *time.Time) error {
	i, ok := r.integrations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	i.WatchChannelID = channelID
	i.WatchResourceID = resourceID
	i.WatchExpiration = expiration
	return nil
}

func (r *fakeIntegrationRepo) UpdateHistoryID(id uint, historyID uint64) error {
	i, ok := r.integrations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	i.WatchHistoryID = historyID
	return nil
}

func (r *fakeIntegrationRepo) SetSyncEnabled(id uint, enabled bool) error {
	i, ok := r.integrations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	i.SyncEnabled = enabled
	return nil
}

func (r *fakeIntegrationRepo) TouchLastSynced(id uint, eventCount int64) error {
	r.touched[id]++
	return nil
}

func (r *fakeIntegrationRepo) Delete(id uint) error {
	delete(r.integrations, id)
	return nil
}

type fakeJobRepo struct {
	jobs map[uint]*models.Job
}

func newFakeJobRepo(list ...*models.Job) *fakeJobRepo {
	r := &fakeJobRepo{jobs: make(map[uint]*models.Job)}
	for _, j := range list {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRepo) Create(job *models.Job) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepo) GetByID(id uint) (*models.Job, error) {
	if j, ok := r.jobs[id]; ok {
		clone := *j
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeJobRepo) GetByIDForUser(id, userID uint) (*models.Job, error) {
	j, err := r.GetByID(id)
	if err != nil || j.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return j, nil
}

func (r *fakeJobRepo) Update(job *models.Job) error {
	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

func (r *fakeJobRepo) UpdateSyncedFields(id uint, start, end time.Time, description string) error {
	j, ok := r.jobs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	j.StartTime = start
	j.EndTime = end
	j.Description = description
	return nil
}

func (r *fakeJobRepo) Delete(id uint) error {
	delete(r.jobs, id)
	return nil
}

func (r *fakeJobRepo) ListByUser(userID uint, offset, limit int) ([]models.Job, error) {
	var out []models.Job
	for _, j := range r.jobs {
		if j.UserID == userID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) ListInWindow(userID uint, from, to time.Time) ([]models.Job, error) {
	var out []models.Job
	for _, j := range r.jobs {
		if j.UserID == userID && j.Overlaps(from, to) {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) ListOverlapping(userID uint, start, end time.Time, excludeJobID uint) ([]models.Job, error) {
	var out []models.Job
	for _, j := range r.jobs {
		if j.UserID != userID || j.ID == excludeJobID {
			continue
		}
		if j.Overlaps(start, end) {
			out = append(out, *j)
		}
	}
	return out, nil
}

type fakeLinkRepo struct {
	links  map[uint]*models.SyncedCalendarEvent
	nextID uint
}

func newFakeLinkRepo(list ...*models.SyncedCalendarEvent) *fakeLinkRepo {
	r := &fakeLinkRepo{links: make(map[uint]*models.SyncedCalendarEvent), nextID: 1}
	for _, l := range list {
		if l.ID == 0 {
			l.ID = r.nextID
		}
		if l.ID >= r.nextID {
			r.nextID = l.ID + 1
		}
		r.links[l.ID] = l
	}
	return r
}

func (r *fakeLinkRepo) Create(link *models.SyncedCalendarEvent) error {
	for _, l := range r.links {
		if l.JobID == link.JobID && l.IntegrationID == link.IntegrationID {
			return gorm.ErrDuplicatedKey
		}
	}
	link.ID = r.nextID
	r.nextID++
	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *fakeLinkRepo) Update(link *models.SyncedCalendarEvent) error {
	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *fakeLinkRepo) GetByJobAndIntegration(jobID, integrationID uint) (*models.SyncedCalendarEvent, error) {
	for _, l := range r.links {
		if l.JobID == jobID && l.IntegrationID == integrationID {
			clone := *l
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeLinkRepo) GetByEventID(integrationID uint, eventID string) (*models.SyncedCalendarEvent, error) {
	for _, l := range r.links {
		if l.IntegrationID == integrationID && l.GoogleEventID == eventID {
			clone := *l
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeLinkRepo) ListByIntegration(integrationID uint) ([]models.SyncedCalendarEvent, error) {
	var out []models.SyncedCalendarEvent
	for _, l := range r.links {
		if l.IntegrationID == integrationID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeLinkRepo) ListEventIDs(integrationID uint) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, l := range r.links {
		if l.IntegrationID == integrationID && l.GoogleEventID != "" {
			out[l.GoogleEventID] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeLinkRepo) Delete(id uint) error {
	delete(r.links, id)
	return nil
}

func (r *fakeLinkRepo) DeleteByJob(jobID uint) error {
	for id, l := range r.links {
		if l.JobID == jobID {
			delete(r.links, id)
		}
	}
	return nil
}

// fakeCalendar is a scriptable CalendarProvider.
type fakeCalendar struct {
	events    map[string]*integrations.CalendarEvent
	nextID    int
	created   int
	updated   int
	deleted   int
	listErr   error
	updateErr error
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: make(map[string]*integrations.CalendarEvent), nextID: 1}
}

func (f *fakeCalendar) Refresh(ctx context.Context, refreshToken string) (*integrations.Tokens, error) {
	return nil, integrations.ErrReauthRequired
}

func (f *fakeCalendar) ExchangeCode(ctx context.Context, code string) (*integrations.Tokens, error) {
	return nil, integrations.ErrReauthRequired
}

func (f *fakeCalendar) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	return "fake@example.com", nil
}

func (f *fakeCalendar) ListEvents(ctx context.Context, accessToken, calendarID string, from, to time.Time) ([]integrations.CalendarEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []integrations.CalendarEvent
	for _, ev := range f.events {
		out = append(out, *ev)
	}
	return out, nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, accessToken, calendarID string, event *integrations.CalendarEvent) (string, error) {
	f.created++
	id := "evt-" + strconv.Itoa(f.nextID)
	f.nextID++
	clone := *event
	clone.ID = id
	f.events[id] = &clone
	return id, nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, accessToken, calendarID string, event *integrations.CalendarEvent) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated++
	clone := *event
	f.events[event.ID] = &clone
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	f.deleted++
	delete(f.events, eventID)
	return nil
}

func (f *fakeCalendar) StartWatch(ctx context.Context, accessToken, calendarID, channelID, webhookURL string) (*integrations.WatchSubscription, error) {
	return &integrations.WatchSubscription{
		ChannelID:  channelID,
		ResourceID: "res-1",
		Expiration: time.Now().Add(24 * time.Hour),
	}, nil
}

func (f *fakeCalendar) StopWatch(ctx context.Context, accessToken, channelID, resourceID string) error {
	return nil
}

type noopLocker struct{}

func (noopLocker) Acquire(key string, ttl time.Duration) (bool, error) { return true, nil }
func (noopLocker) Release(key string) error                            { return nil }

func futureExpiry() *time.Time {
	t := time.Now().Add(time.Hour)
	return &t
}

// newTestEngine wires an engine over in-memory fakes. Integrations carry
// unexpired tokens so no refresh path is entered.
func newTestEngine(integrationRepo *fakeIntegrationRepo, jobRepo *fakeJobRepo, linkRepo *fakeLinkRepo, cal *fakeCalendar) *Engine {
	repos := &repository.Repositories{
		Job:          jobRepo,
		Integration:  integrationRepo,
		CalendarLink: linkRepo,
	}
	manager := integrations.NewManagerWithLocker(integrationRepo, map[string]integrations.Refresher{}, noopLocker{})
	return &Engine{
		Repos:    repos,
		Manager:  manager,
		Calendar: cal,
	}
}
