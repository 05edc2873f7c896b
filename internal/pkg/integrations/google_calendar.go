package integrations

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleCalendarAdapter wraps the Google Calendar v3 API. Constructed per
// request from an explicit OAuth config; no process-wide client state.
type GoogleCalendarAdapter struct {
	conf *oauth2.Config
}

// NewGoogleCalendarAdapter creates a new Google Calendar adapter.
func NewGoogleCalendarAdapter(conf *oauth2.Config) *GoogleCalendarAdapter {
	return &GoogleCalendarAdapter{conf: conf}
}

func (a *GoogleCalendarAdapter) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return calendar.NewService(ctx, option.WithTokenSource(src))
}

func (a *GoogleCalendarAdapter) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	return exchangeCode(ctx, a.conf, code)
}

func (a *GoogleCalendarAdapter) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	return refreshTokens(ctx, a.conf, refreshToken)
}

// AccountEmail resolves the connected Google account's email address.
func (a *GoogleCalendarAdapter) AccountEmail(ctx context.Context, accessToken string) (string, error) {
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

func (a *GoogleCalendarAdapter) ListEvents(ctx context.Context, accessToken, calendarID string, from, to time.Time) ([]CalendarEvent, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	res, err := srv.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		MaxResults(250).
		Context(ctx).Do()
	if err != nil {
		return nil, wrapGoogleError("events list", err)
	}

	events := make([]CalendarEvent, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Status == "cancelled" {
			continue
		}
		ev := CalendarEvent{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Status:      item.Status,
		}
		ev.Start = parseEventTime(item.Start)
		ev.End = parseEventTime(item.End)
		events = append(events, ev)
	}
	return events, nil
}

func (a *GoogleCalendarAdapter) CreateEvent(ctx context.Context, accessToken, calendarID string, event *CalendarEvent) (string, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	created, err := srv.Events.Insert(calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError("event insert", err)
	}
	return created.Id, nil
}

func (a *GoogleCalendarAdapter) UpdateEvent(ctx context.Context, accessToken, calendarID string, event *CalendarEvent) error {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}

	_, err = srv.Events.Update(calendarID, event.ID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return wrapGoogleError("event update", err)
	}
	return nil
}

func (a *GoogleCalendarAdapter) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := srv.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return wrapGoogleError("event delete", err)
	}
	return nil
}

// StartWatch registers a push channel for the calendar. Google caps channel
// lifetime (about a week); the returned expiration must be persisted so the
// renewal job can re-subscribe in time.
func (a *GoogleCalendarAdapter) StartWatch(ctx context.Context, accessToken, calendarID, channelID, webhookURL string) (*WatchSubscription, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	res, err := srv.Events.Watch(calendarID, &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: webhookURL,
	}).Context(ctx).Do()
	if err != nil {
		return nil, wrapGoogleError("events watch", err)
	}

	return &WatchSubscription{
		ChannelID:  res.Id,
		ResourceID: res.ResourceId,
		Expiration: time.UnixMilli(res.Expiration),
	}, nil
}

func (a *GoogleCalendarAdapter) StopWatch(ctx context.Context, accessToken, channelID, resourceID string) error {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}

	err = srv.Channels.Stop(&calendar.Channel{
		Id:         channelID,
		ResourceId: resourceID,
	}).Context(ctx).Do()
	if err != nil {
		return wrapGoogleError("channel stop", err)
	}
	return nil
}

func toGoogleEvent(event *CalendarEvent) *calendar.Event {
	return &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
		},
	}
}

func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	// All-day events carry only a date
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// wrapGoogleError converts googleapi errors into structured ProviderErrors.
func wrapGoogleError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 {
			return ErrReauthRequired
		}
		return &ProviderError{Op: op, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
