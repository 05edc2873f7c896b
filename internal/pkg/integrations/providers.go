package integrations

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/internal/pkg/env"
)

const gmbScope = "https://www.googleapis.com/auth/business.manage"

func calendarOAuthConfig() *oauth2.Config {
	return GoogleOAuthConfig("/integrations/calendar/callback",
		"openid", "email", calendar.CalendarScope)
}

func gmailOAuthConfig() *oauth2.Config {
	return GoogleOAuthConfig("/integrations/gmail/callback",
		"openid", "email",
		gmail.GmailReadonlyScope, gmail.GmailSendScope, gmail.GmailModifyScope)
}

func outlookOAuthConfig() *oauth2.Config {
	return MicrosoftOAuthConfig("/integrations/outlook/callback",
		"openid", "email", "offline_access",
		"https://graph.microsoft.com/Mail.ReadWrite",
		"https://graph.microsoft.com/Mail.Send")
}

func gmbOAuthConfig() *oauth2.Config {
	return GoogleOAuthConfig("/integrations/gmb/callback",
		"openid", "email", gmbScope)
}

// OAuthConfigFor returns the consent-flow config for an integration provider.
func OAuthConfigFor(provider string) (*oauth2.Config, error) {
	switch provider {
	case models.IntegrationProviderCalendar:
		return calendarOAuthConfig(), nil
	case models.IntegrationProviderGmail:
		return gmailOAuthConfig(), nil
	case models.IntegrationProviderOutlook:
		return outlookOAuthConfig(), nil
	case models.IntegrationProviderGMB:
		return gmbOAuthConfig(), nil
	default:
		return nil, fmt.Errorf("unknown integration provider %q", provider)
	}
}

// CalendarAdapter builds the Google Calendar adapter from env credentials.
func CalendarAdapter() *GoogleCalendarAdapter {
	return NewGoogleCalendarAdapter(calendarOAuthConfig())
}

// GmailAdapterFromEnv builds the Gmail adapter from env credentials.
func GmailAdapterFromEnv() *GmailAdapter {
	return NewGmailAdapter(gmailOAuthConfig(), env.GetEnv("GMAIL_PUBSUB_TOPIC", ""))
}

// OutlookAdapterFromEnv builds the Outlook adapter from env credentials.
func OutlookAdapterFromEnv() *OutlookAdapter {
	return NewOutlookAdapter(outlookOAuthConfig())
}

// GMBAdapterFromEnv builds the Google Business Profile adapter from env credentials.
func GMBAdapterFromEnv() *GMBAdapter {
	return NewGMBAdapter(gmbOAuthConfig())
}

// Connector is the consent-flow slice of a provider adapter: exchanging the
// authorization code and discovering which external account was granted.
type Connector interface {
	Refresher
	ExchangeCode(ctx context.Context, code string) (*Tokens, error)
	AccountEmail(ctx context.Context, accessToken string) (string, error)
}

// ConnectorFor returns the adapter handling the connect flow for a provider.
func ConnectorFor(provider string) (Connector, error) {
	switch provider {
	case models.IntegrationProviderCalendar:
		return CalendarAdapter(), nil
	case models.IntegrationProviderGmail:
		return GmailAdapterFromEnv(), nil
	case models.IntegrationProviderOutlook:
		return OutlookAdapterFromEnv(), nil
	case models.IntegrationProviderGMB:
		return GMBAdapterFromEnv(), nil
	default:
		return nil, fmt.Errorf("unknown integration provider %q", provider)
	}
}

// MailAdapterFor returns the mail adapter matching the integration provider.
func MailAdapterFor(provider string) (MailProvider, error) {
	switch provider {
	case models.IntegrationProviderGmail:
		return GmailAdapterFromEnv(), nil
	case models.IntegrationProviderOutlook:
		return OutlookAdapterFromEnv(), nil
	default:
		return nil, fmt.Errorf("no mail adapter for provider %q", provider)
	}
}

// DefaultRefreshers wires the real adapters for all supported providers.
func DefaultRefreshers() map[string]Refresher {
	return map[string]Refresher{
		models.IntegrationProviderCalendar: CalendarAdapter(),
		models.IntegrationProviderGmail:    GmailAdapterFromEnv(),
		models.IntegrationProviderOutlook:  OutlookAdapterFromEnv(),
		models.IntegrationProviderGMB:      GMBAdapterFromEnv(),
	}
}
