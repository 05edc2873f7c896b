package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const gmbBaseURL = "https://mybusiness.googleapis.com/v4"

// GMBAdapter implements ReviewProvider against the Google Business Profile
// v4 reviews API. The locationID is the full resource name
// (accounts/<a>/locations/<l>).
type GMBAdapter struct {
	conf    *oauth2.Config
	baseURL string
}

// NewGMBAdapter creates a new Google Business Profile adapter.
func NewGMBAdapter(conf *oauth2.Config) *GMBAdapter {
	return &GMBAdapter{conf: conf, baseURL: gmbBaseURL}
}

// NewGMBAdapterWithBaseURL is used by tests to point the adapter at a local server.
func NewGMBAdapterWithBaseURL(conf *oauth2.Config, baseURL string) *GMBAdapter {
	return &GMBAdapter{conf: conf, baseURL: baseURL}
}

func (a *GMBAdapter) client(ctx context.Context, accessToken string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	return oauth2.NewClient(ctx, src)
}

func (a *GMBAdapter) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	return exchangeCode(ctx, a.conf, code)
}

func (a *GMBAdapter) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	return refreshTokens(ctx, a.conf, refreshToken)
}

func (a *GMBAdapter) AccountEmail(ctx context.Context, accessToken string) (string, error) {
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

// starRatings maps the API's enum strings to numeric ratings.
var starRatings = map[string]int{
	"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5,
}

func (a *GMBAdapter) ListReviews(ctx context.Context, accessToken, locationID string) ([]ReviewData, error) {
	endpoint := fmt.Sprintf("%s/%s/reviews", a.baseURL, locationID)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client(ctx, accessToken).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrReauthRequired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providerErrorFromResponse("list reviews", resp)
	}

	var result struct {
		Reviews []struct {
			ReviewID string `json:"reviewId"`
			Reviewer struct {
				DisplayName string `json:"displayName"`
			} `json:"reviewer"`
			StarRating  string `json:"starRating"`
			Comment     string `json:"comment"`
			CreateTime  string `json:"createTime"`
			ReviewReply *struct {
				Comment    string `json:"comment"`
				UpdateTime string `json:"updateTime"`
			} `json:"reviewReply"`
		} `json:"reviews"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	reviews := make([]ReviewData, 0, len(result.Reviews))
	for _, r := range result.Reviews {
		review := ReviewData{
			ID:           r.ReviewID,
			ReviewerName: r.Reviewer.DisplayName,
			StarRating:   starRatings[r.StarRating],
			Comment:      r.Comment,
		}
		if t, err := time.Parse(time.RFC3339, r.CreateTime); err == nil {
			review.ReviewedAt = &t
		}
		if r.ReviewReply != nil {
			review.ReplyText = r.ReviewReply.Comment
			if t, err := time.Parse(time.RFC3339, r.ReviewReply.UpdateTime); err == nil {
				review.RepliedAt = &t
			}
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

func (a *GMBAdapter) ReplyToReview(ctx context.Context, accessToken, locationID, reviewID, reply string) error {
	endpoint := fmt.Sprintf("%s/%s/reviews/%s/reply", a.baseURL, locationID, reviewID)
	payload, err := json.Marshal(map[string]string{"comment": reply})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client(ctx, accessToken).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrReauthRequired
	}
	if resp.StatusCode != http.StatusOK {
		return providerErrorFromResponse("reply to review", resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (a *GMBAdapter) DeleteReply(ctx context.Context, accessToken, locationID, reviewID string) error {
	endpoint := fmt.Sprintf("%s/%s/reviews/%s/reply", a.baseURL, locationID, reviewID)
	req, err := http.NewRequestWithContext(ctx, "DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client(ctx, accessToken).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrReauthRequired
	}
	if resp.StatusCode != http.StatusOK {
		return providerErrorFromResponse("delete reply", resp)
	}
	return nil
}
