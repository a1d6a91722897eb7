package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ldi/telepathic/pkg/models"
)

const (
	googleBaseURL  = "https://www.googleapis.com/calendar/v3"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	tokenLifetime  = 55 * time.Minute // refresh before the one hour expiry
	calendarScope  = "https://www.googleapis.com/auth/calendar.readonly https://www.googleapis.com/auth/calendar.events"
)

// GoogleProvider reads and writes Google calendars with a service account.
type GoogleProvider struct {
	httpClient  *http.Client
	credentials *serviceAccountCredentials
	calendarIDs []string
	baseURL     string
	tokenURL    string

	mu          sync.RWMutex
	accessToken string
	tokenExpiry time.Time
}

type serviceAccountCredentials struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

type GoogleConfig struct {
	CredentialsFile string
	// CalendarIDs limits the provider to these calendars. Empty means every
	// calendar in the service account's calendar list.
	CalendarIDs []string
}

func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds serviceAccountCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if creds.Type != "service_account" {
		return nil, fmt.Errorf("credentials file must be a service account key (got %s)", creds.Type)
	}

	tokenURL := googleTokenURL
	if creds.TokenURI != "" {
		tokenURL = creds.TokenURI
	}

	return &GoogleProvider{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		credentials: &creds,
		calendarIDs: cfg.CalendarIDs,
		baseURL:     googleBaseURL,
		tokenURL:    tokenURL,
	}, nil
}

func (p *GoogleProvider) accessTokenFor(ctx context.Context) (string, error) {
	p.mu.RLock()
	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		token := p.accessToken
		p.mu.RUnlock()
		return token, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	now := time.Now()
	assertion, err := p.signAssertion(now)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed (%d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	p.accessToken = tokenResp.AccessToken
	p.tokenExpiry = now.Add(tokenLifetime)
	return p.accessToken, nil
}

func (p *GoogleProvider) signAssertion(now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(p.credentials.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   p.credentials.ClientEmail,
		"scope": calendarScope,
		"aud":   p.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	if p.credentials.PrivateKeyID != "" {
		token.Header["kid"] = p.credentials.PrivateKeyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}

func (p *GoogleProvider) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	token, err := p.accessTokenFor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("calendar API error (%d): %s", errResp.Error.Code, errResp.Error.Message)
		}
		return nil, fmt.Errorf("calendar API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

type googleDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
	Start       *googleDateTime `json:"start,omitempty"`
	End         *googleDateTime `json:"end,omitempty"`
}

func (p *GoogleProvider) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	if len(p.calendarIDs) > 0 {
		cals := make([]models.CalendarInfo, 0, len(p.calendarIDs))
		for _, id := range p.calendarIDs {
			cals = append(cals, models.CalendarInfo{ID: id, Name: id})
		}
		return cals, nil
	}

	data, err := p.request(ctx, http.MethodGet, "/users/me/calendarList", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse calendar list: %w", err)
	}

	cals := make([]models.CalendarInfo, 0, len(resp.Items))
	for _, item := range resp.Items {
		cals = append(cals, models.CalendarInfo{ID: item.ID, Name: item.Summary})
	}
	return cals, nil
}

func (p *GoogleProvider) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	params := url.Values{}
	params.Set("timeMin", start.Format(time.RFC3339))
	params.Set("timeMax", end.Format(time.RFC3339))
	params.Set("maxResults", "100")
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")

	path := fmt.Sprintf("/calendars/%s/events?%s", url.PathEscape(calendarID), params.Encode())
	data, err := p.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse events response: %w", err)
	}

	events := make([]models.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Status == "cancelled" {
			continue
		}
		e, err := convertEvent(calendarID, &item)
		if err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func (p *GoogleProvider) CreateEvent(ctx context.Context, calendarID string, e *models.CalendarEvent) (string, error) {
	zone := e.Start.Location().String()
	body := googleEvent{
		Summary:     e.Title,
		Description: e.Description,
		Start:       &googleDateTime{DateTime: e.Start.Format(time.RFC3339), TimeZone: zone},
		End:         &googleDateTime{DateTime: e.End.Format(time.RFC3339), TimeZone: zone},
	}
	if zone == "Local" || zone == "" {
		body.Start.TimeZone = ""
		body.End.TimeZone = ""
	}

	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	data, err := p.request(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}

	var created googleEvent
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("failed to parse created event: %w", err)
	}
	e.ID = created.ID
	e.CalendarID = calendarID
	return created.ID, nil
}

func convertEvent(calendarID string, g *googleEvent) (models.CalendarEvent, error) {
	e := models.CalendarEvent{
		ID:          g.ID,
		CalendarID:  calendarID,
		Title:       g.Summary,
		Description: g.Description,
	}
	var err error
	if e.Start, err = parseGoogleTime(g.Start); err != nil {
		return e, err
	}
	if e.End, err = parseGoogleTime(g.End); err != nil {
		return e, err
	}
	return e, nil
}

func parseGoogleTime(t *googleDateTime) (time.Time, error) {
	if t == nil {
		return time.Time{}, fmt.Errorf("missing time")
	}
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		return time.ParseInLocation("2006-01-02", t.Date, time.Local)
	}
	return time.Time{}, fmt.Errorf("missing time")
}
