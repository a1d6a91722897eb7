package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ldi/telepathic/internal/logging"
)

const (
	DefaultPlacesURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	searchRadius     = 1000
)

var ErrMissingAPIKey = errors.New("places API key is not set")

// PlaceFinder resolves a point of interest near origin. A nil result with a
// nil error means nothing was found.
type PlaceFinder interface {
	Search(ctx context.Context, origin Coordinates, query string) (*Coordinates, error)
}

// PlacesClient queries the Google Places nearby search endpoint.
type PlacesClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewPlacesClient(apiKey, baseURL string) *PlacesClient {
	if baseURL == "" {
		baseURL = DefaultPlacesURL
	}
	return &PlacesClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type placesResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name     string `json:"name"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

func (p *PlacesClient) Search(ctx context.Context, origin Coordinates, query string) (*Coordinates, error) {
	if p.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("location", strconv.FormatFloat(origin.Latitude, 'f', -1, 64)+","+strconv.FormatFloat(origin.Longitude, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(searchRadius))
	params.Set("keyword", query)
	params.Set("key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create places request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places API returned status %d", resp.StatusCode)
	}

	var body placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode places response: %w", err)
	}

	if len(body.Results) == 0 {
		logging.Debug("location", "No places found for %q (status %s %s)", query, body.Status, body.ErrorMessage)
		return nil, nil
	}

	first := body.Results[0]
	c := &Coordinates{Latitude: first.Geometry.Location.Lat, Longitude: first.Geometry.Location.Lng}
	logging.Debug("location", "Found %q for %q at %s", first.Name, query, c)
	return c, nil
}
