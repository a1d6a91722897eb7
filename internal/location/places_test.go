package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPlacesClientSearch(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"location": q.Get("location"),
			"radius":   q.Get("radius"),
			"keyword":  q.Get("keyword"),
			"key":      q.Get("key"),
		}
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("keyword") {
		case "nothing":
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"status":"OK","results":[
				{"name":"Corner Market","geometry":{"location":{"lat":37.775,"lng":-122.418}}},
				{"name":"Far Market","geometry":{"location":{"lat":37.8,"lng":-122.5}}}
			]}`))
		}
	}))
	defer srv.Close()

	origin := Coordinates{Latitude: 37.7749, Longitude: -122.4194}
	ctx := context.Background()

	t.Run("First result wins", func(t *testing.T) {
		client := NewPlacesClient("test-key", srv.URL)
		got, err := client.Search(ctx, origin, "grocery store")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if got == nil || got.Latitude != 37.775 || got.Longitude != -122.418 {
			t.Errorf("expected first result, got %v", got)
		}
		if gotQuery["radius"] != "1000" || gotQuery["keyword"] != "grocery store" || gotQuery["key"] != "test-key" {
			t.Errorf("unexpected query: %v", gotQuery)
		}
		if gotQuery["location"] != "37.7749,-122.4194" {
			t.Errorf("unexpected location param %q", gotQuery["location"])
		}
	})

	t.Run("No results", func(t *testing.T) {
		client := NewPlacesClient("test-key", srv.URL)
		got, err := client.Search(ctx, origin, "nothing")
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
	})

	t.Run("HTTP failure", func(t *testing.T) {
		client := NewPlacesClient("test-key", srv.URL)
		if _, err := client.Search(ctx, origin, "broken"); err == nil {
			t.Error("expected error for 500 response")
		}
	})

	t.Run("Missing key", func(t *testing.T) {
		client := NewPlacesClient("", srv.URL)
		if _, err := client.Search(ctx, origin, "grocery store"); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})
}
