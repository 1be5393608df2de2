package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"unibook-bot/types"
)

func TestFetchListingSendsCourseDetailForm(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		w.Write([]byte("<html>listing</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, "u123", nil)
	body, err := c.FetchListing(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "<html>listing</html>" {
		t.Errorf("body = %q", body)
	}

	want := map[string]string{
		"userid":   "u123",
		"IdModulo": "42",
		"action":   "dettaglio_corso",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("form[%q] = %q, want %q", k, form[k], v)
		}
	}
}

func TestSubmitBookingSendsAllFields(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
	}))
	defer srv.Close()

	req := &types.BookingRequest{
		ModuleID:   "12",
		DateP:      "01-06-24",
		ScheduleID: "45",
		SlotNumber: "2",
		BookingID:  "789",
		Action:     "prenota_corso",
		Nonce:      "nonce-1",
	}

	c := New(srv.URL, "u123", nil)
	if err := c.SubmitBooking(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"userid":         "u123",
		"IdModulo":       "12",
		"dateP":          "01-06-24",
		"IdOrario":       "45",
		"numberP":        "2",
		"IdPrenotazione": "789",
		"action":         "prenota_corso",
		"rand":           "nonce-1",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("form[%q] = %q, want %q", k, form[k], v)
		}
	}
}

func TestNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "u123", nil)

	_, err := c.FetchListing(context.Background(), 42)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", statusErr.StatusCode)
	}

	err = c.SubmitBooking(context.Background(), &types.BookingRequest{Action: "prenota_corso"})
	if !errors.As(err, &statusErr) {
		t.Errorf("expected StatusError from submit, got %v", err)
	}
}
