package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMakeCall(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Calls.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("To"); got != "+971501112222" {
			t.Errorf("To = %q", got)
		}
		if got := r.PostForm.Get("From"); got != "+971500000000" {
			t.Errorf("From = %q", got)
		}
		if got := r.PostForm.Get("Url"); got != "https://example.com/voice" {
			t.Errorf("Url = %q", got)
		}

		json.NewEncoder(w).Encode(Call{SID: "CA555", Status: "queued"})
	}))
	defer srv.Close()

	client, err := New(Config{
		AccountSID: "AC123",
		AuthToken:  "token",
		FromNumber: "+971500000000",
		BaseURL:    srv.URL,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	call, err := client.MakeCall(context.Background(), MakeCallParams{
		To:  "+971501112222",
		URL: "https://example.com/voice",
	})
	if err != nil {
		t.Fatalf("MakeCall() error = %v", err)
	}
	if call.SID != "CA555" {
		t.Fatalf("SID = %q, want CA555", call.SID)
	}
}

func TestMakeCallAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(Error{Code: 21211, Message: "Invalid 'To' phone number", Status: 400})
	}))
	defer srv.Close()

	client, err := New(Config{AccountSID: "AC123", AuthToken: "token", FromNumber: "+971500000000", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.MakeCall(context.Background(), MakeCallParams{To: "bogus", URL: "https://example.com/voice"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("MakeCall() error = %v, want *Error", err)
	}
	if apiErr.Code != 21211 {
		t.Fatalf("Code = %d, want 21211", apiErr.Code)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("New() expected error without credentials")
	}
}

func TestMakeCallRequiresDestination(t *testing.T) {
	t.Parallel()

	client, err := New(Config{AccountSID: "AC123", AuthToken: "token", FromNumber: "+971500000000"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := client.MakeCall(context.Background(), MakeCallParams{}); err == nil {
		t.Fatal("MakeCall() expected error without destination")
	}
}
