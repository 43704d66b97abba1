package bankclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/check-bank/alice%40example.com", "/check-bank/alice@example.com":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"linked":true,"accountId":"acct-9"}`))
		case "/check-bank/bob":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"linked":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 2*time.Second)

	status, err := client.CheckLink(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("CheckLink returned error: %v", err)
	}
	if !status.Linked || status.AccountID != "acct-9" {
		t.Errorf("unexpected status: %+v", status)
	}

	status, err = client.CheckLink(context.Background(), "bob")
	if err != nil {
		t.Fatalf("CheckLink returned error: %v", err)
	}
	if status.Linked {
		t.Error("expected bob to be unlinked")
	}
}

func TestCheckLinkErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 2*time.Second)
	if _, err := client.CheckLink(context.Background(), "alice"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestCheckLinkEmptyBaseURL(t *testing.T) {
	client := NewClient("", 2*time.Second)
	if _, err := client.CheckLink(context.Background(), "alice"); err == nil {
		t.Fatal("expected an error for an empty base url")
	}
}
