package rooms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mathbattle/internal/domain"
)

func TestNewRoomCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/new_game" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"code":"YEST"}`))
	}))
	defer server.Close()

	code, err := NewClient(server.URL).NewRoomCode(context.Background())
	if err != nil {
		t.Fatalf("new room code: %v", err)
	}
	if code != "YEST" {
		t.Fatalf("expected YEST, got %q", code)
	}
}

func TestNewRoomCodeMissingCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).NewRoomCode(context.Background())
	if err != domain.ErrNoRoomCode {
		t.Fatalf("expected ErrNoRoomCode, got %v", err)
	}
}

func TestNewRoomCodeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).NewRoomCode(context.Background()); err == nil {
		t.Fatalf("expected an error on a 500 response")
	}
}
