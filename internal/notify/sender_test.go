package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender_Send(t *testing.T) {
	var got Email
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "re_test", "دفتر <noreply@daftar.sa>", 100)
	msgID, err := s.Send(context.Background(), Email{To: []string{"owner@example.sa"}, Subject: "مرحبا", HTML: "<p>اختبار</p>"})
	require.NoError(t, err)
	assert.Equal(t, "49a3999c-0ce1-4ea6-ab68-afcd6dc2e794", msgID)
	assert.Equal(t, "دفتر <noreply@daftar.sa>", got.From, "default sender applied")
	assert.Equal(t, "مرحبا", got.Subject)
}

func TestHTTPSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "key", "a@b.c", 100)
	_, err := s.Send(context.Background(), Email{To: []string{"x@y.z"}, Subject: "s", HTML: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid to field")
}

func TestHTTPSender_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "key", "a@b.c", 100)
	_, err := s.Send(context.Background(), Email{To: []string{"x@y.z"}, Subject: "s", HTML: "h"})
	assert.ErrorContains(t, err, "no id")
}

func TestHTTPSender_NoKeyOrInvalid(t *testing.T) {
	s := NewHTTPSender("http://127.0.0.1:0", "", "a@b.c", 1)
	_, err := s.Send(context.Background(), Email{To: []string{"x@y.z"}, Subject: "s", HTML: "h"})
	assert.ErrorContains(t, err, "API key")

	_, err = s.Send(context.Background(), Email{To: []string{"not-an-address"}, Subject: "s", HTML: "h"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestHTTPSender_ContextCancelled(t *testing.T) {
	s := NewHTTPSender("http://127.0.0.1:0", "key", "a@b.c", 0.001)
	ctx, cancel := context.WithCancel(context.Background())
	// First send consumes the only token.
	s.limiter.Allow()
	cancel()
	_, err := s.Send(ctx, Email{To: []string{"x@y.z"}, Subject: "s", HTML: "h"})
	assert.Error(t, err)
}
