package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Error(t *testing.T) {
	var got DiscordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "", "")
	require.NoError(t, n.Error(context.Background(), "catalog down"))

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, colorRed, got.Embeds[0].Color)
	assert.Contains(t, got.Embeds[0].Description, "catalog down")
}

func TestNotifier_SkipsEmptyURL(t *testing.T) {
	n := NewNotifier("", "", "")
	assert.NoError(t, n.Warn(context.Background(), "ignored"))
	assert.NoError(t, n.Success(context.Background(), "ignored"))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Error(context.Background(), "ignored"))
}

func TestNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier("", "", srv.URL)
	err := n.Success(context.Background(), "done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
