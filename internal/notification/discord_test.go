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

func TestDiscordPostsEmbeds(t *testing.T) {
	var got []DiscordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m DiscordMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		got = append(got, m)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := &Discord{ErrorURL: srv.URL, SuccessURL: srv.URL}
	require.NoError(t, d.Error(context.Background(), "no files found"))
	require.NoError(t, d.Success(context.Background(), "archive ready"))

	require.Len(t, got, 2)
	assert.Equal(t, colorRed, got[0].Embeds[0].Color)
	assert.Contains(t, got[0].Embeds[0].Description, "no files found")
	assert.Equal(t, colorGreen, got[1].Embeds[0].Color)
}

func TestDiscordDisabledWithoutURL(t *testing.T) {
	d := &Discord{}
	assert.NoError(t, d.Error(context.Background(), "ignored"))
}

func TestDiscordReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	err := (&Discord{SuccessURL: srv.URL}).Success(context.Background(), "x")
	assert.Error(t, err)
}
