package identitystore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sio60/guildrunner/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL, "service-key", logger.NewWithWriter("production", io.Discard))
}

func TestFindUserByEmail_Found(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		assert.Equal(t, "u@x.com", r.URL.Query().Get("email"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"users":[{"id":"uid-1","email":"u@x.com"}]}`))
	}))

	user, err := c.FindUserByEmail(context.Background(), "u@x.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "uid-1", user.ID)
}

func TestFindUserByEmail_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users":[]}`))
	}))

	user, err := c.FindUserByEmail(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestFindUserByEmail_IgnoresNonMatchingRows(t *testing.T) {
	// some stores fuzzy-match the email filter; only exact matches count
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users":[{"id":"uid-2","email":"other@x.com"}]}`))
	}))

	user, err := c.FindUserByEmail(context.Background(), "u@x.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestFindUserByEmail_StoreError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"msg":"database unavailable"}`))
	}))

	_, err := c.FindUserByEmail(context.Background(), "u@x.com")
	assert.ErrorContains(t, err, "status 500")
}

func TestCreateUser(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"id":"uid-new","email":"u@x.com"}`))
	}))

	user, err := c.CreateUser(context.Background(), "u@x.com", map[string]any{
		"kakao_id": int64(123),
		"nickname": "N",
	})
	require.NoError(t, err)

	assert.Equal(t, "uid-new", user.ID)
	assert.Equal(t, "u@x.com", gotBody["email"])
	assert.Equal(t, true, gotBody["email_confirm"])
	meta, ok := gotBody["user_metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "N", meta["nickname"])
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"msg":"A user with this email address has already been registered"}`))
	}))

	_, err := c.CreateUser(context.Background(), "u@x.com", nil)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUpsertProfile(t *testing.T) {
	fixed := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	var gotRow ProfileRow
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		assert.Equal(t, "id", r.URL.Query().Get("on_conflict"))
		assert.Equal(t, "resolution=merge-duplicates,return=representation", r.Header.Get("Prefer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRow))

		w.WriteHeader(http.StatusCreated)
		out, _ := json.Marshal([]ProfileRow{gotRow})
		w.Write(out)
	}))
	c.now = func() time.Time { return fixed }

	row, err := c.UpsertProfile(context.Background(), ProfileRow{
		ID:              "uid-1",
		Email:           "u@x.com",
		Nickname:        "N",
		ProfileImageURL: "https://img/avatar.png",
	})
	require.NoError(t, err)

	// updated_at is stamped by the client regardless of input
	assert.Equal(t, fixed, gotRow.UpdatedAt)
	assert.Equal(t, "uid-1", row.ID)
	assert.Equal(t, "u@x.com", row.Email)
}

func TestUpsertProfile_StoreError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"permission denied for table profiles"}`))
	}))

	_, err := c.UpsertProfile(context.Background(), ProfileRow{ID: "uid-1"})
	assert.ErrorContains(t, err, "status 403")
}
