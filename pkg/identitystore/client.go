package identitystore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sio60/guildrunner/pkg/logger"
)

// ErrEmailExists is returned by CreateUser when the store's uniqueness
// constraint rejects a duplicate email. Callers treat it as "identity
// now exists, re-read it".
var ErrEmailExists = errors.New("identitystore: email already registered")

// User is a durable identity record. ID is the opaque stable key;
// Email is the natural lookup key.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// ProfileRow is the denormalized profile projection keyed by User.ID.
type ProfileRow struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Nickname        string    `json:"nickname"`
	ProfileImageURL string    `json:"profile_image_url"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Client talks to the managed identity store's admin REST surface
// using the privileged service key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	logger     logger.Client
	now        func() time.Time
}

func NewClient(httpClient *http.Client, baseURL, serviceKey string, logger logger.Client) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		serviceKey: serviceKey,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
}

type listUsersResponse struct {
	Users []User `json:"users"`
}

// FindUserByEmail looks up an identity by exact email. Returns
// (nil, nil) when no identity exists for that email.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	endpoint := fmt.Sprintf("%s/auth/v1/admin/users?email=%s", c.baseURL, url.QueryEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("identitystore: failed to build list users request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identitystore: list users call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("identitystore: failed to read list users response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("identity store list users failed",
			logger.Field{Key: "status", Value: resp.StatusCode},
			logger.Field{Key: "body", Value: string(body)})
		return nil, fmt.Errorf("identitystore: list users returned status %d: %s", resp.StatusCode, string(body))
	}

	var listResp listUsersResponse
	if err := json.Unmarshal(body, &listResp); err != nil {
		return nil, fmt.Errorf("identitystore: failed to decode list users response: %w", err)
	}

	for i := range listResp.Users {
		if listResp.Users[i].Email == email {
			return &listResp.Users[i], nil
		}
	}
	return nil, nil
}

type createUserRequest struct {
	Email        string         `json:"email"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// CreateUser creates a pre-confirmed identity. The provider already
// vouches for the email, so no verification step is issued. Duplicate
// emails surface as ErrEmailExists.
func (c *Client) CreateUser(ctx context.Context, email string, metadata map[string]any) (*User, error) {
	payload, err := json.Marshal(createUserRequest{
		Email:        email,
		EmailConfirm: true,
		UserMetadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("identitystore: failed to marshal create user request: %w", err)
	}

	endpoint := c.baseURL + "/auth/v1/admin/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("identitystore: failed to build create user request: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identitystore: create user call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("identitystore: failed to read create user response: %w", err)
	}

	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrEmailExists
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("identity store create user failed",
			logger.Field{Key: "status", Value: resp.StatusCode},
			logger.Field{Key: "body", Value: string(body)})
		return nil, fmt.Errorf("identitystore: create user returned status %d: %s", resp.StatusCode, string(body))
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("identitystore: failed to decode create user response: %w", err)
	}
	return &user, nil
}

// UpsertProfile inserts or replaces the projection row for row.ID.
// UpdatedAt is always stamped with the current time, so repeated calls
// with identical fields are safe.
func (c *Client) UpsertProfile(ctx context.Context, row ProfileRow) (*ProfileRow, error) {
	row.UpdatedAt = c.now().UTC()

	payload, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("identitystore: failed to marshal profile row: %w", err)
	}

	endpoint := c.baseURL + "/rest/v1/profiles?on_conflict=id"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("identitystore: failed to build upsert request: %w", err)
	}
	c.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identitystore: upsert profile call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("identitystore: failed to read upsert response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("identity store profile upsert failed",
			logger.Field{Key: "status", Value: resp.StatusCode},
			logger.Field{Key: "body", Value: string(body)})
		return nil, fmt.Errorf("identitystore: upsert profile returned status %d: %s", resp.StatusCode, string(body))
	}

	var rows []ProfileRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("identitystore: failed to decode upsert response: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("identitystore: upsert returned no rows")
	}
	return &rows[0], nil
}
