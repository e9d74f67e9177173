package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/sio60/guildrunner/pkg/identitystore"
	"github.com/sio60/guildrunner/pkg/kakao"
	"github.com/sio60/guildrunner/pkg/logger"
)

// ProviderClient is the outbound surface of the identity provider.
type ProviderClient interface {
	AuthorizeURL(redirectURI, state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*kakao.Profile, error)
}

// IdentityStore is the durable system of record for user identities
// and profile projections.
type IdentityStore interface {
	FindUserByEmail(ctx context.Context, email string) (*identitystore.User, error)
	CreateUser(ctx context.Context, email string, metadata map[string]any) (*identitystore.User, error)
	UpsertProfile(ctx context.Context, row identitystore.ProfileRow) (*identitystore.ProfileRow, error)
}

type Service struct {
	provider  ProviderClient
	store     IdentityStore
	jwtSecret string
	logger    logger.Client
}

func NewService(provider ProviderClient, store IdentityStore, jwtSecret string, logger logger.Client) *Service {
	return &Service{
		provider:  provider,
		store:     store,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// StartLogin issues a fresh state token bound to redirectURI and
// composes the provider authorize URL around it.
func (s *Service) StartLogin(redirectURI string) (string, error) {
	state, err := IssueState(s.jwtSecret, redirectURI)
	if err != nil {
		s.logger.Error("failed to issue state", logger.Field{Key: "err", Value: err})
		return "", &AppError{Status: http.StatusInternalServerError, Code: ErrorCodeUnexpected, Message: "failed to issue state"}
	}
	return s.provider.AuthorizeURL(redirectURI, state), nil
}

// HandleCallback runs the whole callback flow in strict sequence:
// state verification, code exchange, profile fetch, identity
// reconciliation, profile upsert, session minting. Every failure is
// terminal for the attempt; the client restarts from StartLogin since
// both the code and the state token are single-use.
func (s *Service) HandleCallback(ctx context.Context, code, state, redirectURI string) (*LoginResult, error) {
	if err := VerifyState(s.jwtSecret, state, redirectURI); err != nil {
		if errors.Is(err, ErrStateMismatch) {
			return nil, &AppError{Status: http.StatusBadRequest, Code: ErrorCodeStateMismatch, Message: "state mismatch"}
		}
		return nil, &AppError{Status: http.StatusBadRequest, Code: ErrorCodeInvalidState, Message: "invalid state"}
	}

	accessToken, err := s.provider.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, s.mapProviderErr(err, ErrorCodeTokenExchange, "token exchange failed")
	}

	profile, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		if errors.Is(err, kakao.ErrEmailRequired) {
			return nil, &AppError{Status: http.StatusBadRequest, Code: ErrorCodeEmailRequired, Message: "provider did not supply an email"}
		}
		return nil, s.mapProviderErr(err, ErrorCodeProfileFetch, "profile fetch failed")
	}

	user, err := s.findOrCreateUser(ctx, profile)
	if err != nil {
		return nil, err
	}

	row, err := s.store.UpsertProfile(ctx, identitystore.ProfileRow{
		ID:              user.ID,
		Email:           profile.Email,
		Nickname:        profile.Nickname,
		ProfileImageURL: profile.AvatarURL,
	})
	if err != nil {
		s.logger.Error("profile upsert failed", logger.Field{Key: "err", Value: err})
		return nil, &AppError{Status: http.StatusInternalServerError, Code: ErrorCodeProfileUpsert, Message: "profile upsert failed", Detail: err.Error()}
	}

	token, err := IssueSession(s.jwtSecret, user.ID, profile.Email)
	if err != nil {
		s.logger.Error("session minting failed", logger.Field{Key: "err", Value: err})
		return nil, &AppError{Status: http.StatusInternalServerError, Code: ErrorCodeUnexpected, Message: "failed to issue session token"}
	}

	s.logger.Info("login completed",
		logger.Field{Key: "user_id", Value: user.ID},
		logger.Field{Key: "provider_id", Value: profile.ID})

	return &LoginResult{
		Token: token,
		Profile: ProfileResponse{
			ID:         user.ID,
			Email:      row.Email,
			Nickname:   row.Nickname,
			Avatar:     row.ProfileImageURL,
			ProviderID: profile.ID,
		},
	}, nil
}

// findOrCreateUser resolves the provider profile to a durable
// identity, creating one on first login. Identity creation is at most
// once per email: a concurrent first login may lose the create race,
// in which case the store's uniqueness conflict means the identity now
// exists and is re-read.
func (s *Service) findOrCreateUser(ctx context.Context, profile *kakao.Profile) (*identitystore.User, error) {
	user, err := s.store.FindUserByEmail(ctx, profile.Email)
	if err != nil {
		s.logger.Error("identity lookup failed", logger.Field{Key: "err", Value: err})
		return nil, &AppError{Status: http.StatusInternalServerError, Code: ErrorCodeIdentityLookup, Message: "identity lookup failed", Detail: err.Error()}
	}
	if user != nil {
		return user, nil
	}

	metadata := map[string]any{
		"kakao_id": profile.ID,
		"nickname": profile.Nickname,
		"avatar":   profile.AvatarURL,
	}
	user, createErr := s.store.CreateUser(ctx, profile.Email, metadata)
	if createErr == nil {
		return user, nil
	}

	if errors.Is(createErr, identitystore.ErrEmailExists) {
		// lost the creation race: the identity exists now, re-read it
		user, err = s.store.FindUserByEmail(ctx, profile.Email)
		if err == nil && user != nil {
			return user, nil
		}
		if err != nil {
			createErr = err
		}
	}

	s.logger.Error("identity creation failed", logger.Field{Key: "err", Value: createErr})
	return nil, &AppError{Status: http.StatusInternalServerError, Code: ErrorCodeIdentityCreate, Message: "identity creation failed", Detail: createErr.Error()}
}

func (s *Service) mapProviderErr(err error, code ErrorCode, msg string) error {
	var provErr *kakao.ProviderError
	if errors.As(err, &provErr) {
		// upstream status and body mirrored for diagnostics, never retried
		return &AppError{Status: provErr.Status, Code: code, Message: msg, Detail: provErr.Body}
	}
	if errors.Is(err, kakao.ErrNoAccessToken) {
		return &AppError{Status: http.StatusInternalServerError, Code: ErrorCodeNoAccessToken, Message: "provider returned no access token"}
	}
	s.logger.Error(msg, logger.Field{Key: "err", Value: err})
	return &AppError{Status: http.StatusInternalServerError, Code: ErrorCodeUnexpected, Message: msg}
}
