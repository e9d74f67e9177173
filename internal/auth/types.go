package auth

type ErrorCode string

const (
	ErrorCodeMissingRedirectURI ErrorCode = "missing_redirectUri"
	ErrorCodeMissingCode        ErrorCode = "missing_code_or_redirectUri"
	ErrorCodeInvalidState       ErrorCode = "invalid_state"
	ErrorCodeStateMismatch      ErrorCode = "state_mismatch"
	ErrorCodeEmailRequired      ErrorCode = "email_required"
	ErrorCodeTokenExchange      ErrorCode = "kakao_token_error"
	ErrorCodeProfileFetch       ErrorCode = "kakao_me_error"
	ErrorCodeNoAccessToken      ErrorCode = "missing_access_token"
	ErrorCodeIdentityLookup     ErrorCode = "identity_lookup_error"
	ErrorCodeIdentityCreate     ErrorCode = "identity_create_error"
	ErrorCodeProfileUpsert      ErrorCode = "profile_upsert_error"
	ErrorCodeRateLimited        ErrorCode = "rate_limited"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeUnexpected         ErrorCode = "unexpected"
)

// AppError is the closed error representation crossing the request
// boundary. Status mirrors the HTTP status; Detail is optional
// diagnostic payload (upstream bodies are passed through verbatim).
type AppError struct {
	Status  int       `json:"-"`
	Code    ErrorCode `json:"error"`
	Message string    `json:"-"`
	Detail  string    `json:"detail,omitempty"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

type CallbackRequest struct {
	Code        string `json:"code"`
	State       string `json:"state"`
	RedirectURI string `json:"redirectUri"`
}

// ProfileResponse is the denormalized profile returned to the app.
type ProfileResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Nickname   string `json:"nickname"`
	Avatar     string `json:"avatar"`
	ProviderID int64  `json:"providerId"`
}

// LoginResult is the terminal-success payload of the callback flow.
type LoginResult struct {
	Token   string          `json:"token"`
	Profile ProfileResponse `json:"profile"`
}
