package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/sio60/guildrunner/pkg/signer"
)

var (
	ErrStateMalformed = errors.New("state token malformed")
	ErrStateMismatch  = errors.New("state signature mismatch")
)

// IssueState returns an anti-forgery state token of the form
// "<nonce>.<tag>" where the tag binds the nonce to redirectURI.
// Tokens are stateless: nothing is persisted server-side, the tag is
// re-derived and compared at callback time.
func IssueState(secret, redirectURI string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)
	tag := signer.Sign(secret, nonce+"|"+redirectURI)
	return nonce + "." + tag, nil
}

// VerifyState recomputes the tag for the presented redirect URI and
// compares it against the token's tag. It fails closed: a token
// missing either part is ErrStateMalformed, a recomputation mismatch
// is ErrStateMismatch. A state issued for one redirect URI never
// verifies against another.
func VerifyState(secret, state, redirectURI string) error {
	nonce, tag, found := strings.Cut(state, ".")
	if !found || nonce == "" || tag == "" {
		return ErrStateMalformed
	}
	expected := signer.Sign(secret, nonce+"|"+redirectURI)
	if !signer.Equal(tag, expected) {
		return ErrStateMismatch
	}
	return nil
}
