package auth

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"certificatePortal/internal/common"
	"certificatePortal/internal/logging"
	"certificatePortal/models"
	"certificatePortal/repository"
)

// MinPasswordLength is the shortest accepted secret.
const MinPasswordLength = 6

// Session is the result of a successful login.
type Session struct {
	Token     string
	Username  string
	Role      models.Role
	ExpiresAt time.Time
}

// Gateway registers identities, authenticates them and verifies their tokens.
// Verification is stateless: a token stays valid until its embedded expiry,
// whatever happens to the identity afterwards.
type Gateway struct {
	users  repository.CredentialStore
	tokens *TokenIssuer
	hasher *PasswordHasher
	log    logging.Logger
}

func NewGateway(users repository.CredentialStore, tokens *TokenIssuer, hasher *PasswordHasher, log logging.Logger) *Gateway {
	if log == nil {
		log = logging.Nop()
	}
	return &Gateway{users: users, tokens: tokens, hasher: hasher, log: log.With("component", "auth")}
}

// Register creates a new identity. The returned user never carries the hash.
func (g *Gateway) Register(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	if username == "" || password == "" || role == "" {
		return nil, common.Errorf(common.ErrValidation, "All fields are required")
	}
	if !role.Valid() {
		return nil, common.Errorf(common.ErrValidation, "Invalid role. Must be '%s' or '%s'", models.RoleAdmin, models.RoleParticipant)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, common.Errorf(common.ErrValidation, "Password must be at least %d characters", MinPasswordLength)
	}

	existing, err := g.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, common.Wrap(common.ErrStore, err, "Error during registration")
	}
	if existing != nil {
		return nil, common.Errorf(common.ErrConflict, "Username already exists")
	}

	hash, err := g.hasher.Hash(password)
	if err != nil {
		if isPasswordTooLong(err) {
			return nil, common.Errorf(common.ErrValidation, "Password must be at most 72 bytes")
		}
		return nil, common.Wrap(common.ErrStore, err, "Error during registration")
	}

	u, err := g.users.Create(ctx, &models.User{Username: username, PasswordHash: hash, Role: role})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, common.Errorf(common.ErrConflict, "Username already exists")
		}
		return nil, common.Wrap(common.ErrStore, err, "Error during registration")
	}
	u.PasswordHash = ""
	g.log.Info(ctx, "identity registered", "username", u.Username, "role", u.Role)
	return u, nil
}

// Authenticate checks the credentials and mints a token. Unknown usernames
// and wrong passwords produce the same error.
func (g *Gateway) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, common.Errorf(common.ErrValidation, "Username and password are required")
	}

	u, err := g.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, common.Wrap(common.ErrStore, err, "Error during login")
	}
	if u == nil {
		g.hasher.CompareDummy(password)
		return nil, invalidCredentials()
	}
	if !g.hasher.Compare(u.PasswordHash, password) {
		return nil, invalidCredentials()
	}

	tok, exp, err := g.tokens.Issue(u)
	if err != nil {
		return nil, common.Wrap(common.ErrStore, err, "Error during login")
	}
	g.log.Info(ctx, "identity logged in", "username", u.Username, "role", u.Role)
	return &Session{Token: tok, Username: u.Username, Role: u.Role, ExpiresAt: exp}, nil
}

// Verify decodes a bearer token.
func (g *Gateway) Verify(token string) (*Claims, error) {
	return g.tokens.Parse(token)
}

// RequireRole fails with ErrForbidden unless claims carry role.
func (g *Gateway) RequireRole(claims *Claims, role models.Role) error {
	if claims == nil {
		return missingToken()
	}
	if claims.Role != role {
		return common.Errorf(common.ErrForbidden, "Access denied. %s only.", roleTitle(role))
	}
	return nil
}

func invalidCredentials() error {
	return common.Errorf(common.ErrUnauthorized, "Invalid username or password")
}

func roleTitle(r models.Role) string {
	switch r {
	case models.RoleAdmin:
		return "Admin"
	case models.RoleParticipant:
		return "Participant"
	}
	return string(r)
}
