package testutil

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"certificatePortal/internal/db"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The database is closed via t.Cleanup. Names are derived from the test name
// so parallel packages never share a cache.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	dsn := "file:" + sanitize(t.Name()+"_"+name) + "?mode=memory&cache=shared"
	d, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", " ", "_", "#", "_", "?", "_", "&", "_").Replace(s)
}

// GenerateJWTHS256 returns a signed token carrying the portal's claim names.
// A zero ttl produces a token without an expiry.
func GenerateJWTHS256(t *testing.T, secret, userID, username, role string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"userId":   userID,
		"username": username,
		"role":     role,
		"iat":      time.Now().Unix(),
	}
	if ttl != 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}
