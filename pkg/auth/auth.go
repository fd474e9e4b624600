package auth

import (
	"context"
	"os"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

// JWTKey signs and verifies access tokens. Override via JWT_SECRET.
var JWTKey = []byte(secret())

func secret() string {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return "lending-service-dev-secret"
}

type Claims struct {
	Profile struct {
		UserID   int    `json:"userId"`
		Username string `json:"username"`
	} `json:"profile"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

type Identity struct {
	UserID   int
	Username string
}

func SetAuthContext(ctx context.Context, userID int, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Identity{UserID: userID, Username: username})
}

var ErrNoIdentity = errors.New("no authenticated identity in context")

func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == 0 {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
