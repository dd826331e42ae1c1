package middleware

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-chat/backend/internal/models"
)

// IDTokenVerifier is the part of *auth.Client the Firebase verifier uses.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseProvisioner maps a Firebase identity to the local user, creating
// or linking the account on first sign-in.
type FirebaseProvisioner interface {
	ProvisionFirebaseUser(ctx context.Context, identity models.FirebaseIdentity) (uint, error)
}

// FirebaseVerifier accepts Firebase ID tokens. The first verified token of a
// new Firebase account provisions its local user.
type FirebaseVerifier struct {
	tokens IDTokenVerifier
	users  FirebaseProvisioner
}

func NewFirebaseVerifier(tokens IDTokenVerifier, users FirebaseProvisioner) *FirebaseVerifier {
	return &FirebaseVerifier{tokens: tokens, users: users}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (uint, error) {
	token, err := v.tokens.VerifyIDToken(ctx, idToken)
	if err != nil {
		return 0, ErrInvalidToken
	}
	identity := identityFromToken(token)
	// accounts without an email (phone or anonymous sign-in) cannot be provisioned
	if identity.Email == "" {
		return 0, ErrInvalidToken
	}
	return v.users.ProvisionFirebaseUser(ctx, identity)
}

func identityFromToken(token *auth.Token) models.FirebaseIdentity {
	claim := func(name string) string {
		s, _ := token.Claims[name].(string)
		return s
	}
	verified, _ := token.Claims["email_verified"].(bool)
	return models.FirebaseIdentity{
		UID:           token.UID,
		Email:         claim("email"),
		EmailVerified: verified,
		Name:          claim("name"),
		Picture:       claim("picture"),
	}
}
