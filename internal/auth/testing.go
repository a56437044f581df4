package auth

import "context"

// SetClientForTest injects claims for clientID into the context for testing purposes.
func SetClientForTest(ctx context.Context, clientID string, scopes ...string) context.Context {
	return context.WithValue(ctx, claimsKey, &Claims{ClientID: clientID, Scopes: scopes, TokenType: tokenAccess})
}
