package auth

import (
	"context"
	"log/slog"

	"hearthchat/contract"
	"hearthchat/domain"
)

// Resolver turns the raw credential from a connection handshake into a
// Principal. It never returns an error: malformed, expired, or unknown
// credentials all degrade to domain.Anonymous, which callers treat
// uniformly as "unauthenticated". A failed resolution is terminal for
// that connection attempt; nothing is retried.
type Resolver struct {
	secret    []byte
	directory contract.IDirectory
	log       *slog.Logger
}

func NewResolver(secret []byte, directory contract.IDirectory, log *slog.Logger) *Resolver {
	return &Resolver{secret: secret, directory: directory, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, raw string) domain.Principal {
	if raw == "" {
		return domain.Anonymous
	}

	claims, err := ValidateToken(r.secret, raw)
	if err != nil {
		r.log.Debug("Credential rejected", "error", err)
		return domain.Anonymous
	}

	// Read-only lookup: the token may outlive the account.
	principal, err := r.directory.UserByID(ctx, domain.UserID(claims.UserID))
	if err != nil {
		r.log.Debug("Credential resolved to unknown user", "user_id", claims.UserID, "error", err)
		return domain.Anonymous
	}
	return principal
}
