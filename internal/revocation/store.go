// Package revocation tracks which refresh-token instances are still
// honorable, keyed by (user, tokenId) with a TTL matching the token's
// remaining lifetime. The primary backend is Redis; when it becomes
// unreachable the store degrades to an in-process map rather than failing
// every session operation. The fallback is non-durable and not shared
// between instances: sessions may become invalid after a restart while
// degraded, which fails closed.
package revocation

import (
	"context"
	"time"
)

type Store interface {
	Store(ctx context.Context, userID, tokenID string, ttl time.Duration) error
	Exists(ctx context.Context, userID, tokenID string) (bool, error)
	// Revoke deletes the entry and reports whether it was present. The
	// delete is atomic per key: of two concurrent consumers of the same
	// token, exactly one sees removed=true.
	Revoke(ctx context.Context, userID, tokenID string) (bool, error)
}

func key(userID, tokenID string) string {
	return "refresh:" + userID + ":" + tokenID
}
