package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

func MetricsKey(userID uuid.UUID, filterHash string) string {
	return fmt.Sprintf("klaviyo:metrics:%s:%s", userID, filterHash)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// HashFilter derives a stable cache key component from a query filter string.
func HashFilter(filter string) string {
	sum := sha256.Sum256([]byte(filter))
	return hex.EncodeToString(sum[:8])
}
