package bucket

import (
	"strings"

	"github.com/google/uuid"
)

const (
	publicKeyPrefix  = "pk_"
	privateKeyPrefix = "sk_"
	maxKeyAttempts   = 3
)

// newKeyPair returns a fresh public/private key pair. Each key carries the 122 random bits of a
// version 4 UUID, which come from crypto/rand.
func newKeyPair() (public, private string) {
	return publicKeyPrefix + randomToken(), privateKeyPrefix + randomToken()
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// KeyKind tells which role a bucket key is presented in.
type KeyKind string

const (
	PublicKind  KeyKind = "public"
	PrivateKind KeyKind = "private"
)

// CacheKey is the cache entry under which the identity behind a bucket key is memoized. Each
// kind has its own entry so a lookup of one role never answers for the other.
func CacheKey(kind KeyKind, key string) string {
	return "bucketkey:" + string(kind) + ":" + key
}
