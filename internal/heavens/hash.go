package heavens

import (
	"crypto/md5"
	"encoding/hex"
)

// Hash returns the lowercase hex MD5 digest of s. It is a content
// fingerprint for row IDs and table digests, not a security primitive.
func Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
