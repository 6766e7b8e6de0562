package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signBinanceQuery signs a URL-encoded query string with HMAC-SHA256 using
// the venue's API secret, returning the hex-encoded signature to append as
// the query's final "&signature=" parameter.
func signBinanceQuery(secret, query string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}
