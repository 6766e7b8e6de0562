package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
)

// signKrakenRequest computes Kraken's private-endpoint signature:
// HMAC-SHA512, keyed by the base64-decoded API secret, over
// uriPath || SHA256(nonce || postData), base64-encoded for the API-Sign
// header. postData is the URL-encoded request body, which must itself
// contain the nonce field used here.
func signKrakenRequest(secretB64, uriPath, nonce, postData string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(nonce + postData))
	digest := h.Sum(nil)

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(uriPath))
	mac.Write(digest)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// krakenAssetAliases maps internal currency codes to Kraken's asset codes
// where they differ (Kraken calls Bitcoin XBT).
var krakenAssetAliases = map[string]string{"BTC": "XBT"}

var reverseKrakenAssetAliases = map[string]string{"XBT": "BTC"}

// toKrakenAsset translates an internal currency code to Kraken's asset code.
func toKrakenAsset(asset string) string {
	if alias, ok := krakenAssetAliases[asset]; ok {
		return alias
	}
	return asset
}

// fromKrakenAsset translates a Kraken asset code back to the internal
// currency code, stripping Kraken's single-letter X/Z class prefix from
// 4-character codes (XXBT, ZEUR, XETH) before checking the alias table.
func fromKrakenAsset(asset string) string {
	stripped := asset
	if len(asset) == 4 && (asset[0] == 'X' || asset[0] == 'Z') {
		stripped = asset[1:]
	}
	if real, ok := reverseKrakenAssetAliases[stripped]; ok {
		return real
	}
	return stripped
}
