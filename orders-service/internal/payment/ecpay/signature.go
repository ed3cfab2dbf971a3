package ecpay

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const checkMacField = "CheckMacValue"

// restorer undoes the escapes ECPay keeps literal after lower-casing.
var restorer = strings.NewReplacer(
	"%2d", "-",
	"%5f", "_",
	"%2e", ".",
	"%21", "!",
	"%2a", "*",
	"%28", "(",
	"%29", ")",
	"%20", "+",
)

// CheckMacValue computes the SHA-256 signature ECPay expects over params.
// Any CheckMacValue entry in params is ignored.
func CheckMacValue(params map[string]string, hashKey, hashIV string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == checkMacField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("HashKey=")
	b.WriteString(hashKey)
	for _, k := range keys {
		b.WriteByte('&')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString("&HashIV=")
	b.WriteString(hashIV)

	// QueryEscape leaves '~' alone; ECPay's form encoding does not.
	encoded := strings.ReplaceAll(url.QueryEscape(b.String()), "~", "%7E")
	encoded = restorer.Replace(strings.ToLower(encoded))

	sum := sha256.Sum256([]byte(encoded))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify recomputes the signature and compares it exactly with the received CheckMacValue.
func Verify(params map[string]string, hashKey, hashIV string) bool {
	received, ok := params[checkMacField]
	if !ok || received == "" {
		return false
	}
	return CheckMacValue(params, hashKey, hashIV) == received
}
