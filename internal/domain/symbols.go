package domain

import "strings"

var cryptoQuoteSuffixes = []string{"-USDT", "-USD", "/USDT", "/USD"}

// IsCrypto reports whether a symbol should be priced as a crypto pair
func IsCrypto(symbol string, category Category) bool {
	if category == CategoryDigitalAssets {
		return true
	}
	s := strings.ToUpper(symbol)
	for _, suffix := range cryptoQuoteSuffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// CryptoBase strips a quote currency: "btc-usd" -> "BTC"
func CryptoBase(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range cryptoQuoteSuffixes {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}
