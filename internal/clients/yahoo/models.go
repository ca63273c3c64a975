package yahoo

// quoteResponse is the v7 quote payload. Only the fields used for pricing are decoded.
type quoteResponse struct {
	QuoteResponse struct {
		Error  *quoteError `json:"error"`
		Result []quote     `json:"result"`
	} `json:"quoteResponse"`
}

type quote struct {
	Symbol             string   `json:"symbol"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	RegularMarketTime  int64    `json:"regularMarketTime"`
}

type quoteError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
