package finnhub

// quoteResponse is GET /quote. C is the current price; zero means unknown symbol.
type quoteResponse struct {
	Error string  `json:"error"`
	C     float64 `json:"c"`
	T     int64   `json:"t"`
}

// candleResponse is GET /crypto/candle
type candleResponse struct {
	S     string    `json:"s"`
	Error string    `json:"error"`
	C     []float64 `json:"c"`
	T     []int64   `json:"t"`
}
