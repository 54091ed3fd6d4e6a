package dto

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MarketClosedResponse is returned when generation is refused because the
// market is not open on the requested day.
type MarketClosedResponse struct {
	MarketClosed bool   `json:"market_closed"`
	Reason       string `json:"reason"`
}
