package dto

import "time"

// PricePoint is a single intraday sample for a symbol.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
}

// DailyBar is one daily OHLC bar as returned by the market data provider.
type DailyBar struct {
	Symbol     string    `json:"symbol"`
	Date       time.Time `json:"date"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	ClosePrice float64   `json:"close_price"`
	Volume     int64     `json:"volume"`
	Change     float64   `json:"change"`
}

// ChartResponse mirrors the provider's intraday chart payload.
type ChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}
