package openrtb_ext

// ExtBidResponse defines the contract for bidresponse.ext
type ExtBidResponse struct {
	// Errors defines the contract for bidresponse.ext.errors
	Errors   map[BidderName][]ExtBidderMessage `json:"errors,omitempty"`
	Warnings map[BidderName][]ExtBidderMessage `json:"warnings,omitempty"`
	// ResponseTimeMillis defines the contract for bidresponse.ext.responsetimemillis
	ResponseTimeMillis map[BidderName]int `json:"responsetimemillis,omitempty"`
	// RequestTimeoutMillis is the timeout the request actually ran with.
	RequestTimeoutMillis int64 `json:"tmaxrequest,omitempty"`
}

// ExtBidderMessage defines an error or warning object reported for a bidder
type ExtBidderMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
