package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/usersync"
	"github.com/prebid/openrtb/v20/openrtb2"
)

// Spec is the contract a header-bidding framework drives a bidder through.
//
// The host calls IsBidRequestValid on every raw bid, hands the valid ones to
// BuildRequests in a single call, performs the HTTP calls itself and passes each
// answer to InterpretResponse together with the RequestData that produced it.
//
// None of the methods panic. Failures are returned as errors alongside whatever
// partial result could still be produced, so one bad bidder never breaks the auction.
type Spec interface {
	// Code is the stable bidder code the host registers this bidder under.
	Code() openrtb_ext.BidderName
	SupportedMediaTypes() []openrtb_ext.BidType
	IsBidRequestValid(bid *BidRequest) bool
	BuildRequests(ctx context.Context, bids []*BidRequest, bidderRequest *BidderRequest) ([]*RequestData, []error)
	InterpretResponse(response *ResponseData, request *RequestData) ([]*BidResponse, []error)
	GetUserSyncs(options SyncOptions, responses []*ResponseData) []UserSync
}

// Bidder is the OpenRTB flavor of the same contract, used when the auction runs server side.
type Bidder interface {
	// MakeRequests makes the HTTP requests which should be made to fetch bids.
	//
	// The errors should contain a list of errors which explain why this bidder's bids will be
	// "subpar" in some way. For example: the request contained ad types which this bidder doesn't support.
	MakeRequests(request *openrtb2.BidRequest, reqInfo *ExtraRequestInfo) ([]*RequestData, []error)

	// MakeBids unpacks the server's response into Bids.
	//
	// The bids can be nil (for no bids), but should not contain nil elements.
	MakeBids(request *openrtb2.BidRequest, requestData *RequestData, responseData *ResponseData) (*BidderResponse, []error)
}

// BidRequest is one ad slot the publisher wants filled.
type BidRequest struct {
	BidID      string          `json:"bidId"`
	AdUnitCode string          `json:"adUnitCode,omitempty"`
	Sizes      []Format        `json:"sizes,omitempty"`
	Params     json.RawMessage `json:"params"`
}

// Format is a candidate slot size.
type Format struct {
	W int64 `json:"w"`
	H int64 `json:"h"`
}

// UnmarshalJSON accepts both the [w, h] pairs the browser side sends and {"w": .., "h": ..} objects.
func (f *Format) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pair []int64
		if err := json.Unmarshal(b, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("size must be a [width, height] pair, got %d values", len(pair))
		}
		f.W, f.H = pair[0], pair[1]
		return nil
	}

	type format Format
	var obj format
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*f = Format(obj)
	return nil
}

// BidderRequest is the context shared by every bid of one batch.
type BidderRequest struct {
	// Referrer is the page URL. Its query string may carry pb-env and flipp-content-code.
	Referrer string `json:"referrer"`

	// IP is the public address of the client, taken from the inbound HTTP request.
	IP string `json:"-"`

	// Session and Cookies belong to the page load the batch was issued from.
	// Without a Session no user sync pixel is fired.
	Session *usersync.Session    `json:"-"`
	Cookies usersync.CookieStore `json:"-"`
}

// BidResponse is one bid handed back to the host for ranking.
type BidResponse struct {
	RequestID  string              `json:"requestId"`
	CPM        float64             `json:"cpm"`
	Width      int64               `json:"width"`
	Height     int64               `json:"height"`
	CreativeID string              `json:"creativeId"`
	DealID     string              `json:"dealId,omitempty"`
	Currency   string              `json:"currency"`
	NetRevenue bool                `json:"netRevenue"`
	TTL        int                 `json:"ttl"`
	Ad         string              `json:"ad"`
	AdID       string              `json:"adId,omitempty"`
	MediaType  openrtb_ext.BidType `json:"mediaType"`
}

type SyncOptions struct {
	IframeEnabled bool `json:"iframeEnabled"`
	PixelEnabled  bool `json:"pixelEnabled"`
}

// UserSync is a sync the host should fire on the bidder's behalf.
type UserSync struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// RequestData packages together the fields needed to make an http.Request.
type RequestData struct {
	Method  string
	Uri     string
	Body    []byte
	Headers http.Header
	// BidIDs lists the bids (imps on the OpenRTB path) this request carries.
	BidIDs []string
}

// ResponseData packages together information from the server's http.Response.
type ResponseData struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// ExtraRequestInfo carries the inbound request details an OpenRTB bidder may need.
type ExtraRequestInfo struct {
	GlobalPrivacyControlHeader string
}

func NewExtraRequestInfo(r *http.Request) ExtraRequestInfo {
	if r == nil {
		return ExtraRequestInfo{}
	}
	return ExtraRequestInfo{GlobalPrivacyControlHeader: r.Header.Get("Sec-GPC")}
}

// TypedBid packages the openrtb2.Bid with the media type the host needs to rank it.
type TypedBid struct {
	Bid     *openrtb2.Bid
	BidType openrtb_ext.BidType
}

// BidderResponse wraps the server's response with the list of bids and currency.
type BidderResponse struct {
	Currency string
	Bids     []*TypedBid
}

// NewBidderResponseWithBidsCapacity create a new BidderResponse initialising the bids array capacity and the default currency value
// to "USD".
//
// bidsCapacity allows to set initial Bids array capacity.
func NewBidderResponseWithBidsCapacity(bidsCapacity int) *BidderResponse {
	return &BidderResponse{
		Currency: "USD",
		Bids:     make([]*TypedBid, 0, bidsCapacity),
	}
}

func NewBidderResponse() *BidderResponse {
	return NewBidderResponseWithBidsCapacity(0)
}

var errNilResponse = errors.New("no response data")

func IsResponseStatusCodeNoContent(response *ResponseData) bool {
	return response != nil && response.StatusCode == http.StatusNoContent
}

// CheckResponseStatusCodeForErrors turns any non 2xx answer into a BadServerResponse error.
func CheckResponseStatusCodeForErrors(response *ResponseData) error {
	if response == nil {
		return &errortypes.BadServerResponse{Message: errNilResponse.Error()}
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return &errortypes.BadServerResponse{
			Message: fmt.Sprintf("Unexpected status code: %d", response.StatusCode),
		}
	}
	return nil
}
