package flipp

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/flippback/prebid-flipp/adapters"
	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/util/jsonutil"
	"github.com/prebid/go-gdpr/consentconstants"
	"github.com/prebid/go-gdpr/vendorconsent"
	"github.com/prebid/openrtb/v20/openrtb2"
)

// MakeRequests batches every imp of an OpenRTB request into one campaign request
// sent to the production endpoint.
func (a *Adapter) MakeRequests(request *openrtb2.BidRequest, reqInfo *adapters.ExtraRequestInfo) ([]*adapters.RequestData, []error) {
	if request.Site == nil {
		return nil, []error{&errortypes.BadInput{Message: "flipp only supports site requests"}}
	}
	if request.Device == nil || request.Device.IP == "" {
		return nil, []error{&errortypes.BadInput{Message: "no IP set in flipp bidder params or request device"}}
	}

	var errs []error
	bids := make([]*adapters.BidRequest, 0, len(request.Imp))
	for _, imp := range request.Imp {
		bid, err := impToBidRequest(imp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bids = append(bids, bid)
	}

	page := parsePageContext(request.Site.Page)
	placements, bidIDs, firstParams, buildErrs := a.buildPlacements(bids, page)
	errs = append(errs, buildErrs...)
	if len(placements) == 0 {
		return nil, append(errs, &errortypes.FailedToRequestBids{Message: errNoPlacements.Error()})
	}

	userKey, err := a.openrtbUserKey(request, reqInfo, firstParams)
	if err != nil {
		return nil, append(errs, err)
	}

	campaignRequestBody := CampaignRequestBody{
		Placements: placements,
		URL:        request.Site.Page,
		Keywords:   splitKeywords(request.Site.Keywords),
		IP:         request.Device.IP,
		User:       CampaignRequestBodyUser{Key: userKey},
	}

	headers := http.Header{}
	if request.Device.UA != "" {
		headers.Add("User-Agent", request.Device.UA)
	}

	adapterReq, err := a.makeRequest(campaignRequestBody, a.endpoints.Production, bidIDs, headers)
	if err != nil {
		return nil, append(errs, err)
	}
	return []*adapters.RequestData{adapterReq}, errs
}

// MakeBids interprets the campaign response exactly as the header-bidding path does
// and wraps each bid for the OpenRTB response.
func (a *Adapter) MakeBids(request *openrtb2.BidRequest, requestData *adapters.RequestData, responseData *adapters.ResponseData) (*adapters.BidderResponse, []error) {
	bidResponses, errs := a.InterpretResponse(responseData, requestData)
	if len(bidResponses) == 0 {
		return nil, errs
	}

	bidResponse := adapters.NewBidderResponseWithBidsCapacity(len(bidResponses))
	bidResponse.Currency = a.currency
	for _, bid := range bidResponses {
		bidResponse.Bids = append(bidResponse.Bids, &adapters.TypedBid{
			Bid:     buildBid(bid),
			BidType: openrtb_ext.BidTypeBanner,
		})
	}
	return bidResponse, errs
}

func buildBid(bidResponse *adapters.BidResponse) *openrtb2.Bid {
	id := bidResponse.AdID
	if id == "" {
		id = bidResponse.RequestID
	}
	return &openrtb2.Bid{
		ID:     id,
		ImpID:  bidResponse.RequestID,
		Price:  bidResponse.CPM,
		AdM:    bidResponse.Ad,
		CrID:   bidResponse.CreativeID,
		DealID: bidResponse.DealID,
		W:      bidResponse.Width,
		H:      bidResponse.Height,
		Exp:    int64(bidResponse.TTL),
	}
}

func impToBidRequest(imp openrtb2.Imp) (*adapters.BidRequest, error) {
	params, _, _, err := jsonparser.Get(imp.Ext, "bidder")
	if err != nil {
		return nil, &errortypes.BadInput{Message: fmt.Sprintf("imp %s: flipp params not found. %v", imp.ID, err)}
	}

	bid := &adapters.BidRequest{
		BidID:      imp.ID,
		AdUnitCode: imp.TagID,
		Params:     params,
	}
	if imp.Banner != nil {
		if len(imp.Banner.Format) > 0 {
			bid.Sizes = []adapters.Format{{W: imp.Banner.Format[0].W, H: imp.Banner.Format[0].H}}
		} else if imp.Banner.W != nil && imp.Banner.H != nil {
			bid.Sizes = []adapters.Format{{W: *imp.Banner.W, H: *imp.Banner.H}}
		}
	}
	return bid, nil
}

// openrtbUserKey prefers user.id, then the publisher supplied userKey when privacy
// signals allow it, then a fresh UUID.
func (a *Adapter) openrtbUserKey(request *openrtb2.BidRequest, reqInfo *adapters.ExtraRequestInfo, params *openrtb_ext.ExtFlipp) (string, error) {
	if request.User != nil && request.User.ID != "" {
		return request.User.ID, nil
	}
	if params.UserKey != "" && paramsUserKeyPermitted(request, reqInfo) {
		return params.UserKey, nil
	}
	uid, err := a.uuidGenerator.Generate()
	if err != nil {
		return "", &errortypes.FailedToRequestBids{Message: fmt.Sprintf("unable to generate user uuid. %v", err)}
	}
	return uid, nil
}

func splitKeywords(keywords string) []string {
	if keywords == "" {
		return nil
	}
	split := strings.Split(keywords, ",")
	result := make([]string, 0, len(split))
	for _, keyword := range split {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			result = append(result, keyword)
		}
	}
	return result
}

func paramsUserKeyPermitted(request *openrtb2.BidRequest, reqInfo *adapters.ExtraRequestInfo) bool {
	if reqInfo != nil && reqInfo.GlobalPrivacyControlHeader == "1" {
		return false
	}
	if request.Regs != nil {
		if request.Regs.COPPA == 1 {
			return false
		}
		if request.Regs.GDPR != nil && *request.Regs.GDPR == 1 {
			return false
		}
	}
	if request.Ext != nil {
		var extData struct {
			TransmitEids *bool `json:"transmitEids,omitempty"`
		}
		if err := jsonutil.Unmarshal(request.Ext, &extData); err == nil {
			if extData.TransmitEids != nil && !*extData.TransmitEids {
				return false
			}
		}
	}
	if request.User != nil && request.User.Consent != "" {
		// A malformed consent string carries no denial.
		consent, err := vendorconsent.ParseString(request.User.Consent)
		if err != nil {
			return true
		}
		if !consent.PurposeAllowed(consentconstants.ContentSelectionDeliveryReporting) {
			return false
		}
	}
	return true
}
