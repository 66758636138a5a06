package flipp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/flippback/prebid-flipp/adapters"
	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/usersync"
	"github.com/flippback/prebid-flipp/util/jsonutil"
	"github.com/flippback/prebid-flipp/util/uuidutil"
	"github.com/golang/glog"
)

const (
	inlineDivName               = "inline"
	creativeTypeDTX             = "DTX"
	creativeTypeNativeX         = "NativeX"
	maxContentCodeLength        = 32
	defaultStandardHeight int64 = 2400
	defaultCompactHeight  int64 = 600
)

var (
	count    int64 = 1
	adTypes        = []int64{4309, 641}
	dtxTypes       = []int64{5061}
)

var (
	errNoPlacements   = errors.New("no valid flipp placements to request")
	errMissingSiteID  = errors.New("siteId is required")
	errMissingPubName = errors.New("publisherNameIdentifier is required")
)

// Adapter is the flipp bidder. It serves both the header-bidding contract
// (adapters.Spec) and the OpenRTB one (adapters.Bidder).
type Adapter struct {
	code         openrtb_ext.BidderName
	endpoints    config.AdapterEndpoints
	networkID    int64
	defaultCPM   float64
	currency     string
	ttl          int
	legacyMarkup bool

	resolver      *usersync.KeyResolver
	uuidGenerator uuidutil.UUIDGenerator
}

// Builder builds a new instance of the Flipp adapter for the given bidder with the given config.
func Builder(bidderName openrtb_ext.BidderName, cfg config.Adapter, resolver *usersync.KeyResolver) (*Adapter, error) {
	if cfg.Endpoints.Production == "" {
		return nil, fmt.Errorf("%s: a production endpoint is required", bidderName)
	}
	if resolver == nil {
		return nil, fmt.Errorf("%s: a user key resolver is required", bidderName)
	}
	return &Adapter{
		code:          bidderName,
		endpoints:     cfg.Endpoints,
		networkID:     cfg.NetworkID,
		defaultCPM:    cfg.DefaultCPM,
		currency:      cfg.Currency,
		ttl:           cfg.TTL,
		legacyMarkup:  cfg.LegacyMarkup,
		resolver:      resolver,
		uuidGenerator: uuidutil.UUIDRandomGenerator{},
	}, nil
}

func (a *Adapter) Code() openrtb_ext.BidderName {
	return a.code
}

func (a *Adapter) SupportedMediaTypes() []openrtb_ext.BidType {
	return []openrtb_ext.BidType{openrtb_ext.BidTypeBanner}
}

func (a *Adapter) IsBidRequestValid(bid *adapters.BidRequest) bool {
	if bid == nil {
		return false
	}
	_, err := parseParams(bid)
	return err == nil
}

// GetUserSyncs is always empty: the user key resolver fires its own pixel.
func (a *Adapter) GetUserSyncs(options adapters.SyncOptions, responses []*adapters.ResponseData) []adapters.UserSync {
	return []adapters.UserSync{}
}

// BuildRequests batches every bid into one campaign request.
func (a *Adapter) BuildRequests(ctx context.Context, bids []*adapters.BidRequest, bidderRequest *adapters.BidderRequest) ([]*adapters.RequestData, []error) {
	if bidderRequest == nil {
		bidderRequest = &adapters.BidderRequest{}
	}
	page := parsePageContext(bidderRequest.Referrer)

	placements, bidIDs, firstParams, errs := a.buildPlacements(bids, page)
	if len(placements) == 0 {
		return nil, append(errs, &errortypes.FailedToRequestBids{Message: errNoPlacements.Error()})
	}

	userKey := a.resolver.Resolve(ctx, bidderRequest.Session, bidderRequest.Cookies, firstParams.UserKey)
	if userKey == "" {
		errs = append(errs, &errortypes.Warning{
			Message:     "no user key could be resolved, the request is sent without one",
			WarningCode: errortypes.UserKeyUnavailableWarningCode,
		})
	}

	campaignRequestBody := CampaignRequestBody{
		Placements: placements,
		URL:        bidderRequest.Referrer,
		IP:         bidderRequest.IP,
		User:       CampaignRequestBodyUser{Key: userKey},
	}

	endpoint := page.environment.Endpoint(a.endpoints)
	if glog.V(2) {
		glog.Infof("Sending %d flipp placements to %s (%s)", len(placements), endpoint, page.environment)
	}

	adapterReq, err := a.makeRequest(campaignRequestBody, endpoint, bidIDs, http.Header{})
	if err != nil {
		return nil, append(errs, err)
	}
	return []*adapters.RequestData{adapterReq}, errs
}

// buildPlacements returns one placement per usable bid, in input order, together with
// the params of the first of them.
func (a *Adapter) buildPlacements(bids []*adapters.BidRequest, page pageContext) ([]*Placement, []string, *openrtb_ext.ExtFlipp, []error) {
	var errs []error
	placements := make([]*Placement, 0, len(bids))
	bidIDs := make([]string, 0, len(bids))
	var firstParams *openrtb_ext.ExtFlipp

	for _, bid := range bids {
		if bid == nil {
			continue
		}
		params, err := parseParams(bid)
		if err != nil {
			errs = append(errs, &errortypes.BadInput{Message: fmt.Sprintf("bid %s: %v", bid.BidID, err)})
			continue
		}
		if firstParams == nil {
			firstParams = params
		}
		placements = append(placements, a.buildPlacement(bid, params, page))
		bidIDs = append(bidIDs, bid.BidID)
	}
	if firstParams == nil {
		firstParams = &openrtb_ext.ExtFlipp{}
	}
	return placements, bidIDs, firstParams, errs
}

func (a *Adapter) buildPlacement(bid *adapters.BidRequest, params *openrtb_ext.ExtFlipp, page pageContext) *Placement {
	// parseParams has already checked that siteId is an integer.
	siteID, _ := params.SiteID.Int64()
	creativeType := resolveCreativeType(params.CreativeType)

	var width, height int64
	if len(bid.Sizes) > 0 {
		width = bid.Sizes[0].W
		height = bid.Sizes[0].H
	}

	placement := &Placement{
		DivName:   inlineDivName,
		NetworkID: a.networkID,
		SiteID:    siteID,
		AdTypes:   getAdTypes(creativeType),
		Count:     count,
		ZoneIds:   params.ZoneIds,
		Prebid: &PrebidRequest{
			RequestID:               bid.BidID,
			PublisherNameIdentifier: params.PublisherNameIdentifier,
			Height:                  height,
			Width:                   width,
			CreativeType:            creativeType,
		},
		Options: params.Options,
	}
	if contentCode := resolveContentCode(page, params); contentCode != "" {
		placement.Properties = &Properties{ContentCode: contentCode}
	}
	return placement
}

func (a *Adapter) makeRequest(campaignRequestBody CampaignRequestBody, endpoint string, bidIDs []string, headers http.Header) (*adapters.RequestData, error) {
	campaignRequestBodyJSON, err := jsonutil.Marshal(campaignRequestBody)
	if err != nil {
		return nil, &errortypes.FailedToMarshal{Message: fmt.Sprintf("unable to encode campaign request: %v", err)}
	}

	headers.Set("Content-Type", "application/json")
	return &adapters.RequestData{
		Method:  http.MethodPost,
		Uri:     endpoint,
		Body:    campaignRequestBodyJSON,
		Headers: headers,
		BidIDs:  bidIDs,
	}, nil
}

// InterpretResponse turns the campaign server's inline decisions into bids. Each
// decision is matched to the placement of request carrying the same requestId.
func (a *Adapter) InterpretResponse(response *adapters.ResponseData, request *adapters.RequestData) ([]*adapters.BidResponse, []error) {
	if response == nil || adapters.IsResponseStatusCodeNoContent(response) {
		return nil, nil
	}
	if err := adapters.CheckResponseStatusCodeForErrors(response); err != nil {
		return nil, []error{err}
	}
	if jsonutil.IsEmpty(response.Body) {
		return nil, nil
	}

	var campaignResponseBody CampaignResponseBody
	if err := jsonutil.Unmarshal(response.Body, &campaignResponseBody); err != nil {
		return nil, []error{&errortypes.BadServerResponse{Message: fmt.Sprintf("unable to decode campaign response: %v", err)}}
	}
	if campaignResponseBody.Decisions == nil || len(campaignResponseBody.Decisions.Inline) == 0 {
		return nil, nil
	}

	placements, err := requestPlacements(request)
	if err != nil {
		return nil, []error{err}
	}

	var errs []error
	bidResponses := make([]*adapters.BidResponse, 0, len(campaignResponseBody.Decisions.Inline))
	for i, decision := range campaignResponseBody.Decisions.Inline {
		if decision == nil || decision.Prebid == nil {
			errs = append(errs, unmatchedDecision(i, ""))
			continue
		}
		placement, ok := placements[decision.Prebid.RequestID]
		if !ok {
			errs = append(errs, unmatchedDecision(i, decision.Prebid.RequestID))
			continue
		}

		bidResponse, err := a.buildBidResponse(decision, placement, campaignResponseBody.Prebid)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bidResponses = append(bidResponses, bidResponse)
	}
	return bidResponses, errs
}

func (a *Adapter) buildBidResponse(decision *InlineModel, placement *Placement, defaults *PrebidDefaults) (*adapters.BidResponse, error) {
	ad, err := a.creative(decision, placement)
	if err != nil {
		return nil, err
	}

	return &adapters.BidResponse{
		RequestID:  decision.Prebid.RequestID,
		CPM:        a.cpm(decision, defaults),
		Width:      bidWidth(decision, placement),
		Height:     bidHeight(decision, placement),
		CreativeID: string(decision.CreativeID),
		DealID:     decision.Prebid.DealID,
		Currency:   a.currency,
		NetRevenue: true,
		TTL:        a.ttl,
		Ad:         ad,
		AdID:       string(decision.AdID),
		MediaType:  openrtb_ext.BidTypeBanner,
	}, nil
}

func (a *Adapter) cpm(decision *InlineModel, defaults *PrebidDefaults) float64 {
	if decision.Prebid.Cpm != nil {
		return *decision.Prebid.Cpm
	}
	if defaults != nil && defaults.Cpm != nil {
		return *defaults.Cpm
	}
	return a.defaultCPM
}

func (a *Adapter) creative(decision *InlineModel, placement *Placement) (string, error) {
	if decision.Prebid.Creative != nil && *decision.Prebid.Creative != "" {
		return *decision.Prebid.Creative, nil
	}
	if a.legacyMarkup {
		return legacyCreative(decision, placement)
	}
	return "", &errortypes.Warning{
		Message:     fmt.Sprintf("decision for %s has no creative and was skipped", decision.Prebid.RequestID),
		WarningCode: errortypes.MissingCreativeWarningCode,
	}
}

func bidWidth(decision *InlineModel, placement *Placement) int64 {
	if decision.Width != 0 {
		return decision.Width
	}
	if data := firstContentData(decision); data != nil && data.Width != 0 {
		return data.Width
	}
	return placement.Prebid.Width
}

func bidHeight(decision *InlineModel, placement *Placement) int64 {
	if decision.Height != 0 {
		return decision.Height
	}

	startCompact := placement.Options != nil && placement.Options.StartCompact
	customDataKey := "standardHeight"
	if startCompact {
		customDataKey = "compactHeight"
	}
	if data := firstContentData(decision); data != nil {
		if customDataMap, ok := data.CustomData.(map[string]interface{}); ok {
			if floatVal, ok := customDataMap[customDataKey].(float64); ok && floatVal > 0 {
				return int64(floatVal)
			}
		}
	}

	if placement.Prebid.Height != 0 {
		return placement.Prebid.Height
	}
	if startCompact {
		return defaultCompactHeight
	}
	return defaultStandardHeight
}

func firstContentData(decision *InlineModel) *ContentData {
	if len(decision.Contents) == 0 || decision.Contents[0] == nil {
		return nil
	}
	return decision.Contents[0].Data
}

// requestPlacements indexes the placements of the originating request by requestId.
func requestPlacements(request *adapters.RequestData) (map[string]*Placement, error) {
	placements := make(map[string]*Placement)
	if request == nil || len(request.Body) == 0 {
		return placements, nil
	}

	var campaignRequestBody CampaignRequestBody
	if err := jsonutil.Unmarshal(request.Body, &campaignRequestBody); err != nil {
		return nil, &errortypes.FailedToUnmarshal{Message: fmt.Sprintf("unable to decode originating request: %v", err)}
	}
	for _, placement := range campaignRequestBody.Placements {
		if placement == nil || placement.Prebid == nil {
			continue
		}
		placements[placement.Prebid.RequestID] = placement
	}
	return placements, nil
}

func unmatchedDecision(index int, requestID string) error {
	return &errortypes.Warning{
		Message:     fmt.Sprintf("decisions.inline[%d] with requestId %q matches no requested placement", index, requestID),
		WarningCode: errortypes.UnmatchedDecisionWarningCode,
	}
}

func parseParams(bid *adapters.BidRequest) (*openrtb_ext.ExtFlipp, error) {
	if len(bytes.TrimSpace(bid.Params)) == 0 {
		return nil, errMissingSiteID
	}
	var params openrtb_ext.ExtFlipp
	if err := jsonutil.Unmarshal(bid.Params, &params); err != nil {
		return nil, fmt.Errorf("unable to extract flipp params: %v", err)
	}
	if params.SiteID == "" {
		return nil, errMissingSiteID
	}
	if _, err := params.SiteID.Int64(); err != nil {
		return nil, fmt.Errorf("siteId must be an integer, got %q", string(params.SiteID))
	}
	if params.PublisherNameIdentifier == "" {
		return nil, errMissingPubName
	}
	return &params, nil
}

func resolveCreativeType(creativeType string) string {
	switch creativeType {
	case creativeTypeDTX, creativeTypeNativeX:
		return creativeType
	default:
		return creativeTypeNativeX
	}
}

func getAdTypes(creativeType string) []int64 {
	if creativeType == creativeTypeDTX {
		return dtxTypes
	}
	return adTypes
}

// resolveContentCode prefers the referrer's flipp-content-code over the params override.
func resolveContentCode(page pageContext, params *openrtb_ext.ExtFlipp) string {
	contentCode := page.contentCode
	if contentCode == "" && params.Options != nil {
		contentCode = params.Options.ContentCode
	}
	return truncate(contentCode, maxContentCodeLength)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
