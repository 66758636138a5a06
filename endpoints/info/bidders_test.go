package info

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flippback/prebid-flipp/adapters"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

type testSpec struct{}

func (testSpec) Code() openrtb_ext.BidderName { return openrtb_ext.BidderFlipp }

func (testSpec) SupportedMediaTypes() []openrtb_ext.BidType {
	return []openrtb_ext.BidType{openrtb_ext.BidTypeBanner}
}

func (testSpec) IsBidRequestValid(*adapters.BidRequest) bool { return true }

func (testSpec) BuildRequests(context.Context, []*adapters.BidRequest, *adapters.BidderRequest) ([]*adapters.RequestData, []error) {
	return nil, nil
}

func (testSpec) InterpretResponse(*adapters.ResponseData, *adapters.RequestData) ([]*adapters.BidResponse, []error) {
	return nil, nil
}

func (testSpec) GetUserSyncs(adapters.SyncOptions, []*adapters.ResponseData) []adapters.UserSync {
	return []adapters.UserSync{}
}

func TestBiddersEndpoint(t *testing.T) {
	endpoint := NewBiddersEndpoint([]adapters.Spec{testSpec{}})

	recorder := httptest.NewRecorder()
	endpoint(recorder, httptest.NewRequest("GET", "/info/bidders", nil), nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.JSONEq(t, `["flipp"]`, recorder.Body.String())
}

func TestBidderDetailsEndpoint(t *testing.T) {
	infos := adapters.BidderInfos{
		"flipp": {
			Maintainer:  &adapters.MaintainerInfo{Email: "prebid@flipp.com"},
			GVLVendorID: 1139,
			Capabilities: &adapters.CapabilitiesInfo{
				Site: &adapters.PlatformInfo{MediaTypes: []openrtb_ext.BidType{openrtb_ext.BidTypeBanner}},
			},
		},
	}
	endpoint := NewBidderDetailsEndpoint([]adapters.Spec{testSpec{}}, infos)

	testCases := []struct {
		description    string
		bidder         string
		expectedStatus int
		expectedBody   string
	}{
		{
			description:    "known",
			bidder:         "flipp",
			expectedStatus: http.StatusOK,
			expectedBody: `{"code":"flipp","supportedMediaTypes":["banner"],"maintainer":{"email":"prebid@flipp.com"},
				"gvlVendorID":1139,"capabilities":{"site":{"mediaTypes":["banner"]}}}`,
		},
		{
			description:    "unknown",
			bidder:         "other",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			params := httprouter.Params{{Key: "bidderName", Value: test.bidder}}
			endpoint(recorder, httptest.NewRequest("GET", "/info/bidders/"+test.bidder, nil), params)

			assert.Equal(t, test.expectedStatus, recorder.Code)
			if test.expectedBody != "" {
				assert.JSONEq(t, test.expectedBody, recorder.Body.String())
			}
		})
	}
}
