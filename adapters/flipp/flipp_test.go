package flipp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/flippback/prebid-flipp/adapters"
	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/usersync"
	"github.com/flippback/prebid-flipp/util/uuidutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fakeUuid          = "30470a14-2949-4110-abce-b62d57304ad5"
	prodEndpoint      = "https://gateflipp.flippback.com/flyer-locator-service/prebid_campaigns"
	stagingEndpoint   = "https://gateflipp-stg.flippback.com/flyer-locator-service-stg/prebid_campaigns"
	devEndpoint       = "http://localhost:4000/flyer-locator-service/prebid_campaigns"
	testSyncURL       = "https://idsync.rlcdn.com/712559.gif?partner_uid={{.UID}}"
	testReferrer      = "https://www.example.com/flyers"
	validParams       = `{"siteId":1243066,"publisherNameIdentifier":"wishabi-test-publisher","creativeType":"NativeX","zoneIds":[285431]}`
	contentCode40     = "abcdefghijklmnopqrstuvwxyz0123456789WXYZ"
	contentCode40Head = "abcdefghijklmnopqrstuvwxyz012345"
)

type TestUUIDGenerator struct {
	id  string
	err error
}

func (g TestUUIDGenerator) Generate() (string, error) {
	return g.id, g.err
}

type recordingPixelFirer struct {
	urls []string
}

func (p *recordingPixelFirer) Fire(ctx context.Context, url string) {
	p.urls = append(p.urls, url)
}

func testAdapterConfig() config.Adapter {
	return config.Adapter{
		Endpoints: config.AdapterEndpoints{
			Production:  prodEndpoint,
			Staging:     stagingEndpoint,
			Development: devEndpoint,
		},
		NetworkID:   11090,
		DefaultCPM:  1.0,
		Currency:    "USD",
		TTL:         30,
		UserSyncURL: testSyncURL,
	}
}

func newTestAdapter(t *testing.T, cfg config.Adapter, generator uuidutil.UUIDGenerator) (*Adapter, *recordingPixelFirer) {
	t.Helper()
	pixel := &recordingPixelFirer{}
	resolver, err := usersync.NewKeyResolver(cfg.UserSyncURL, "flipp-uid", generator, pixel, nil)
	require.NoError(t, err)

	bidder, err := Builder(openrtb_ext.BidderFlipp, cfg, resolver)
	require.NoError(t, err)
	bidder.uuidGenerator = TestUUIDGenerator{id: fakeUuid}
	return bidder, pixel
}

func newBid(id string, params string) *adapters.BidRequest {
	return &adapters.BidRequest{
		BidID:      id,
		AdUnitCode: "slot-" + id,
		Sizes:      []adapters.Format{{W: 300, H: 600}},
		Params:     json.RawMessage(params),
	}
}

func buildSingleRequest(t *testing.T, bidder *Adapter, bids []*adapters.BidRequest, bidderRequest *adapters.BidderRequest) (*adapters.RequestData, CampaignRequestBody) {
	t.Helper()
	reqs, errs := bidder.BuildRequests(context.Background(), bids, bidderRequest)
	require.Empty(t, errortypes.FatalOnly(errs))
	require.Len(t, reqs, 1)

	var body CampaignRequestBody
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	return reqs[0], body
}

func TestBuilder(t *testing.T) {
	resolver, err := usersync.NewKeyResolver("", "flipp-uid", nil, nil, nil)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		bidder, err := Builder(openrtb_ext.BidderFlipp, testAdapterConfig(), resolver)
		require.NoError(t, err)
		assert.Equal(t, openrtb_ext.BidderFlipp, bidder.Code())
		assert.Equal(t, []openrtb_ext.BidType{openrtb_ext.BidTypeBanner}, bidder.SupportedMediaTypes())
	})
	t.Run("missing-production-endpoint", func(t *testing.T) {
		cfg := testAdapterConfig()
		cfg.Endpoints.Production = ""
		_, err := Builder(openrtb_ext.BidderFlipp, cfg, resolver)
		assert.Error(t, err)
	})
	t.Run("missing-resolver", func(t *testing.T) {
		_, err := Builder(openrtb_ext.BidderFlipp, testAdapterConfig(), nil)
		assert.Error(t, err)
	})
}

func TestInterfaces(t *testing.T) {
	var _ adapters.Spec = (*Adapter)(nil)
	var _ adapters.Bidder = (*Adapter)(nil)
}

func TestGetUserSyncsIsEmpty(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), nil)

	syncs := bidder.GetUserSyncs(adapters.SyncOptions{PixelEnabled: true, IframeEnabled: true}, nil)

	assert.NotNil(t, syncs)
	assert.Empty(t, syncs)
}

func TestIsBidRequestValid(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), nil)

	testCases := []struct {
		description string
		bid         *adapters.BidRequest
		expected    bool
	}{
		{description: "numeric-site-id", bid: newBid("r1", validParams), expected: true},
		{description: "string-site-id", bid: newBid("r1", `{"siteId":"1243066","publisherNameIdentifier":"pub"}`), expected: true},
		{description: "missing-site-id", bid: newBid("r1", `{"publisherNameIdentifier":"pub"}`), expected: false},
		{description: "null-site-id", bid: newBid("r1", `{"siteId":null,"publisherNameIdentifier":"pub"}`), expected: false},
		{description: "empty-site-id", bid: newBid("r1", `{"siteId":"","publisherNameIdentifier":"pub"}`), expected: false},
		{description: "non-numeric-site-id", bid: newBid("r1", `{"siteId":"abc","publisherNameIdentifier":"pub"}`), expected: false},
		{description: "missing-publisher", bid: newBid("r1", `{"siteId":1243066}`), expected: false},
		{description: "malformed-params", bid: newBid("r1", `{"siteId":`), expected: false},
		{description: "no-params", bid: &adapters.BidRequest{BidID: "r1"}, expected: false},
		{description: "nil-bid", bid: nil, expected: false},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, test.expected, bidder.IsBidRequestValid(test.bid))
		})
	}
}

func TestBuildRequestsOnePlacementPerBidInOrder(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})
	bids := []*adapters.BidRequest{newBid("r3", validParams), newBid("r1", validParams), newBid("r2", validParams)}

	req, body := buildSingleRequest(t, bidder, bids, &adapters.BidderRequest{Referrer: testReferrer})

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, prodEndpoint, req.Uri)
	assert.Equal(t, "application/json", req.Headers.Get("Content-Type"))
	assert.Equal(t, []string{"r3", "r1", "r2"}, req.BidIDs)

	require.Len(t, body.Placements, 3)
	for i, id := range []string{"r3", "r1", "r2"} {
		assert.Equal(t, id, body.Placements[i].Prebid.RequestID)
	}
	assert.Equal(t, testReferrer, body.URL)
	assert.Equal(t, fakeUuid, body.User.Key)
}

func TestBuildRequestsPlacementFields(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})
	params := `{"siteId":"1243066","publisherNameIdentifier":"wishabi-test-publisher","options":{"startCompact":true,"dwellExpand":true}}`

	_, body := buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r1", params)}, &adapters.BidderRequest{Referrer: testReferrer})

	require.Len(t, body.Placements, 1)
	placement := body.Placements[0]
	assert.Equal(t, "inline", placement.DivName)
	assert.Equal(t, int64(11090), placement.NetworkID)
	assert.Equal(t, int64(1243066), placement.SiteID)
	assert.Equal(t, int64(1), placement.Count)
	assert.Equal(t, &PrebidRequest{
		CreativeType:            "NativeX",
		Height:                  600,
		PublisherNameIdentifier: "wishabi-test-publisher",
		RequestID:               "r1",
		Width:                   300,
	}, placement.Prebid)
	assert.Equal(t, &openrtb_ext.ExtFlippOptions{StartCompact: true, DwellExpand: true}, placement.Options)
	assert.Nil(t, placement.Properties)
	assert.Empty(t, placement.ZoneIds)
}

func TestBuildRequestsForwardsClientIP(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})

	_, body := buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r1", validParams)}, &adapters.BidderRequest{Referrer: testReferrer, IP: "203.0.113.7"})
	assert.Equal(t, "203.0.113.7", body.IP)

	_, body = buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r1", validParams)}, &adapters.BidderRequest{Referrer: testReferrer})
	assert.Empty(t, body.IP)
}

func TestBuildRequestsNoSizes(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})
	bid := newBid("r1", validParams)
	bid.Sizes = nil

	_, body := buildSingleRequest(t, bidder, []*adapters.BidRequest{bid}, &adapters.BidderRequest{})

	assert.Zero(t, body.Placements[0].Prebid.Width)
	assert.Zero(t, body.Placements[0].Prebid.Height)
}

func TestBuildRequestsAdTypes(t *testing.T) {
	testCases := []struct {
		creativeType         string
		expectedAdTypes      []int64
		expectedCreativeType string
	}{
		{creativeType: "DTX", expectedAdTypes: []int64{5061}, expectedCreativeType: "DTX"},
		{creativeType: "NativeX", expectedAdTypes: []int64{4309, 641}, expectedCreativeType: "NativeX"},
		{creativeType: "", expectedAdTypes: []int64{4309, 641}, expectedCreativeType: "NativeX"},
		{creativeType: "dtx", expectedAdTypes: []int64{4309, 641}, expectedCreativeType: "NativeX"},
		{creativeType: "banner", expectedAdTypes: []int64{4309, 641}, expectedCreativeType: "NativeX"},
	}

	for _, test := range testCases {
		t.Run("creative-type-"+test.creativeType, func(t *testing.T) {
			bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})
			params := `{"siteId":1,"publisherNameIdentifier":"pub","creativeType":"` + test.creativeType + `"}`

			_, body := buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r1", params)}, &adapters.BidderRequest{})

			assert.Equal(t, test.expectedAdTypes, body.Placements[0].AdTypes)
			assert.Equal(t, test.expectedCreativeType, body.Placements[0].Prebid.CreativeType)
		})
	}
}

func TestBuildRequestsContentCode(t *testing.T) {
	testCases := []struct {
		description string
		referrer    string
		params      string
		expected    string
	}{
		{
			description: "query-parameter-truncated",
			referrer:    testReferrer + "?flipp-content-code=" + contentCode40,
			params:      validParams,
			expected:    contentCode40Head,
		},
		{
			description: "short-query-parameter",
			referrer:    testReferrer + "?a=b&flipp-content-code=promo",
			params:      validParams,
			expected:    "promo",
		},
		{
			description: "options-override",
			referrer:    testReferrer,
			params:      `{"siteId":1,"publisherNameIdentifier":"pub","options":{"contentCode":"` + contentCode40 + `"}}`,
			expected:    contentCode40Head,
		},
		{
			description: "query-parameter-beats-options",
			referrer:    testReferrer + "?flipp-content-code=from-url",
			params:      `{"siteId":1,"publisherNameIdentifier":"pub","options":{"contentCode":"from-params"}}`,
			expected:    "from-url",
		},
		{
			description: "absent",
			referrer:    testReferrer,
			params:      validParams,
			expected:    "",
		},
		{
			description: "unparseable-referrer",
			referrer:    "://not a url",
			params:      validParams,
			expected:    "",
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})

			req, body := buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r1", test.params)}, &adapters.BidderRequest{Referrer: test.referrer})

			if test.expected == "" {
				assert.Nil(t, body.Placements[0].Properties)
				assert.NotContains(t, string(req.Body), `"properties"`)
				return
			}
			require.NotNil(t, body.Placements[0].Properties)
			assert.Equal(t, test.expected, body.Placements[0].Properties.ContentCode)
		})
	}
}

func TestBuildRequestsEnvironment(t *testing.T) {
	testCases := []struct {
		description string
		referrer    string
		expected    string
	}{
		{description: "no-parameter", referrer: testReferrer, expected: prodEndpoint},
		{description: "staging", referrer: testReferrer + "?pb-env=staging", expected: stagingEndpoint},
		{description: "dev", referrer: testReferrer + "?pb-env=dev", expected: devEndpoint},
		{description: "unknown", referrer: testReferrer + "?pb-env=qa", expected: prodEndpoint},
		{description: "empty-referrer", referrer: "", expected: prodEndpoint},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})

			req, _ := buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r1", validParams)}, &adapters.BidderRequest{Referrer: test.referrer})

			assert.Equal(t, test.expected, req.Uri)
		})
	}
}

func TestBuildRequestsStagingFallsBackToProduction(t *testing.T) {
	cfg := testAdapterConfig()
	cfg.Endpoints.Staging = ""
	bidder, _ := newTestAdapter(t, cfg, TestUUIDGenerator{id: fakeUuid})

	req, _ := buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r1", validParams)}, &adapters.BidderRequest{Referrer: testReferrer + "?pb-env=staging"})

	assert.Equal(t, prodEndpoint, req.Uri)
}

func TestBuildRequestsZoneIds(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})
	withZones := newBid("r1", `{"siteId":1,"publisherNameIdentifier":"pub","zoneIds":["285431",12]}`)
	withoutZones := newBid("r2", `{"siteId":1,"publisherNameIdentifier":"pub","zoneIds":[]}`)

	req, _ := buildSingleRequest(t, bidder, []*adapters.BidRequest{withZones, withoutZones}, &adapters.BidderRequest{})

	var raw struct {
		Placements []map[string]json.RawMessage `json:"placements"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &raw))
	require.Len(t, raw.Placements, 2)
	assert.JSONEq(t, `["285431",12]`, string(raw.Placements[0]["zoneIds"]))
	assert.NotContains(t, raw.Placements[1], "zoneIds")
}

func TestBuildRequestsSkipsInvalidBids(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})
	bids := []*adapters.BidRequest{
		newBid("bad", `{"publisherNameIdentifier":"pub"}`),
		newBid("good", validParams),
		nil,
	}

	reqs, errs := bidder.BuildRequests(context.Background(), bids, &adapters.BidderRequest{})

	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"good"}, reqs[0].BidIDs)
	require.Len(t, errs, 1)
	assert.IsType(t, &errortypes.BadInput{}, errs[0])
}

func TestBuildRequestsNoValidBids(t *testing.T) {
	bidder, pixel := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})

	reqs, errs := bidder.BuildRequests(context.Background(), []*adapters.BidRequest{newBid("bad", `{}`)}, nil)

	assert.Empty(t, reqs)
	require.Len(t, errs, 2)
	assert.IsType(t, &errortypes.BadInput{}, errs[0])
	assert.IsType(t, &errortypes.FailedToRequestBids{}, errs[1])
	assert.Empty(t, pixel.urls)
}

func TestBuildRequestsUserKeyFromFirstBidHint(t *testing.T) {
	bidder, pixel := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})
	bids := []*adapters.BidRequest{
		newBid("r1", `{"siteId":1,"publisherNameIdentifier":"pub","userKey":"first-key"}`),
		newBid("r2", `{"siteId":1,"publisherNameIdentifier":"pub","userKey":"second-key"}`),
	}

	_, body := buildSingleRequest(t, bidder, bids, &adapters.BidderRequest{Session: usersync.NewSession()})

	assert.Equal(t, "first-key", body.User.Key)
	assert.Equal(t, []string{"https://idsync.rlcdn.com/712559.gif?partner_uid=first-key"}, pixel.urls)
}

func TestBuildRequestsPlaceholderHintIsIgnored(t *testing.T) {
	bidder, _ := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{id: fakeUuid})
	bid := newBid("r1", `{"siteId":1,"publisherNameIdentifier":"pub","userKey":"#USER_KEY#"}`)

	_, body := buildSingleRequest(t, bidder, []*adapters.BidRequest{bid}, &adapters.BidderRequest{})

	assert.Equal(t, fakeUuid, body.User.Key)
}

func TestBuildRequestsSessionKeepsKeyAndSyncsOnce(t *testing.T) {
	bidder, pixel := newTestAdapter(t, testAdapterConfig(), uuidutil.TemplateGenerator{Source: fixedSource(7)})
	bidderRequest := &adapters.BidderRequest{Referrer: testReferrer, Session: usersync.NewSession()}

	_, first := buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r1", validParams)}, bidderRequest)
	_, second := buildSingleRequest(t, bidder, []*adapters.BidRequest{newBid("r2", validParams)}, bidderRequest)

	assert.NotEmpty(t, first.User.Key)
	assert.Equal(t, first.User.Key, second.User.Key)
	assert.Len(t, pixel.urls, 1)
}

func TestBuildRequestsWithoutUserKey(t *testing.T) {
	bidder, pixel := newTestAdapter(t, testAdapterConfig(), TestUUIDGenerator{err: errors.New("no entropy")})

	reqs, errs := bidder.BuildRequests(context.Background(), []*adapters.BidRequest{newBid("r1", validParams)}, &adapters.BidderRequest{})

	require.Len(t, reqs, 1)
	assert.Contains(t, string(reqs[0].Body), `"user":{"key":""}`)
	require.Len(t, errs, 1)
	assert.Equal(t, errortypes.UserKeyUnavailableWarningCode, errortypes.ReadCode(errs[0]))
	assert.True(t, errortypes.IsWarning(errs[0]))
	assert.Empty(t, pixel.urls)
}

type fixedSource int64

func (s fixedSource) GenerateInt63() int64 {
	return int64(s)
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo wörld", 5))
	assert.Equal(t, "short", truncate("short", 32))
	assert.Equal(t, strings.Repeat("a", 32), truncate(strings.Repeat("a", 40), 32))
}
