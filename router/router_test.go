package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBidBody = `{
	"bids": [{"bidId":"b1","adUnitCode":"div-1","sizes":[[300,600]],"params":{"siteId":1,"publisherNameIdentifier":"pub"}}],
	"bidderRequest": {"referrer":"https://www.example.com/flyers"}
}`

func newTestConfig(t *testing.T, endpoint string) *config.Configuration {
	t.Helper()
	v := viper.New()
	config.SetupViper(v, "")
	cfg, err := config.New(v)
	require.NoError(t, err)

	cfg.BidderInfoDir = "../static/bidder-info"
	cfg.BidderParamsDir = "../static/bidder-params"
	flippCfg := cfg.Adapters["flipp"]
	flippCfg.Endpoints.Production = endpoint
	flippCfg.UserSyncURL = ""
	cfg.Adapters["flipp"] = flippCfg
	return cfg
}

func newCampaignServer(t *testing.T, response string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNoCache(t *testing.T) {
	handler := NoCache{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	}
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest("GET", "http://localhost/status", nil)
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "no-cache, no-store, must-revalidate", recorder.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", recorder.Header().Get("Pragma"))
	assert.Equal(t, "0", recorder.Header().Get("Expires"))
}

func TestSupportCORS(t *testing.T) {
	handler := SupportCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest("OPTIONS", "http://localhost/bid", nil)
	request.Header.Set("Origin", "https://publisher.example.com")
	request.Header.Set("Access-Control-Request-Method", "POST")
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "https://publisher.example.com", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", recorder.Header().Get("Access-Control-Allow-Credentials"))
}

func TestNewStatus(t *testing.T) {
	r, err := New(newTestConfig(t, "http://localhost/campaigns"))
	require.NoError(t, err)
	assert.Nil(t, r.MetricsEngine)

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest("GET", "/status", nil))

	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestNewBidderInfo(t *testing.T) {
	r, err := New(newTestConfig(t, "http://localhost/campaigns"))
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest("GET", "/info/bidders/flipp", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var detail struct {
		Code                string   `json:"code"`
		SupportedMediaTypes []string `json:"supportedMediaTypes"`
		Maintainer          struct {
			Email string `json:"email"`
		} `json:"maintainer"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &detail))
	assert.Equal(t, "flipp", detail.Code)
	assert.Equal(t, []string{"banner"}, detail.SupportedMediaTypes)
	assert.NotEmpty(t, detail.Maintainer.Email)

	recorder = httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest("GET", "/info/bidders/unknown", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestNewBidderParams(t *testing.T) {
	r, err := New(newTestConfig(t, "http://localhost/campaigns"))
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest("GET", "/bidders/params", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	var schemas map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &schemas))
	assert.Contains(t, string(schemas["flipp"]), "publisherNameIdentifier")
}

func TestJsonDirectoryServerUnknownBidder(t *testing.T) {
	validator, err := openrtb_ext.NewBidderParamsValidator("../static/bidder-params")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unknown.json"), []byte(`{}`), 0644))

	_, err = NewJsonDirectoryServer(dir, validator)
	assert.Error(t, err)
}

func TestNewBid(t *testing.T) {
	server := newCampaignServer(t, `{"decisions":{"inline":[{"adId":1,"creativeId":2,"prebid":{"requestId":"b1","cpm":2.5,"creative":"<div/>"}}]}}`)
	r, err := New(newTestConfig(t, server.URL))
	require.NoError(t, err)
	defer r.Shutdown()

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest("POST", "/bid", strings.NewReader(testBidBody)))

	require.Equal(t, http.StatusOK, recorder.Code)
	var response struct {
		Bids []struct {
			RequestID string  `json:"requestId"`
			CPM       float64 `json:"cpm"`
			Ad        string  `json:"ad"`
		} `json:"bids"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Bids, 1)
	assert.Equal(t, "b1", response.Bids[0].RequestID)
	assert.Equal(t, 2.5, response.Bids[0].CPM)
	assert.Equal(t, "<div/>", response.Bids[0].Ad)
	assert.Contains(t, recorder.Header().Get("Set-Cookie"), "flipp-uid=")
}

func TestNewOpenRTB(t *testing.T) {
	server := newCampaignServer(t, `{"decisions":{"inline":[{"adId":7,"creativeId":8,"prebid":{"requestId":"imp-1","cpm":1.5,"creative":"<div/>"}}]}}`)
	r, err := New(newTestConfig(t, server.URL))
	require.NoError(t, err)

	body := `{"id":"req-1","imp":[{"id":"imp-1","banner":{"format":[{"w":300,"h":600}]},"ext":{"bidder":{"siteId":1,"publisherNameIdentifier":"pub"}}}],
		"site":{"page":"https://www.example.com/"},"device":{"ip":"123.123.123.123"}}`
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, httptest.NewRequest("POST", "/openrtb2/flipp", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, recorder.Code)
	var response struct {
		ID      string `json:"id"`
		SeatBid []struct {
			Seat string `json:"seat"`
			Bid  []struct {
				ImpID string  `json:"impid"`
				Price float64 `json:"price"`
			} `json:"bid"`
		} `json:"seatbid"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "req-1", response.ID)
	require.Len(t, response.SeatBid, 1)
	assert.Equal(t, "flipp", response.SeatBid[0].Seat)
	require.Len(t, response.SeatBid[0].Bid, 1)
	assert.Equal(t, "imp-1", response.SeatBid[0].Bid[0].ImpID)
	assert.Equal(t, 1.5, response.SeatBid[0].Bid[0].Price)
}

func TestNewWithPrometheus(t *testing.T) {
	cfg := newTestConfig(t, "http://localhost/campaigns")
	cfg.Metrics.Prometheus.Port = 9090

	r, err := New(cfg)

	require.NoError(t, err)
	assert.NotNil(t, r.MetricsEngine)
}

func TestNewErrors(t *testing.T) {
	t.Run("disabled-adapter", func(t *testing.T) {
		cfg := newTestConfig(t, "http://localhost/campaigns")
		flippCfg := cfg.Adapters["flipp"]
		flippCfg.Disabled = true
		cfg.Adapters["flipp"] = flippCfg

		_, err := New(cfg)
		assert.Error(t, err)
	})
	t.Run("missing-bidder-info", func(t *testing.T) {
		cfg := newTestConfig(t, "http://localhost/campaigns")
		cfg.BidderInfoDir = t.TempDir()

		_, err := New(cfg)
		assert.Error(t, err)
	})
	t.Run("missing-bidder-params", func(t *testing.T) {
		cfg := newTestConfig(t, "http://localhost/campaigns")
		cfg.BidderParamsDir = filepath.Join(t.TempDir(), "missing")

		_, err := New(cfg)
		assert.Error(t, err)
	})
	t.Run("bad-sync-template", func(t *testing.T) {
		cfg := newTestConfig(t, "http://localhost/campaigns")
		flippCfg := cfg.Adapters["flipp"]
		flippCfg.UserSyncURL = "https://sync.example.com/?uid={{.UID"
		cfg.Adapters["flipp"] = flippCfg

		_, err := New(cfg)
		assert.Error(t, err)
	})
}

func TestAdminVersion(t *testing.T) {
	recorder := httptest.NewRecorder()
	Admin("abc123", "1.0.0").ServeHTTP(recorder, httptest.NewRequest("GET", "/version", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"revision":"abc123","version":"1.0.0"}`, recorder.Body.String())
}
