package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/flippback/prebid-flipp/adapters"
	"github.com/flippback/prebid-flipp/adapters/flipp"
	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/endpoints"
	"github.com/flippback/prebid-flipp/endpoints/info"
	"github.com/flippback/prebid-flipp/endpoints/openrtb2"
	"github.com/flippback/prebid-flipp/metrics"
	prometheusmetrics "github.com/flippback/prebid-flipp/metrics/prometheus"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/router/aspects"
	"github.com/flippback/prebid-flipp/usersync"
	"github.com/flippback/prebid-flipp/util/jsonutil"
	"github.com/flippback/prebid-flipp/util/randomutil"
	"github.com/flippback/prebid-flipp/util/uuidutil"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

// NewJsonDirectoryServer is used to serve .json files from a directory as a single blob. For example,
// given a directory containing the files "a.json" and "b.json", this returns a Handle which serves JSON like:
//
//	{
//	  "a": { ... content from the file a.json ... },
//	  "b": { ... content from the file b.json ... }
//	}
func NewJsonDirectoryServer(schemaDirectory string, validator openrtb_ext.BidderParamValidator) (httprouter.Handle, error) {
	// Slurp the files into memory first, since they're small and it minimizes request latency.
	entries, err := os.ReadDir(schemaDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %v", schemaDirectory, err)
	}

	data := make(map[string]json.RawMessage, len(entries))
	for _, entry := range entries {
		bidder := strings.TrimSuffix(entry.Name(), ".json")
		bidderName, isValid := openrtb_ext.GetBidderName(bidder)
		if !isValid {
			return nil, fmt.Errorf("schema exists for an unknown bidder: %s", bidder)
		}
		data[bidder] = json.RawMessage(validator.Schema(bidderName))
	}

	response, err := jsonutil.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bidder param JSON-schema: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Add("Content-Type", "application/json")
		w.Write(response)
	}, nil
}

type Router struct {
	*httprouter.Router
	MetricsEngine *prometheusmetrics.Metrics
	Shutdown      func()
}

func getTransport(cfg *config.Configuration) *http.Transport {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		MaxConnsPerHost: cfg.HTTPClient.MaxConnsPerHost,
		IdleConnTimeout: time.Duration(cfg.HTTPClient.IdleConnTimeout) * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   cfg.HTTPClient.Timeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	if cfg.HTTPClient.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.HTTPClient.MaxIdleConns
		transport.MaxIdleConnsPerHost = cfg.HTTPClient.MaxIdleConns
	}

	return transport
}

// New wires the configured bidders, their user key resolver and the metrics
// engine behind the public routes.
func New(cfg *config.Configuration) (r *Router, err error) {
	r = &Router{
		Router:   httprouter.New(),
		Shutdown: func() {},
	}

	generalHttpClient := &http.Client{
		Transport: getTransport(cfg),
	}

	var me metrics.MetricsEngine = &metrics.NilMetricsEngine{}
	if cfg.Metrics.Prometheus.Port != 0 {
		r.MetricsEngine = prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus)
		me = r.MetricsEngine
	}

	bidderInfos, err := adapters.LoadBidderInfos(cfg.BidderInfoDir, openrtb_ext.CoreBidderNames())
	if err != nil {
		return nil, err
	}

	paramsValidator, err := openrtb_ext.NewBidderParamsValidator(cfg.BidderParamsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create the bidder params validator: %v", err)
	}
	paramsServer, err := NewJsonDirectoryServer(cfg.BidderParamsDir, paramsValidator)
	if err != nil {
		return nil, err
	}

	flippCfg, ok := cfg.Adapters[openrtb_ext.BidderFlipp.String()]
	if !ok || flippCfg.Disabled {
		return nil, errors.New("the flipp adapter is disabled, there is nothing to serve")
	}

	pixelFirer := usersync.NewHTTPPixelFirer(generalHttpClient, cfg.HTTPClient.PixelTimeout())
	keyGenerator := uuidutil.TemplateGenerator{Source: randomutil.RandomNumberGenerator{}}
	resolver, err := usersync.NewKeyResolver(flippCfg.UserSyncURL, cfg.UserKeyCookie.Name, keyGenerator, pixelFirer, me)
	if err != nil {
		return nil, fmt.Errorf("failed to build the flipp user key resolver: %v", err)
	}

	flippAdapter, err := flipp.Builder(openrtb_ext.BidderFlipp, flippCfg, resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to build the flipp adapter: %v", err)
	}
	specs := []adapters.Spec{flippAdapter}

	executor := adapters.NewExecutor(generalHttpClient, me)
	ortbBidder := adapters.BuildInfoAwareBidder(flippAdapter, bidderInfos[openrtb_ext.BidderFlipp.String()])
	openrtbEndpoint, err := openrtb2.NewBidderEndpoint(executor, openrtb_ext.BidderFlipp, ortbBidder, paramsValidator, cfg.HTTPClient.Timeout(), cfg.MaxRequestSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create the openrtb2 endpoint handler: %v", err)
	}

	bidEndpoint := endpoints.NewBidEndpoint(executor, flippAdapter, cfg)
	if cfg.RequestTimeoutHeaders != (config.RequestTimeoutHeaders{}) {
		bidEndpoint = aspects.QueuedRequestTimeout(bidEndpoint, cfg.RequestTimeoutHeaders)
		openrtbEndpoint = aspects.QueuedRequestTimeout(openrtbEndpoint, cfg.RequestTimeoutHeaders)
	}

	r.POST("/bid", bidEndpoint)
	r.POST("/openrtb2/flipp", openrtbEndpoint)
	r.GET("/bidders/params", paramsServer)
	r.GET("/info/bidders", info.NewBiddersEndpoint(specs))
	r.GET("/info/bidders/:bidderName", info.NewBidderDetailsEndpoint(specs, bidderInfos))
	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))

	r.Shutdown = func() {
		glog.Info("Waiting for pending user sync pixels")
		pixelFirer.Wait()
	}
	return r, nil
}

// Admin serves the admin port: build information only.
func Admin(revision, version string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", endpoints.NewVersionEndpoint(version, revision))
	return mux
}

// SupportCORS allows credentialed calls from any origin. The user key cookie only
// identifies a browser to the campaign server, and every page carrying the bidder
// has to be able to send it.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
