package endpoints

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flippback/prebid-flipp/adapters"
	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/usersync"
	"github.com/flippback/prebid-flipp/util/httputil"
	"github.com/flippback/prebid-flipp/util/iputil"
	"github.com/flippback/prebid-flipp/util/jsonutil"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
)

// BidRequest is the body of POST /bid: the batch of bids one page load asks the bidder for.
type BidRequest struct {
	Bids          []*adapters.BidRequest `json:"bids"`
	BidderRequest adapters.BidderRequest `json:"bidderRequest"`
}

type BidResponse struct {
	Bids     []*adapters.BidResponse        `json:"bids"`
	Errors   []openrtb_ext.ExtBidderMessage `json:"errors,omitempty"`
	Warnings []openrtb_ext.ExtBidderMessage `json:"warnings,omitempty"`
}

type bidEndpointDeps struct {
	executor       *adapters.Executor
	spec           adapters.Spec
	cookieCfg      *config.UserKeyCookie
	timeout        time.Duration
	maxRequestSize int64
	ipValidator    iputil.IPValidator
}

// NewBidEndpoint serves POST /bid. Every HTTP request is treated as one page load, so
// it gets its own session and reads and writes the user key cookie of that request.
func NewBidEndpoint(executor *adapters.Executor, spec adapters.Spec, cfg *config.Configuration) httprouter.Handle {
	deps := &bidEndpointDeps{
		executor:       executor,
		spec:           spec,
		cookieCfg:      &cfg.UserKeyCookie,
		timeout:        cfg.HTTPClient.Timeout(),
		maxRequestSize: cfg.MaxRequestSize,
		ipValidator: iputil.NewPublicIPValidator(
			cfg.RequestValidation.IPv4PrivateNetworksParsed,
			cfg.RequestValidation.IPv6PrivateNetworksParsed,
		),
	}
	return deps.Bid
}

func (deps *bidEndpointDeps) Bid(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, err := deps.parseRequest(w, r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid request format: %s\n", err.Error())
		return
	}

	bidderRequest := req.BidderRequest
	if bidderRequest.Referrer == "" {
		bidderRequest.Referrer = r.Referer()
	}
	if ip, _ := httputil.FindIP(r, deps.ipValidator); ip != nil {
		bidderRequest.IP = ip.String()
	}
	bidderRequest.Session = usersync.NewSession()
	bidderRequest.Cookies = usersync.NewHTTPCookieStore(w, r, deps.cookieCfg)

	ctx, cancel := context.WithTimeout(r.Context(), deps.timeout)
	defer cancel()

	bids, errs := deps.executor.Bid(ctx, deps.spec, req.Bids, &bidderRequest)
	if fatal := errortypes.FatalOnly(errs); len(fatal) > 0 {
		glog.V(2).Infof("%s bid request from %s finished with errors: %v", deps.spec.Code(), bidderRequest.Referrer, fatal)
	}

	response := BidResponse{Bids: bids}
	if response.Bids == nil {
		response.Bids = []*adapters.BidResponse{}
	}
	response.Errors, response.Warnings = errortypes.ToMessages(errs)

	responseBytes, err := jsonutil.Marshal(response)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Failed to marshal bid response: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(responseBytes)
}

func (deps *bidEndpointDeps) parseRequest(w http.ResponseWriter, r *http.Request) (*BidRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, deps.maxRequestSize))
	if err != nil {
		return nil, fmt.Errorf("request body could not be read: %v", err)
	}

	req := &BidRequest{}
	if err := jsonutil.UnmarshalValid(body, req); err != nil {
		return nil, err
	}
	if len(req.Bids) == 0 {
		return nil, fmt.Errorf("request.bids must contain at least one element")
	}
	return req, nil
}
