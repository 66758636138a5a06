package openrtb2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/flippback/prebid-flipp/adapters"
	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/util/jsonutil"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openrtb/v20/openrtb2"
)

// NewBidderEndpoint serves a single bidder over OpenRTB 2.x: the inbound bid request
// is passed to bidder as is and its bids come back under one seat.
func NewBidderEndpoint(executor *adapters.Executor, name openrtb_ext.BidderName, bidder adapters.Bidder, paramsValidator openrtb_ext.BidderParamValidator, timeout time.Duration, maxRequestSize int64) (httprouter.Handle, error) {
	if executor == nil || bidder == nil || paramsValidator == nil {
		return nil, errors.New("NewBidderEndpoint requires non-nil arguments.")
	}

	return httprouter.Handle((&endpointDeps{executor, name, bidder, paramsValidator, timeout, maxRequestSize}).Auction), nil
}

type endpointDeps struct {
	executor        *adapters.Executor
	name            openrtb_ext.BidderName
	bidder          adapters.Bidder
	paramsValidator openrtb_ext.BidderParamValidator
	timeout         time.Duration
	maxRequestSize  int64
}

func (deps *endpointDeps) Auction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start := time.Now()
	req, ctx, cancel, errL := deps.parseRequest(w, r)
	defer cancel() // Safe because parseRequest returns a no-op if there's nothing to cancel
	if len(errL) > 0 {
		w.WriteHeader(http.StatusBadRequest)
		for _, err := range errL {
			w.Write([]byte(fmt.Sprintf("Invalid request: %s\n", err.Error())))
		}
		return
	}

	reqInfo := adapters.NewExtraRequestInfo(r)
	bidderResponse, errs := deps.executor.BidOpenRTB(ctx, deps.name, deps.bidder, req, &reqInfo)
	if fatal := errortypes.FatalOnly(errs); len(fatal) > 0 {
		glog.V(2).Infof("%s openrtb request %s finished with errors: %v", deps.name, req.ID, fatal)
	}

	response, err := deps.buildResponse(req, bidderResponse, errs, time.Since(start))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Critical error while building the response: %v", err)
		return
	}

	responseBytes, err := jsonutil.Marshal(response)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Failed to marshal bid response: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(responseBytes)
}

// parseRequest turns the HTTP request into an OpenRTB request. This is guaranteed to return
// a context which times out at the lower of tmax and the configured timeout, and a cancellation
// function which should be called once the bidder is done.
//
// If the errors list has at least one element, then no guarantees are made about the returned request.
func (deps *endpointDeps) parseRequest(w http.ResponseWriter, httpRequest *http.Request) (req *openrtb2.BidRequest, ctx context.Context, cancel func(), errs []error) {
	req = &openrtb2.BidRequest{}
	ctx = httpRequest.Context()
	cancel = func() {}

	body, err := io.ReadAll(http.MaxBytesReader(w, httpRequest.Body, deps.maxRequestSize))
	if err != nil {
		errs = []error{fmt.Errorf("request body could not be read: %v", err)}
		return
	}
	if err := jsonutil.UnmarshalValid(body, req); err != nil {
		errs = []error{err}
		return
	}
	if err := deps.validateRequest(req); err != nil {
		errs = []error{err}
		return
	}

	timeout := deps.timeout
	if tmax := time.Duration(req.TMax) * time.Millisecond; tmax > 0 && tmax < timeout {
		timeout = tmax
	}
	ctx, cancel = context.WithTimeout(ctx, timeout)
	return
}

func (deps *endpointDeps) validateRequest(req *openrtb2.BidRequest) error {
	if req.ID == "" {
		return errors.New("request missing required field: \"id\"")
	}

	if req.TMax < 0 {
		return fmt.Errorf("request.tmax must be nonnegative. Got %d", req.TMax)
	}

	if len(req.Imp) < 1 {
		return errors.New("request.imp must contain at least one element.")
	}

	for i, imp := range req.Imp {
		if imp.ID == "" {
			return fmt.Errorf("request.imp[%d] missing required field: \"id\"", i)
		}
		if err := deps.validateImpExt(i, imp.Ext); err != nil {
			return err
		}
	}
	return nil
}

// validateImpExt checks imp.ext.bidder against the bidder's JSON schema. Imps without
// bidder params are left to the bidder, which reports them per imp.
func (deps *endpointDeps) validateImpExt(index int, ext []byte) error {
	if len(ext) == 0 {
		return nil
	}
	params, _, _, err := jsonparser.Get(ext, "bidder")
	if err == jsonparser.KeyPathNotFoundError {
		return nil
	}
	if err != nil {
		return fmt.Errorf("request.imp[%d].ext is invalid: %v", index, err)
	}
	if err := deps.paramsValidator.Validate(deps.name, params); err != nil {
		return fmt.Errorf("request.imp[%d].ext.bidder failed validation.\n%v", index, err)
	}
	return nil
}

func (deps *endpointDeps) buildResponse(req *openrtb2.BidRequest, bidderResponse *adapters.BidderResponse, errs []error, elapsed time.Duration) (*openrtb2.BidResponse, error) {
	response := &openrtb2.BidResponse{ID: req.ID}

	if bidderResponse != nil && len(bidderResponse.Bids) > 0 {
		seatBid := openrtb2.SeatBid{
			Seat: deps.name.String(),
			Bid:  make([]openrtb2.Bid, 0, len(bidderResponse.Bids)),
		}
		for _, typedBid := range bidderResponse.Bids {
			bid := *typedBid.Bid
			bidExt, err := jsonutil.Marshal(openrtb_ext.ExtBid{Prebid: &openrtb_ext.ExtBidPrebid{Type: typedBid.BidType}})
			if err != nil {
				return nil, err
			}
			bid.Ext = bidExt
			seatBid.Bid = append(seatBid.Bid, bid)
		}
		response.SeatBid = []openrtb2.SeatBid{seatBid}
		response.Cur = bidderResponse.Currency
	}

	ext := openrtb_ext.ExtBidResponse{
		ResponseTimeMillis: map[openrtb_ext.BidderName]int{deps.name: int(elapsed / time.Millisecond)},
	}
	bidderErrors, bidderWarnings := errortypes.ToMessages(errs)
	if len(bidderErrors) > 0 {
		ext.Errors = map[openrtb_ext.BidderName][]openrtb_ext.ExtBidderMessage{deps.name: bidderErrors}
	}
	if len(bidderWarnings) > 0 {
		ext.Warnings = map[openrtb_ext.BidderName][]openrtb_ext.ExtBidderMessage{deps.name: bidderWarnings}
	}
	if req.TMax > 0 {
		ext.RequestTimeoutMillis = req.TMax
	}

	extBytes, err := jsonutil.Marshal(ext)
	if err != nil {
		return nil, err
	}
	response.Ext = extBytes
	return response, nil
}
