package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/metrics"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/golang/glog"
	"github.com/prebid/openrtb/v20/openrtb2"
	"golang.org/x/net/context/ctxhttp"
)

// Executor plays the host framework's part for the relay server: it performs the
// HTTP calls a bidder asks for and feeds the answers back to it.
type Executor struct {
	Client *http.Client
	me     metrics.MetricsEngine
}

func NewExecutor(client *http.Client, me metrics.MetricsEngine) *Executor {
	if me == nil {
		me = &metrics.NilMetricsEngine{}
	}
	return &Executor{
		Client: client,
		me:     me,
	}
}

// Bid runs one batch through spec: validity check, request building, the HTTP
// calls and response interpretation.
func (e *Executor) Bid(ctx context.Context, spec Spec, bids []*BidRequest, bidderRequest *BidderRequest) ([]*BidResponse, []error) {
	var errs []error
	validBids := make([]*BidRequest, 0, len(bids))
	for _, bid := range bids {
		if bid == nil || !spec.IsBidRequestValid(bid) {
			errs = append(errs, &errortypes.BadInput{Message: fmt.Sprintf("bid %q has invalid %s params and was skipped", bidID(bid), spec.Code())})
			continue
		}
		validBids = append(validBids, bid)
	}
	if len(validBids) == 0 {
		e.me.RecordAdapterRequest(metrics.AdapterLabels{Adapter: spec.Code(), AdapterStatus: metrics.AdapterStatusBadInput})
		return nil, errs
	}

	reqData, buildErrs := spec.BuildRequests(ctx, validBids, bidderRequest)
	errs = append(errs, buildErrs...)
	if len(reqData) == 0 {
		e.me.RecordAdapterRequest(metrics.AdapterLabels{Adapter: spec.Code(), AdapterStatus: metrics.AdapterStatusBadInput})
		return nil, errs
	}

	var bidResponses []*BidResponse
	for _, httpInfo := range e.doRequests(ctx, spec.Code(), reqData) {
		if httpInfo.err != nil {
			errs = append(errs, httpInfo.err)
			continue
		}
		responses, moreErrs := spec.InterpretResponse(httpInfo.response, httpInfo.request)
		errs = append(errs, moreErrs...)
		for _, response := range responses {
			e.me.RecordAdapterBidReceived(spec.Code(), response.CPM)
		}
		e.recordOutcome(spec.Code(), httpInfo, len(responses))
		bidResponses = append(bidResponses, responses...)
	}

	return bidResponses, errs
}

// BidOpenRTB runs an OpenRTB request through bidder and merges every answer into one BidderResponse.
func (e *Executor) BidOpenRTB(ctx context.Context, name openrtb_ext.BidderName, bidder Bidder, request *openrtb2.BidRequest, reqInfo *ExtraRequestInfo) (*BidderResponse, []error) {
	reqData, errs := bidder.MakeRequests(request, reqInfo)
	if len(reqData) == 0 {
		e.me.RecordAdapterRequest(metrics.AdapterLabels{Adapter: name, AdapterStatus: metrics.AdapterStatusBadInput})
		return nil, errs
	}

	merged := NewBidderResponseWithBidsCapacity(len(request.Imp))
	for _, httpInfo := range e.doRequests(ctx, name, reqData) {
		if httpInfo.err != nil {
			errs = append(errs, httpInfo.err)
			continue
		}
		bidderResponse, moreErrs := bidder.MakeBids(request, httpInfo.request, httpInfo.response)
		errs = append(errs, moreErrs...)

		var bidCount int
		if bidderResponse != nil {
			if bidderResponse.Currency != "" {
				merged.Currency = bidderResponse.Currency
			}
			for _, typedBid := range bidderResponse.Bids {
				if typedBid == nil || typedBid.Bid == nil {
					continue
				}
				e.me.RecordAdapterBidReceived(name, typedBid.Bid.Price)
				merged.Bids = append(merged.Bids, typedBid)
				bidCount++
			}
		}
		e.recordOutcome(name, httpInfo, bidCount)
	}
	return merged, errs
}

// doRequests makes the HTTP requests in parallel. If there is only one, the
// current goroutine makes it.
func (e *Executor) doRequests(ctx context.Context, name openrtb_ext.BidderName, reqData []*RequestData) []*httpCallInfo {
	responseChannel := make(chan *httpCallInfo, len(reqData))
	if len(reqData) == 1 {
		responseChannel <- e.doRequest(ctx, name, reqData[0])
	} else {
		for _, oneReqData := range reqData {
			go func(data *RequestData) {
				responseChannel <- e.doRequest(ctx, name, data)
			}(oneReqData)
		}
	}

	calls := make([]*httpCallInfo, 0, len(reqData))
	for i := 0; i < len(reqData); i++ {
		calls = append(calls, <-responseChannel)
	}
	return calls
}

// doRequest makes a request, handles the response, and returns the data needed by the
// bidder to interpret it.
func (e *Executor) doRequest(ctx context.Context, name openrtb_ext.BidderName, req *RequestData) *httpCallInfo {
	e.me.RecordAdapterPlacements(name, len(req.BidIDs))

	httpReq, err := http.NewRequest(req.Method, req.Uri, bytes.NewBuffer(req.Body))
	if err != nil {
		return e.failedCall(name, req, err, metrics.AdapterStatusErr, 0)
	}
	httpReq.Header = req.Headers

	start := time.Now()
	httpResp, err := ctxhttp.Do(ctx, e.Client, httpReq)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &errortypes.Timeout{Message: err.Error()}
			return e.failedCall(name, req, err, metrics.AdapterStatusTimeout, elapsed)
		}
		return e.failedCall(name, req, err, metrics.AdapterStatusErr, elapsed)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return e.failedCall(name, req, err, metrics.AdapterStatusErr, elapsed)
	}

	if glog.V(2) {
		glog.Infof("%s %s answered %d in %v", req.Method, req.Uri, httpResp.StatusCode, elapsed)
	}

	return &httpCallInfo{
		request: req,
		response: &ResponseData{
			StatusCode: httpResp.StatusCode,
			Body:       respBody,
			Headers:    httpResp.Header,
		},
		elapsed: elapsed,
	}
}

func (e *Executor) failedCall(name openrtb_ext.BidderName, req *RequestData, err error, status metrics.AdapterStatus, elapsed time.Duration) *httpCallInfo {
	labels := metrics.AdapterLabels{Adapter: name, AdapterStatus: status}
	e.me.RecordAdapterRequest(labels)
	e.me.RecordAdapterTime(labels, elapsed)
	glog.Warningf("Request to %s failed: %v", req.Uri, err)
	return &httpCallInfo{
		request: req,
		err:     err,
		elapsed: elapsed,
	}
}

func (e *Executor) recordOutcome(name openrtb_ext.BidderName, httpInfo *httpCallInfo, bidCount int) {
	status := metrics.AdapterStatusOK
	switch {
	case CheckResponseStatusCodeForErrors(httpInfo.response) != nil && !IsResponseStatusCodeNoContent(httpInfo.response):
		status = metrics.AdapterStatusErr
	case bidCount == 0:
		status = metrics.AdapterStatusNoBid
	}
	labels := metrics.AdapterLabels{Adapter: name, AdapterStatus: status}
	e.me.RecordAdapterRequest(labels)
	e.me.RecordAdapterTime(labels, httpInfo.elapsed)
}

type httpCallInfo struct {
	request  *RequestData
	response *ResponseData
	err      error
	elapsed  time.Duration
}

func bidID(bid *BidRequest) string {
	if bid == nil {
		return ""
	}
	return bid.BidID
}
