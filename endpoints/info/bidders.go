package info

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/flippback/prebid-flipp/adapters"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/util/jsonutil"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
)

// NewBiddersEndpoint implements /info/bidders
func NewBiddersEndpoint(specs []adapters.Spec) httprouter.Handle {
	bidderNames := make([]string, 0, len(specs))
	for _, spec := range specs {
		bidderNames = append(bidderNames, spec.Code().String())
	}
	sort.Strings(bidderNames)

	biddersJson, err := jsonutil.Marshal(bidderNames)
	if err != nil {
		glog.Fatalf("error creating /info/bidders endpoint response: %v", err)
	}

	return httprouter.Handle(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(biddersJson); err != nil {
			glog.Errorf("error writing response to /info/bidders: %v", err)
		}
	})
}

type bidderDetail struct {
	Code                string                `json:"code"`
	SupportedMediaTypes []openrtb_ext.BidType `json:"supportedMediaTypes"`
	adapters.BidderInfo
}

// NewBidderDetailsEndpoint implements /info/bidders/:bidderName
func NewBidderDetailsEndpoint(specs []adapters.Spec, infos adapters.BidderInfos) httprouter.Handle {
	// Build all the responses up front, since there are a finite number and it won't use much memory.
	responses := make(map[string]json.RawMessage, len(specs))
	for _, spec := range specs {
		code := spec.Code().String()
		jsonBytes, err := jsonutil.Marshal(bidderDetail{
			Code:                code,
			SupportedMediaTypes: spec.SupportedMediaTypes(),
			BidderInfo:          infos[code],
		})
		if err != nil {
			glog.Fatalf("error writing JSON of bidder %s: %v", code, err)
		}
		responses[code] = jsonBytes
	}

	// Return an endpoint which writes the responses from memory.
	return httprouter.Handle(func(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
		forBidder := ps.ByName("bidderName")
		if response, ok := responses[forBidder]; ok {
			w.Header().Set("Content-Type", "application/json")
			if _, err := w.Write(response); err != nil {
				glog.Errorf("error writing response to /info/bidders/%s: %v", forBidder, err)
			}
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})
}
