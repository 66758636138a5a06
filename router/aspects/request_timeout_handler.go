package aspects

import (
	"net/http"
	"strconv"

	"github.com/flippback/prebid-flipp/config"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
)

// QueuedRequestTimeout rejects requests a load balancer reports as having waited in
// its queue longer than the timeout it also reports. Requests without both headers
// pass through.
func QueuedRequestTimeout(f httprouter.Handle, reqTimeoutHeaders config.RequestTimeoutHeaders) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		reqTimeInQueue := r.Header.Get(reqTimeoutHeaders.RequestTimeInQueue)
		reqTimeout := r.Header.Get(reqTimeoutHeaders.RequestTimeoutInQueue)

		if reqTimeInQueue == "" || reqTimeout == "" {
			f(w, r, params)
			return
		}

		reqTimeFloat, reqTimeFloatErr := strconv.ParseFloat(reqTimeInQueue, 64)
		reqTimeoutFloat, reqTimeoutFloatErr := strconv.ParseFloat(reqTimeout, 64)

		if reqTimeFloatErr != nil || reqTimeoutFloatErr != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Request timeout headers are not numbers"))
			return
		}

		if reqTimeFloat >= reqTimeoutFloat {
			glog.V(2).Infof("Dropping %s after %ss in queue", r.URL.Path, reqTimeInQueue)
			w.WriteHeader(http.StatusRequestTimeout)
			w.Write([]byte("Queued request processing time exceeded maximum"))
			return
		}

		f(w, r, params)
	}
}
