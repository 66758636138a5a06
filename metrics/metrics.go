package metrics

import (
	"time"

	"github.com/flippback/prebid-flipp/openrtb_ext"
)

// AdapterLabels defines the labels that can be attached to the adapter metrics.
type AdapterLabels struct {
	Adapter       openrtb_ext.BidderName
	AdapterStatus AdapterStatus
}

// AdapterStatus is the outcome of one batch sent to a bidder.
type AdapterStatus string

const (
	AdapterStatusOK       AdapterStatus = "ok"
	AdapterStatusNoBid    AdapterStatus = "nobid"
	AdapterStatusErr      AdapterStatus = "err"
	AdapterStatusTimeout  AdapterStatus = "timeout"
	AdapterStatusBadInput AdapterStatus = "badinput"
)

func AdapterStatuses() []AdapterStatus {
	return []AdapterStatus{
		AdapterStatusOK,
		AdapterStatusNoBid,
		AdapterStatusErr,
		AdapterStatusTimeout,
		AdapterStatusBadInput,
	}
}

// UserKeySource says where the user key of a request came from.
type UserKeySource string

const (
	UserKeySourceSession   UserKeySource = "session"
	UserKeySourceParam     UserKeySource = "param"
	UserKeySourceCookie    UserKeySource = "cookie"
	UserKeySourceGenerated UserKeySource = "generated"
	UserKeySourceNone      UserKeySource = "none"
)

func UserKeySources() []UserKeySource {
	return []UserKeySource{
		UserKeySourceSession,
		UserKeySourceParam,
		UserKeySourceCookie,
		UserKeySourceGenerated,
		UserKeySourceNone,
	}
}

// MetricsEngine is a generic interface to record metrics into the desired backend.
type MetricsEngine interface {
	RecordConnectionAccept(success bool)
	RecordConnectionClose(success bool)
	RecordAdapterRequest(labels AdapterLabels)
	RecordAdapterTime(labels AdapterLabels, length time.Duration)
	// RecordAdapterPlacements counts the placements carried by one outbound request.
	RecordAdapterPlacements(adapter openrtb_ext.BidderName, placements int)
	RecordAdapterBidReceived(adapter openrtb_ext.BidderName, cpm float64)
	RecordUserKey(source UserKeySource)
	RecordSyncPixel()
}

// NilMetricsEngine implements MetricsEngine and drops everything.
// The server uses it when no metrics backend is configured.
type NilMetricsEngine struct{}

func (me *NilMetricsEngine) RecordConnectionAccept(success bool) {}

func (me *NilMetricsEngine) RecordConnectionClose(success bool) {}

func (me *NilMetricsEngine) RecordAdapterRequest(labels AdapterLabels) {}

func (me *NilMetricsEngine) RecordAdapterTime(labels AdapterLabels, length time.Duration) {}

func (me *NilMetricsEngine) RecordAdapterPlacements(adapter openrtb_ext.BidderName, placements int) {}

func (me *NilMetricsEngine) RecordAdapterBidReceived(adapter openrtb_ext.BidderName, cpm float64) {}

func (me *NilMetricsEngine) RecordUserKey(source UserKeySource) {}

func (me *NilMetricsEngine) RecordSyncPixel() {}
