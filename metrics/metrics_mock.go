package metrics

import (
	"time"

	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/stretchr/testify/mock"
)

// MetricsEngineMock is mock for the MetricsEngine interface
type MetricsEngineMock struct {
	mock.Mock
}

// RecordConnectionAccept mock
func (me *MetricsEngineMock) RecordConnectionAccept(success bool) {
	me.Called(success)
}

// RecordConnectionClose mock
func (me *MetricsEngineMock) RecordConnectionClose(success bool) {
	me.Called(success)
}

// RecordAdapterRequest mock
func (me *MetricsEngineMock) RecordAdapterRequest(labels AdapterLabels) {
	me.Called(labels)
}

// RecordAdapterTime mock
func (me *MetricsEngineMock) RecordAdapterTime(labels AdapterLabels, length time.Duration) {
	me.Called(labels, length)
}

// RecordAdapterPlacements mock
func (me *MetricsEngineMock) RecordAdapterPlacements(adapter openrtb_ext.BidderName, placements int) {
	me.Called(adapter, placements)
}

// RecordAdapterBidReceived mock
func (me *MetricsEngineMock) RecordAdapterBidReceived(adapter openrtb_ext.BidderName, cpm float64) {
	me.Called(adapter, cpm)
}

// RecordUserKey mock
func (me *MetricsEngineMock) RecordUserKey(source UserKeySource) {
	me.Called(source)
}

// RecordSyncPixel mock
func (me *MetricsEngineMock) RecordSyncPixel() {
	me.Called()
}
