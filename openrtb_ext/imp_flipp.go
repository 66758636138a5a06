package openrtb_ext

import (
	"encoding/json"

	"github.com/flippback/prebid-flipp/util/jsonutil"
)

// ExtFlipp defines the params a publisher passes to the flipp bidder, either as
// bid.params on the client path or as imp.ext.bidder on the OpenRTB path.
type ExtFlipp struct {
	SiteID                  jsonutil.IntString `json:"siteId"`
	PublisherNameIdentifier string             `json:"publisherNameIdentifier"`
	CreativeType            string             `json:"creativeType,omitempty"`
	ZoneIds                 []json.RawMessage  `json:"zoneIds,omitempty"`
	UserKey                 string             `json:"userKey,omitempty"`
	Options                 *ExtFlippOptions   `json:"options,omitempty"`
}

type ExtFlippOptions struct {
	StartCompact bool   `json:"startCompact,omitempty"`
	DwellExpand  bool   `json:"dwellExpand,omitempty"`
	ContentCode  string `json:"contentCode,omitempty"`
}
