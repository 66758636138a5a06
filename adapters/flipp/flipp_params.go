package flipp

import (
	"encoding/json"

	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/flippback/prebid-flipp/util/jsonutil"
)

type CampaignRequestBodyUser struct {
	Key string `json:"key"`
}

type Properties struct {
	ContentCode string `json:"contentCode,omitempty"`
}

type PrebidRequest struct {
	CreativeType            string `json:"creativeType"`
	Height                  int64  `json:"height"`
	PublisherNameIdentifier string `json:"publisherNameIdentifier"`
	RequestID               string `json:"requestId"`
	Width                   int64  `json:"width"`
}

type Placement struct {
	AdTypes    []int64                      `json:"adTypes"`
	Count      int64                        `json:"count"`
	DivName    string                       `json:"divName"`
	NetworkID  int64                        `json:"networkId"`
	Prebid     *PrebidRequest               `json:"prebid"`
	Properties *Properties                  `json:"properties,omitempty"`
	SiteID     int64                        `json:"siteId"`
	ZoneIds    []json.RawMessage            `json:"zoneIds,omitempty"`
	Options    *openrtb_ext.ExtFlippOptions `json:"options,omitempty"`
}

type CampaignRequestBody struct {
	IP         string                  `json:"ip,omitempty"`
	Keywords   []string                `json:"keywords,omitempty"`
	Placements []*Placement            `json:"placements"`
	URL        string                  `json:"url"`
	User       CampaignRequestBodyUser `json:"user"`
}

type CampaignResponseBody struct {
	CandidateRetrieval interface{} `json:"candidateRetrieval,omitempty"`
	Decisions          *Decisions  `json:"decisions"`
	// Prebid carries response wide defaults for decisions that omit them.
	Prebid *PrebidDefaults `json:"prebid,omitempty"`
}

type PrebidDefaults struct {
	Cpm *float64 `json:"cpm"`
}

type Decisions struct {
	Inline Inline `json:"inline,omitempty"`
}

type Inline []*InlineModel

type Contents []*Content

type Content struct {
	Body           string       `json:"body,omitempty"`
	CustomTemplate string       `json:"customTemplate,omitempty"`
	Data           *ContentData `json:"data,omitempty"`
	Type           string       `json:"type,omitempty"`
}

type ContentData struct {
	CustomData interface{} `json:"customData,omitempty"`
	Height     int64       `json:"height,omitempty"`
	Width      int64       `json:"width,omitempty"`
}

type InlineModel struct {
	AdID          jsonutil.IntString `json:"adId,omitempty"`
	ClickURL      string             `json:"clickUrl,omitempty"`
	Contents      Contents           `json:"contents,omitempty"`
	CreativeID    jsonutil.IntString `json:"creativeId,omitempty"`
	Height        int64              `json:"height,omitempty"`
	ImpressionURL string             `json:"impressionUrl,omitempty"`
	Prebid        *PrebidResponse    `json:"prebid,omitempty"`
	Width         int64              `json:"width,omitempty"`

	// raw is the decision exactly as the server sent it, fields unknown to us included.
	raw json.RawMessage
}

// UnmarshalJSON keeps a copy of the undecoded decision for the legacy markup.
func (m *InlineModel) UnmarshalJSON(b []byte) error {
	type inlineModel InlineModel
	var decoded inlineModel
	if err := jsonutil.Unmarshal(b, &decoded); err != nil {
		return err
	}
	*m = InlineModel(decoded)
	m.raw = append(json.RawMessage(nil), b...)
	return nil
}

type PrebidResponse struct {
	Cpm          *float64 `json:"cpm"`
	Creative     *string  `json:"creative"`
	CreativeType *string  `json:"creativeType"`
	DealID       string   `json:"dealId,omitempty"`
	RequestID    string   `json:"requestId"`
}
