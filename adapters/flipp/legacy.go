package flipp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/util/jsonutil"
)

const flippTagURL = "https://cdn-gateflipp.flippback.com/tag/js/flipptag.js"

// The decision is embedded as HTML-escaped JSON so it cannot close the script element.
var legacyCreativeTemplate = template.Must(template.New("flippLegacyCreative").Parse(
	`<div id="flipp-{{.DivName}}"></div>` +
		`<script>window.flippxp=window.flippxp||{run:[]};` +
		`window.flippxp.run.push(function(){window.flippxp.renderDecision("flipp-{{.DivName}}",{{.Decision}});});</script>` +
		`<script src="{{.TagURL}}" async></script>`))

type legacyCreativeParams struct {
	DivName  string
	Decision string
	TagURL   string
}

// legacyCreative renders a decision that carries no prebid creative through the Flipp tag.
func legacyCreative(decision *InlineModel, placement *Placement) (string, error) {
	raw := decision.raw
	if len(raw) == 0 {
		encoded, err := jsonutil.Marshal(decision)
		if err != nil {
			return "", &errortypes.FailedToMarshal{Message: fmt.Sprintf("unable to encode decision: %v", err)}
		}
		raw = encoded
	}

	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, raw)

	var creative bytes.Buffer
	err := legacyCreativeTemplate.Execute(&creative, legacyCreativeParams{
		DivName:  placement.DivName,
		Decision: escaped.String(),
		TagURL:   flippTagURL,
	})
	if err != nil {
		return "", &errortypes.FailedToMarshal{Message: fmt.Sprintf("unable to render legacy creative: %v", err)}
	}
	return creative.String(), nil
}
