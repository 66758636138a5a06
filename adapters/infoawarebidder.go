package adapters

import (
	"fmt"

	"github.com/flippback/prebid-flipp/errortypes"
	"github.com/flippback/prebid-flipp/openrtb_ext"
	"github.com/prebid/openrtb/v20/openrtb2"
)

// InfoAwareBidder keeps OpenRTB requests within the platforms and media types declared
// in static/bidder-info/{bidder}.yaml before the wrapped Bidder sees them. Requests
// from an undeclared platform are rejected, undeclared media types are stripped from
// each imp, and imps left with nothing are dropped.
type InfoAwareBidder struct {
	Bidder
	site mediaTypeSet
	app  mediaTypeSet
}

// mediaTypeSet is nil when the platform is not declared at all.
type mediaTypeSet map[openrtb_ext.BidType]bool

func BuildInfoAwareBidder(bidder Bidder, info BidderInfo) Bidder {
	wrapped := &InfoAwareBidder{Bidder: bidder}
	if info.Capabilities != nil {
		wrapped.site = newMediaTypeSet(info.Capabilities.Site)
		wrapped.app = newMediaTypeSet(info.Capabilities.App)
	}
	return wrapped
}

func newMediaTypeSet(platform *PlatformInfo) mediaTypeSet {
	if platform == nil {
		return nil
	}
	set := make(mediaTypeSet, len(platform.MediaTypes))
	for _, mediaType := range platform.MediaTypes {
		set[mediaType] = true
	}
	return set
}

func (i *InfoAwareBidder) MakeRequests(request *openrtb2.BidRequest, reqInfo *ExtraRequestInfo) ([]*RequestData, []error) {
	var allowed mediaTypeSet
	if request.Site != nil {
		if i.site == nil {
			return nil, []error{&errortypes.Warning{Message: "this bidder does not support site requests"}}
		}
		allowed = i.site
	}
	if request.App != nil {
		if i.app == nil {
			return nil, []error{&errortypes.Warning{Message: "this bidder does not support app requests"}}
		}
		allowed = i.app
	}

	imps, errs := allowed.prune(request.Imp)
	if len(imps) == 0 {
		return nil, append(errs, &errortypes.Warning{Message: "no imp in the request uses a media type this bidder supports"})
	}
	request.Imp = imps

	reqs, delegateErrs := i.Bidder.MakeRequests(request, reqInfo)
	return reqs, append(errs, delegateErrs...)
}

func (allowed mediaTypeSet) prune(imps []openrtb2.Imp) ([]openrtb2.Imp, []error) {
	var errs []error
	kept := make([]openrtb2.Imp, 0, len(imps))

	for index, imp := range imps {
		strip := func(mediaType string, present bool, clear func()) {
			if present && !allowed[openrtb_ext.BidType(mediaType)] {
				clear()
				errs = append(errs, &errortypes.Warning{Message: fmt.Sprintf("request.imp[%d] uses %s, but this bidder doesn't support it", index, mediaType)})
			}
		}
		strip("banner", imp.Banner != nil, func() { imp.Banner = nil })
		strip("video", imp.Video != nil, func() { imp.Video = nil })
		strip("native", imp.Native != nil, func() { imp.Native = nil })
		strip("audio", imp.Audio != nil, func() { imp.Audio = nil })

		if imp.Banner == nil && imp.Video == nil && imp.Native == nil && imp.Audio == nil {
			errs = append(errs, &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d] has no supported MediaTypes. It will be ignored", index)})
			continue
		}
		kept = append(kept, imp)
	}
	return kept, errs
}
