package adapters

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flippback/prebid-flipp/openrtb_ext"
	yaml "gopkg.in/yaml.v2"
)

type BidderInfos map[string]BidderInfo

// BidderInfo is the static descriptor in static/bidder-info/{bidder}.yaml.
type BidderInfo struct {
	Maintainer   *MaintainerInfo   `yaml:"maintainer" json:"maintainer"`
	GVLVendorID  uint16            `yaml:"gvlVendorID" json:"gvlVendorID,omitempty"`
	Capabilities *CapabilitiesInfo `yaml:"capabilities" json:"capabilities"`
}

type MaintainerInfo struct {
	Email string `yaml:"email" json:"email"`
}

type CapabilitiesInfo struct {
	App  *PlatformInfo `yaml:"app" json:"app,omitempty"`
	Site *PlatformInfo `yaml:"site" json:"site,omitempty"`
}

type PlatformInfo struct {
	MediaTypes []openrtb_ext.BidType `yaml:"mediaTypes" json:"mediaTypes"`
}

// LoadBidderInfos reads {infoDir}/{bidder}.yaml for every bidder. A missing or
// malformed file is an error.
func LoadBidderInfos(infoDir string, bidders []openrtb_ext.BidderName) (BidderInfos, error) {
	bidderInfos := make(BidderInfos, len(bidders))
	for _, bidderName := range bidders {
		fileName := filepath.Join(infoDir, string(bidderName)+".yaml")
		fileData, err := os.ReadFile(fileName)
		if err != nil {
			return nil, fmt.Errorf("error reading from file %s: %v", fileName, err)
		}

		var parsedInfo BidderInfo
		if err := yaml.Unmarshal(fileData, &parsedInfo); err != nil {
			return nil, fmt.Errorf("error parsing yaml in file %s: %v", fileName, err)
		}
		bidderInfos[string(bidderName)] = parsedInfo
	}
	return bidderInfos, nil
}

func (infos BidderInfos) HasAppSupport(bidder openrtb_ext.BidderName) bool {
	info := infos[string(bidder)]
	return info.Capabilities != nil && info.Capabilities.App != nil
}

func (infos BidderInfos) HasSiteSupport(bidder openrtb_ext.BidderName) bool {
	info := infos[string(bidder)]
	return info.Capabilities != nil && info.Capabilities.Site != nil
}

func (infos BidderInfos) SupportsWebMediaType(bidder openrtb_ext.BidderName, mediaType openrtb_ext.BidType) bool {
	if !infos.HasSiteSupport(bidder) {
		return false
	}
	return containsMediaType(infos[string(bidder)].Capabilities.Site.MediaTypes, mediaType)
}

func containsMediaType(haystack []openrtb_ext.BidType, needle openrtb_ext.BidType) bool {
	for i := 0; i < len(haystack); i++ {
		if needle == haystack[i] {
			return true
		}
	}
	return false
}
