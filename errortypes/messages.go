package errortypes

import "github.com/flippback/prebid-flipp/openrtb_ext"

// ToMessages splits errs into fatal errors and warnings in the shape bid
// responses report them.
func ToMessages(errs []error) (errors []openrtb_ext.ExtBidderMessage, warnings []openrtb_ext.ExtBidderMessage) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		message := openrtb_ext.ExtBidderMessage{
			Code:    ReadCode(err),
			Message: err.Error(),
		}
		if IsWarning(err) {
			warnings = append(warnings, message)
		} else {
			errors = append(errors, message)
		}
	}
	return errors, warnings
}
