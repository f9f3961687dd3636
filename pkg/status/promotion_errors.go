package status

// PromotionBlockedErrorCode is the error code for manual syncs refused by a
// promotion gate.
const PromotionBlockedErrorCode = "3001"

var promotionBlockedError = NewErrorBuilder(PromotionBlockedErrorCode)

// PromotionBlocked reports that app cannot be promoted because the
// application it promotes from is not healthy at the same revision.
func PromotionBlocked(app, from, reason string) Error {
	return promotionBlockedError.Sprintf("cannot promote %q from %q: %s", app, from, reason).Build()
}
