package enum

// DenialReason classifies a refused user action.
type DenialReason string

const (
	DenialAdminSession      DenialReason = "admin_session"
	DenialNotAdmin          DenialReason = "not_admin"
	DenialInvalidRole       DenialReason = "invalid_role"
	DenialPendingOrder      DenialReason = "pending_order"
	DenialUnauthenticated   DenialReason = "unauthenticated"
	DenialInvalidProduct    DenialReason = "invalid_product"
	DenialInvalidQuantity   DenialReason = "invalid_quantity"
	DenialInvalidPrice      DenialReason = "invalid_price"
	DenialOutOfStock        DenialReason = "out_of_stock"
	DenialInsufficientStock DenialReason = "insufficient_stock"
	DenialNotInCart         DenialReason = "not_in_cart"
	DenialEmptyCart         DenialReason = "empty_cart"
	DenialInvalidItems      DenialReason = "invalid_items"
	DenialInFlight          DenialReason = "in_flight"
	DenialInvalidOrder      DenialReason = "invalid_order"
	DenialInvalidTransition DenialReason = "invalid_transition"
	DenialInvalidInstrument DenialReason = "invalid_instrument"
	DenialInvalidImage      DenialReason = "invalid_image"
	DenialInvalidEmail      DenialReason = "invalid_email"
	DenialInvalidPassword   DenialReason = "invalid_password"
)
