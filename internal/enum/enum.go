package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusActive = "active"
	OrderStatusOnHold = "on_hold"
	OrderStatusPaid   = "paid"
)

// ── Group B: Order fields (CHECK constrained in DB) ──

const (
	AdjustmentDiscount  = "discount"
	AdjustmentSurcharge = "surcharge"
)

const (
	PaymentTypeCash     = "cash"
	PaymentTypeCard     = "card"
	PaymentTypeTransfer = "transfer"
	PaymentTypeOther    = "other"
)

const (
	DocumentTypeNone           = "none"
	DocumentTypePassport       = "passport"
	DocumentTypeDNI            = "dni"
	DocumentTypeCI             = "ci"
	DocumentTypeDriversLicense = "drivers_license"
	DocumentTypeCE             = "ce"
)

// ── Group C: Users ──

const (
	UserRoleAdmin = "ADMIN"
	UserRoleStaff = "STAFF"
)

// IsValidDocumentType reports whether s is an accepted customer document type.
func IsValidDocumentType(s string) bool {
	switch s {
	case DocumentTypeNone, DocumentTypePassport, DocumentTypeDNI,
		DocumentTypeCI, DocumentTypeDriversLicense, DocumentTypeCE:
		return true
	}
	return false
}

// IsValidPaymentType reports whether s is a known payment type.
func IsValidPaymentType(s string) bool {
	switch s {
	case PaymentTypeCash, PaymentTypeCard, PaymentTypeTransfer, PaymentTypeOther:
		return true
	}
	return false
}
