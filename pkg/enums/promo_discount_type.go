package enums

import "fmt"

// PromoDiscountType selects how a promo code reduces the subtotal.
type PromoDiscountType string

const (
	PromoDiscountPercent PromoDiscountType = "percent"
	PromoDiscountFixed   PromoDiscountType = "fixed"
)

var validPromoDiscountTypes = []PromoDiscountType{
	PromoDiscountPercent,
	PromoDiscountFixed,
}

// IsValid reports whether the value matches the canonical enum.
func (t PromoDiscountType) IsValid() bool {
	for _, candidate := range validPromoDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePromoDiscountType converts raw input into PromoDiscountType.
func ParsePromoDiscountType(value string) (PromoDiscountType, error) {
	for _, candidate := range validPromoDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
