package enums

import "fmt"

// MovementReason tags why a stock movement happened.
type MovementReason string

const (
	MovementReasonSale       MovementReason = "Sale"
	MovementReasonRestock    MovementReason = "Restock"
	MovementReasonAdjustment MovementReason = "Adjustment"
	MovementReasonReturn     MovementReason = "Return"
)

var validMovementReasons = []MovementReason{
	MovementReasonSale,
	MovementReasonRestock,
	MovementReasonAdjustment,
	MovementReasonReturn,
}

func (r MovementReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known MovementReason.
func (r MovementReason) IsValid() bool {
	for _, candidate := range validMovementReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseMovementReason converts raw input into a MovementReason.
func ParseMovementReason(value string) (MovementReason, error) {
	for _, candidate := range validMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement reason %q", value)
}
