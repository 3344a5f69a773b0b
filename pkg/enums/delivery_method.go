package enums

import (
	"fmt"
	"strings"
)

// DeliveryMethod describes how an order is prepared and handed over.
type DeliveryMethod string

const (
	DeliveryMethodDirect          DeliveryMethod = "direct"
	DeliveryMethodSortThenDeliver DeliveryMethod = "sort_then_delivery"
	DeliveryMethodCutThenDeliver  DeliveryMethod = "cut_then_delivery"
	DeliveryMethodSortCutDeliver  DeliveryMethod = "sort_cut_delivery"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodDirect,
	DeliveryMethodSortThenDeliver,
	DeliveryMethodCutThenDeliver,
	DeliveryMethodSortCutDeliver,
}

// String implements fmt.Stringer.
func (d DeliveryMethod) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMethod.
func (d DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// RequiresCutting reports whether the method includes a cutting step.
func (d DeliveryMethod) RequiresCutting() bool {
	return strings.Contains(string(d), "cut")
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}
