package enums

import "fmt"

// ItemCategory classifies inventory items stocked by the workshop.
type ItemCategory string

const (
	ItemCategorySheet      ItemCategory = "sheet"
	ItemCategoryHandle     ItemCategory = "handle"
	ItemCategoryHardware   ItemCategory = "hardware"
	ItemCategoryAccessory  ItemCategory = "accessory"
	ItemCategoryEdgingTape ItemCategory = "edging_tape"
)

var validItemCategories = []ItemCategory{
	ItemCategorySheet,
	ItemCategoryHandle,
	ItemCategoryHardware,
	ItemCategoryAccessory,
	ItemCategoryEdgingTape,
}

// String implements fmt.Stringer.
func (c ItemCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ItemCategory.
func (c ItemCategory) IsValid() bool {
	for _, candidate := range validItemCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseItemCategory converts raw input into an ItemCategory.
func ParseItemCategory(value string) (ItemCategory, error) {
	for _, candidate := range validItemCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item category %q", value)
}
