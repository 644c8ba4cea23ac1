package enums

import "fmt"

// StockTransactionType tags an immutable ledger entry with the cause of the
// inventory change.
type StockTransactionType string

const (
	StockTransactionAdded  StockTransactionType = "added"
	StockTransactionUsed   StockTransactionType = "used"
	StockTransactionWasted StockTransactionType = "wasted"
)

var validStockTransactionTypes = []StockTransactionType{
	StockTransactionAdded,
	StockTransactionUsed,
	StockTransactionWasted,
}

// String implements fmt.Stringer.
func (t StockTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known StockTransactionType.
func (t StockTransactionType) IsValid() bool {
	for _, candidate := range validStockTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseStockTransactionType converts raw input into a StockTransactionType.
func ParseStockTransactionType(value string) (StockTransactionType, error) {
	for _, candidate := range validStockTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock transaction type %q", value)
}
