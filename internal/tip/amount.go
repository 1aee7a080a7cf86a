// Package tip holds the amount policy for the tipping flow: bounds on what a
// tipper may pay and the preset choices shown by the frontend. Amounts are
// integer counts of minor currency units (cents) to avoid floating point in
// monetary arithmetic.
package tip

import (
	"fmt"
	"net/http"

	"github.com/scantip/backend-tips/internal/common"
)

// Bounds is the inclusive accepted range for a tip, in minor units.
type Bounds struct {
	Min int64
	Max int64
}

// Validate checks the amount against the bounds. It is a pure check with no
// side effects; the rejection message names the valid range in major units
// because that is what the tipper typed.
func (b Bounds) Validate(amountMinorUnits int64) error {
	if amountMinorUnits < b.Min || amountMinorUnits > b.Max {
		return common.NewAppError(
			"AMOUNT_OUT_OF_BOUNDS",
			fmt.Sprintf("Montant invalide. Entre %.2f et %.2f €.", Major(b.Min), Major(b.Max)),
			http.StatusBadRequest,
			nil,
		)
	}
	return nil
}

// Major converts minor units to major units for display.
func Major(amountMinorUnits int64) float64 {
	return float64(amountMinorUnits) / 100
}

// FormatMajor renders minor units as a two-decimal major-unit string, the
// format both providers expect in descriptions and fixed prices.
func FormatMajor(amountMinorUnits int64) string {
	return fmt.Sprintf("%.2f", Major(amountMinorUnits))
}
