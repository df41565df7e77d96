package stops

import (
	"github.com/rs/zerolog/log"

	"StopSentinel/internal/model"
)

// PointValueSource tags how a point value was resolved, so callers and tests
// can distinguish confidence levels instead of relying on a log line.
type PointValueSource int

const (
	// SourceUnknown is the zero value: no resolution happened. Sentinel
	// risk results (flat position, no stop, breakeven) carry it.
	SourceUnknown PointValueSource = iota
	// SourceExact means the symbol was found in the static table.
	SourceExact
	// SourceDerivedFromMetadata means mdSizeMultiplier/priceMagnifier.
	SourceDerivedFromMetadata
	// SourceSizeMultiplier means mdSizeMultiplier used as-is.
	SourceSizeMultiplier
	// SourceRawMultiplier means the raw contract multiplier (or 1.0).
	SourceRawMultiplier
)

func (s PointValueSource) String() string {
	switch s {
	case SourceExact:
		return "exact"
	case SourceDerivedFromMetadata:
		return "derived"
	case SourceSizeMultiplier:
		return "size_multiplier"
	case SourceRawMultiplier:
		return "raw_multiplier"
	default:
		return "unknown"
	}
}

// contractPointValues maps a futures symbol to the dollar value of a 1.00
// move in its displayed price. Contracts quoted in cents (agriculturals,
// copper, gasoline) already fold the cent convention into the figure.
var contractPointValues = map[string]float64{
	// Standard index futures
	"ES":  50.0,  // E-mini S&P 500
	"NQ":  20.0,  // E-mini Nasdaq
	"YM":  5.0,   // E-mini Dow
	"RTY": 50.0,  // E-mini Russell 2000

	// Micro index futures
	"MES": 5.0,
	"MNQ": 2.0,
	"MYM": 0.50,
	"M2K": 5.0,

	// Treasury futures
	"ZN": 1000.0, // 10-Year T-Note
	"ZB": 1000.0, // 30-Year T-Bond
	"ZF": 1000.0, // 5-Year T-Note
	"ZT": 2000.0, // 2-Year T-Note

	// Micro treasury / yield futures
	"MZN": 100.0,
	"10Y": 1000.0,
	"2YY": 2000.0,
	"30Y": 1000.0,

	// Agricultural futures, quoted in cents per bushel/lb
	"ZC": 50.0,  // Corn: 5000 bu x $0.01
	"ZS": 50.0,  // Soybeans
	"ZW": 50.0,  // Wheat
	"ZM": 100.0, // Soybean Meal, quoted in $/ton
	"ZL": 600.0, // Soybean Oil: 60000 lbs x $0.01
	"HE": 400.0, // Lean Hogs
	"LE": 400.0, // Live Cattle
	"GF": 500.0, // Feeder Cattle

	// Micro agriculturals
	"MZC": 5.0,
	"MZS": 10.0,
	"MZW": 5.0,
	"MZM": 10.0,
	"MZL": 60.0,

	// Metals
	"GC": 100.0,
	"SI": 5000.0,
	"HG": 25000.0, // Copper, quoted in cents
	"PL": 50.0,

	// Micro metals
	"MGC": 10.0,
	"SIL": 1000.0,
	"MHG": 2500.0,

	// Energy
	"CL": 1000.0,
	"NG": 10000.0,
	"RB": 420.0, // RBOB Gasoline: 42000 gal x $0.01
	"HO": 420.0,

	// Micro energy
	"MCL": 100.0,
	"MNG": 1000.0,

	// Currency futures
	"EUR": 125000.0,
	"6E":  125000.0,
	"6J":  12500000.0,
	"6B":  62500.0,
	"6A":  100000.0,
	"6C":  100000.0,

	// Micro currencies
	"M6E": 12500.0,
}

// PointValue resolves the dollar value per 1.00 displayed price move for a
// contract. Resolution order: static table, then derived from gateway
// metadata (mdSizeMultiplier / priceMagnifier), then mdSizeMultiplier alone,
// then the raw contract multiplier. Every fallback logs the symbol so the
// static table can be extended.
func PointValue(symbol string, details model.ContractDetails) (float64, PointValueSource) {
	if v, ok := contractPointValues[symbol]; ok {
		return v, SourceExact
	}

	logger := log.With().Str("component", "point_value").Str("symbol", symbol).Logger()

	if details.PriceMagnifier > 1 && details.MDSizeMultiplier > 0 {
		v := details.MDSizeMultiplier / details.PriceMagnifier
		logger.Warn().Float64("point_value", v).
			Float64("md_size_multiplier", details.MDSizeMultiplier).
			Float64("price_magnifier", details.PriceMagnifier).
			Msg("unknown contract, derived point value from metadata; consider adding it to the static table")
		return v, SourceDerivedFromMetadata
	}

	if details.MDSizeMultiplier > 1 {
		logger.Warn().Float64("point_value", details.MDSizeMultiplier).
			Msg("unknown contract, using mdSizeMultiplier as point value; consider adding it to the static table")
		return details.MDSizeMultiplier, SourceSizeMultiplier
	}

	v := details.Multiplier
	if v <= 0 {
		v = 1.0
	}
	logger.Warn().Float64("point_value", v).
		Msg("unknown contract, using raw multiplier as point value; consider adding it to the static table")
	return v, SourceRawMultiplier
}
