package stops

import (
	"math"
	"testing"

	"StopSentinel/internal/model"
)

func TestNoRiskBoundary(t *testing.T) {
	c := NewCalculator(memRatchets{}, 6000)
	pos := model.PositionSnapshot{Symbol: "ES", Quantity: 1, AvgCost: 100, CurrentPrice: 104}

	// Stop exactly at breakeven: NO RISK.
	risk := c.CalculateRisk(pos, 100)
	if !risk.NoRisk || risk.Dollar != 0 {
		t.Errorf("stop at avg cost: got %+v, want NO RISK", risk)
	}

	// A cent below breakeven: numeric risk.
	risk = c.CalculateRisk(pos, 99.99)
	if risk.NoRisk || risk.Dollar <= 0 {
		t.Errorf("stop below avg cost: got %+v, want positive risk", risk)
	}
}

func TestNoRiskBoundaryShort(t *testing.T) {
	c := NewCalculator(memRatchets{}, 6000)
	pos := model.PositionSnapshot{Symbol: "ES", Quantity: -1, AvgCost: 100, CurrentPrice: 96}

	if risk := c.CalculateRisk(pos, 100); !risk.NoRisk {
		t.Errorf("short stop at avg cost: got %+v, want NO RISK", risk)
	}
	if risk := c.CalculateRisk(pos, 100.01); risk.NoRisk || risk.Dollar <= 0 {
		t.Errorf("short stop above avg cost: got %+v, want positive risk", risk)
	}
}

func TestRiskMeasuredFromCurrentPrice(t *testing.T) {
	c := NewCalculator(memRatchets{}, 6000)
	pos := model.PositionSnapshot{Symbol: "ES", Quantity: 2, AvgCost: 90, CurrentPrice: 100}

	// ES resolves to $50/point; distance is price-to-stop, not cost-to-stop.
	risk := c.CalculateRisk(pos, 88)
	wantDollar := 12.0 * 50 * 2
	if math.Abs(risk.Dollar-wantDollar) > 1e-9 {
		t.Errorf("dollar risk = %v, want %v", risk.Dollar, wantDollar)
	}
	wantPercent := wantDollar / 6000 * 100
	if math.Abs(risk.Percent-wantPercent) > 1e-9 {
		t.Errorf("percent risk = %v, want %v", risk.Percent, wantPercent)
	}
	if risk.Source != SourceExact {
		t.Errorf("source = %v, want exact table hit", risk.Source)
	}
}

func TestRiskPreconditions(t *testing.T) {
	c := NewCalculator(memRatchets{}, 6000)

	cases := []struct {
		name string
		pos  model.PositionSnapshot
		stop float64
	}{
		{"zero stop", model.PositionSnapshot{Symbol: "ES", Quantity: 1, AvgCost: 100, CurrentPrice: 100}, 0},
		{"no avg cost", model.PositionSnapshot{Symbol: "ES", Quantity: 1, CurrentPrice: 100}, 95},
		{"flat", model.PositionSnapshot{Symbol: "ES", AvgCost: 100, CurrentPrice: 100}, 95},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			risk := c.CalculateRisk(tt.pos, tt.stop)
			if risk.NoRisk || risk.Dollar != 0 || risk.Percent != 0 {
				t.Errorf("got %+v, want zero result", risk)
			}
		})
	}
}

func TestSentinelRiskCarriesNoSource(t *testing.T) {
	c := NewCalculator(memRatchets{}, 6000)
	pos := model.PositionSnapshot{Symbol: "ES", Quantity: 1, AvgCost: 100, CurrentPrice: 104}

	if risk := c.CalculateRisk(pos, 0); risk.Source != SourceUnknown {
		t.Errorf("zero stop: source = %v, want unknown", risk.Source)
	}
	if risk := c.CalculateRisk(pos, 100); risk.Source != SourceUnknown {
		t.Errorf("breakeven stop: source = %v, want unknown", risk.Source)
	}
	if risk := c.CalculateRisk(pos, 99); risk.Source != SourceExact {
		t.Errorf("resolved stop: source = %v, want exact", risk.Source)
	}
}

func TestPointValueResolution(t *testing.T) {
	tests := []struct {
		name       string
		symbol     string
		details    model.ContractDetails
		wantValue  float64
		wantSource PointValueSource
	}{
		{"table hit standard", "ES", model.ContractDetails{}, 50, SourceExact},
		{"table hit micro", "MES", model.ContractDetails{}, 5, SourceExact},
		{"table hit cents-quoted", "ZC", model.ContractDetails{}, 50, SourceExact},
		{
			"derived from magnifier",
			"XXX",
			model.ContractDetails{PriceMagnifier: 100, MDSizeMultiplier: 5000},
			50,
			SourceDerivedFromMetadata,
		},
		{
			"size multiplier alone",
			"XXX",
			model.ContractDetails{MDSizeMultiplier: 20},
			20,
			SourceSizeMultiplier,
		},
		{
			"raw multiplier",
			"XXX",
			model.ContractDetails{Multiplier: 37.5},
			37.5,
			SourceRawMultiplier,
		},
		{"nothing known", "XXX", model.ContractDetails{}, 1.0, SourceRawMultiplier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, src := PointValue(tt.symbol, tt.details)
			if v != tt.wantValue || src != tt.wantSource {
				t.Errorf("PointValue(%s) = (%v,%v), want (%v,%v)",
					tt.symbol, v, src, tt.wantValue, tt.wantSource)
			}
		})
	}
}
