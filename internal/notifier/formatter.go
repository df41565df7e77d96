package notifier

import (
	"fmt"
	"strings"
	"time"

	"StopSentinel/internal/model"
)

// FormatStopAlerts builds a message covering the stops that improved this
// cycle. Returns "" when nothing moved.
func FormatStopAlerts(results []model.SymbolResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.StopStatus != model.StopNew || r.ComputedStop <= 0 {
			continue
		}
		fmt.Fprintf(&b, "🔒 %s stop → %.4f", r.Symbol, r.ComputedStop)
		if r.NoRisk {
			b.WriteString(" (NO RISK)")
		} else if r.DollarRisk > 0 {
			fmt.Fprintf(&b, " (risk $%.2f / %.2f%%)", r.DollarRisk, r.PercentRisk)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("<b>Stops updated %s</b>\n%s",
		time.Now().Format("15:04:05"), b.String())
}

// FormatDigest builds the end-of-day portfolio summary.
func FormatDigest(results []model.SymbolResult) string {
	var b strings.Builder
	b.WriteString("<b>📋 Daily stop digest</b>\n")
	if len(results) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}
	for _, r := range results {
		atr := "—"
		if r.ATR != nil {
			atr = fmt.Sprintf("%.4f", *r.ATR)
		}
		risk := "—"
		switch {
		case r.NoRisk:
			risk = "NO RISK"
		case r.DollarRisk > 0:
			risk = fmt.Sprintf("$%.2f (%.2f%%)", r.DollarRisk, r.PercentRisk)
		}
		fmt.Fprintf(&b, "%s [%s]: ATR %s, stop %.4f (%s), risk %s — %s\n",
			r.Symbol, r.Timeframe, atr, r.ComputedStop, r.StopStatus, risk, r.Status)
	}
	return b.String()
}

// FormatErrors builds a message for symbols whose row carries an error
// status. Returns "" when the cycle was clean.
func FormatErrors(results []model.SymbolResult) string {
	var b strings.Builder
	for _, r := range results {
		if strings.HasPrefix(r.Status, "error:") {
			fmt.Fprintf(&b, "⚠️ %s: %s\n", r.Symbol, r.Status)
		}
	}
	return b.String()
}
