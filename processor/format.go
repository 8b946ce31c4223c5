package processor

import (
	"fmt"
	"strings"
	"time"
)

var eastern *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	eastern = loc
}

// FormatUSD renders a notional value in the compact form the dashboard shows:
// millions with two decimals, thousands with one, whole dollars below that.
func FormatUSD(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.2fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.1fK", v/1_000)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

// DisplaySymbol strips the quote asset and upper-cases the base, clipping to
// maxLen bytes when maxLen is positive. Exchange symbols are ASCII.
func DisplaySymbol(symbol string, maxLen int) string {
	s := strings.TrimSuffix(strings.ToUpper(symbol), "USDT")
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

// FundingStyleClass maps an annualised funding percentage to its dashboard
// style class.
func FundingStyleClass(yearlyRate float64) string {
	switch {
	case yearlyRate > 50:
		return "funding-extreme"
	case yearlyRate > 30:
		return "funding-high"
	case yearlyRate > 5:
		return "funding-positive"
	case yearlyRate < -10:
		return "funding-negative"
	default:
		return "funding-normal"
	}
}

// WhaleTier returns the size label and style class for a whale trade.
func WhaleTier(usdValue float64) (string, string) {
	switch {
	case usdValue >= 1_000_000:
		return "MEGA", "whale-mega"
	case usdValue >= 500_000:
		return "HUGE", "whale-huge"
	default:
		return "BIG", "whale-big"
	}
}

// ClockEastern formats an exchange timestamp in millis as HH:MM:SS in US
// Eastern time.
func ClockEastern(millis int64) string {
	return time.UnixMilli(millis).In(eastern).Format("15:04:05")
}
