package policy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Guard names, used in logs, metrics and PolicyViolation.Guard.
const (
	GuardCurrency    = "currency"
	GuardLocation    = "location"
	GuardLargeAmount = "large_amount"
)

// Verdict is the outcome class of a guard check.
type Verdict int

const (
	// Allow lets the invocation continue to the next guard.
	Allow Verdict = iota
	// Deny stops the chain with a violation.
	Deny
	// Advise lets the invocation continue but raises an alert.
	Advise
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Advise:
		return "advise"
	default:
		return "Verdict(" + strconv.Itoa(int(v)) + ")"
	}
}

// Alert is a non-blocking signal about a permitted but noteworthy call.
type Alert struct {
	Guard    string
	Function string
	Field    string
	Value    string
	Message  string
}

// Decision is what a guard returns for one invocation.
type Decision struct {
	Verdict   Verdict
	Violation *PolicyViolation
	Alert     *Alert
}

// Guard is a named, pure check over an invocation. Check must not keep
// state between calls.
type Guard struct {
	Name  string
	Check func(Invocation) Decision
}

// DefaultGuards returns the standard chain for rules in evaluation order:
// currency, location, large amount.
func DefaultGuards(rules RuleSet) []Guard {
	return []Guard{
		CurrencyGuard(rules),
		LocationGuard(rules),
		LargeAmountGuard(rules),
	}
}

// appliesTo reports whether the guard keyed on marker covers function.
// Matching is a case-sensitive substring test on the tool name, so a tool
// called "ConvertWeather" is covered by both the currency and location guards.
func appliesTo(function, marker string) bool {
	return strings.Contains(function, marker)
}

// firstMatch returns the first value for which blocked reports true.
func firstMatch(values []string, blocked func(string) bool) (string, bool) {
	for _, v := range values {
		if blocked(v) {
			return v, true
		}
	}
	return "", false
}

// CurrencyGuard denies conversions from or to a blocked currency. It covers
// every function whose name contains "Convert". fromCurrency is checked
// before toCurrency and only the first match is reported. Argument names
// match case-insensitively.
func CurrencyGuard(rules RuleSet) Guard {
	return Guard{
		Name: GuardCurrency,
		Check: func(inv Invocation) Decision {
			if !appliesTo(inv.Function, "Convert") {
				return Decision{}
			}
			for _, side := range [...]struct{ field, word string }{
				{"fromCurrency", "from"},
				{"toCurrency", "to"},
			} {
				code, hit := firstMatch(inv.Arguments.LookupAll(side.field), rules.IsBlockedCurrency)
				if !hit {
					continue
				}
				return Decision{Verdict: Deny, Violation: &PolicyViolation{
					Guard:    GuardCurrency,
					Function: inv.Function,
					Field:    side.field,
					Value:    code,
					Reason:   fmt.Sprintf("Cryptocurrency conversion %s %s is blocked for security reasons.", side.word, code),
				}}
			}
			return Decision{}
		},
	}
}

// LocationGuard denies weather lookups for cities containing a restricted
// token. It covers every function whose name contains "Weather".
func LocationGuard(rules RuleSet) Guard {
	return Guard{
		Name: GuardLocation,
		Check: func(inv Invocation) Decision {
			if !appliesTo(inv.Function, "Weather") {
				return Decision{}
			}
			city, hit := firstMatch(inv.Arguments.LookupAll("city"), func(c string) bool {
				_, restricted := rules.RestrictedToken(c)
				return restricted
			})
			if !hit {
				return Decision{}
			}
			return Decision{Verdict: Deny, Violation: &PolicyViolation{
				Guard:    GuardLocation,
				Function: inv.Function,
				Field:    "city",
				Value:    city,
				Reason:   fmt.Sprintf("Weather information for %s is restricted due to security policies.", city),
			}}
		},
	}
}

// LargeAmountGuard raises an advisory for conversions whose amount exceeds
// the rule set threshold. It never denies.
func LargeAmountGuard(rules RuleSet) Guard {
	return Guard{
		Name: GuardLargeAmount,
		Check: func(inv Invocation) Decision {
			if !appliesTo(inv.Function, "Convert") {
				return Decision{}
			}
			raw, ok := inv.Arguments.Lookup("amount")
			if !ok {
				return Decision{}
			}
			amount, ok := ParseAmount(raw)
			if !ok || amount <= rules.LargeAmountThreshold() {
				return Decision{}
			}
			return Decision{Verdict: Advise, Alert: &Alert{
				Guard:    GuardLargeAmount,
				Function: inv.Function,
				Field:    "amount",
				Value:    raw,
				Message:  "Large conversion detected: " + FormatCurrency(amount),
			}}
		},
	}
}

// ParseAmount parses a decimal amount. Surrounding whitespace and thousands
// separators are ignored; NaN and infinities are rejected.
func ParseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatCurrency renders v as a dollar amount with thousands separators and
// two decimals, e.g. "$500,000.00".
func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", v)
}
