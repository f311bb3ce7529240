package policy

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// DefaultLargeAmountThreshold is the amount above which conversions raise an
// advisory alert.
const DefaultLargeAmountThreshold = 100000

var (
	defaultBlockedCurrencies   = []string{"BTC", "ETH", "DOGE", "XRP"}
	defaultRestrictedLocations = []string{"NORTH_KOREA", "IRAN", "SYRIA", "PYONGYANG", "TEHRAN"}
)

// RuleSet is the immutable policy configuration shared by every invocation.
// The zero value blocks nothing and never alerts.
type RuleSet struct {
	blocked    []string
	restricted []string
	threshold  float64
}

// DefaultRuleSet returns the built-in rules: crypto codes BTC, ETH, DOGE and
// XRP blocked, sanctioned-location tokens restricted, alert above 100000.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		blocked:    slices.Clone(defaultBlockedCurrencies),
		restricted: slices.Clone(defaultRestrictedLocations),
		threshold:  DefaultLargeAmountThreshold,
	}
}

// NewRuleSet validates and normalises the given rules. Codes and location
// tokens are upper-cased; duplicates are dropped.
func NewRuleSet(blockedCurrencies, restrictedLocations []string, largeAmountThreshold float64) (RuleSet, error) {
	var errs []error

	blocked, err := normalise("blocked currency", blockedCurrencies)
	errs = append(errs, err)
	restricted, err := normalise("restricted location", restrictedLocations)
	errs = append(errs, err)

	if largeAmountThreshold < 0 || math.IsNaN(largeAmountThreshold) || math.IsInf(largeAmountThreshold, 0) {
		errs = append(errs, fmt.Errorf("large amount threshold must be a finite non-negative number, got %v", largeAmountThreshold))
	}
	if err := errors.Join(errs...); err != nil {
		return RuleSet{}, fmt.Errorf("policy: invalid rule set: %w", err)
	}
	return RuleSet{blocked: blocked, restricted: restricted, threshold: largeAmountThreshold}, nil
}

func normalise(kind string, in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for i, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return nil, fmt.Errorf("%s #%d is empty", kind, i)
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// IsBlockedCurrency reports whether code, upper-cased, is a blocked
// currency. No trimming is applied.
func (r RuleSet) IsBlockedCurrency(code string) bool {
	return slices.Contains(r.blocked, strings.ToUpper(code))
}

// RestrictedToken returns the first restricted token contained in the
// upper-cased location, if any.
func (r RuleSet) RestrictedToken(location string) (string, bool) {
	upper := strings.ToUpper(location)
	for _, tok := range r.restricted {
		if strings.Contains(upper, tok) {
			return tok, true
		}
	}
	return "", false
}

// LargeAmountThreshold returns the advisory threshold.
func (r RuleSet) LargeAmountThreshold() float64 { return r.threshold }

// BlockedCurrencies returns a copy of the blocked currency codes.
func (r RuleSet) BlockedCurrencies() []string { return slices.Clone(r.blocked) }

// RestrictedLocations returns a copy of the restricted location tokens.
func (r RuleSet) RestrictedLocations() []string { return slices.Clone(r.restricted) }

// Equal reports whether two rule sets enforce the same policy.
func (r RuleSet) Equal(o RuleSet) bool {
	return r.threshold == o.threshold &&
		slices.Equal(sorted(r.blocked), sorted(o.blocked)) &&
		slices.Equal(sorted(r.restricted), sorted(o.restricted))
}

func sorted(s []string) []string {
	c := slices.Clone(s)
	slices.Sort(c)
	return c
}
