package policy

import (
	"encoding/json"
	"testing"
)

func TestParseArguments(t *testing.T) {
	t.Parallel()

	args, err := ParseArguments(`{"amount": 500000, "fromCurrency": "usd", "city": null, "ratio": 1e3}`)
	if err != nil {
		t.Fatalf("ParseArguments: %v", err)
	}
	if _, ok := args["amount"].(json.Number); !ok {
		t.Errorf("amount decoded as %T, want json.Number", args["amount"])
	}
	if got := args.String("amount"); got != "500000" {
		t.Errorf("amount = %q, want 500000", got)
	}
	if got := args.String("fromCurrency"); got != "usd" {
		t.Errorf("fromCurrency = %q", got)
	}
	if _, ok := args.Lookup("city"); ok {
		t.Error("null city should count as missing")
	}
	if _, ok := args.Lookup("toCurrency"); ok {
		t.Error("absent toCurrency should count as missing")
	}

	empty, err := ParseArguments("  ")
	if err != nil || len(empty) != 0 {
		t.Errorf("ParseArguments(blank) = %v, %v", empty, err)
	}
	if _, err := ParseArguments(`["not","an","object"]`); err == nil {
		t.Error("expected error for non-object payload")
	}
}

func TestArguments_Lookup(t *testing.T) {
	t.Parallel()
	args := Arguments{
		"f64":  2.5,
		"int":  42,
		"i64":  int64(7),
		"bool": true,
	}
	want := map[string]string{"f64": "2.5", "int": "42", "i64": "7", "bool": "true"}
	for k, w := range want {
		if got, ok := args.Lookup(k); !ok || got != w {
			t.Errorf("Lookup(%s) = %q, %v, want %q", k, got, ok, w)
		}
	}
}

func TestParseArguments_CaseCollision(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`{"fromCurrency":"USD","FROMCURRENCY":"BTC"}`,
		`{"city":"Oslo","City":"Pyongyang"}`,
	} {
		if _, err := ParseArguments(raw); err == nil {
			t.Errorf("ParseArguments(%s) succeeded, want ambiguity error", raw)
		}
	}
	// Exact duplicates keep the last value, as struct decoding does.
	args, err := ParseArguments(`{"city":"Oslo","city":"Tehran"}`)
	if err != nil {
		t.Fatalf("ParseArguments: %v", err)
	}
	if got := args.String("city"); got != "Tehran" {
		t.Errorf("city = %q, want Tehran", got)
	}
}

func TestArguments_LookupFoldsCase(t *testing.T) {
	t.Parallel()

	args := Arguments{"FromCurrency": "BTC", "toCurrency": "EUR", "TOCURRENCY": "ETH", "CITY": nil}
	if got, ok := args.Lookup("fromCurrency"); !ok || got != "BTC" {
		t.Errorf("Lookup(fromCurrency) = %q, %v, want BTC", got, ok)
	}
	if got := args.LookupAll("toCurrency"); len(got) != 2 || got[0] != "EUR" || got[1] != "ETH" {
		t.Errorf("LookupAll(toCurrency) = %v, want [EUR ETH]", got)
	}
	if _, ok := args.Lookup("city"); ok {
		t.Error("null CITY should count as missing")
	}
}
