package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Invocation is a single request to run a named tool, captured right before
// dispatch. The filter only reads it.
type Invocation struct {
	// Function is the tool identifier as registered with the host, for
	// example "ConvertCurrency".
	Function string

	// Arguments holds the decoded call arguments.
	Arguments Arguments
}

// Arguments maps argument names to loosely typed values: strings, numbers
// ([json.Number], float64, ints), or nil.
type Arguments map[string]any

// ParseArguments decodes a JSON object of tool-call arguments as produced by
// the model. Numbers are kept as [json.Number] so their original text
// survives. An empty or whitespace-only payload yields empty Arguments.
//
// Tool bodies decode the same payload into structs, which match keys
// case-insensitively. A payload with two keys that differ only in case is
// rejected because the filter could not tell which one the tool would use.
func ParseArguments(raw string) (Arguments, error) {
	args := Arguments{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("policy: decode arguments: %w", err)
	}
	keys := slices.Sorted(maps.Keys(args))
	for i, k := range keys {
		for _, other := range keys[i+1:] {
			if strings.EqualFold(k, other) {
				return nil, fmt.Errorf("policy: ambiguous argument names %q and %q", k, other)
			}
		}
	}
	return args, nil
}

// Lookup returns the textual form of the named argument. Names match
// case-insensitively, as they do when a tool decodes its arguments; an
// exact match wins. The second result is false when the argument is absent
// or explicitly null.
func (a Arguments) Lookup(name string) (string, bool) {
	if vs := a.LookupAll(name); len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

// LookupAll returns the text of every non-null argument whose name equals
// name ignoring case. The exact match comes first, the rest in key order.
// Guards use it on hand-built Arguments that may carry case variants.
func (a Arguments) LookupAll(name string) []string {
	var out []string
	if v, ok := a[name]; ok && v != nil {
		out = append(out, text(v))
	}
	for _, k := range slices.Sorted(maps.Keys(a)) {
		if k == name || !strings.EqualFold(k, name) || a[k] == nil {
			continue
		}
		out = append(out, text(a[k]))
	}
	return out
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// String returns the named argument as text, or "" when it is missing.
func (a Arguments) String(name string) string {
	s, _ := a.Lookup(name)
	return s
}
