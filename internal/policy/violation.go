package policy

import "errors"

// ErrPolicyViolation is matched by every *PolicyViolation via errors.Is.
var ErrPolicyViolation = errors.New("policy violation")

// PolicyViolation is returned when a guard denies an invocation. It is never
// retried; callers decide whether to surface it, ask the model again, or
// abort the whole plan.
type PolicyViolation struct {
	// Guard is the name of the guard that denied the call.
	Guard string

	// Function is the tool that was being invoked.
	Function string

	// Field is the argument that triggered the denial.
	Field string

	// Value is the offending argument value as supplied by the caller.
	Value string

	// Reason is a human-readable explanation suitable for end users.
	Reason string
}

// Error implements error.
func (v *PolicyViolation) Error() string {
	return "policy violation: " + v.Reason
}

// Is reports whether target is [ErrPolicyViolation].
func (v *PolicyViolation) Is(target error) bool {
	return target == ErrPolicyViolation
}

// AsViolation unwraps err to a *PolicyViolation.
func AsViolation(err error) (*PolicyViolation, bool) {
	var v *PolicyViolation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
