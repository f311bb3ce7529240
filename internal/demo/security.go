package demo

import (
	"context"

	"github.com/MrWong99/funcall/internal/policy"
)

// SecurityFilter runs allowed, blocked and alerting queries through the
// policy-guarded tools. Each query is independent: a blocked one does not
// stop the next.
func SecurityFilter(ctx context.Context, env Env) error {
	env.printf("\n=== SECURITY FILTER DEMO ===\n\n")
	r := env.runner(allTools...)

	query := func(q string) error {
		env.println("Query: " + q)
		result, err := r.Prompt(ctx, q)
		switch {
		case err == nil:
			env.printf("Result: %s\n\n", result)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			env.printf("%s\n\n", describeError(err))
		}
		return nil
	}

	env.printf("Testing allowed operations...\n\n")
	for _, q := range allowedQueries {
		if err := query(q); err != nil {
			return err
		}
	}
	env.printf("Testing BLOCKED operations...\n\n")
	for _, q := range blockedQueries {
		if err := query(q); err != nil {
			return err
		}
	}
	if err := query(largeAmountQuery); err != nil {
		return err
	}

	env.println("=== Security Filter Demo Complete ===")
	return nil
}

// ComplexSecurity sends one request mixing allowed and forbidden tasks. The
// first denied tool call aborts the whole request.
func ComplexSecurity(ctx context.Context, env Env) error {
	env.printf("\n=== COMPLEX SECURITY SCENARIO DEMO ===\n\n")
	env.printf("Complex Query:\n%s\n\n", complexQuery)
	env.printf("Processing...\n\n")

	result, err := env.runner(allTools...).Prompt(ctx, complexQuery)
	switch v, blocked := policy.AsViolation(err); {
	case err == nil:
		env.printf("Final Result:\n%s\n", result)
	case blocked:
		env.println("Operation stopped due to security violation: " + v.Reason)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		env.println(describeError(err))
	}

	env.println("\n=== Complex Security Demo Complete ===")
	return nil
}
