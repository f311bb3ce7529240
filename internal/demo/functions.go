package demo

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/funcall/internal/chat"
	"github.com/MrWong99/funcall/internal/mcp/tools/currency"
	"github.com/MrWong99/funcall/internal/mcp/tools/weather"
)

var currencyTools = []string{currency.ConvertCurrencyTool, currency.GetExchangeRateTool, currency.GetCurrencyInfoTool}

var allTools = append([]string{weather.GetWeatherTool}, currencyTools...)

// WeatherChat keeps a conversation going with the weather tool available.
func WeatherChat(ctx context.Context, env Env) error {
	r := env.runner(weather.GetWeatherTool)
	h := chat.NewHistory("")
	return env.repl(ctx, func(line string) (string, error) {
		return r.Send(ctx, h, line)
	})
}

// DocumentSummarization summarises a fixed article in three bullet points.
func DocumentSummarization(ctx context.Context, env Env) error {
	env.println("\n--- Document Summarization Example ---")
	summary, err := env.runner().Prompt(ctx, "Summarize this article in 3 bullet points:\n\n"+functionCallingArticle)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	env.println(summary)
	return nil
}

// CurrencyConversion asks for several conversions in one prompt so the model
// can request the tool calls in a single round.
func CurrencyConversion(ctx context.Context, env Env) error {
	env.println("\n--- Currency Conversion with Parallel Function Calls Demo ---")
	env.println("Note: Using real-time exchange rates with automatic parallel calls")
	env.printf("Converting currencies with parallel function calls...\n\n")

	result, err := env.runner(currencyTools...).Prompt(ctx, currencyQuery)
	if err != nil {
		return fmt.Errorf("currency conversion: %w", err)
	}
	env.println(result)
	return nil
}

// ParallelismComparison times five single-task prompts against one prompt
// asking for all five tasks at once.
func ParallelismComparison(ctx context.Context, env Env) error {
	env.printf("\n=== PARALLELISM COMPARISON DEMO ===\n\n")
	if err := sequentialCalls(ctx, env); err != nil {
		return err
	}
	env.println("\n" + strings.Repeat("-", 60) + "\n")
	return parallelCalls(ctx, env)
}

func sequentialCalls(ctx context.Context, env Env) error {
	r := env.runner(allTools...)
	env.println("--- SEQUENTIAL FUNCTION CALLS DEMO ---")
	env.printf("Forcing sequential execution by asking one thing at a time...\n\n")

	start := env.now()
	env.printf("[%s] Starting sequential calls...\n", env.stamp())
	for _, q := range sequentialQueries {
		result, err := r.Prompt(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result = describeError(err)
		}
		env.printf("[%s] Completed: %s\n", env.stamp(), q)
		env.printf("Result: %s\n\n", result)
	}
	env.printf("📊 SEQUENTIAL EXECUTION TIME: %.2f seconds\n", env.now().Sub(start).Seconds())
	return nil
}

func parallelCalls(ctx context.Context, env Env) error {
	r := env.runner(allTools...)
	env.println("--- PARALLEL FUNCTION CALLS DEMO ---")
	env.printf("Asking for multiple operations in a single prompt...\n\n")

	start := env.now()
	env.printf("[%s] Starting parallel function calls...\n", env.stamp())
	result, err := r.Prompt(ctx, parallelQuery)
	if err != nil {
		return fmt.Errorf("parallel calls: %w", err)
	}
	elapsed := env.now().Sub(start)
	env.printf("[%s] All parallel calls completed!\n", env.stamp())

	env.printf("\n🚀 PARALLEL EXECUTION TIME: %.2f seconds\n", elapsed.Seconds())
	env.println("\n--- PARALLEL RESULTS ---")
	env.println(result)
	return nil
}
