package demo

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/funcall/internal/chat"
	"github.com/MrWong99/funcall/pkg/provider/image"
)

// BasicPrompt answers each line as an independent prompt.
func BasicPrompt(ctx context.Context, env Env) error {
	r := env.runner()
	return env.repl(ctx, func(line string) (string, error) {
		return r.Prompt(ctx, line)
	})
}

// ChatWithHistory keeps the whole conversation but offers no tools.
func ChatWithHistory(ctx context.Context, env Env) error {
	r := env.runner()
	h := chat.NewHistory("")
	return env.repl(ctx, func(line string) (string, error) {
		return r.Send(ctx, h, line)
	})
}

// TravelStreaming streams the answer to a seeded travel conversation.
func TravelStreaming(ctx context.Context, env Env) error {
	h := chat.NewHistory(travelSystemPrompt)
	h.AddAssistant(travelGreeting)
	env.println("assistant: " + travelGreeting)
	h.AddUser(travelRequest)
	env.println("user: " + travelRequest)

	env.printf("assistant: ")
	if _, err := env.runner().Stream(ctx, h, env.Out); err != nil {
		env.println()
		return fmt.Errorf("travel streaming: %w", err)
	}
	env.println()
	return nil
}

// StartupIdeaSettings sends the same prompt at temperature 0 and 1.
func StartupIdeaSettings(ctx context.Context, env Env) error {
	r := env.runner()
	for _, temp := range []float64{0, 1} {
		answer, err := r.Prompt(ctx, startupPrompt, chat.WithTemperature(temp), chat.WithMaxTokens(500))
		if err != nil {
			return fmt.Errorf("startup idea at temperature %g: %w", temp, err)
		}
		env.printf("Temperature %g:\n%s\n\n", temp, answer)
	}
	return nil
}

// TravelLoungeImage generates the lounge image and prints where it lives.
func TravelLoungeImage(ctx context.Context, env Env) error {
	if env.Image == nil {
		return fmt.Errorf("travel lounge image: no image provider configured")
	}

	start := time.Now()
	res, err := env.Image.Generate(ctx, image.Request{Prompt: travelLoungePrompt, Width: 896, Height: 512})
	m := env.metrics()
	m.ImageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("provider", env.ImageProvider),
	))
	if err != nil {
		m.RecordProviderError(ctx, env.ImageProvider, "image")
		m.RecordProviderRequest(ctx, env.ImageProvider, "image", "error")
		return fmt.Errorf("travel lounge image: %w", err)
	}
	m.RecordProviderRequest(ctx, env.ImageProvider, "image", "ok")

	if res.URL != "" {
		env.println("Image URL: " + res.URL)
	} else {
		env.printf("Image generated (%d base64 characters)\n", len(res.B64JSON))
	}
	if res.RevisedPrompt != "" && res.RevisedPrompt != travelLoungePrompt {
		env.println("Revised prompt: " + res.RevisedPrompt)
	}
	return nil
}
