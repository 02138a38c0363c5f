package completionprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/ratelimiting"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

const completeMaxOperationTime = 45 * time.Second

const DefaultSystemPrompt = "You are a helpful, friendly AI assistant."

type openAIMetricsCollection struct {
	requestCount metric.Int64Counter
	tokenCount   metric.Int64Counter
}

func setupOpenAIMetrics(meter metric.Meter) (openAIMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("completionprovider/openai/request_count")
	if err != nil {
		return openAIMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	tokenCount, err := meter.Int64Counter("completionprovider/openai/token_count")
	if err != nil {
		return openAIMetricsCollection{}, fmt.Errorf("failed to create token count metric: %w", err)
	}

	return openAIMetricsCollection{
		requestCount: requestCount,
		tokenCount:   tokenCount,
	}, nil
}

type OpenAIConfig struct {
	APIKey string
	Model  string
	// Empty means the public OpenAI endpoint
	BaseURL string
	// Empty means DefaultSystemPrompt
	SystemPrompt string
}

type openAIProvider struct {
	client       *openai.Client
	model        string
	systemPrompt string
	limiter      ratelimiting.RequestLimiter

	metrics openAIMetricsCollection
	tracer  trace.Tracer
}

func NewOpenAI(conf OpenAIConfig, limiter ratelimiting.RequestLimiter) (*openAIProvider, error) {
	const name = "superbrain/completionprovider/openai"

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupOpenAIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	systemPrompt := conf.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	clientConfig := openai.DefaultConfig(conf.APIKey)
	if conf.BaseURL != "" {
		clientConfig.BaseURL = conf.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return &openAIProvider{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        conf.Model,
		systemPrompt: systemPrompt,
		limiter:      limiter,
		metrics:      metrics,
		tracer:       tracer,
	}, nil
}

// toOpenAIMessages puts systemPrompt first, followed by the conversation
func toOpenAIMessages(systemPrompt string, messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	converted = append(converted, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, message := range messages {
		role := openai.ChatMessageRoleUser
		switch message.Role {
		case domain.ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    role,
			Content: message.Content,
		})
	}
	return converted
}

func (p *openAIProvider) Complete(ctx context.Context, messages []domain.ChatMessage) (domain.Completion, error) {
	ctx, span := p.tracer.Start(ctx, "OpenAI.Complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("openai.model", p.model),
		attribute.Int("openai.message_count", len(messages)),
	)

	request := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(p.systemPrompt, messages),
	}

	var response openai.ChatCompletionResponse
	var err error
	ran := p.limiter.Limit(ctx, completeMaxOperationTime, func(ctx context.Context) {
		response, err = p.client.CreateChatCompletion(ctx, request)
	})
	if !ran {
		reporting.Report(ctx, fmt.Errorf("too many requests to openai"))
		return domain.Completion{}, fmt.Errorf("%w: too many requests to openai", domain.ErrTemporarilyUnavailable)
	}

	statusCode := "ok"
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		statusCode = strconv.Itoa(apiErr.HTTPStatusCode)
	} else if err != nil {
		statusCode = "transport_error"
	}
	p.metrics.requestCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", p.model),
		attribute.String("status_code", statusCode),
	))

	if err != nil {
		err := fmt.Errorf("openai chat completion failed: %w", err)
		reporting.Report(ctx, err, map[string]string{"status": statusCode})
		return domain.Completion{}, err
	}

	if len(response.Choices) == 0 {
		err := fmt.Errorf("openai returned no choices")
		reporting.Report(ctx, err)
		return domain.Completion{}, err
	}

	p.metrics.tokenCount.Add(ctx, int64(response.Usage.TotalTokens), metric.WithAttributes(
		attribute.String("model", p.model),
	))

	return domain.Completion{
		Content:     response.Choices[0].Message.Content,
		Model:       response.Model,
		TotalTokens: response.Usage.TotalTokens,
	}, nil
}
