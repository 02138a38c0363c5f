package ports

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/superbrain63/superbrain-ai/internal/app"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

const (
	maxCompleteBodyBytes = 256 * 1024
	maxMessages          = 100
)

type completeRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type completionResponse struct {
	Content     string `json:"content"`
	Model       string `json:"model"`
	TotalTokens int    `json:"totalTokens"`
}

type completeResponse struct {
	Success    bool                `json:"success"`
	Cause      string              `json:"cause,omitempty"`
	Decision   string              `json:"decision"`
	Reason     string              `json:"reason,omitempty"`
	Upgrade    string              `json:"upgrade,omitempty"`
	Completion *completionResponse `json:"completion,omitempty"`
	Usage      usageResponse       `json:"usage"`
}

func parseChatMessages(request completeRequest) ([]domain.ChatMessage, error) {
	if len(request.Messages) == 0 {
		return nil, fmt.Errorf("no messages")
	}
	if len(request.Messages) > maxMessages {
		return nil, fmt.Errorf("too many messages")
	}

	messages := make([]domain.ChatMessage, 0, len(request.Messages))
	for _, message := range request.Messages {
		role := domain.ChatRole(message.Role)
		switch role {
		case domain.ChatRoleUser, domain.ChatRoleAssistant:
		case domain.ChatRoleSystem:
			// The completion provider owns the system prompt
			return nil, fmt.Errorf("system messages are not accepted")
		default:
			return nil, fmt.Errorf("invalid role %q", message.Role)
		}
		messages = append(messages, domain.ChatMessage{Role: role, Content: message.Content})
	}

	if messages[len(messages)-1].Role != domain.ChatRoleUser {
		return nil, fmt.Errorf("last message must be from the user")
	}

	return messages, nil
}

// MakeCompleteHandler answers a conversation when the caller's quota admits it.
// A denied request gets 402 with an upgrade prompt.
func MakeCompleteHandler(
	completeWithQuota app.CompleteWithQuota,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildAccountRouteMiddleware(
		accountRoute{
			name:   "complete",
			method: http.MethodPost,
			limits: rateLimits{
				ipRefill:   2,
				ipBurst:    60,
				userRefill: 1,
				userBurst:  20,
			},
		},
		allowedOrigins,
		rootLogger,
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, userID := addUserToContext(r.Context(), r)

		defer r.Body.Close()
		var request completeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCompleteBodyBytes)).Decode(&request); err != nil {
			writeError(ctx, w, http.StatusBadRequest, "failed to parse request body")
			return
		}

		messages, err := parseChatMessages(request)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.Int("messageCount", len(messages)))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"messageCount": strconv.Itoa(len(messages)),
		})

		result, err := completeWithQuota(ctx, userID, messages)
		if err != nil {
			writeAppError(ctx, w, err)
			return
		}

		labelDecision(ctx, result.Decision)
		labelTier(ctx, result.Usage.Account.Tier)

		response := completeResponse{
			Success:  result.Decision.Admitted(),
			Decision: string(result.Decision.Outcome),
			Reason:   string(result.Decision.Reason),
			Usage:    usageToResponse(result.Usage),
		}

		if !result.Decision.Admitted() {
			response.Cause = "quota exceeded"
			response.Upgrade = upgradePrompt
			logging.FromContext(ctx).InfoContext(ctx, "Denied completion", "reason", string(result.Decision.Reason))
			writeJSON(ctx, w, http.StatusPaymentRequired, response)
			return
		}

		response.Completion = &completionResponse{
			Content:     result.Completion.Content,
			Model:       result.Completion.Model,
			TotalTokens: result.Completion.TotalTokens,
		}

		logging.FromContext(ctx).InfoContext(ctx, "Returning completion", "totalTokens", result.Completion.TotalTokens)
		writeJSON(ctx, w, http.StatusOK, response)
	}

	return middleware(handler)
}
