// Package generator turns a question and its clinical context into a free-text
// answer from a language model backend.
package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"medichat-server/internal/config"
	"medichat-server/internal/models"

	"go.uber.org/zap"
)

// Unavailable is the answer given whenever the backend cannot produce one.
const Unavailable = "Sorry, model unavailable right now. Please try again later."

const maxAnswerChars = 3000

const (
	patientInstruction = "You are a knowledgeable, empathetic medical information assistant. Provide detailed, practical guidance. " +
		"Structure your response with clear sections when helpful. Include specific steps, examples, and when to seek care."
	clinicianInstruction = "You are an experienced clinician. Provide professional, evidence-based clinical advice for a colleague. " +
		"Include clinical reasoning, suggested next steps, red flags to watch for, and any relevant cautions."
)

// Service generates answers. It is safe for concurrent use.
type Service struct {
	backend Backend
	timeout time.Duration
	logger  *zap.Logger
}

// New builds the Service for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Service, error) {
	var backend Backend
	switch cfg.Provider {
	case "ollama":
		backend = NewOllamaBackend(cfg.OllamaHost, cfg.OllamaModel, cfg.Temperature, &http.Client{})
	case "gemini":
		gemini, err := NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		backend = gemini
	case "none", "":
		backend = noBackend{}
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}

	logger.Info("answer generator ready", zap.String("provider", cfg.Provider), zap.Duration("timeout", cfg.Timeout))
	return NewWithBackend(backend, cfg.Timeout, logger), nil
}

// NewWithBackend wraps an existing backend. A non-positive timeout disables the deadline.
func NewWithBackend(backend Backend, timeout time.Duration, logger *zap.Logger) *Service {
	if backend == nil {
		backend = noBackend{}
	}
	return &Service{backend: backend, timeout: timeout, logger: logger}
}

// Generate answers question for a user of the given role. Backend failures
// yield Unavailable; only a cancelled ctx is returned as an error.
func (s *Service) Generate(ctx context.Context, question string, role models.Role, gctx models.ChatContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.backend.Complete(callCtx, BuildPrompt(question, role, gctx))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn("answer generation failed", zap.Error(err))
		return Unavailable, nil
	}
	if strings.TrimSpace(raw) == "" {
		s.logger.Warn("answer generation returned empty text")
		return Unavailable, nil
	}

	answer := collapseRepetition(raw)
	answer = applyMedicationWarnings(question, answer, gctx)
	answer = truncateAnswer(answer, maxAnswerChars)
	return strings.TrimSpace(answer), nil
}

// BuildPrompt assembles the role-aware prompt sent to the backend.
func BuildPrompt(question string, role models.Role, gctx models.ChatContext) string {
	instruction := clinicianInstruction
	if role == models.RolePatient {
		instruction = patientInstruction
	}

	contextLine := describeContext(gctx)
	if contextLine == "" {
		contextLine = "General medical information request"
	}

	return instruction + "\n\n" +
		"CONTEXT: " + contextLine + "\n\n" +
		"QUESTION: " + question + "\n\n" +
		"RESPONSE: Provide a thorough, practical answer with specific details and guidance."
}

func describeContext(gctx models.ChatContext) string {
	var b strings.Builder
	if len(gctx.Medications) > 0 {
		b.WriteString("Current medications: " + strings.Join(gctx.Medications, ", ") + ". ")
	}
	if len(gctx.Conditions) > 0 {
		b.WriteString("Known conditions: " + strings.Join(gctx.Conditions, ", ") + ". ")
	}
	if gctx.Symptoms != "" {
		b.WriteString("Presenting symptoms: " + gctx.Symptoms + ". ")
	}
	if gctx.Allergies != "" {
		b.WriteString("Allergies: " + gctx.Allergies + ". ")
	}
	return b.String()
}
