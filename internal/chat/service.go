// Package chat answers customer questions from retrieved product
// documents.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/IshaanNene/ShopStalk/internal/config"
	"github.com/IshaanNene/ShopStalk/internal/observability"
	"github.com/IshaanNene/ShopStalk/internal/vectorstore"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Retriever finds the documents most relevant to a query.
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]vectorstore.ScoredDocument, error)
}

// Completer is the chat completion call of *openai.Client.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service runs retrieve, prompt and complete for one question.
type Service struct {
	retriever   Retriever
	completer   Completer
	sessions    SessionStore
	model       string
	topK        int
	temperature float32
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSessions keeps per-session history in store.
func WithSessions(store SessionStore) Option {
	return func(s *Service) { s.sessions = store }
}

// WithMetrics counts answered and failed requests.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service.
func NewService(r Retriever, c Completer, cfg config.ChatConfig, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		retriever:   r,
		completer:   c,
		model:       cfg.Model,
		topK:        cfg.TopK,
		temperature: cfg.Temperature,
		logger:      logger.With("component", "chat"),
	}
	if s.topK < 1 {
		s.topK = 1
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer retrieves context for question and asks the model. When
// sessionID is set and a session store is configured, earlier turns are
// sent along and the new turn is saved.
func (s *Service) Answer(ctx context.Context, sessionID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	answer, err := s.answer(ctx, sessionID, question)
	if err != nil {
		s.metrics.ChatRequest("error")
		return "", err
	}
	s.metrics.ChatRequest("ok")
	return answer, nil
}

func (s *Service) answer(ctx context.Context, sessionID, question string) (string, error) {
	docs, err := s.retriever.SimilaritySearch(ctx, question, s.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}

	var history []Message
	if s.sessions != nil && sessionID != "" {
		history, err = s.sessions.History(ctx, sessionID)
		if err != nil {
			s.logger.Warn("session history unavailable", "session", sessionID, "error", err)
			history = nil
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: BuildPrompt(FormatContext(docs), question),
	})

	resp, err := s.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)

	if s.sessions != nil && sessionID != "" {
		err := s.sessions.Append(ctx, sessionID,
			Message{Role: openai.ChatMessageRoleUser, Content: question},
			Message{Role: openai.ChatMessageRoleAssistant, Content: answer},
		)
		if err != nil {
			s.logger.Warn("session not saved", "session", sessionID, "error", err)
		}
	}

	s.logger.Debug("question answered", "documents", len(docs), "history", len(history))
	return answer, nil
}
