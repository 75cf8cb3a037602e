package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/nutrigraph/nutribot/backend/internal/config"
	"github.com/nutrigraph/nutribot/backend/internal/logger"
	"github.com/nutrigraph/nutribot/backend/internal/model/persona"
	"github.com/nutrigraph/nutribot/backend/internal/service/gemini"
)

// ErrMalformedResponse marks a model reply that carries no usable answer.
var ErrMalformedResponse = gemini.ErrMalformedResponse

// Service turns one user query into one model answer through an eino chain.
type Service struct {
	chatModel model.BaseChatModel
	persona   persona.Persona
	chain     compose.Runnable[map[string]any, *schema.Message]
	log       zerolog.Logger
}

// NewService creates the chat model described by cfg and compiles the chain.
func NewService(ctx context.Context, p persona.Persona, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, p, chatModel)
}

// NewServiceWithModel compiles the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, p persona.Persona, chatModel model.BaseChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(newPromptTemplate())
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		persona:   p,
		chain:     runnable,
		log:       logger.For("ai"),
	}, nil
}

// Persona returns the identity the prompt is built for.
func (s *Service) Persona() persona.Persona {
	return s.persona
}

// Respond runs the chain for userText and returns the answer verbatim.
func (s *Service) Respond(ctx context.Context, userText string) (string, error) {
	response, err := s.chain.Invoke(ctx, buildPromptInput(s.persona, userText))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", fmt.Errorf("%w: empty model answer", ErrMalformedResponse)
	}

	s.log.Debug().
		Str("persona", s.persona.ID).
		Int("length", len(response.Content)).
		Msg("generated response")
	return response.Content, nil
}
