package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
	applogger "PhantomEx/pkg/logger"
)

var (
	// ErrTransport marks failures reaching or reading the model backend.
	ErrTransport = errors.New("oracle transport error")
	// ErrDecision marks replies that arrived but could not be turned into a
	// valid decision.
	ErrDecision = errors.New("oracle decision rejected")
)

// Config holds the model backend settings.
type Config struct {
	// BaseURL of an OpenAI-compatible chat endpoint.
	BaseURL string
	APIKey  string
	// DefaultModel is used when an agent names no model of its own.
	DefaultModel string
	Timeout      time.Duration
	// HistoryDepth is the number of past exchanges (user+assistant pairs)
	// replayed to the model per agent. 0 disables history.
	HistoryDepth int
	MaxTokens    int
}

// Service implements the Oracle against any OpenAI-compatible backend. It
// owns prompt construction, per-agent rolling history, decision parsing, and
// the call timeout. Chat model handles are cached per model name.
type Service struct {
	cfg Config
	log *applogger.Logger

	mu      sync.Mutex
	clients map[string]*openai.ChatModel
	history map[string][]*schema.Message
}

func New(cfg Config, log *applogger.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Service{
		cfg:     cfg,
		log:     log,
		clients: make(map[string]*openai.ChatModel),
		history: make(map[string][]*schema.Message),
	}
}

var _ drepo.Oracle = (*Service)(nil)

func (s *Service) client(ctx context.Context, model string) (*openai.ChatModel, error) {
	if model == "" {
		model = s.cfg.DefaultModel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[model]; ok {
		return c, nil
	}

	maxTokens := s.cfg.MaxTokens
	c, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   s.cfg.BaseURL,
		APIKey:    s.cfg.APIKey,
		Model:     model,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init model %s: %v", ErrTransport, model, err)
	}
	s.clients[model] = c
	return c, nil
}

// Decide asks the agent's model for one trading decision. The reply must be
// a JSON object with a valid action; anything else is rejected with
// ErrDecision so the caller can skip the cycle.
func (s *Service) Decide(ctx context.Context, agent *models.AgentRecord, prices models.PriceSnapshot, portfolio *models.PortfolioView) (*models.Decision, error) {
	c, err := s.client(ctx, agent.Model)
	if err != nil {
		return nil, err
	}

	userMsg := schema.UserMessage(buildMarketContext(prices, portfolio))
	messages := []*schema.Message{schema.SystemMessage(buildSystemPrompt(agent.Goal, agent.RiskProfile))}
	messages = append(messages, s.recall(agent.ID)...)
	messages = append(messages, userMsg)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	reply, err := c.Generate(callCtx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	decision, err := parseDecision(agent.ID, reply.Content)
	if err != nil {
		return nil, err
	}

	s.remember(agent.ID, userMsg, &schema.Message{Role: schema.Assistant, Content: reply.Content})
	return decision, nil
}

// Summarize asks the session's own model for a short retrospective.
func (s *Service) Summarize(ctx context.Context, sess *models.SavedSession) (string, error) {
	c, err := s.client(ctx, sess.Model)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	reply, err := c.Generate(callCtx, []*schema.Message{schema.UserMessage(buildSummaryPrompt(sess))})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	summary := strings.TrimSpace(reply.Content)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", ErrDecision)
	}
	return summary, nil
}

// Forget drops the rolling history kept for an agent.
func (s *Service) Forget(agentID string) {
	s.mu.Lock()
	delete(s.history, agentID)
	s.mu.Unlock()
}

func (s *Service) recall(agentID string) []*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[agentID]
}

func (s *Service) remember(agentID string, exchange ...*schema.Message) {
	if s.cfg.HistoryDepth <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append(s.history[agentID], exchange...)
	if max := s.cfg.HistoryDepth * 2; len(h) > max {
		h = h[len(h)-max:]
	}
	s.history[agentID] = h
}

type decisionPayload struct {
	Action    string  `json:"action"`
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	Reasoning string  `json:"reasoning"`
}

// parseDecision turns a raw model reply into a Decision. Markdown code
// fences around the JSON are tolerated; everything else about the shape is
// strict.
func parseDecision(agentID, raw string) (*models.Decision, error) {
	raw = stripFences(raw)

	var p decisionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrDecision, err)
	}

	action := models.DecisionAction(strings.ToLower(strings.TrimSpace(p.Action)))
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrDecision, p.Action)
	}

	return &models.Decision{
		AgentID:   agentID,
		Action:    action,
		Symbol:    strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Quantity:  p.Quantity,
		Reasoning: strings.TrimSpace(p.Reasoning),
		Timestamp: time.Now().UTC(),
	}, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// "json" language tag.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = raw[3:]
	if strings.HasPrefix(raw, "json") {
		raw = raw[4:]
	}
	if i := strings.LastIndex(raw, "```"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}
