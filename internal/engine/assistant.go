package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/llm"
	"github.com/ziadkadry99/nae/internal/logging"
	"github.com/ziadkadry99/nae/internal/metrics"
)

// FallbackAnswer is shown in place of an answer when Ask fails.
const FallbackAnswer = "Error: Could not retrieve response from neural core."

// Greeting is the opening line of a fresh transcript for rec.
func Greeting(rec *AnalysisRecord) string {
	return fmt.Sprintf("System initialized. I am your NAE v2.4 Super Assistant. "+
		"I have internalized the analysis of %s. How can I help you contextualize these results?", rec.Asset)
}

// Assistant answers free-text questions about one record.
type Assistant struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// NewAssistant creates an Assistant. It uses cfg.AssistantModel when set.
func NewAssistant(provider llm.Provider, cfg Config, logger *zap.Logger) *Assistant {
	logger = logging.OrNop(logger)
	return &Assistant{provider: provider, cfg: cfg, logger: logger}
}

// Ask answers question using rec as the only grounding. It never modifies rec.
func (a *Assistant) Ask(ctx context.Context, question string, rec *AnalysisRecord) (string, error) {
	answer, err := a.ask(ctx, question, rec)
	metrics.PipelineOutcomesTotal.WithLabelValues("ask", Outcome(err)).Inc()
	if err != nil {
		a.logger.Warn("assistant failed", zap.Error(err))
		return "", err
	}
	return answer, nil
}

func (a *Assistant) ask(ctx context.Context, question string, rec *AnalysisRecord) (string, error) {
	if rec == nil {
		return "", &InferenceError{Op: "ask", Err: errors.New("no analysis record selected")}
	}
	if strings.TrimSpace(question) == "" {
		return "", &InferenceError{Op: "ask", Err: errors.New("question is empty")}
	}
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return "", &InferenceError{Op: "ask", Err: fmt.Errorf("encoding record: %w", err)}
	}
	model := a.cfg.AssistantModel
	if model == "" {
		model = a.cfg.Model
	}
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: assistantInstruction},
			{Role: llm.RoleUser, Content: assistantPrompt(recordJSON, question)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", &InferenceError{Op: "ask", Err: err}
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", &InferenceError{Op: "ask", Err: errors.New("empty answer")}
	}
	return answer, nil
}

// Speaker identifies who wrote a transcript line.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one transcript line.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript is the caller-held chat log for one record. It is safe for
// concurrent use.
type Transcript struct {
	mu    sync.Mutex
	turns []Turn
}

// NewTranscript starts a transcript seeded with the greeting for rec.
func NewTranscript(rec *AnalysisRecord) *Transcript {
	t := &Transcript{}
	if rec != nil {
		t.Append(SpeakerAssistant, Greeting(rec))
	}
	return t
}

func (t *Transcript) Append(s Speaker, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, Turn{Speaker: s, Text: text})
}

// Turns returns a copy of the log.
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Turn(nil), t.turns...)
}

// Exchange asks question against rec and records both sides. On failure the
// fallback answer is recorded and returned along with the error.
func (t *Transcript) Exchange(ctx context.Context, a *Assistant, question string, rec *AnalysisRecord) (string, error) {
	t.Append(SpeakerUser, question)
	answer, err := a.Ask(ctx, question, rec)
	if err != nil {
		t.Append(SpeakerAssistant, FallbackAnswer)
		return FallbackAnswer, err
	}
	t.Append(SpeakerAssistant, answer)
	return answer, nil
}
