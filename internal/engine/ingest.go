package engine

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/llm"
	"github.com/ziadkadry99/nae/internal/logging"
	"github.com/ziadkadry99/nae/internal/metrics"
)

// Config carries the inference settings shared by the pipeline stages.
type Config struct {
	Model           string
	AssistantModel  string
	MaxOutputTokens int
	ThinkingBudget  int
	SearchGrounding bool
}

// LayerSection maps a ContextObject field to the ingestion heading it is read
// from. The behavioral section feeds the positioning field.
type LayerSection struct {
	Field   string
	Section string
}

// LayerSections is the fixed field-to-heading mapping in canonical order.
var LayerSections = []LayerSection{
	{Field: "factual", Section: SectionFactual},
	{Field: "mediatic", Section: SectionMediatic},
	{Field: "social", Section: SectionSocial},
	{Field: "positioning", Section: SectionBehavioral},
}

// Ingestion is the full result of an ingestion call.
type Ingestion struct {
	Context ContextObject
	// Sources lists grounding URIs reported by the service, if any.
	Sources []string
	Raw     string
}

// Assembler gathers live context for an asset through one ingestion call.
type Assembler struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// NewAssembler creates an Assembler. A nil logger disables logging.
func NewAssembler(provider llm.Provider, cfg Config, logger *zap.Logger) *Assembler {
	logger = logging.OrNop(logger)
	return &Assembler{provider: provider, cfg: cfg, logger: logger}
}

// BuildContext runs ingestion and returns only the context object.
func (a *Assembler) BuildContext(ctx context.Context, asset, event string) (ContextObject, error) {
	ing, err := a.Ingest(ctx, asset, event)
	if err != nil {
		return ContextObject{}, err
	}
	return ing.Context, nil
}

// Ingest issues the ingestion request and splits the answer into the four
// layers. It either fills every field (possibly with placeholders) or fails
// with an IngestionError.
func (a *Assembler) Ingest(ctx context.Context, asset, event string) (*Ingestion, error) {
	ing, err := a.ingest(ctx, asset, event)
	metrics.PipelineOutcomesTotal.WithLabelValues("ingest", Outcome(err)).Inc()
	if err != nil {
		a.logger.Warn("ingestion failed",
			zap.String("asset", asset),
			zap.Error(err))
		return nil, err
	}
	a.logger.Info("context ingested",
		zap.String("asset", asset),
		zap.Int("sources", len(ing.Sources)),
		zap.Strings("missing", missingFields(ing.Context)))
	for _, src := range ing.Sources {
		a.logger.Debug("grounding source", zap.String("asset", asset), zap.String("uri", src))
	}
	return ing, nil
}

func (a *Assembler) ingest(ctx context.Context, asset, event string) (*Ingestion, error) {
	if strings.TrimSpace(asset) == "" {
		return nil, &IngestionError{Err: errors.New("asset is required")}
	}
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: ingestPrompt(asset, event)},
		},
		Temperature:     0.1,
		SearchGrounding: a.cfg.SearchGrounding,
	})
	if err != nil {
		return nil, &IngestionError{Err: err}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, &IngestionError{Err: errors.New("empty ingestion response")}
	}
	return &Ingestion{
		Context: SplitContext(resp.Content),
		Sources: resp.GroundingRefs,
		Raw:     resp.Content,
	}, nil
}

// SplitContext applies ExtractSection once per layer.
func SplitContext(raw string) ContextObject {
	var c ContextObject
	for _, ls := range LayerSections {
		c.Set(ls.Field, ExtractSection(raw, ls.Section))
	}
	return c
}

// Set assigns a field by its wire name. Unknown names are ignored.
func (c *ContextObject) Set(field, value string) {
	switch field {
	case "factual":
		c.Factual = value
	case "mediatic":
		c.Mediatic = value
	case "social":
		c.Social = value
	case "positioning":
		c.Positioning = value
	}
}

// Get returns a field by its wire name.
func (c ContextObject) Get(field string) string {
	switch field {
	case "factual":
		return c.Factual
	case "mediatic":
		return c.Mediatic
	case "social":
		return c.Social
	case "positioning":
		return c.Positioning
	}
	return ""
}

func missingFields(c ContextObject) []string {
	var out []string
	for _, ls := range LayerSections {
		if c.Get(ls.Field) == MissingSection(ls.Section) {
			out = append(out, ls.Field)
		}
	}
	return out
}
