package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/nae/internal/llm"
	"github.com/ziadkadry99/nae/internal/llm/llmtest"
	"github.com/ziadkadry99/nae/internal/metrics"
)

var testCfg = Config{
	Model:           "gemini-3-pro-preview",
	AssistantModel:  "gemini-3-flash-preview",
	MaxOutputTokens: 25000,
	ThinkingBudget:  16000,
	SearchGrounding: true,
}

func loadPayload(t *testing.T) map[string]any {
	t.Helper()
	data, err := os.ReadFile("testdata/analysis.json")
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func encode(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

// at walks dotted keys into a decoded payload.
func at(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		m = m[k].(map[string]any)
	}
	return m
}

func TestIngestBuildsContext(t *testing.T) {
	p := llmtest.New(llmtest.Reply{
		Content: "FACTUAL: BTC at 65000. MEDIATIC: bullish wires. SOCIAL: [no data]. BEHAVIORAL: funding 0.01%.",
		Refs:    []string{"https://example.com/funding"},
	})
	a := NewAssembler(p, testCfg, nil)

	ing, err := a.Ingest(context.Background(), "BTC", "FOMC")
	require.NoError(t, err)
	assert.Equal(t, ContextObject{
		Factual:     "BTC at 65000.",
		Mediatic:    "bullish wires.",
		Social:      "[no data].",
		Positioning: "funding 0.01%.",
	}, ing.Context)
	assert.Equal(t, []string{"https://example.com/funding"}, ing.Sources)

	req := p.LastCall()
	assert.True(t, req.SearchGrounding)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	assert.Nil(t, req.Schema)
	prompt := llmtest.UserPrompt(req)
	for _, want := range []string{"BTC", "FOMC", "FACTUAL", "MEDIATIC", "SOCIAL", "BEHAVIORAL", "last 12 hours"} {
		assert.Contains(t, prompt, want)
	}
}

func TestIngestPartialSectionsUsePlaceholders(t *testing.T) {
	a := NewAssembler(llmtest.Text("SOCIAL: quiet"), testCfg, nil)
	c, err := a.BuildContext(context.Background(), "ETH", "merge")
	require.NoError(t, err)
	assert.Equal(t, MissingSection("FACTUAL"), c.Factual)
	assert.Equal(t, MissingSection("MEDIATIC"), c.Mediatic)
	assert.Equal(t, "quiet", c.Social)
	assert.Equal(t, MissingSection("BEHAVIORAL"), c.Positioning)
}

func TestIngestFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		asset    string
	}{
		{"transport error", llmtest.Failing(errors.New("dial tcp: timeout")), "BTC"},
		{"empty text", llmtest.Text("  \n"), "BTC"},
		{"missing asset", llmtest.Text("FACTUAL: x"), " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler(tt.provider, testCfg, nil)
			c, err := a.BuildContext(context.Background(), tt.asset, "event")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIngestionFailure)
			assert.NotErrorIs(t, err, ErrInferenceFailure)
			assert.Equal(t, ContextObject{}, c)
		})
	}
}

func TestIngestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAssembler(llmtest.Text("FACTUAL: x"), testCfg, nil)
	_, err := a.BuildContext(ctx, "BTC", "event")
	assert.ErrorIs(t, err, ErrIngestionFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeDecodesRecord(t *testing.T) {
	p := llmtest.Text(encode(t, loadPayload(t)))
	a := NewAnalyzer(p, testCfg, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	a.now = func() time.Time { return fixed }

	snapshot := ContextObject{Factual: "f", Mediatic: "m", Social: "s", Positioning: "p"}
	rec, err := a.Analyze(context.Background(), "BTC", "FOMC", snapshot)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, fixed.UTC(), rec.Timestamp)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	assert.Equal(t, "BTC", rec.Asset)
	assert.Equal(t, StateEuphoria, rec.NeuralSynthesis.NarrativeState)
	assert.Equal(t, PermissionReduce, rec.RiskManagement.Permission)
	assert.Equal(t, VelocityRealtime, rec.Layers.Positioning.Velocity)
	assert.Equal(t, StatusUncertain, rec.Layers.Social.Status)
	assert.Empty(t, rec.Layers.Mediatic.KeyMetrics)
	assert.NotNil(t, rec.Layers.Mediatic.KeyMetrics)
	require.NotNil(t, rec.DeviationFromFacts)
	assert.InDelta(t, 0.31, *rec.DeviationFromFacts, 1e-9)
	require.NotNil(t, rec.StrategySimulation)
	assert.Equal(t, []float64{66500, 68000}, rec.StrategySimulation.Zones.Targets)
	require.NotNil(t, rec.MomentumGate.InactionLock)
	assert.True(t, *rec.MomentumGate.InactionLock)

	req := p.LastCall()
	assert.Equal(t, testCfg.Model, req.Model)
	assert.Equal(t, 25000, req.MaxTokens)
	assert.Equal(t, 16000, req.ThinkingBudget)
	require.NotNil(t, req.Schema)
	assert.NotEmpty(t, req.SystemPrompt())
	prompt := llmtest.UserPrompt(req)
	assert.Contains(t, prompt, `"positioning":"p"`)
	assert.Contains(t, prompt, "BTC")
	assert.Contains(t, prompt, "FOMC")
}

func TestAnalyzeOverwritesIDAndTimestamp(t *testing.T) {
	payload := loadPayload(t)
	payload["id"] = "service-chosen"
	payload["timestamp"] = "1999-01-01T00:00:00Z"
	a := NewAnalyzer(llmtest.Text(encode(t, payload)), testCfg, nil)

	before := time.Now().UTC().Add(-time.Second)
	first, err := a.Analyze(context.Background(), "BTC", "e", ContextObject{})
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), "BTC", "e", ContextObject{})
	require.NoError(t, err)

	assert.NotEqual(t, "service-chosen", first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Timestamp.After(before))
}

func TestAnalyzeOverwritesMalformedIDAndTimestamp(t *testing.T) {
	payload := loadPayload(t)
	payload["id"] = 42
	payload["timestamp"] = map[string]any{"bogus": true}
	rec, err := DecodeRecord(encode(t, payload), time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
}

func TestDecodeRecordAcceptsFencedJSON(t *testing.T) {
	payload := "```json\n" + encode(t, loadPayload(t)) + "\n```"
	rec, err := DecodeRecord(payload, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "BTC", rec.Asset)
}

func TestDecodeRecordInferenceFailures(t *testing.T) {
	for name, payload := range map[string]string{
		"empty":     "",
		"blank":     "   ",
		"prose":     "The narrative engine thinks BTC is euphoric.",
		"truncated": `{"asset": "BTC", "neural_synthesis": {`,
		"fence only": "```json\n```",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord(payload, time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInferenceFailure)
			assert.NotErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestDecodeRecordSchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
		path   string
	}{
		{"missing narrative state", func(m map[string]any) {
			delete(at(m, "neural_synthesis"), "narrative_state")
		}, "neural_synthesis.narrative_state"},
		{"null narrative state", func(m map[string]any) {
			at(m, "neural_synthesis")["narrative_state"] = nil
		}, "neural_synthesis.narrative_state"},
		{"narrative state outside enum", func(m map[string]any) {
			at(m, "neural_synthesis")["narrative_state"] = "euphorie"
		}, "neural_synthesis.narrative_state"},
		{"narrative state wrong case", func(m map[string]any) {
			at(m, "neural_synthesis")["narrative_state"] = "Panic"
		}, "neural_synthesis.narrative_state"},
		{"permission outside enum", func(m map[string]any) {
			at(m, "risk_management")["permission"] = "MAYBE"
		}, "risk_management.permission"},
		{"layer status outside enum", func(m map[string]any) {
			at(m, "layers", "social")["status"] = "STALE"
		}, "layers.social.status"},
		{"velocity outside enum", func(m map[string]any) {
			at(m, "layers", "factual")["velocity"] = "GLACIAL"
		}, "layers.factual.velocity"},
		{"missing layer", func(m map[string]any) {
			delete(at(m, "layers"), "positioning")
		}, "layers.positioning"},
		{"extra layer", func(m map[string]any) {
			at(m, "layers")["onchain"] = at(m, "layers", "factual")
		}, "layers.onchain"},
		{"factual score as string", func(m map[string]any) {
			m["factual_score"] = "0.6"
		}, "factual_score"},
		{"actionable as string", func(m map[string]any) {
			at(m, "momentum_gate")["actionable"] = "yes"
		}, "momentum_gate.actionable"},
		{"alerts as object", func(m map[string]any) {
			m["alerts"] = map[string]any{}
		}, "alerts"},
		{"alert missing message", func(m map[string]any) {
			delete(m["alerts"].([]any)[0].(map[string]any), "message")
		}, "alerts[0].message"},
		{"evidence ref not a string", func(m map[string]any) {
			m["alerts"].([]any)[0].(map[string]any)["evidence_refs"] = []any{"a", 3.0}
		}, "alerts[0].evidence_refs[1]"},
		{"missing risk management", func(m map[string]any) {
			delete(m, "risk_management")
		}, "risk_management"},
		{"signal out of range", func(m map[string]any) {
			at(m, "neural_synthesis", "signals")["sentiment"] = 1.5
		}, "neural_synthesis.signals.sentiment"},
		{"desync risk negative", func(m map[string]any) {
			at(m, "neural_synthesis", "temporal_asymmetry")["desync_risk"] = -0.1
		}, "neural_synthesis.temporal_asymmetry.desync_risk"},
		{"enabled simulation without zones", func(m map[string]any) {
			delete(at(m, "strategy_simulation"), "zones")
		}, "strategy_simulation.zones"},
		{"zones missing stop", func(m map[string]any) {
			delete(at(m, "strategy_simulation", "zones"), "stop")
		}, "strategy_simulation.zones.stop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := loadPayload(t)
			tt.mutate(payload)
			_, err := DecodeRecord(encode(t, payload), time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaViolation)
			assert.NotErrorIs(t, err, ErrInferenceFailure)
			var sv *SchemaViolationError
			require.True(t, errors.As(err, &sv))
			assert.Equal(t, tt.path, sv.Path)
		})
	}
}

func TestDecodeRecordTopLevelNotObject(t *testing.T) {
	for _, payload := range []string{`[]`, `"text"`, `42`, `null`} {
		_, err := DecodeRecord(payload, time.Now())
		assert.ErrorIs(t, err, ErrSchemaViolation, payload)
	}
}

func TestDecodeRecordOptionalFields(t *testing.T) {
	payload := loadPayload(t)
	delete(payload, "deviation_from_facts")
	delete(payload, "strategy_simulation")
	gate := at(payload, "momentum_gate")
	for _, k := range []string{"transition_status", "fatigue", "inaction_lock", "stand_down_reason"} {
		delete(gate, k)
	}
	delete(at(payload, "risk_management"), "explanation")
	payload["alerts"] = []any{}

	rec, err := DecodeRecord(encode(t, payload), time.Now())
	require.NoError(t, err)
	assert.Nil(t, rec.DeviationFromFacts)
	assert.Nil(t, rec.StrategySimulation)
	assert.Nil(t, rec.MomentumGate.InactionLock)
	assert.NotNil(t, rec.Alerts)
	assert.Empty(t, rec.Alerts)
}

func TestDecodeRecordDisabledSimulation(t *testing.T) {
	payload := loadPayload(t)
	payload["strategy_simulation"] = map[string]any{"enabled": false}
	rec, err := DecodeRecord(encode(t, payload), time.Now())
	require.NoError(t, err)
	require.NotNil(t, rec.StrategySimulation)
	assert.False(t, rec.StrategySimulation.Enabled)
}

func TestAnalyzeFailures(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		a := NewAnalyzer(llmtest.Failing(errors.New("503")), testCfg, nil)
		_, err := a.Analyze(context.Background(), "BTC", "e", ContextObject{})
		assert.ErrorIs(t, err, ErrInferenceFailure)
	})
	t.Run("schema", func(t *testing.T) {
		payload := loadPayload(t)
		delete(at(payload, "neural_synthesis"), "narrative_state")
		a := NewAnalyzer(llmtest.Text(encode(t, payload)), testCfg, nil)
		rec, err := a.Analyze(context.Background(), "BTC", "e", ContextObject{})
		assert.ErrorIs(t, err, ErrSchemaViolation)
		assert.Nil(t, rec)
	})
	t.Run("missing asset", func(t *testing.T) {
		p := llmtest.Text("{}")
		a := NewAnalyzer(p, testCfg, nil)
		_, err := a.Analyze(context.Background(), "", "e", ContextObject{})
		assert.ErrorIs(t, err, ErrInferenceFailure)
		assert.Empty(t, p.Calls())
	})
}

func TestViolationGroup(t *testing.T) {
	cases := map[string]string{
		"layers.bogus":                   "layers",
		"layers.social.status":           "layers",
		"alerts[17].message":             "alerts",
		"neural_synthesis.signals.macro": "neural_synthesis",
		"strategy_simulation":            "strategy_simulation",
		"":                               "root",
		"made_up[3].x":                   "other",
	}
	for path, want := range cases {
		assert.Equal(t, want, violationGroup(path), path)
	}
}

func TestAnalyzeCountsViolationsByGroup(t *testing.T) {
	payload := loadPayload(t)
	at(payload, "layers")["rumours"] = at(payload, "layers", "social")
	a := NewAnalyzer(llmtest.Text(encode(t, payload)), testCfg, nil)

	counter := metrics.SchemaViolationsTotal.WithLabelValues("layers")
	before := testutil.ToFloat64(counter)
	_, err := a.Analyze(context.Background(), "BTC", "e", ContextObject{})

	var sv *SchemaViolationError
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "layers.rumours", sv.Path)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestResponseSchemaDeclaresContract(t *testing.T) {
	s := ResponseSchema()
	assert.NotContains(t, s.Properties, "id")
	assert.NotContains(t, s.Properties, "timestamp")
	for _, k := range []string{"asset", "factual_score", "neural_synthesis", "arbitrage", "momentum_gate", "risk_management", "alerts", "layers"} {
		assert.True(t, s.IsRequired(k), k)
	}
	assert.False(t, s.IsRequired("strategy_simulation"))

	ns := s.Properties["neural_synthesis"].Properties["narrative_state"]
	assert.Equal(t, []string{"euphoria", "panic", "denial", "transition", "manipulation", "compression"}, ns.Enum)
	assert.Equal(t, []string{"ALLOW", "REDUCE", "BLOCK"}, s.Properties["risk_management"].Properties["permission"].Enum)
	assert.Equal(t, LayerNames, s.Properties["layers"].Required)

	layer := s.Properties["layers"].Properties["positioning"]
	assert.Equal(t, []string{"OK", "MISSING_DATA", "UNCERTAIN"}, layer.Properties["status"].Enum)
	assert.Equal(t, []string{"SLOW", "MODERATE", "FAST", "REALTIME"}, layer.Properties["velocity"].Enum)
}

func TestAssistantAsk(t *testing.T) {
	rec, err := DecodeRecord(encode(t, loadPayload(t)), time.Now())
	require.NoError(t, err)
	before := encode(t, rec)

	p := llmtest.Text("  Social leads factual; desync risk 0.72.  ")
	a := NewAssistant(p, testCfg, nil)
	answer, err := a.Ask(context.Background(), "What leads?", rec)
	require.NoError(t, err)
	assert.Equal(t, "Social leads factual; desync risk 0.72.", answer)
	assert.Equal(t, before, encode(t, rec), "record must not change")

	req := p.LastCall()
	assert.Equal(t, testCfg.AssistantModel, req.Model)
	assert.Nil(t, req.Schema)
	assert.False(t, req.SearchGrounding)
	assert.Contains(t, req.SystemPrompt(), "Never guess")
	prompt := llmtest.UserPrompt(req)
	assert.Contains(t, prompt, "What leads?")
	assert.Contains(t, prompt, rec.ID)
	assert.Contains(t, prompt, `"narrative_state":"euphoria"`)
}

func TestAssistantFallsBackToAnalysisModel(t *testing.T) {
	rec, err := DecodeRecord(encode(t, loadPayload(t)), time.Now())
	require.NoError(t, err)
	p := llmtest.Text("ok")
	cfg := testCfg
	cfg.AssistantModel = ""
	_, err = NewAssistant(p, cfg, nil).Ask(context.Background(), "q", rec)
	require.NoError(t, err)
	assert.Equal(t, cfg.Model, p.LastCall().Model)
}

func TestAssistantFailures(t *testing.T) {
	rec, err := DecodeRecord(encode(t, loadPayload(t)), time.Now())
	require.NoError(t, err)

	_, err = NewAssistant(llmtest.Failing(errors.New("boom")), testCfg, nil).Ask(context.Background(), "q", rec)
	assert.ErrorIs(t, err, ErrInferenceFailure)

	_, err = NewAssistant(llmtest.Text(""), testCfg, nil).Ask(context.Background(), "q", rec)
	assert.ErrorIs(t, err, ErrInferenceFailure)

	_, err = NewAssistant(llmtest.Text("x"), testCfg, nil).Ask(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrInferenceFailure)
}

func TestTranscriptExchange(t *testing.T) {
	rec, err := DecodeRecord(encode(t, loadPayload(t)), time.Now())
	require.NoError(t, err)

	p := llmtest.New(llmtest.Reply{Content: "first answer"}, llmtest.Reply{Err: errors.New("down")})
	a := NewAssistant(p, testCfg, nil)
	tr := NewTranscript(rec)

	got, err := tr.Exchange(context.Background(), a, "q1", rec)
	require.NoError(t, err)
	assert.Equal(t, "first answer", got)

	got, err = tr.Exchange(context.Background(), a, "q2", rec)
	assert.ErrorIs(t, err, ErrInferenceFailure)
	assert.Equal(t, FallbackAnswer, got)

	turns := tr.Turns()
	require.Len(t, turns, 5)
	assert.True(t, strings.Contains(turns[0].Text, "BTC"))
	assert.Equal(t, Turn{Speaker: SpeakerUser, Text: "q1"}, turns[1])
	assert.Equal(t, Turn{Speaker: SpeakerAssistant, Text: "first answer"}, turns[2])
	assert.Equal(t, Turn{Speaker: SpeakerAssistant, Text: FallbackAnswer}, turns[4])
	assert.Len(t, p.Calls(), 2, "no automatic retry")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "schema_violation", Outcome(&SchemaViolationError{Path: "x"}))
	assert.Equal(t, "inference_failure", Outcome(&InferenceError{Op: "ask", Err: errors.New("x")}))
	assert.Equal(t, "ingestion_failure", Outcome(&IngestionError{Err: errors.New("x")}))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
