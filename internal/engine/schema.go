package engine

import "github.com/ziadkadry99/nae/internal/llm"

func str() *llm.Schema  { return &llm.Schema{Type: llm.TypeString} }
func num() *llm.Schema  { return &llm.Schema{Type: llm.TypeNumber} }
func flag() *llm.Schema { return &llm.Schema{Type: llm.TypeBoolean} }

func enum[T ~string](values []T) *llm.Schema {
	s := &llm.Schema{Type: llm.TypeString}
	for _, v := range values {
		s.Enum = append(s.Enum, string(v))
	}
	return s
}

func object(order []string, required []string, props map[string]*llm.Schema) *llm.Schema {
	return &llm.Schema{Type: llm.TypeObject, Properties: props, Order: order, Required: required}
}

func arrayOf(items *llm.Schema) *llm.Schema {
	return &llm.Schema{Type: llm.TypeArray, Items: items}
}

func layerSchema() *llm.Schema {
	fields := []string{"confidence", "status", "summary", "velocity", "update_frequency", "key_metrics"}
	return object(fields, fields, map[string]*llm.Schema{
		"confidence":       num(),
		"status":           enum(LayerStatuses),
		"summary":          str(),
		"velocity":         enum(Velocities),
		"update_frequency": str(),
		"key_metrics": arrayOf(object([]string{"label", "value"}, []string{"label", "value"}, map[string]*llm.Schema{
			"label": str(),
			"value": str(),
		})),
	})
}

// LayerNames are the only keys allowed under "layers".
var LayerNames = []string{"factual", "mediatic", "social", "positioning"}

// ResponseSchema declares the exact shape the service must return for an
// analysis. id and timestamp are assigned locally and are not declared.
func ResponseSchema() *llm.Schema {
	signalNames := []string{"macro", "price_action", "sentiment", "behavioral"}
	signals := object(signalNames, signalNames, map[string]*llm.Schema{})
	for _, n := range signalNames {
		s := num()
		s.Minimum, s.Maximum = llm.Float(-1), llm.Float(1)
		signals.Properties[n] = s
	}

	desync := num()
	desync.Minimum, desync.Maximum = llm.Float(0), llm.Float(1)
	taFields := []string{"desync_risk", "lead_signal", "lag_signal", "velocity_mismatch", "logic_rationale"}
	temporal := object(taFields, taFields, map[string]*llm.Schema{
		"desync_risk":       desync,
		"lead_signal":       str(),
		"lag_signal":        str(),
		"velocity_mismatch": flag(),
		"logic_rationale":   str(),
	})

	nsFields := []string{"signals", "conflict_score", "confidence", "narrative_state", "temporal_asymmetry"}
	neural := object(nsFields, nsFields, map[string]*llm.Schema{
		"signals":            signals,
		"conflict_score":     num(),
		"confidence":         num(),
		"narrative_state":    enum(NarrativeStates),
		"temporal_asymmetry": temporal,
	})

	dmFields := []string{"fact_vs_media", "social_vs_positioning", "fact_vs_positioning", "media_vs_social"}
	divergence := object(dmFields, dmFields, map[string]*llm.Schema{})
	for _, n := range dmFields {
		divergence.Properties[n] = num()
	}
	arbitrage := object([]string{"valid", "score", "divergence_metrics"}, []string{"valid", "score", "divergence_metrics"},
		map[string]*llm.Schema{
			"valid":              flag(),
			"score":              num(),
			"divergence_metrics": divergence,
		})

	momentum := object(
		[]string{"actionable", "alignment", "regime", "transition_status", "fatigue", "inaction_lock", "stand_down_reason"},
		[]string{"actionable", "alignment", "regime"},
		map[string]*llm.Schema{
			"actionable":        flag(),
			"alignment":         str(),
			"regime":            str(),
			"transition_status": str(),
			"fatigue":           str(),
			"inaction_lock":     flag(),
			"stand_down_reason": str(),
		})

	risk := object(
		[]string{"permission", "budget", "regime", "tail_risk", "drawdown_state", "explanation"},
		[]string{"permission", "budget", "regime", "tail_risk", "drawdown_state"},
		map[string]*llm.Schema{
			"permission":     enum(Permissions),
			"budget":         str(),
			"regime":         str(),
			"tail_risk":      str(),
			"drawdown_state": str(),
			"explanation":    str(),
		})

	alertFields := []string{"type", "profile", "message", "evidence_refs"}
	alerts := arrayOf(object(alertFields, alertFields, map[string]*llm.Schema{
		"type":          str(),
		"profile":       str(),
		"message":       str(),
		"evidence_refs": arrayOf(str()),
	}))

	layers := object(LayerNames, LayerNames, map[string]*llm.Schema{})
	for _, n := range LayerNames {
		layers.Properties[n] = layerSchema()
	}

	zoneFields := []string{"entry", "stop", "targets"}
	strategy := object([]string{"enabled", "zones", "rationale"}, []string{"enabled"}, map[string]*llm.Schema{
		"enabled": flag(),
		"zones": object(zoneFields, zoneFields, map[string]*llm.Schema{
			"entry":   num(),
			"stop":    num(),
			"targets": arrayOf(num()),
		}),
		"rationale": str(),
	})

	return object(
		[]string{"asset", "factual_score", "deviation_from_facts", "neural_synthesis", "arbitrage",
			"momentum_gate", "risk_management", "alerts", "layers", "strategy_simulation"},
		[]string{"asset", "factual_score", "neural_synthesis", "arbitrage", "momentum_gate",
			"risk_management", "alerts", "layers"},
		map[string]*llm.Schema{
			"asset":                str(),
			"factual_score":        num(),
			"deviation_from_facts": num(),
			"neural_synthesis":     neural,
			"arbitrage":            arbitrage,
			"momentum_gate":        momentum,
			"risk_management":      risk,
			"alerts":               alerts,
			"layers":               layers,
			"strategy_simulation":  strategy,
		})
}
