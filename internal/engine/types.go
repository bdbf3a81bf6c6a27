package engine

import "time"

// ContextObject holds the four evidence layers gathered by ingestion. Fields
// may carry the extractor's sentinel when a section was not found.
type ContextObject struct {
	Factual     string `json:"factual"`
	Mediatic    string `json:"mediatic"`
	Social      string `json:"social"`
	Positioning string `json:"positioning"`
}

// NarrativeState labels the crowd narrative the service detected.
type NarrativeState string

const (
	StateEuphoria     NarrativeState = "euphoria"
	StatePanic        NarrativeState = "panic"
	StateDenial       NarrativeState = "denial"
	StateTransition   NarrativeState = "transition"
	StateManipulation NarrativeState = "manipulation"
	StateCompression  NarrativeState = "compression"
)

// NarrativeStates lists every accepted NarrativeState.
var NarrativeStates = []NarrativeState{
	StateEuphoria, StatePanic, StateDenial, StateTransition, StateManipulation, StateCompression,
}

// Permission is the risk gate's trade permission.
type Permission string

const (
	PermissionAllow  Permission = "ALLOW"
	PermissionReduce Permission = "REDUCE"
	PermissionBlock  Permission = "BLOCK"
)

var Permissions = []Permission{PermissionAllow, PermissionReduce, PermissionBlock}

// LayerStatus reports data availability for one layer.
type LayerStatus string

const (
	StatusOK          LayerStatus = "OK"
	StatusMissingData LayerStatus = "MISSING_DATA"
	StatusUncertain   LayerStatus = "UNCERTAIN"
)

var LayerStatuses = []LayerStatus{StatusOK, StatusMissingData, StatusUncertain}

// Velocity is the update cadence of a layer.
type Velocity string

const (
	VelocitySlow     Velocity = "SLOW"
	VelocityModerate Velocity = "MODERATE"
	VelocityFast     Velocity = "FAST"
	VelocityRealtime Velocity = "REALTIME"
)

var Velocities = []Velocity{VelocitySlow, VelocityModerate, VelocityFast, VelocityRealtime}

// AnalysisRecord is the validated result of one analysis call. Records are
// never mutated after Analyze returns them.
type AnalysisRecord struct {
	ID                 string              `json:"id"`
	Asset              string              `json:"asset"`
	Timestamp          time.Time           `json:"timestamp"`
	FactualScore       float64             `json:"factual_score"`
	DeviationFromFacts *float64            `json:"deviation_from_facts,omitempty"`
	NeuralSynthesis    NeuralSynthesis     `json:"neural_synthesis"`
	Arbitrage          Arbitrage           `json:"arbitrage"`
	MomentumGate       MomentumGate        `json:"momentum_gate"`
	RiskManagement     RiskManagement      `json:"risk_management"`
	Alerts             []Alert             `json:"alerts"`
	Layers             Layers              `json:"layers"`
	StrategySimulation *StrategySimulation `json:"strategy_simulation,omitempty"`
}

type NeuralSynthesis struct {
	Signals           Signals           `json:"signals"`
	ConflictScore     float64           `json:"conflict_score"`
	Confidence        float64           `json:"confidence"`
	NarrativeState    NarrativeState    `json:"narrative_state"`
	TemporalAsymmetry TemporalAsymmetry `json:"temporal_asymmetry"`
}

// Signals are signed weights in [-1, 1].
type Signals struct {
	Macro       float64 `json:"macro" validate:"gte=-1,lte=1"`
	PriceAction float64 `json:"price_action" validate:"gte=-1,lte=1"`
	Sentiment   float64 `json:"sentiment" validate:"gte=-1,lte=1"`
	Behavioral  float64 `json:"behavioral" validate:"gte=-1,lte=1"`
}

type TemporalAsymmetry struct {
	DesyncRisk       float64 `json:"desync_risk" validate:"gte=0,lte=1"`
	LeadSignal       string  `json:"lead_signal"`
	LagSignal        string  `json:"lag_signal"`
	VelocityMismatch bool    `json:"velocity_mismatch"`
	LogicRationale   string  `json:"logic_rationale"`
}

type Arbitrage struct {
	Valid             bool              `json:"valid"`
	Score             float64           `json:"score"`
	DivergenceMetrics DivergenceMetrics `json:"divergence_metrics"`
}

type DivergenceMetrics struct {
	FactVsMedia         float64 `json:"fact_vs_media"`
	SocialVsPositioning float64 `json:"social_vs_positioning"`
	FactVsPositioning   float64 `json:"fact_vs_positioning"`
	MediaVsSocial       float64 `json:"media_vs_social"`
}

type MomentumGate struct {
	Actionable       bool   `json:"actionable"`
	Alignment        string `json:"alignment"`
	Regime           string `json:"regime"`
	TransitionStatus string `json:"transition_status,omitempty"`
	Fatigue          string `json:"fatigue,omitempty"`
	InactionLock     *bool  `json:"inaction_lock,omitempty"`
	StandDownReason  string `json:"stand_down_reason,omitempty"`
}

type RiskManagement struct {
	Permission    Permission `json:"permission"`
	Budget        string     `json:"budget"`
	Regime        string     `json:"regime"`
	TailRisk      string     `json:"tail_risk"`
	DrawdownState string     `json:"drawdown_state"`
	Explanation   string     `json:"explanation,omitempty"`
}

type Alert struct {
	Type         string   `json:"type"`
	Profile      string   `json:"profile"`
	Message      string   `json:"message"`
	EvidenceRefs []string `json:"evidence_refs"`
}

// Layers always carries exactly these four entries.
type Layers struct {
	Factual     LayerData `json:"factual"`
	Mediatic    LayerData `json:"mediatic"`
	Social      LayerData `json:"social"`
	Positioning LayerData `json:"positioning"`
}

// Each calls fn for the layers in canonical order.
func (l *Layers) Each(fn func(name string, layer *LayerData)) {
	fn("factual", &l.Factual)
	fn("mediatic", &l.Mediatic)
	fn("social", &l.Social)
	fn("positioning", &l.Positioning)
}

type LayerData struct {
	Confidence      float64     `json:"confidence"`
	Status          LayerStatus `json:"status"`
	Summary         string      `json:"summary"`
	Velocity        Velocity    `json:"velocity"`
	UpdateFrequency string      `json:"update_frequency"`
	KeyMetrics      []Metric    `json:"key_metrics"`
}

type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StrategySimulation is present only when the service opted to simulate.
type StrategySimulation struct {
	Enabled   bool   `json:"enabled"`
	Zones     *Zones `json:"zones,omitempty" validate:"required_if=Enabled true"`
	Rationale string `json:"rationale,omitempty" validate:"required_if=Enabled true"`
}

type Zones struct {
	Entry   float64   `json:"entry"`
	Stop    float64   `json:"stop"`
	Targets []float64 `json:"targets"`
}
