// Package report renders analysis records as markdown and standalone HTML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/ziadkadry99/nae/internal/engine"
)

// Format selects the output of Write.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// Markdown renders rec as a markdown document, ending with the raw record.
func Markdown(rec *engine.AnalysisRecord) (string, error) {
	var b strings.Builder
	ns := rec.NeuralSynthesis
	ta := ns.TemporalAsymmetry

	fmt.Fprintf(&b, "# %s narrative analysis\n\n", rec.Asset)
	fmt.Fprintf(&b, "Generated %s · id `%s`\n\n", rec.Timestamp.UTC().Format(time.RFC3339), rec.ID)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Narrative state | **%s** |\n", ns.NarrativeState)
	fmt.Fprintf(&b, "| Permission | **%s** |\n", rec.RiskManagement.Permission)
	fmt.Fprintf(&b, "| Factual score | %.2f |\n", rec.FactualScore)
	if rec.DeviationFromFacts != nil {
		fmt.Fprintf(&b, "| Deviation from facts | %.2f |\n", *rec.DeviationFromFacts)
	}
	fmt.Fprintf(&b, "| Conflict score | %.2f |\n", ns.ConflictScore)
	fmt.Fprintf(&b, "| Confidence | %.2f |\n", ns.Confidence)
	fmt.Fprintf(&b, "| Arbitrage | %s (score %.2f) |\n", yesNo(rec.Arbitrage.Valid), rec.Arbitrage.Score)
	b.WriteString("\n")

	b.WriteString("## Signals\n\n| Macro | Price action | Sentiment | Behavioral |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %+.2f | %+.2f | %+.2f | %+.2f |\n\n",
		ns.Signals.Macro, ns.Signals.PriceAction, ns.Signals.Sentiment, ns.Signals.Behavioral)

	b.WriteString("## Temporal asymmetry\n\n")
	fmt.Fprintf(&b, "- Desync risk: %.0f%%\n", ta.DesyncRisk*100)
	fmt.Fprintf(&b, "- Lead signal: %s\n- Lag signal: %s\n", ta.LeadSignal, ta.LagSignal)
	fmt.Fprintf(&b, "- Velocity mismatch: %s\n\n", yesNo(ta.VelocityMismatch))
	if ta.LogicRationale != "" {
		fmt.Fprintf(&b, "> %s\n\n", ta.LogicRationale)
	}

	dm := rec.Arbitrage.DivergenceMetrics
	b.WriteString("## Divergence\n\n| Pair | Divergence |\n|---|---|\n")
	fmt.Fprintf(&b, "| Fact vs media | %.2f |\n| Social vs positioning | %.2f |\n| Fact vs positioning | %.2f |\n| Media vs social | %.2f |\n\n",
		dm.FactVsMedia, dm.SocialVsPositioning, dm.FactVsPositioning, dm.MediaVsSocial)

	mg := rec.MomentumGate
	b.WriteString("## Momentum gate\n\n")
	fmt.Fprintf(&b, "- Actionable: %s\n- Alignment: %s\n- Regime: %s\n", yesNo(mg.Actionable), mg.Alignment, mg.Regime)
	if mg.TransitionStatus != "" {
		fmt.Fprintf(&b, "- Transition: %s\n", mg.TransitionStatus)
	}
	if mg.Fatigue != "" {
		fmt.Fprintf(&b, "- Fatigue: %s\n", mg.Fatigue)
	}
	if mg.InactionLock != nil {
		fmt.Fprintf(&b, "- Inaction lock: %s\n", yesNo(*mg.InactionLock))
	}
	if mg.StandDownReason != "" {
		fmt.Fprintf(&b, "- Stand down: %s\n", mg.StandDownReason)
	}
	b.WriteString("\n")

	rm := rec.RiskManagement
	b.WriteString("## Risk\n\n")
	fmt.Fprintf(&b, "- Budget: %s\n- Regime: %s\n- Tail risk: %s\n- Drawdown: %s\n", rm.Budget, rm.Regime, rm.TailRisk, rm.DrawdownState)
	if rm.Explanation != "" {
		fmt.Fprintf(&b, "\n%s\n", rm.Explanation)
	}
	b.WriteString("\n")

	b.WriteString("## Layers\n\n")
	rec.Layers.Each(func(name string, l *engine.LayerData) {
		fmt.Fprintf(&b, "### %s\n\n", strings.ToUpper(name[:1])+name[1:])
		fmt.Fprintf(&b, "%s · %s (%s) · confidence %.2f\n\n", l.Status, l.Velocity, l.UpdateFrequency, l.Confidence)
		if l.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", l.Summary)
		}
		for _, m := range l.KeyMetrics {
			fmt.Fprintf(&b, "- **%s**: %s\n", m.Label, m.Value)
		}
		if len(l.KeyMetrics) > 0 {
			b.WriteString("\n")
		}
	})

	if len(rec.Alerts) > 0 {
		b.WriteString("## Alerts\n\n")
		for _, a := range rec.Alerts {
			fmt.Fprintf(&b, "- **%s** (%s): %s", a.Type, a.Profile, a.Message)
			if len(a.EvidenceRefs) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(a.EvidenceRefs, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if sim := rec.StrategySimulation; sim != nil && sim.Enabled && sim.Zones != nil {
		b.WriteString("## Strategy simulation\n\n")
		targets := make([]string, len(sim.Zones.Targets))
		for i, t := range sim.Zones.Targets {
			targets[i] = fmt.Sprintf("%g", t)
		}
		fmt.Fprintf(&b, "- Entry: %g\n- Stop: %g\n- Targets: %s\n\n", sim.Zones.Entry, sim.Zones.Stop, strings.Join(targets, ", "))
		if sim.Rationale != "" {
			fmt.Fprintf(&b, "%s\n\n", sim.Rationale)
		}
	}

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}
	b.WriteString("## Raw record\n\n```json\n")
	b.Write(raw)
	b.WriteString("\n```\n")
	return b.String(), nil
}

// Index renders a markdown table of records, newest first.
func Index(records []engine.AnalysisRecord) string {
	var b strings.Builder
	b.WriteString("| Time | Asset | State | Permission | Desync | ID |\n|---|---|---|---|---|---|\n")
	for _, r := range records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %.0f%% | `%s` |\n",
			r.Timestamp.UTC().Format("2006-01-02 15:04"), r.Asset,
			r.NeuralSynthesis.NarrativeState, r.RiskManagement.Permission,
			r.NeuralSynthesis.TemporalAsymmetry.DesyncRisk*100, r.ID)
	}
	return b.String()
}

type pageData struct {
	Title   string
	Content template.HTML
}

var pageTmpl = template.Must(template.New("page").Parse(pageTemplate))

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// HTML renders rec as a standalone HTML page.
func HTML(rec *engine.AnalysisRecord) ([]byte, error) {
	md, err := Markdown(rec)
	if err != nil {
		return nil, err
	}
	var body bytes.Buffer
	if err := newMarkdown().Convert([]byte(md), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	var out bytes.Buffer
	err = pageTmpl.Execute(&out, pageData{
		Title:   rec.Asset + " narrative analysis",
		Content: template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return out.Bytes(), nil
}

// Render produces rec in the given format.
func Render(rec *engine.AnalysisRecord, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown, "":
		md, err := Markdown(rec)
		return []byte(md), err
	case FormatHTML:
		return HTML(rec)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Write renders rec into dir as <asset>-<id>.<format> and returns the path.
func Write(dir string, rec *engine.AnalysisRecord, format Format) (string, error) {
	if format == "" {
		format = FormatMarkdown
	}
	data, err := Render(rec, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.%s", safeName(rec.Asset), rec.ID, format)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "asset"
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
