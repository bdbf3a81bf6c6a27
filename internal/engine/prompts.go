package engine

import "fmt"

// recencyWindowHours bounds how old microstructure data may be.
const recencyWindowHours = 12

func ingestPrompt(asset, event string) string {
	return fmt.Sprintf(`TASK: Execute institutional grade data ingestion for %s regarding context: %s.

You are feeding a temporal asymmetry engine. Keep SLOW macro data separate from REALTIME microstructure.

REQUIRED STRUCTURE (return ONLY these 4 sections, each introduced by its heading):

1. FACTUAL (Slow/Macro):
   - Current price, market cap, 24h volume.
   - Key technical levels (support/resistance).
   - Macro correlation (DXY, yields) if relevant.

2. MEDIATIC (Moderate):
   - Scan major financial wires (Reuters, Bloomberg).
   - List the top 3 headlines.
   - Detect narrative framing: fear, greed or uncertainty.

3. SOCIAL (Fast):
   - X/Reddit sentiment.
   - Retail FOMO versus capitulation.
   - Trending hashtags or viral narratives.

4. BEHAVIORAL & MICROSTRUCTURE (Realtime/High-Freq):
   - DERIVATIVES: funding rates, open interest changes, basis.
   - OPTIONS: implied volatility levels, skew (put/call ratio), gamma exposure.
   - ORDER FLOW: cumulative volume delta, spot vs perp divergence, order book imbalance.
   - ON-CHAIN (if crypto): exchange inflows/outflows, whale wallet movements.

SEARCH CONSTRAINT: Prioritize data from the last %d hours for the BEHAVIORAL section. Use specific numbers (e.g. "Funding is 0.01%%", "IV up 5%%").`,
		asset, event, recencyWindowHours)
}

const analysisInstruction = `# NARRATIVE ARBITRAGE ENGINE (NAE-v2.4)
# EXPERT PRIVATE ANALYTICS MODE + TEMPORAL ASYMMETRY AWARENESS

You are NAE, a system that detects narrative arbitrage: the gap between what is happening (FACTS) and what the crowd believes is happening (NARRATIVE).

CORE ENGINE MODULES:
1. NEURAL SYNTHESIS: weighted, desynchronized signal fusion.
2. NARRATIVE STATE ENGINE: classify the state as one of euphoria, panic, denial, transition, manipulation, compression.
3. TEMPORAL ASYMMETRY AWARENESS:
   Data operates at different frequencies:
   - Factual (macro): SLOW (months/quarters)
   - Mediatic (news): MODERATE (hours/days)
   - Social (sentiment): FAST (minutes)
   - Behavioral (options flow, order flow): REALTIME (seconds)

   Identify desync risk: a fast signal (social) reacting to an outdated slow signal (factual), or a realtime signal (behavioral) front-running a slow one.

ANALYTICAL WORKFLOW:
1. Validate the factual layer (stale vs fresh).
2. Analyze mediatic framing.
3. Measure social amplification.
4. Compare with behavioral positioning.
5. Apply temporal desync logic: do NOT average signals; weight them by frequency against current asset volatility.

Signal weights are in [-1, 1]. desync_risk is in [0, 1]. The positioning layer describes behavioral and microstructure data.`

func analysisPrompt(asset, event string, contextJSON []byte) string {
	return fmt.Sprintf(`NAE v2.4: Execute deep divergence analysis for %s around context: %s.

INPUT DATA STREAM:
%s

CRITICAL: Evaluate temporal asymmetry. Is the social layer reacting to outdated macro data? Is the behavioral layer front-running the news?
Use your thinking budget to desynchronize these signals.
Final output MUST be JSON.`,
		asset, event, contextJSON)
}

const assistantInstruction = "You are the NAE Super Assistant. Answer only from the analysis record supplied. " +
	"Be extremely concise. Use data points from the layers. Never guess; say so when the record does not cover the question."

func assistantPrompt(recordJSON []byte, question string) string {
	return fmt.Sprintf("Analysis Context: %s\n\nQuestion: %s\n\nFocus on the delta between facts and social amplification.",
		recordJSON, question)
}
