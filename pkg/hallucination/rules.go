package hallucination

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

var hedgeMarkers = []string{
	"might", "may", "possibly", "perhaps", "could be", "i think", "i believe",
	"it seems", "likely", "probably", "appears to", "not certain", "unclear",
}

func isHedged(text string, span model.Span) bool {
	lower := strings.ToLower(text)
	start := span.Start - 40
	if start < 0 {
		start = 0
	}
	window := lower[start:span.End]
	for _, m := range hedgeMarkers {
		if strings.Contains(window, m) {
			return true
		}
	}
	return false
}

func claimText(resp model.Response, c model.Claim) string {
	if c.Span.Start < 0 || c.Span.End > len(resp.Text) || c.Span.Start > c.Span.End {
		return string(c.Normalized)
	}
	return resp.Text[c.Span.Start:c.Span.End]
}

// factualErrorRule (Level 1) flags Citation and Entity claims that directly
// contradict a fact: either a configured FactSource actively contradicts
// the claim, or the claim contradicts a fact supplied in the request's own
// context with no FactSource needed at all. The strongest, most direct
// signal of a hallucination.
type factualErrorRule struct{}

func (factualErrorRule) ID() string                   { return "factual_error" }
func (factualErrorRule) Kind() model.HallucinationKind { return model.KindFactualError }
func (r factualErrorRule) Detect(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim, sources []FactSource) ([]model.HallucinationEvidence, error) {
	var out []model.HallucinationEvidence
	for _, c := range claims {
		if c.Kind != model.ClaimCitation && c.Kind != model.ClaimEntity {
			continue
		}

		contradictedBySource := false
		for _, src := range sources {
			found, supported, err := src.Lookup(ctx, c, resp)
			if err != nil || !found {
				continue
			}
			if !supported {
				out = append(out, model.HallucinationEvidence{
					Level:      model.LevelFactualError,
					Kind:       model.KindFactualError,
					ClaimRef:   c.ID,
					Confidence: 0.9,
					DetectorID: r.ID(),
					Note:       "contradicted by a configured fact source",
				})
				contradictedBySource = true
			}
			break
		}
		if contradictedBySource {
			continue
		}

		if contradictsRequestContext(resp, c, req.Context) {
			out = append(out, model.HallucinationEvidence{
				Level:      model.LevelFactualError,
				Kind:       model.KindFactualError,
				ClaimRef:   c.ID,
				Confidence: 0.9,
				DetectorID: r.ID(),
				Note:       "contradicts a fact provided in the request context",
			})
		}
	}
	return out, nil
}

// contradictsRequestContext reports whether claim directly contradicts a
// fact supplied in the request's own context map, independent of any
// external FactSource. A context entry is considered the fact a claim is
// answering when every subject word derived from its key (snake_case or
// camelCase, with "of"/"the"/"a"/"an" dropped) appears somewhere in the
// response text; the claim then contradicts it if the claim's own text
// neither matches nor contains that entry's value.
func contradictsRequestContext(resp model.Response, c model.Claim, reqContext map[string][]byte) bool {
	text := strings.ToLower(resp.Text)
	claim := strings.ToLower(strings.TrimSpace(claimText(resp, c)))
	if claim == "" {
		return false
	}

	for key, rawVal := range reqContext {
		val := strings.ToLower(strings.TrimSpace(string(rawVal)))
		if val == "" {
			continue
		}
		subject := contextSubjectWords(key)
		if len(subject) == 0 {
			continue
		}

		matchesSubject := true
		for _, word := range subject {
			if !strings.Contains(text, word) {
				matchesSubject = false
				break
			}
		}
		if !matchesSubject {
			continue
		}

		if claim == val || strings.Contains(claim, val) || strings.Contains(val, claim) {
			return false
		}
		return true
	}
	return false
}

// contextSubjectWords splits a context key like "capital_of_France" into
// lowercase subject words ("capital", "france"), the words a response
// answering that fact would be expected to mention.
func contextSubjectWords(key string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, strings.ToLower(b.String()))
			b.Reset()
		}
	}
	for _, r := range key {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case r >= 'A' && r <= 'Z':
			flush()
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	flush()

	out := words[:0]
	for _, w := range words {
		switch w {
		case "of", "the", "a", "an":
			continue
		}
		out = append(out, w)
	}
	return out
}

// plausibleFabricationRule (Level 2) flags Statistic claims whose magnitude
// falls more than three orders of magnitude from every numeric value
// already present in the request context (or that has no context value to
// compare against) — a number that reads as plausible but has no grounding
// in the supplied material. The three-order window is fixed here;
// ruleset.Config.MagnitudeWindowOrders is not read by this rule.
type plausibleFabricationRule struct{}

func (plausibleFabricationRule) ID() string                   { return "plausible_fabrication" }
func (plausibleFabricationRule) Kind() model.HallucinationKind { return model.KindPlausibleFabrication }
func (r plausibleFabricationRule) Detect(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim, sources []FactSource) ([]model.HallucinationEvidence, error) {
	contextMagnitudes := extractMagnitudes(req.Context)

	var out []model.HallucinationEvidence
	for _, c := range claims {
		if c.Kind != model.ClaimStatistic {
			continue
		}
		value, ok := parseMagnitude(claimText(resp, c))
		if !ok || value == 0 {
			continue
		}
		if len(contextMagnitudes) > 0 && groundedWithin(value, contextMagnitudes, 3) {
			continue
		}
		out = append(out, model.HallucinationEvidence{
			Level:      model.LevelPlausibleFabrication,
			Kind:       model.KindPlausibleFabrication,
			ClaimRef:   c.ID,
			Confidence: 0.55,
			DetectorID: r.ID(),
			Note:       "statistic is unverified: no request context corroborates its magnitude",
		})
	}
	return out, nil
}

// partialTruthRule (Level 3) flags Citation claims a FactSource finds but
// cannot fully corroborate (found, but the source itself cannot take a
// support/contradict position) — a claim that mixes true and false
// elements rather than being cleanly one or the other.
type partialTruthRule struct{}

func (partialTruthRule) ID() string                   { return "partial_truth" }
func (partialTruthRule) Kind() model.HallucinationKind { return model.KindPartialTruth }
func (r partialTruthRule) Detect(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim, sources []FactSource) ([]model.HallucinationEvidence, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	var out []model.HallucinationEvidence
	for _, c := range claims {
		if c.Kind != model.ClaimCitation {
			continue
		}
		anyFound, anySupported, anyContradicted := false, false, false
		for _, src := range sources {
			found, supported, err := src.Lookup(ctx, c, resp)
			if err != nil || !found {
				continue
			}
			anyFound = true
			if supported {
				anySupported = true
			} else {
				anyContradicted = true
			}
		}
		if anyFound && anySupported && anyContradicted {
			out = append(out, model.HallucinationEvidence{
				Level:      model.LevelPartialTruth,
				Kind:       model.KindPartialTruth,
				ClaimRef:   c.ID,
				Confidence: 0.5,
				DetectorID: r.ID(),
				Note:       "fact sources disagree on this claim",
			})
		}
	}
	return out, nil
}

// contextualErrorRule (Level 4) flags Temporal claims inconsistent with
// the request's own IssuedAt: a claim whose year is later than the year
// the request was issued, a straightforward internal contradiction that
// needs no external source. Only the year is compared, and neither the
// claim's tense nor the prompt is inspected, so forecasts are flagged too.
type contextualErrorRule struct{}

func (contextualErrorRule) ID() string                   { return "contextual_error" }
func (contextualErrorRule) Kind() model.HallucinationKind { return model.KindContextualError }
func (r contextualErrorRule) Detect(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim, sources []FactSource) ([]model.HallucinationEvidence, error) {
	if req.IssuedAt.IsZero() {
		return nil, nil
	}

	var out []model.HallucinationEvidence
	for _, c := range claims {
		if c.Kind != model.ClaimTemporal {
			continue
		}
		year, ok := parseYear(claimText(resp, c))
		if !ok {
			continue
		}
		if year > req.IssuedAt.Year() {
			out = append(out, model.HallucinationEvidence{
				Level:      model.LevelContextualError,
				Kind:       model.KindContextualError,
				ClaimRef:   c.ID,
				Confidence: 0.6,
				DetectorID: r.ID(),
				Note:       "temporal claim is inconsistent with the request's issuance time",
			})
		}
	}
	return out, nil
}

// confidentFabricationRule (Level 5) flags Entity or Statistic claims
// stated with no hedging language at all and for which no FactSource
// could find any record — the most dangerous pattern, a fluent assertion
// with nothing behind it.
type confidentFabricationRule struct{}

func (confidentFabricationRule) ID() string                   { return "confident_fabrication" }
func (confidentFabricationRule) Kind() model.HallucinationKind { return model.KindConfidentFabrication }
func (r confidentFabricationRule) Detect(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim, sources []FactSource) ([]model.HallucinationEvidence, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	var out []model.HallucinationEvidence
	for _, c := range claims {
		if c.Kind != model.ClaimEntity && c.Kind != model.ClaimStatistic {
			continue
		}
		if isHedged(resp.Text, c.Span) {
			continue
		}

		noneFound := true
		for _, src := range sources {
			found, _, err := src.Lookup(ctx, c, resp)
			if err == nil && found {
				noneFound = false
				break
			}
		}
		if noneFound {
			out = append(out, model.HallucinationEvidence{
				Level:      model.LevelConfidentFabrication,
				Kind:       model.KindConfidentFabrication,
				ClaimRef:   c.ID,
				Confidence: 0.7,
				DetectorID: r.ID(),
				Note:       "unhedged claim with no corroborating source",
			})
		}
	}
	return out, nil
}

// --- shared numeric helpers ---

func extractMagnitudes(context map[string][]byte) []float64 {
	var out []float64
	for _, v := range context {
		for _, tok := range strings.Fields(string(v)) {
			tok = strings.Trim(tok, ",.;:()%")
			if f, ok := parseMagnitude(tok); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

func parseMagnitude(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "million"):
		multiplier = 1e6
		s = strings.TrimSpace(strings.TrimSuffix(s, "million"))
	case strings.HasSuffix(s, "billion"):
		multiplier = 1e9
		s = strings.TrimSpace(strings.TrimSuffix(s, "billion"))
	case strings.HasSuffix(s, "thousand"):
		multiplier = 1e3
		s = strings.TrimSpace(strings.TrimSuffix(s, "thousand"))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * multiplier, true
}

// groundedWithin reports whether value is within windowOrders orders of
// magnitude (base 10) of at least one value in candidates.
func groundedWithin(value float64, candidates []float64, windowOrders float64) bool {
	if value == 0 {
		return true
	}
	logV := math.Log10(math.Abs(value))
	for _, c := range candidates {
		if c == 0 {
			continue
		}
		if math.Abs(logV-math.Log10(math.Abs(c))) <= windowOrders {
			return true
		}
	}
	return false
}

func parseYear(s string) (int, bool) {
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return !('0' <= r && r <= '9') }) {
		if len(tok) == 4 {
			if y, err := strconv.Atoi(tok); err == nil && y > 1000 && y < 3000 {
				return y, true
			}
		}
	}
	return 0, false
}
