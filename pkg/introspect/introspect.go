// Copyright 2025 TrustWrapper Authors
//
// Package introspect extracts self-contained Claims from a model Response
// (C2): citations, statistics, temporal statements, and named entities. It
// is a pure, deterministic pass over the response text — no network calls,
// no external fact lookups — producing the claim list every downstream
// detector rule and validator works from.
package introspect

import (
	"regexp"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

var (
	citationRe  = regexp.MustCompile(`\[\d+\]|\(([A-Z][a-zA-Z'-]+(?:\s(?:and|&)\s[A-Z][a-zA-Z'-]+)?,?\s\d{4}[a-z]?)\)|https?://\S+`)
	statisticRe = regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\s?%|\b\d[\d,]*(?:\.\d+)?\s?(?:percent|million|billion|thousand|x|times)\b`)
	temporalRe  = regexp.MustCompile(`\b(?:19|20)\d{2}\b|\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+(?:19|20)\d{2}\b|\b(?:yesterday|today|tomorrow|last\s+(?:year|month|week)|next\s+(?:year|month|week))\b`)
	entityRe    = regexp.MustCompile(`\b[A-Z][a-zA-Z'-]*(?:\s[A-Z][a-zA-Z'-]*)*\b`)
)

// candidate is a raw regex match before overlap resolution.
type candidate struct {
	kind model.ClaimKind
	span model.Span
}

// Extract returns the Claims found in resp.Text, sorted by span start.
// Overlapping matches are resolved by preferring the longer span, and among
// equal-length spans the one that starts earlier (leftmost-longest), and
// preferring the more specific kind (Citation > Statistic > Temporal >
// Entity) when spans are identical. An empty response yields an empty,
// non-nil claim slice rather than an error.
func Extract(resp model.Response) []model.Claim {
	if resp.Text == "" {
		return []model.Claim{}
	}

	normalized := norm.NFC.String(resp.Text)

	var candidates []candidate
	candidates = append(candidates, findAll(normalized, model.ClaimCitation, citationRe)...)
	candidates = append(candidates, findAll(normalized, model.ClaimStatistic, statisticRe)...)
	candidates = append(candidates, findAll(normalized, model.ClaimTemporal, temporalRe)...)
	candidates = append(candidates, findAll(normalized, model.ClaimEntity, entityRe)...)

	resolved := resolveOverlaps(candidates)

	claims := make([]model.Claim, 0, len(resolved))
	for i, c := range resolved {
		claims = append(claims, model.Claim{
			ID:         model.ClaimID(i),
			Kind:       c.kind,
			Span:       c.span,
			Normalized: []byte(normalized[c.span.Start:c.span.End]),
		})
	}
	return claims
}

func findAll(text string, kind model.ClaimKind, re *regexp.Regexp) []candidate {
	locs := re.FindAllStringIndex(text, -1)
	out := make([]candidate, 0, len(locs))
	for _, loc := range locs {
		out = append(out, candidate{kind: kind, span: model.Span{Start: loc[0], End: loc[1]}})
	}
	return out
}

// kindPriority orders kinds from most to least specific for tie-breaking
// identical spans (e.g. a capitalized citation author name also matching
// the entity pattern).
func kindPriority(k model.ClaimKind) int {
	switch k {
	case model.ClaimCitation:
		return 0
	case model.ClaimStatistic:
		return 1
	case model.ClaimTemporal:
		return 2
	case model.ClaimEntity:
		return 3
	default:
		return 4
	}
}

// resolveOverlaps greedily selects non-overlapping candidates: sort by
// (length desc, start asc, priority asc), then sweep accepting a candidate
// only if it does not overlap an already-accepted span.
func resolveOverlaps(candidates []candidate) []candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		li := candidates[i].span.End - candidates[i].span.Start
		lj := candidates[j].span.End - candidates[j].span.Start
		if li != lj {
			return li > lj
		}
		if candidates[i].span.Start != candidates[j].span.Start {
			return candidates[i].span.Start < candidates[j].span.Start
		}
		return kindPriority(candidates[i].kind) < kindPriority(candidates[j].kind)
	})

	var accepted []candidate
	for _, c := range candidates {
		overlaps := false
		for _, a := range accepted {
			if c.span.Start < a.span.End && a.span.Start < c.span.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].span.Start < accepted[j].span.Start })
	return accepted
}

