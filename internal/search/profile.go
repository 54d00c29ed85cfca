package search

import (
	"path"
	"sort"
	"strings"
)

// PathAction is what a profile path rule does to a candidate once matched.
type PathAction string

const (
	PathReject  PathAction = "reject"  // drop the candidate outright
	PathNoise   PathAction = "noise"   // heavy penalty, candidate survives but sinks
	PathBoost   PathAction = "boost"   // multiply score up
	PathPenalty PathAction = "penalty" // multiply score down
)

// PathRule matches candidates by file path glob and applies an action.
type PathRule struct {
	Glob   string
	Action PathAction
	Factor float64 // multiplier for boost/penalty; ignored for reject/noise
}

func (r PathRule) matches(filePath string) bool {
	ok, err := path.Match(r.Glob, filePath)
	if err == nil && ok {
		return true
	}
	return strings.Contains(filePath, strings.Trim(r.Glob, "*"))
}

// MustHitRule boosts a candidate when its path matches a pattern AND its
// content contains every required token.
type MustHitRule struct {
	PathGlob       string
	RequiredTokens []string
	Multiplier     float64
}

func (r MustHitRule) applies(filePath, content string) bool {
	ok, err := path.Match(r.PathGlob, filePath)
	if err != nil || !ok {
		return false
	}
	lower := strings.ToLower(content)
	for _, tok := range r.RequiredTokens {
		if !strings.Contains(lower, strings.ToLower(tok)) {
			return false
		}
	}
	return true
}

// RerankWeights tunes the BM25-style window scorer's path/symbol/yaml-path
// boosts.
type RerankWeights struct {
	PathBoost     float64
	SymbolBoost   float64
	YAMLPathBoost float64
}

// DefaultRerankWeights mirrors the conservative boost factors a code
// search profile has historically used: path/symbol matches are strong
// signals, YAML path hits are common in config-heavy repos.
func DefaultRerankWeights() RerankWeights {
	return RerankWeights{PathBoost: 1.3, SymbolBoost: 1.5, YAMLPathBoost: 1.2}
}

// Profile is a config-driven policy: which models answer which kind of
// query, and which must-hit/path rules apply to every result.
type Profile struct {
	Name string

	// ModelsByKind is the semantic roster per query kind. A model id
	// missing from the active manifest is silently skipped by the
	// engine, never an error.
	ModelsByKind map[QueryKind][]string

	MustHit []MustHitRule
	Paths   []PathRule
	Weights RerankWeights
}

// ModelsFor returns the roster for kind, falling back to the union of
// every kind's roster if kind has no explicit entry.
func (p Profile) ModelsFor(kind QueryKind) []string {
	if models, ok := p.ModelsByKind[kind]; ok {
		return models
	}
	return p.AllModels()
}

// AllModels returns the de-duplicated union of every kind's roster.
func (p Profile) AllModels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, models := range p.ModelsByKind {
		for _, m := range models {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ApplyMustHit applies every must-hit rule that matches r's chunk,
// multiplying the score for each match (step 3).
func (p Profile) ApplyMustHit(r *Result) {
	if r.Chunk == nil {
		return
	}
	for _, rule := range p.MustHit {
		if rule.applies(r.Chunk.FilePath, r.Chunk.Content) {
			mult := rule.Multiplier
			if mult <= 0 {
				mult = 1
			}
			r.Score *= mult
		}
	}
}

// ApplyPathRules applies every path rule matching r's chunk (step 4).
// Returns false if the candidate should be dropped (PathReject).
func (p Profile) ApplyPathRules(r *Result) bool {
	if r.Chunk == nil {
		return true
	}
	for _, rule := range p.Paths {
		if !rule.matches(r.Chunk.FilePath) {
			continue
		}
		switch rule.Action {
		case PathReject:
			return false
		case PathNoise:
			r.Score *= 0.1
		case PathBoost:
			factor := rule.Factor
			if factor <= 0 {
				factor = 1
			}
			r.Score *= factor
		case PathPenalty:
			factor := rule.Factor
			if factor <= 0 || factor > 1 {
				factor = 1
			}
			r.Score *= factor
		}
	}
	return true
}

// DefaultProfile is the baseline code-search profile: treat test files
// as noise, reject vendor/ and node_modules/ trees, and boost internal/
// implementation code over cmd/ wrappers. It has no must-hit rules.
func DefaultProfile(modelIDs []string) Profile {
	byKind := map[QueryKind][]string{
		KindIdentifier: modelIDs,
		KindPath:       modelIDs,
		KindConceptual: modelIDs,
	}
	return Profile{
		Name:         "default",
		ModelsByKind: byKind,
		Paths: []PathRule{
			{Glob: "*_test.go", Action: PathNoise},
			{Glob: "*.test.*", Action: PathNoise},
			{Glob: "*vendor/*", Action: PathReject},
			{Glob: "*node_modules/*", Action: PathReject},
			{Glob: "internal/*", Action: PathBoost, Factor: 1.3},
			{Glob: "cmd/*", Action: PathPenalty, Factor: 0.7},
		},
		Weights: DefaultRerankWeights(),
	}
}
