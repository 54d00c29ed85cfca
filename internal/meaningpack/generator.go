package meaningpack

import (
	"context"
	"fmt"
	"sort"

	"github.com/amanmcp-core/amanmcp-core/internal/scanner"
)

const (
	DefaultMaxChars  = 2_000
	MinMaxChars      = 800
	MaxMaxChars      = 500_000
	DefaultMapDepth  = 2
	DefaultMapLimit  = 12
	DefaultMaxBounds = 12
)

// ResponseMode selects how much of a Result is populated.
type ResponseMode string

const (
	ResponseFacts ResponseMode = "facts"
	ResponseFull  ResponseMode = "full"
)

// Request parameterizes a whole-project meaning pack.
type Request struct {
	Query        string
	ResponseMode ResponseMode
	MaxChars     int
	MapDepth     int
	MapLimit     int
}

// Generator builds meaning packs for a single project root.
type Generator struct {
	Root        string // absolute path
	RootDisplay string // project-facing label, e.g. a relative alias
	Scanner     *scanner.Scanner
}

// NewGenerator returns a Generator that walks root with scanner,
// honoring .gitignore and scanner's built-in secret-path exclusions
// (internal/scanner.sensitiveFilePatterns already covers the same
// categories collect_evidence/classify_boundaries must never surface).
func NewGenerator(root, rootDisplay string, sc *scanner.Scanner) *Generator {
	return &Generator{Root: root, RootDisplay: rootDisplay, Scanner: sc}
}

// projectComponents is the shared classification/evidence pipeline both
// Generate and Focus build their pack from.
type projectComponents struct {
	files           []string
	mapRows         []MapRow
	entrypoints     []string
	contracts       []string
	boundaries      []BoundaryCandidate
	flows           []FlowEdge
	channelMentions map[string]channelMentionHit
	brokers         []BrokerCandidate
	evidence        []EvidenceItem
	evFileIndex     map[string]string
}

func (g *Generator) scanFiles(ctx context.Context) ([]string, error) {
	results, err := g.Scanner.Scan(ctx, &scanner.ScanOptions{RootDir: g.Root, RespectGitignore: true})
	if err != nil {
		return nil, fmt.Errorf("meaningpack: scan %s: %w", g.Root, err)
	}
	var files []string
	for r := range results {
		if r.Error != nil || r.File == nil {
			continue
		}
		if isPotentialSecretPath(r.File.Path) {
			continue
		}
		files = append(files, r.File.Path)
	}
	sort.Strings(files)
	return files, nil
}

func (g *Generator) classify(ctx context.Context, mapDepth, mapLimit, maxBoundaries int) (*projectComponents, error) {
	files, err := g.scanFiles(ctx)
	if err != nil {
		return nil, err
	}

	dirFiles := make(map[string]int)
	for _, rel := range files {
		dirFiles[directoryKey(rel, mapDepth)]++
	}
	mapRows := make([]MapRow, 0, len(dirFiles))
	for path, count := range dirFiles {
		mapRows = append(mapRows, MapRow{Path: path, Files: count})
	}
	sort.SliceStable(mapRows, func(i, j int) bool {
		if mapRows[i].Files != mapRows[j].Files {
			return mapRows[i].Files > mapRows[j].Files
		}
		return mapRows[i].Path < mapRows[j].Path
	})
	if len(mapRows) > mapLimit {
		mapRows = mapRows[:mapLimit]
	}

	entrypoints, contracts := classifyFiles(files)
	boundaries := classifyBoundaries(files, entrypoints, contracts)
	if len(boundaries) > maxBoundaries {
		boundaries = boundaries[:maxBoundaries]
	}

	flows := extractAsyncAPIFlows(g.Root, contracts)

	channels := make([]string, 0, len(flows))
	for _, f := range flows {
		channels = append(channels, f.Channel)
	}
	channelMentions := detectChannelMentions(g.Root, files, channels)

	brokers := detectBrokers(g.Root, files, flows)

	evidence := collectEvidence(g.Root, entrypoints, contracts, boundaries, flows, brokers)
	evFileIndex := buildEvFileIndex(evidence)

	return &projectComponents{
		files:           files,
		mapRows:         mapRows,
		entrypoints:     entrypoints,
		contracts:       contracts,
		boundaries:      boundaries,
		flows:           flows,
		channelMentions: channelMentions,
		brokers:         brokers,
		evidence:        evidence,
		evFileIndex:     evFileIndex,
	}, nil
}

// flowActor resolves a flow edge's emitting/consuming entrypoint the same
// way the pack text does: a channel-mention hit outranks a path-proximity
// guess from the contract file alone.
func flowActor(comp *projectComponents, flow FlowEdge, entrypoints []string) (actor string, confidence float32, ok bool) {
	if hit, found := comp.channelMentions[flow.Channel]; found {
		if a, ok := inferActorByPath(hit, entrypoints); ok {
			return a, 0.95, true
		}
	}
	if a, ok := inferFlowActor(flow.ContractFile, entrypoints); ok {
		return a, 0.85, true
	}
	return "", 1.0, false
}

// Generate builds the whole-project meaning pack: map, boundaries,
// entrypoints, contracts, flows, brokers, evidence, and next best actions.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	maxChars := clampInt(orDefault(req.MaxChars, DefaultMaxChars), MinMaxChars, MaxMaxChars)
	mapDepth := clampInt(orDefault(req.MapDepth, DefaultMapDepth), 1, 4)
	mapLimit := clampInt(orDefault(req.MapLimit, DefaultMapLimit), 1, 200)
	mode := req.ResponseMode
	if mode == "" {
		mode = ResponseFacts
	}

	comp, err := g.classify(ctx, mapDepth, mapLimit, DefaultMaxBounds)
	if err != nil {
		return nil, err
	}

	rootFP := rootFingerprint(g.RootDisplay)

	cp := NewCognitivePack()
	cp.PushLine("CPV1")
	cp.PushLine(fmt.Sprintf("ROOT_FP %s", rootFP))
	cp.PushLine(fmt.Sprintf("QUERY %s", jsonString(req.Query)))

	dictPaths := newOrderedSet()
	for _, row := range comp.mapRows {
		dictPaths.add(row.Path)
	}
	for _, f := range comp.entrypoints {
		dictPaths.add(f)
	}
	for _, f := range comp.contracts {
		dictPaths.add(f)
	}
	for _, f := range comp.flows {
		dictPaths.add(f.Channel)
	}
	for _, b := range comp.brokers {
		dictPaths.add(b.File)
	}
	for _, b := range comp.boundaries {
		dictPaths.add(b.File)
	}
	for _, ev := range comp.evidence {
		dictPaths.add(ev.File)
	}
	for _, flow := range comp.flows {
		if actor, _, ok := flowActor(comp, flow, comp.entrypoints); ok {
			dictPaths.add(actor)
		}
	}
	for _, path := range dictPaths.sorted() {
		cp.DictIntern(path)
	}

	cp.PushLine("S MAP")
	for _, row := range comp.mapRows {
		cp.PushLine(fmt.Sprintf("MAP path=%s files=%d", cp.DictID(row.Path), row.Files))
	}

	if len(comp.boundaries) > 0 {
		cp.PushLine("S BOUNDARIES")
		for _, b := range comp.boundaries {
			ev, ok := comp.evFileIndex[b.File]
			evField := ""
			if ok {
				evField = " ev=" + ev
			}
			cp.PushLine(fmt.Sprintf("BOUNDARY kind=%s file=%s conf=%.2f%s", b.Kind, cp.DictID(b.File), clamp01(b.Confidence), evField))
		}
	}

	if len(comp.entrypoints) > 0 {
		cp.PushLine("S ENTRYPOINTS")
		for _, f := range comp.entrypoints {
			evField := ""
			if ev, ok := comp.evFileIndex[f]; ok {
				evField = " ev=" + ev
			}
			cp.PushLine(fmt.Sprintf("ENTRY file=%s%s", cp.DictID(f), evField))
		}
	}

	if len(comp.contracts) > 0 {
		cp.PushLine("S CONTRACTS")
		for _, f := range comp.contracts {
			evField := ""
			if ev, ok := comp.evFileIndex[f]; ok {
				evField = " ev=" + ev
			}
			cp.PushLine(fmt.Sprintf("CONTRACT kind=%s file=%s%s", contractKind(f), cp.DictID(f), evField))
		}
	}

	if len(comp.flows) > 0 {
		var flowLines []string
		for _, flow := range comp.flows {
			actor, actorConf, hasActor := flowActor(comp, flow, comp.entrypoints)
			conf := float32(1.0)
			actorField := ""
			if hasActor {
				conf = actorConf
				actorField = " actor=" + cp.DictID(actor)
			}
			protoField := ""
			if flow.Protocol != "" {
				protoField = " proto=" + flow.Protocol
			}
			evField := ""
			if ev, ok := comp.evFileIndex[flow.ContractFile]; ok {
				evField = " ev=" + ev
			} else if hasActor {
				if ev, ok := comp.evFileIndex[actor]; ok {
					evField = " ev=" + ev
				}
			}
			if evField == "" {
				continue
			}
			flowLines = append(flowLines, fmt.Sprintf("FLOW contract=%s chan=%s dir=%s%s%s conf=%.2f%s",
				cp.DictID(flow.ContractFile), cp.DictID(flow.Channel), flow.Direction, protoField, actorField, clamp01(conf), evField))
		}
		if len(flowLines) > 0 {
			cp.PushLine("S FLOWS")
			for _, l := range flowLines {
				cp.PushLine(l)
			}
		}
	}

	if len(comp.brokers) > 0 {
		var brokerLines []string
		for _, b := range comp.brokers {
			ev, ok := comp.evFileIndex[b.File]
			if !ok {
				continue
			}
			brokerLines = append(brokerLines, fmt.Sprintf("BROKER proto=%s file=%s conf=%.2f ev=%s", b.Proto, cp.DictID(b.File), clamp01(b.Confidence), ev))
		}
		if len(brokerLines) > 0 {
			cp.PushLine("S BROKERS")
			for _, l := range brokerLines {
				cp.PushLine(l)
			}
		}
	}

	if len(comp.evidence) > 0 {
		cp.PushLine("S EVIDENCE")
		for idx, ev := range comp.evidence {
			hashField := ""
			if ev.SourceHash != "" {
				hashField = " sha256=" + ev.SourceHash
			}
			cp.PushLine(fmt.Sprintf("EV %s kind=%s file=%s L%d-L%d%s", evID(idx), evidenceKindLabel(ev), cp.DictID(ev.File), ev.StartLine, ev.EndLine, hashField))
		}
	}

	nba := "NBA map"
	if len(comp.evidence) > 0 {
		first := comp.evidence[0]
		evField := ""
		if ev, ok := comp.evFileIndex[first.File]; ok {
			evField = " ev=" + ev
		}
		nba = fmt.Sprintf("NBA evidence_fetch%s file=%s L%d-L%d", evField, cp.DictID(first.File), first.StartLine, first.EndLine)
	}
	cp.PushLine(nba)

	var nextActions []NextAction
	if mode == ResponseFull && len(comp.evidence) > 0 {
		nextActions = buildNextActions(g.RootDisplay, comp.evidence[0])
	}

	result := &Result{
		Version:     1,
		Query:       req.Query,
		Format:      "cpv1",
		Pack:        cp.Render(),
		Budget:      Budget{MaxChars: maxChars},
		NextActions: nextActions,
	}
	trimToBudget(result)
	return result, nil
}

func evidenceKindLabel(ev EvidenceItem) string {
	switch ev.Kind {
	case EvidenceEntrypoint:
		return "entrypoint"
	case EvidenceContract:
		return "contract"
	case EvidenceBoundary:
		return "boundary." + string(ev.BoundaryKind)
	case EvidenceAnchor:
		return "anchor"
	default:
		return string(ev.Kind)
	}
}

func buildNextActions(rootDisplay string, firstEv EvidenceItem) []NextAction {
	var prefix string
	switch firstEv.Kind {
	case EvidenceEntrypoint:
		prefix = "Entrypoint"
	case EvidenceContract:
		prefix = "Contract"
	case EvidenceAnchor:
		prefix = "Anchor"
	case EvidenceBoundary:
		switch firstEv.BoundaryKind {
		case BoundaryCLI:
			prefix = "CLI"
		case BoundaryHTTP:
			prefix = "HTTP"
		case BoundaryEnv:
			prefix = "Env"
		case BoundaryConfig:
			prefix = "Config"
		case BoundaryDB:
			prefix = "DB"
		case BoundaryEvent:
			prefix = "Event"
		default:
			prefix = "Boundary"
		}
	}
	return []NextAction{{
		Tool:   "evidence_fetch",
		Reason: fmt.Sprintf("%s evidence: fetch exact source lines (verbatim).", prefix),
		Args: map[string]string{
			"path":       rootDisplay,
			"file":       firstEv.File,
			"start_line": fmt.Sprintf("%d", firstEv.StartLine),
			"end_line":   fmt.Sprintf("%d", firstEv.EndLine),
			"max_chars":  "2000",
		},
	}}
}

// trimToBudget repeatedly drops lines from the rendered pack (see
// shrinkPack) until it fits MaxChars or can't be shrunk further.
func trimToBudget(result *Result) {
	if len(result.Pack) <= result.Budget.MaxChars {
		result.Budget.UsedChars = len(result.Pack)
		return
	}
	result.Budget.Truncated = true
	result.Budget.Truncation = "max_chars"
	for len(result.Pack) > result.Budget.MaxChars {
		shrunk, ok := shrinkPack(result.Pack)
		if !ok {
			break
		}
		result.Pack = shrunk
	}
	result.Budget.UsedChars = len(result.Pack)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// orderedSet keeps insertion-agnostic, de-duplicated strings and returns
// them sorted, matching the BTreeSet dictionary-ordering idiom.
type orderedSet struct {
	m map[string]struct{}
}

func newOrderedSet() *orderedSet { return &orderedSet{m: make(map[string]struct{})} }

func (s *orderedSet) add(v string) {
	if v != "" {
		s.m[v] = struct{}{}
	}
}

func (s *orderedSet) sorted() []string {
	out := make([]string, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
