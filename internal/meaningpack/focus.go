package meaningpack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FocusRequest parameterizes a scoped meaning pack anchored on one file or
// directory, adding an "S OUTLINE" section when the focus resolves to a
// single source file the outline extractor supports.
type FocusRequest struct {
	Focus        string // project-relative path, file or directory
	Query        string
	ResponseMode ResponseMode
	MaxChars     int
	MapDepth     int
	MapLimit     int
}

// Focus builds a meaning pack scoped to one file or directory: the
// directory map, boundaries, entrypoints, and contracts are the same
// classification as Generate but filtered to files under the focus
// directory (falling back to the whole project if nothing is in scope),
// and a code outline is added when the focus is a single file.
func (g *Generator) Focus(ctx context.Context, req FocusRequest) (*Result, error) {
	focusRaw := strings.TrimSpace(req.Focus)
	if focusRaw == "" {
		return nil, fmt.Errorf("meaningpack: focus must not be empty")
	}
	focusRel := filepath.ToSlash(focusRaw)
	if isPotentialSecretPath(focusRel) {
		return nil, fmt.Errorf("meaningpack: refusing to focus on a potential secret path: %q", focusRel)
	}

	absFocus := filepath.Join(g.Root, focusRel)
	info, err := os.Stat(absFocus)
	if err != nil {
		return nil, fmt.Errorf("meaningpack: resolve focus path %q: %w", focusRel, err)
	}
	rel, err := filepath.Rel(g.Root, absFocus)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("meaningpack: focus path %q is outside project root", focusRel)
	}
	focusRel = filepath.ToSlash(rel)
	if isPotentialSecretPath(focusRel) {
		return nil, fmt.Errorf("meaningpack: refusing to focus on a potential secret path: %q", focusRel)
	}

	isDir := info.IsDir()
	focusDir := focusRel
	if !isDir {
		focusDir = filepath.ToSlash(filepath.Dir(focusRel))
		if focusDir == "" {
			focusDir = "."
		}
	}
	var focusPrefix string
	if focusDir != "." {
		focusPrefix = focusDir + "/"
	}

	var outline []OutlineSymbol
	if !isDir {
		outline = extractCodeOutline(g.Root, focusRel)
	}

	maxChars := clampInt(orDefault(req.MaxChars, DefaultMaxChars), MinMaxChars, MaxMaxChars)
	mapDepth := clampInt(orDefault(req.MapDepth, DefaultMapDepth), 1, 4)
	mapLimit := clampInt(orDefault(req.MapLimit, DefaultMapLimit), 1, 200)
	mode := req.ResponseMode
	if mode == "" {
		mode = ResponseFacts
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = "focus:" + focusRel
	}

	allFiles, err := g.scanFiles(ctx)
	if err != nil {
		return nil, err
	}

	var scopeFiles []string
	for _, f := range allFiles {
		if focusPrefix == "" || strings.HasPrefix(f, focusPrefix) {
			scopeFiles = append(scopeFiles, f)
		}
	}
	filesForMap := allFiles
	if len(scopeFiles) > 0 {
		filesForMap = scopeFiles
	}

	focusIsArtifact := isArtifactScope(focusRel) || isArtifactScope(focusDir)
	dirFiles := make(map[string]int)
	dirFilesWithArtifacts := make(map[string]int)
	for _, rel := range filesForMap {
		key := directoryKey(rel, mapDepth)
		dirFilesWithArtifacts[key]++
		if !focusIsArtifact && isArtifactScope(rel) {
			continue
		}
		dirFiles[key]++
	}
	counts := dirFiles
	if len(counts) == 0 {
		counts = dirFilesWithArtifacts
	}
	mapRows := make([]MapRow, 0, len(counts))
	for path, n := range counts {
		mapRows = append(mapRows, MapRow{Path: path, Files: n})
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

	entrypoints, contracts := classifyFiles(filesForMap)
	boundaries := classifyBoundaries(filesForMap, entrypoints, contracts)
	if len(boundaries) > DefaultMaxBounds {
		boundaries = boundaries[:DefaultMaxBounds]
	}
	flows := extractAsyncAPIFlows(g.Root, contracts)
	channels := make([]string, 0, len(flows))
	for _, f := range flows {
		channels = append(channels, f.Channel)
	}
	channelMentions := detectChannelMentions(g.Root, filesForMap, channels)
	brokers := detectBrokers(g.Root, filesForMap, flows)

	evidence := collectFocusEvidence(g.Root, focusRel, isDir, entrypoints, contracts, boundaries, flows, brokers)
	evFileIndex := buildEvFileIndex(evidence)

	comp := &projectComponents{
		entrypoints:     entrypoints,
		contracts:       contracts,
		boundaries:      boundaries,
		flows:           flows,
		channelMentions: channelMentions,
		brokers:         brokers,
		evidence:        evidence,
		evFileIndex:     evFileIndex,
	}

	rootFP := rootFingerprint(g.RootDisplay)
	cp := NewCognitivePack()
	cp.PushLine("CPV1")
	cp.PushLine(fmt.Sprintf("ROOT_FP %s", rootFP))
	cp.PushLine(fmt.Sprintf("QUERY %s", jsonString(query)))

	dictPaths := newOrderedSet()
	dictPaths.add(focusDir)
	dictPaths.add(focusRel)
	for _, row := range mapRows {
		dictPaths.add(row.Path)
	}
	for _, sym := range outline {
		dictPaths.add(sym.Name)
	}
	for _, b := range boundaries {
		if _, ok := evFileIndex[b.File]; ok {
			dictPaths.add(b.File)
		}
	}
	for _, f := range entrypoints {
		if _, ok := evFileIndex[f]; ok {
			dictPaths.add(f)
		}
	}
	for _, f := range contracts {
		if _, ok := evFileIndex[f]; ok {
			dictPaths.add(f)
		}
	}
	for _, flow := range flows {
		if actor, _, ok := flowActor(comp, flow, entrypoints); ok {
			dictPaths.add(actor)
		}
		dictPaths.add(flow.ContractFile)
		dictPaths.add(flow.Channel)
	}
	for _, b := range brokers {
		if _, ok := evFileIndex[b.File]; ok {
			dictPaths.add(b.File)
		}
	}
	for _, ev := range evidence {
		dictPaths.add(ev.File)
	}
	for _, path := range dictPaths.sorted() {
		cp.DictIntern(path)
	}

	cp.PushLine("S FOCUS")
	cp.PushLine(fmt.Sprintf("FOCUS dir=%s file=%s", cp.DictID(focusDir), cp.DictID(focusRel)))

	if len(outline) > 0 {
		cp.PushLine("S OUTLINE")
		for _, sym := range outline {
			cp.PushLine(fmt.Sprintf("SYM kind=%s name=%s file=%s L%d-L%d conf=%.2f",
				sym.Kind, cp.DictID(sym.Name), cp.DictID(focusRel), sym.StartLine, sym.EndLine, clamp01(sym.Confidence)))
		}
	}

	cp.PushLine("S MAP")
	for _, row := range mapRows {
		cp.PushLine(fmt.Sprintf("MAP path=%s files=%d", cp.DictID(row.Path), row.Files))
	}

	emittedBoundaries := make([]BoundaryCandidate, 0, len(boundaries))
	for _, b := range boundaries {
		if len(emittedBoundaries) >= DefaultMaxBounds {
			break
		}
		if _, ok := evFileIndex[b.File]; !ok {
			continue
		}
		emittedBoundaries = append(emittedBoundaries, b)
	}
	if len(emittedBoundaries) > 0 {
		cp.PushLine("S BOUNDARIES")
		for _, b := range emittedBoundaries {
			ev := evFileIndex[b.File]
			cp.PushLine(fmt.Sprintf("BOUNDARY kind=%s file=%s conf=%.2f ev=%s", b.Kind, cp.DictID(b.File), clamp01(b.Confidence), ev))
		}
	}

	var emittedEntrypoints, emittedContracts []string
	for _, f := range entrypoints {
		if len(emittedEntrypoints) >= 8 {
			break
		}
		if _, ok := evFileIndex[f]; ok {
			emittedEntrypoints = append(emittedEntrypoints, f)
		}
	}
	for _, f := range contracts {
		if len(emittedContracts) >= 8 {
			break
		}
		if _, ok := evFileIndex[f]; ok {
			emittedContracts = append(emittedContracts, f)
		}
	}
	if len(emittedEntrypoints) > 0 {
		cp.PushLine("S ENTRYPOINTS")
		for _, f := range emittedEntrypoints {
			cp.PushLine(fmt.Sprintf("ENTRY file=%s ev=%s", cp.DictID(f), evFileIndex[f]))
		}
	}
	if len(emittedContracts) > 0 {
		cp.PushLine("S CONTRACTS")
		for _, f := range emittedContracts {
			cp.PushLine(fmt.Sprintf("CONTRACT kind=%s file=%s ev=%s", contractKind(f), cp.DictID(f), evFileIndex[f]))
		}
	}

	var flowLines []string
	for _, flow := range flows {
		if len(flowLines) >= DefaultMaxBounds {
			break
		}
		actor, actorConf, hasActor := flowActor(comp, flow, entrypoints)
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
		ev, ok := evFileIndex[flow.ContractFile]
		if !ok && hasActor {
			ev, ok = evFileIndex[actor]
		}
		if !ok {
			continue
		}
		flowLines = append(flowLines, fmt.Sprintf("FLOW contract=%s chan=%s dir=%s%s%s conf=%.2f ev=%s",
			cp.DictID(flow.ContractFile), cp.DictID(flow.Channel), flow.Direction, protoField, actorField, clamp01(conf), ev))
	}
	if len(flowLines) > 0 {
		cp.PushLine("S FLOWS")
		for _, l := range flowLines {
			cp.PushLine(l)
		}
	}

	var brokerLines []string
	for _, b := range brokers {
		ev, ok := evFileIndex[b.File]
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

	if len(evidence) > 0 {
		cp.PushLine("S EVIDENCE")
		for idx, ev := range evidence {
			hashField := ""
			if ev.SourceHash != "" {
				hashField = " sha256=" + ev.SourceHash
			}
			cp.PushLine(fmt.Sprintf("EV %s kind=%s file=%s L%d-L%d%s", evID(idx), evidenceKindLabel(ev), cp.DictID(ev.File), ev.StartLine, ev.EndLine, hashField))
		}
	}

	nba := "NBA map"
	if len(evidence) > 0 {
		first := evidence[0]
		nba = fmt.Sprintf("NBA evidence_fetch ev=ev0 file=%s L%d-L%d", cp.DictID(first.File), first.StartLine, first.EndLine)
	}
	cp.PushLine(nba)

	var nextActions []NextAction
	if mode == ResponseFull && len(evidence) > 0 {
		nextActions = buildNextActions(g.RootDisplay, evidence[0])
	}

	result := &Result{
		Version:     1,
		Query:       query,
		Format:      "cpv1",
		Pack:        cp.Render(),
		Budget:      Budget{MaxChars: maxChars},
		NextActions: nextActions,
	}
	trimToBudget(result)
	return result, nil
}

// collectFocusEvidence is collectEvidence's focus-scoped variant: it
// anchors the focused file itself first (as whichever role it plays:
// entrypoint, contract, or boundary), then fills the remaining budget
// with the same must-have-flow-anchor and remaining-candidate passes.
func collectFocusEvidence(root, focusRel string, focusIsDir bool, entrypoints, contracts []string, boundaries []BoundaryCandidate, flows []FlowEdge, brokers []BrokerCandidate) []EvidenceItem {
	var anchored []string
	seen := make(map[string]bool)

	if !focusIsDir {
		switch {
		case containsString(entrypoints, focusRel):
			anchored = append(anchored, focusRel)
		case containsString(contracts, focusRel):
			anchored = append(anchored, focusRel)
		default:
			for _, b := range boundaries {
				if b.File == focusRel {
					anchored = append(anchored, focusRel)
					break
				}
			}
		}
	}
	for _, f := range anchored {
		seen[f] = true
	}

	rest := collectEvidence(root, entrypoints, contracts, boundaries, flows, brokers)
	out := make([]EvidenceItem, 0, len(rest)+len(anchored))
	for _, f := range anchored {
		kind, boundaryKind := evidenceRoleOf(f, entrypoints, contracts, boundaries)
		hash, lines := hashAndCountLines(filepath.Join(root, f))
		end := defaultEvidenceEndLine
		if lines > 0 && lines < end {
			end = lines
		}
		if end < 1 {
			end = 1
		}
		out = append(out, EvidenceItem{Kind: kind, BoundaryKind: boundaryKind, File: f, StartLine: 1, EndLine: end, SourceHash: hash})
	}
	for _, ev := range rest {
		if seen[ev.File] {
			continue
		}
		seen[ev.File] = true
		out = append(out, ev)
		if len(out) >= DefaultMaxEvidence {
			break
		}
	}
	if len(out) > DefaultMaxEvidence {
		out = out[:DefaultMaxEvidence]
	}
	return out
}

func evidenceRoleOf(file string, entrypoints, contracts []string, boundaries []BoundaryCandidate) (EvidenceKind, BoundaryKind) {
	if containsString(entrypoints, file) {
		return EvidenceEntrypoint, ""
	}
	if containsString(contracts, file) {
		return EvidenceContract, ""
	}
	for _, b := range boundaries {
		if b.File == file {
			return EvidenceBoundary, b.Kind
		}
	}
	return EvidenceAnchor, ""
}
