package meaningpack

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxEvidence caps the number of evidence items in a pack.
const DefaultMaxEvidence = 12

// defaultEvidenceEndLine bounds how much of a candidate file a consumer
// is pointed at: enough to see the shape of an entrypoint or contract
// without reading the whole thing.
const defaultEvidenceEndLine = 120

// collectEvidence builds the pack's capped, deduped evidence list in
// priority order: must-have anchors for any detected flow (its contract,
// and the entrypoint inferred to own it) first, then up to 2 broker
// files, then the remaining entrypoints, contracts, and boundaries in
// that order, each deduped by path and truncated to DefaultMaxEvidence.
func collectEvidence(root string, entrypoints, contracts []string, boundaries []BoundaryCandidate, flows []FlowEdge, brokers []BrokerCandidate) []EvidenceItem {
	type candidate struct {
		kind     EvidenceKind
		boundary BoundaryKind
		file     string
	}
	var candidates []candidate
	seen := make(map[string]bool)

	var mustContracts, mustEntrypoints []string
	for _, flow := range flows {
		if len(mustContracts) < 2 && !containsString(mustContracts, flow.ContractFile) {
			mustContracts = append(mustContracts, flow.ContractFile)
		}
		if len(mustEntrypoints) < 2 {
			if actor, ok := inferFlowActor(flow.ContractFile, entrypoints); ok && !containsString(mustEntrypoints, actor) {
				mustEntrypoints = append(mustEntrypoints, actor)
			}
		}
		if len(mustContracts) >= 2 && len(mustEntrypoints) >= 2 {
			break
		}
	}
	for _, f := range mustContracts {
		if seen[f] {
			continue
		}
		seen[f] = true
		candidates = append(candidates, candidate{kind: EvidenceContract, file: f})
	}
	for _, f := range mustEntrypoints {
		if seen[f] {
			continue
		}
		seen[f] = true
		candidates = append(candidates, candidate{kind: EvidenceEntrypoint, file: f})
	}

	for i, broker := range brokers {
		if i >= 2 {
			break
		}
		if seen[broker.File] {
			continue
		}
		seen[broker.File] = true
		candidates = append(candidates, candidate{kind: EvidenceBoundary, boundary: BoundaryConfig, file: broker.File})
	}

	for _, f := range entrypoints {
		if len(candidates) >= DefaultMaxEvidence {
			break
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		candidates = append(candidates, candidate{kind: EvidenceEntrypoint, file: f})
	}
	for _, f := range contracts {
		if len(candidates) >= DefaultMaxEvidence {
			break
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		candidates = append(candidates, candidate{kind: EvidenceContract, file: f})
	}
	for _, b := range boundaries {
		if len(candidates) >= DefaultMaxEvidence {
			break
		}
		if seen[b.File] {
			continue
		}
		seen[b.File] = true
		candidates = append(candidates, candidate{kind: EvidenceBoundary, boundary: b.Kind, file: b.File})
	}

	if len(candidates) > DefaultMaxEvidence {
		candidates = candidates[:DefaultMaxEvidence]
	}

	out := make([]EvidenceItem, 0, len(candidates))
	for _, c := range candidates {
		hash, lines := hashAndCountLines(filepath.Join(root, c.file))
		end := defaultEvidenceEndLine
		if lines > 0 && lines < end {
			end = lines
		}
		if end < 1 {
			end = 1
		}
		out = append(out, EvidenceItem{
			Kind:         c.kind,
			BoundaryKind: c.boundary,
			File:         c.file,
			StartLine:    1,
			EndLine:      end,
			SourceHash:   hash,
		})
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// hashAndCountLines returns the file's sha256 hex digest and line count,
// or ("", 0) if it can't be read.
func hashAndCountLines(absPath string) (string, int) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", 0
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, 64*1024)
	lines := 0
	size := int64(0)
	var last byte
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			size += int64(n)
			hasher.Write(buf[:n])
			lines += strings.Count(string(buf[:n]), "\n")
			last = buf[n-1]
		}
		if readErr != nil {
			break
		}
	}
	if size > 0 && last != '\n' {
		lines++
	}
	return hex.EncodeToString(hasher.Sum(nil)), lines
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// buildEvFileIndex maps each evidence item's file to its "evN" id, first
// occurrence wins.
func buildEvFileIndex(evidence []EvidenceItem) map[string]string {
	out := make(map[string]string, len(evidence))
	for idx, ev := range evidence {
		if _, exists := out[ev.File]; exists {
			continue
		}
		out[ev.File] = evID(idx)
	}
	return out
}

func evID(idx int) string {
	return "ev" + strconv.Itoa(idx)
}
