package meaningpack

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	asyncAPIMaxReadBytes = 256 * 1024
	asyncAPIMaxChannels  = 10
	asyncAPIMaxProtocols = 2
)

type asyncAPIChannel struct {
	name      string
	publish   bool
	subscribe bool
}

type asyncAPISummary struct {
	protocols []string
	channels  []asyncAPIChannel
}

// extractAsyncAPIFlows reads every asyncapi contract (bounded to the first
// asyncAPIMaxReadBytes of each file) and extracts its publish/subscribe
// channel operations, sorted by contract then channel then direction.
func extractAsyncAPIFlows(root string, contracts []string) []FlowEdge {
	var out []FlowEdge
	for _, contract := range contracts {
		if contractKind(contract) != "asyncapi" {
			continue
		}
		content, ok := readFilePrefix(root, contract, asyncAPIMaxReadBytes)
		if !ok {
			continue
		}
		summary := parseAsyncAPISummary(content)

		var protocol string
		if len(summary.protocols) > 0 {
			protocol = summary.protocols[0]
		}

		channels := append([]asyncAPIChannel(nil), summary.channels...)
		sort.Slice(channels, func(i, j int) bool { return channels[i].name < channels[j].name })
		if len(channels) > asyncAPIMaxChannels {
			channels = channels[:asyncAPIMaxChannels]
		}
		for _, ch := range channels {
			if ch.publish {
				out = append(out, FlowEdge{ContractFile: contract, Channel: ch.name, Direction: FlowPublish, Protocol: protocol})
			}
			if ch.subscribe {
				out = append(out, FlowEdge{ContractFile: contract, Channel: ch.name, Direction: FlowSubscribe, Protocol: protocol})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ContractFile != b.ContractFile {
			return a.ContractFile < b.ContractFile
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Direction < b.Direction
	})
	return out
}

func readFilePrefix(root, rel string, maxBytes int) (string, bool) {
	f, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return "", false
	}
	defer f.Close()
	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", false
	}
	return string(buf[:n]), true
}

func parseAsyncAPISummary(content string) asyncAPISummary {
	var doc map[string]interface{}
	if json.Unmarshal([]byte(content), &doc) == nil {
		return asyncAPISummaryFromJSON(doc)
	}
	return asyncAPISummaryFromYAMLLike(content)
}

func asyncAPISummaryFromJSON(doc map[string]interface{}) asyncAPISummary {
	var out asyncAPISummary
	seenProto := make(map[string]bool)
	if servers, ok := doc["servers"].(map[string]interface{}); ok {
		for _, v := range servers {
			server, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			proto, _ := server["protocol"].(string)
			proto = strings.ToLower(strings.TrimSpace(proto))
			if proto == "" || seenProto[proto] {
				continue
			}
			seenProto[proto] = true
			out.protocols = append(out.protocols, proto)
		}
	}
	if channels, ok := doc["channels"].(map[string]interface{}); ok {
		for name, v := range channels {
			channel, _ := v.(map[string]interface{})
			_, publish := channel["publish"]
			_, subscribe := channel["subscribe"]
			out.channels = append(out.channels, asyncAPIChannel{name: name, publish: publish, subscribe: subscribe})
		}
	}
	return out
}

// asyncAPISummaryFromYAMLLike is a bounded, hand-rolled scan for the
// common AsyncAPI YAML shape; it is not a general YAML parser. It covers:
//
//	servers:
//	  ...:
//	    protocol: kafka
//	channels:
//	  topic.name:
//	    publish: {}
//	    subscribe: {}
func asyncAPISummaryFromYAMLLike(content string) asyncAPISummary {
	var out asyncAPISummary
	seenProto := make(map[string]bool)

	lines := strings.Split(content, "\n")
	if len(lines) > 5000 {
		lines = lines[:5000]
	}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rest, ok := cutPrefix(line, "protocol:")
		if !ok {
			continue
		}
		proto := strings.Trim(strings.TrimSpace(rest), `"'`)
		if proto == "" {
			continue
		}
		proto = strings.ToLower(proto)
		if !seenProto[proto] {
			seenProto[proto] = true
			out.protocols = append(out.protocols, proto)
		}
	}

	allLines := strings.Split(content, "\n")
	idx := 0
	for idx < len(allLines) && !strings.HasPrefix(strings.TrimLeft(allLines[idx], " "), "channels:") {
		idx++
	}
	if idx >= len(allLines) {
		return out
	}
	channelsIndent := leadingSpaces(allLines[idx])
	idx++

	var current *asyncAPIChannel
	currentIndent := 0
	flush := func() {
		if current != nil {
			out.channels = append(out.channels, *current)
			current = nil
		}
	}

	for idx < len(allLines) {
		raw := allLines[idx]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			idx++
			continue
		}
		indent := leadingSpaces(raw)
		if indent <= channelsIndent {
			break
		}

		if strings.HasSuffix(trimmed, ":") && !strings.HasPrefix(trimmed, "-") {
			key := strings.Trim(strings.TrimSuffix(trimmed, ":"), " ")
			key = strings.Trim(key, `"'`)
			if key != "" && key != "publish" && key != "subscribe" {
				flush()
				currentIndent = indent
				current = &asyncAPIChannel{name: key}
				idx++
				continue
			}
		}

		if current != nil && indent > currentIndent {
			if strings.HasPrefix(trimmed, "publish:") {
				current.publish = true
			} else if strings.HasPrefix(trimmed, "subscribe:") {
				current.subscribe = true
			}
		}
		idx++
	}
	flush()

	return out
}

func leadingSpaces(s string) int {
	n := 0
	for n < len(s) && s[n] == ' ' {
		n++
	}
	return n
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
