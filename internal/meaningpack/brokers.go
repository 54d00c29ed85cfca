package meaningpack

import (
	"path/filepath"
	"sort"
	"strings"
)

const (
	brokerMaxReadBytes  = 64 * 1024
	channelMentionBytes = 64 * 1024
)

// brokerSignatures lists, per broker protocol, the lowercased path
// keywords that make a file a candidate and the import strings that
// confirm it from the file's content.
var brokerSignatures = []struct {
	proto        string
	pathKeywords []string
	importHints  []string
}{
	{proto: "kafka", pathKeywords: []string{"kafka"}, importHints: []string{"segmentio/kafka-go", "confluent-kafka", "kafkajs", "org.apache.kafka"}},
	{proto: "nats", pathKeywords: []string{"nats"}, importHints: []string{"nats-io/nats.go", "nats.js"}},
	{proto: "amqp", pathKeywords: []string{"amqp", "rabbitmq"}, importHints: []string{"streadway/amqp", "rabbitmq/amqp091-go", "amqplib"}},
	{proto: "redis", pathKeywords: []string{"redis"}, importHints: []string{"go-redis/redis", "redis/redis", "ioredis"}},
	{proto: "sqs", pathKeywords: []string{"sqs"}, importHints: []string{"aws-sdk-go/service/sqs", "aws-sdk/client-sqs"}},
	{proto: "pubsub", pathKeywords: []string{"pubsub"}, importHints: []string{"cloud.google.com/go/pubsub", "@google-cloud/pubsub"}},
}

// detectBrokers scans files for message-broker client wiring: a path
// hinting at the broker name (e.g. "kafka_producer.go") scores 0.6,
// confirmed by a matching import/require string in the file's first
// brokerMaxReadBytes it scores 0.9. Results are sorted by descending
// confidence then file path and capped at six; flows is not consulted.
func detectBrokers(root string, files []string, flows []FlowEdge) []BrokerCandidate {
	const maxBrokers = 6
	var out []BrokerCandidate
	seen := make(map[string]bool)

	for _, file := range files {
		lc := strings.ToLower(file)
		if !looksLikeSourceFile(lc) {
			continue
		}
		for _, sig := range brokerSignatures {
			matched := false
			for _, kw := range sig.pathKeywords {
				if strings.Contains(lc, kw) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			confidence := float32(0.6)
			if content, ok := readFilePrefix(root, file, brokerMaxReadBytes); ok {
				lcContent := strings.ToLower(content)
				for _, hint := range sig.importHints {
					if strings.Contains(lcContent, strings.ToLower(hint)) {
						confidence = 0.9
						break
					}
				}
			}
			key := file + "|" + sig.proto
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, BrokerCandidate{File: file, Proto: sig.proto, Confidence: confidence})
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].File < out[j].File
	})
	if len(out) > maxBrokers {
		out = out[:maxBrokers]
	}
	return out
}

func looksLikeSourceFile(lc string) bool {
	exts := []string{".go", ".py", ".ts", ".js", ".rs", ".java", ".rb", ".cs"}
	for _, e := range exts {
		if strings.HasSuffix(lc, e) {
			return true
		}
	}
	return false
}

// channelMentionHit is the first file found to textually mention a
// channel name, used to ground an actor guess in infer_actor_by_path.
type channelMentionHit struct {
	file string
}

// detectChannelMentions finds, for each channel name, the first source
// file (path order) whose content contains that literal string.
func detectChannelMentions(root string, files []string, channels []string) map[string]channelMentionHit {
	out := make(map[string]channelMentionHit)
	if len(channels) == 0 {
		return out
	}
	needles := make(map[string]bool, len(channels))
	for _, c := range channels {
		if c != "" {
			needles[c] = true
		}
	}
	if len(needles) == 0 {
		return out
	}

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, file := range sorted {
		if len(out) == len(needles) {
			break
		}
		lc := strings.ToLower(file)
		if !looksLikeSourceFile(lc) {
			continue
		}
		content, ok := readFilePrefix(root, file, channelMentionBytes)
		if !ok {
			continue
		}
		for channel := range needles {
			if _, found := out[channel]; found {
				continue
			}
			if strings.Contains(content, channel) {
				out[channel] = channelMentionHit{file: file}
			}
		}
	}
	return out
}

// inferActorByPath guesses which entrypoint owns a channel mention by
// picking the entrypoint sharing the longest directory prefix with the
// hit's file; ties break on the shortest entrypoint path.
func inferActorByPath(hit channelMentionHit, entrypoints []string) (string, bool) {
	return nearestEntrypoint(hit.file, entrypoints)
}

// inferFlowActor guesses which entrypoint owns a contract file the same
// way, when no channel-mention evidence is available.
func inferFlowActor(contractFile string, entrypoints []string) (string, bool) {
	return nearestEntrypoint(contractFile, entrypoints)
}

func nearestEntrypoint(file string, entrypoints []string) (string, bool) {
	if len(entrypoints) == 0 {
		return "", false
	}
	fileDir := filepath.Dir(file)
	best := ""
	bestScore := -1
	for _, ep := range entrypoints {
		score := sharedPathPrefixLen(fileDir, filepath.Dir(ep))
		if score > bestScore || (score == bestScore && (best == "" || len(ep) < len(best))) {
			bestScore = score
			best = ep
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func sharedPathPrefixLen(a, b string) int {
	aParts := strings.Split(a, "/")
	bParts := strings.Split(b, "/")
	n := 0
	for n < len(aParts) && n < len(bParts) && aParts[n] == bParts[n] {
		n++
	}
	return n
}
