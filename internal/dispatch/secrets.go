package dispatch

import (
	"bufio"
	"strings"

	"github.com/amanmcp-core/amanmcp-core/internal/meaningpack"
)

// sensitiveKeyHints are key fragments that mark a "key: value" or
// "key=value" line as likely credential material in compose-style files
// (docker-compose.yml, .env, terraform .tfvars, and similar).
var sensitiveKeyHints = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"access_key", "private_key", "priv_key", "auth", "credential",
	"client_secret", "session_key",
}

// RefusePath reports whether candidate must be refused for reading, per
// the path-name/extension heuristic, unless allowSecrets overrides it.
func RefusePath(candidate string, allowSecrets bool) bool {
	if allowSecrets {
		return false
	}
	return meaningpack.IsPotentialSecretPath(candidate)
}

// ScrubSensitiveContent redacts "key: value"/"key=value" lines whose key
// looks like a credential, so a retrieved compose-style file never
// surfaces a real secret value even when its path itself was allowed
// through (e.g. a docker-compose.yml that embeds an inline password).
func ScrubSensitiveContent(content string, allowSecrets bool) string {
	if allowSecrets || content == "" {
		return content
	}

	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		if !first {
			out.WriteByte('\n')
		}
		first = false

		line := scanner.Text()
		if key, sep, ok := splitKeyValue(line); ok && looksSensitive(key) {
			leading := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			out.WriteString(leading + key + sep + " [REDACTED]")
			continue
		}
		out.WriteString(line)
	}
	return out.String()
}

// splitKeyValue extracts the key and separator of a "key: value" or
// "key=value" line, preferring whichever separator appears first.
func splitKeyValue(line string) (key, sep string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	colonIdx := strings.Index(trimmed, ":")
	eqIdx := strings.Index(trimmed, "=")
	switch {
	case colonIdx > 0 && (eqIdx < 0 || colonIdx < eqIdx):
		return strings.TrimSpace(trimmed[:colonIdx]), ":", true
	case eqIdx > 0:
		return strings.TrimSpace(trimmed[:eqIdx]), "=", true
	}
	return "", "", false
}

func looksSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, hint := range sensitiveKeyHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
