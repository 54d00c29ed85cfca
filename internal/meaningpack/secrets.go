package meaningpack

import (
	"path/filepath"
	"strings"
)

// secretExactNames are file basenames that are always refused regardless
// of extension.
var secretExactNames = map[string]bool{
	".env": true, ".envrc": true, ".npmrc": true, ".pnpmrc": true,
	".yarnrc": true, ".yarnrc.yml": true, ".pypirc": true, ".netrc": true,
	"id_rsa": true, "id_ed25519": true, "id_ecdsa": true, "id_dsa": true,
}

// secretEnvExceptions are .env.* files that are templates, not secrets.
var secretEnvExceptions = map[string]bool{
	".env.example": true, ".env.sample": true, ".env.template": true, ".env.dist": true,
}

// secretExtensions are extensions that are always refused.
var secretExtensions = map[string]bool{
	"pem": true, "key": true, "p12": true, "pfx": true, "env": true,
}

// isPotentialSecretPath reports whether candidate looks like it holds
// credentials a pack must never quote or point evidence at. Focus uses it
// to refuse a focus path, and the whole-project walk (generator.go's
// scanFiles) uses it to drop files on top of the scanner's own exclusions.
func isPotentialSecretPath(candidate string) bool {
	name := strings.ToLower(filepath.Base(candidate))
	if secretExactNames[name] {
		return true
	}
	if strings.HasPrefix(name, ".env.") && !secretEnvExceptions[name] {
		return true
	}

	normalized := strings.ToLower(strings.ReplaceAll(candidate, "\\", "/"))
	if normalized == ".cargo/credentials" || normalized == ".cargo/credentials.toml" ||
		strings.HasSuffix(normalized, "/.cargo/credentials") ||
		strings.HasSuffix(normalized, "/.cargo/credentials.toml") {
		return true
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(candidate)), ".")
	return secretExtensions[ext]
}

// IsPotentialSecretPath exports isPotentialSecretPath for reuse by the
// dispatcher, which applies the same path heuristic ahead of any tool
// that would otherwise read or quote file content.
func IsPotentialSecretPath(candidate string) bool {
	return isPotentialSecretPath(candidate)
}
