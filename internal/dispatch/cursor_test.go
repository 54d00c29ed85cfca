package dispatch

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestEncodeDecodeCursor_RoundTrips(t *testing.T) {
	payload := CursorPayload{Tool: "search", RootHash: "abc123", Root: "/work/proj"}
	token, err := EncodeCursor(payload)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeCursor(token)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Tool != "search" || decoded.RootHash != "abc123" || decoded.V != CursorVersion {
		t.Errorf("decoded payload = %+v", decoded)
	}
}

func TestDecodeCursor_RejectsMalformedToken(t *testing.T) {
	_, err := DecodeCursor("not-valid-base64-url!!")
	if err == nil {
		t.Fatal("expected an error decoding a malformed cursor token")
	}
}

func TestDecodeCursor_RejectsWrongVersion(t *testing.T) {
	raw, _ := json.Marshal(CursorPayload{V: 999, Tool: "search"})
	token := base64.RawURLEncoding.EncodeToString(raw)
	_, err := DecodeCursor(token)
	if err == nil {
		t.Fatal("expected an error decoding a cursor with an unsupported version")
	}
}

func TestCursorStore_Alias_ExpandsBackToPayload(t *testing.T) {
	store := NewCursorStore()
	payload := CursorPayload{Tool: "meaning_pack", RootHash: "root-hash-1"}
	token := store.Alias(payload)

	expanded, err := store.ExpandCursorAlias(token, "root-hash-1", "meaning_pack")
	if err != nil {
		t.Fatal(err)
	}
	if expanded.Tool != "meaning_pack" {
		t.Errorf("Tool = %q, want meaning_pack", expanded.Tool)
	}
}

func TestCursorStore_ExpandCursorAlias_FallsBackToOpaqueCursor(t *testing.T) {
	store := NewCursorStore()
	payload := CursorPayload{Tool: "search", RootHash: "root-hash-1"}
	token, err := EncodeCursor(payload)
	if err != nil {
		t.Fatal(err)
	}

	expanded, err := store.ExpandCursorAlias(token, "root-hash-1", "search")
	if err != nil {
		t.Fatal(err)
	}
	if expanded.Tool != "search" {
		t.Errorf("Tool = %q, want search", expanded.Tool)
	}
}

func TestCursorStore_ExpandCursorAlias_RejectsRootHashMismatch(t *testing.T) {
	store := NewCursorStore()
	token := store.Alias(CursorPayload{Tool: "search", RootHash: "root-hash-1"})

	_, err := store.ExpandCursorAlias(token, "root-hash-2", "search")
	if err == nil {
		t.Fatal("expected an invalid_cursor error on root_hash mismatch")
	}
}

func TestCursorStore_ExpandCursorAlias_RejectsToolMismatch(t *testing.T) {
	store := NewCursorStore()
	token := store.Alias(CursorPayload{Tool: "meaning_pack", RootHash: "root-hash-1"})

	_, err := store.ExpandCursorAlias(token, "root-hash-1", "search")
	if err == nil {
		t.Fatal("expected an invalid_cursor error resuming a meaning_pack cursor from search")
	}
}

func TestCursorStore_Forget_RemovesAlias(t *testing.T) {
	store := NewCursorStore()
	token := store.Alias(CursorPayload{Tool: "search"})
	store.Forget(token)

	// After forgetting the alias, the token is no longer a known alias and
	// falls back to opaque-cursor decoding, which fails for a bare uuid.
	_, err := store.ExpandCursorAlias(token, "", "search")
	if err == nil {
		t.Fatal("expected an error expanding a forgotten alias token")
	}
}

