package dispatch

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amanmcp-core/amanmcp-core/internal/corerrors"
)

// CursorVersion is the tagged schema version embedded in every cursor
// payload; a mismatch is an invalid_cursor error rather than a crash.
const CursorVersion = 1

// CursorPayload is the tagged JSON body a cursor token carries. Tool is the
// name of the tool that issued it: resuming with a cursor from a different
// tool is rejected. RootHash pins the cursor to the session root it was
// issued against.
type CursorPayload struct {
	V        int             `json:"v"`
	Tool     string          `json:"tool"`
	RootHash string          `json:"root_hash,omitempty"`
	Root     string          `json:"root,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// EncodeCursor renders payload as an opaque base64-url cursor token.
func EncodeCursor(payload CursorPayload) (string, error) {
	payload.V = CursorVersion
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", corerrors.Internal("failed to encode cursor", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses an opaque cursor token back into its payload.
func DecodeCursor(token string) (CursorPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return CursorPayload{}, corerrors.InvalidCursor("malformed cursor token", err)
	}
	var payload CursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CursorPayload{}, corerrors.InvalidCursor("malformed cursor payload", err)
	}
	if payload.V != CursorVersion {
		return CursorPayload{}, corerrors.InvalidCursor("unsupported cursor version", nil).
			WithDetail("version", strconv.Itoa(payload.V))
	}
	return payload, nil
}

type storedCursor struct {
	payload CursorPayload
	created time.Time
}

// CursorStore aliases long opaque cursor payloads to short uuid tokens so
// a response's M: line doesn't have to echo the whole base64 blob back to
// the caller. expand_cursor_alias (ExpandCursorAlias) resolves either an
// alias token or a raw opaque cursor back to its payload before use.
type CursorStore struct {
	mu      sync.Mutex
	aliases map[string]storedCursor
}

// NewCursorStore creates an empty alias table.
func NewCursorStore() *CursorStore {
	return &CursorStore{aliases: make(map[string]storedCursor)}
}

// Alias stores payload under a short token and returns that token in place
// of the full opaque cursor.
func (s *CursorStore) Alias(payload CursorPayload) string {
	payload.V = CursorVersion
	token := uuid.NewString()
	s.mu.Lock()
	s.aliases[token] = storedCursor{payload: payload, created: time.Now()}
	s.mu.Unlock()
	return token
}

// ExpandCursorAlias resolves tok back to its full payload. tok may be a
// short alias minted by Alias, or a raw opaque cursor from EncodeCursor
// (callers may see either form, e.g. a cursor round-tripped through a
// client that doesn't understand aliasing). currentRootHash, when
// non-empty, must match the payload's RootHash or the cursor is rejected
// as invalid against the (possibly since-changed) session root. currentTool,
// when non-empty, must match the payload's Tool or the cursor is rejected:
// resuming with a cursor from a different tool is never valid.
func (s *CursorStore) ExpandCursorAlias(tok, currentRootHash, currentTool string) (CursorPayload, error) {
	s.mu.Lock()
	stored, ok := s.aliases[tok]
	s.mu.Unlock()

	var payload CursorPayload
	if ok {
		payload = stored.payload
	} else {
		p, err := DecodeCursor(tok)
		if err != nil {
			return CursorPayload{}, err
		}
		payload = p
	}

	if payload.RootHash != "" && currentRootHash != "" && payload.RootHash != currentRootHash {
		return CursorPayload{}, corerrors.InvalidCursor(
			"cursor was issued against a different project root", nil).
			WithDetail("expected_root_hash", payload.RootHash).
			WithDetail("actual_root_hash", currentRootHash)
	}
	if payload.Tool != "" && currentTool != "" && payload.Tool != currentTool {
		return CursorPayload{}, corerrors.InvalidCursor(
			"cursor was issued by a different tool", nil).
			WithDetail("expected_tool", payload.Tool).
			WithDetail("actual_tool", currentTool)
	}
	return payload, nil
}

// Forget drops a stored alias once it has been consumed, bounding the
// store's size to outstanding (unresolved) cursors.
func (s *CursorStore) Forget(tok string) {
	s.mu.Lock()
	delete(s.aliases, tok)
	s.mu.Unlock()
}

