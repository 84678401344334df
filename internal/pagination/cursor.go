package pagination

import (
	"cmp"
	"encoding/base64"
	"encoding/json"
	"time"

	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

// Cursor is the position of the last item of a page in (createdAt desc, id desc) order.
// Clients treat its encoded form as opaque.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type cursorPayload struct {
	T  string `json:"t"`
	ID string `json:"id"`
}

// Encode renders the cursor as a URL-safe token.
func (c Cursor) Encode() string {
	payload, _ := json.Marshal(cursorPayload{T: store.FormatTime(c.CreatedAt), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCursor parses a token produced by Encode. An empty token yields nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, domainerrors.Validation("invalid cursor encoding")
	}

	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
		return nil, domainerrors.Validation("invalid cursor payload")
	}

	t, err := store.ParseTime(p.T)
	if err != nil {
		return nil, domainerrors.Validation("invalid cursor timestamp")
	}
	return &Cursor{CreatedAt: t, ID: p.ID}, nil
}

// cursorOf builds the cursor of a stored item.
func cursorOf(snap *store.Snapshot, orderField string) Cursor {
	return Cursor{CreatedAt: snap.Data.Time(orderField), ID: snap.ID}
}

// compare orders two positions by creation time, then id.
func (c Cursor) compare(other Cursor) int {
	if n := c.CreatedAt.Compare(other.CreatedAt); n != 0 {
		return n
	}
	return cmp.Compare(c.ID, other.ID)
}
