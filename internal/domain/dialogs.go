// Package domain defines the persistence models and core value types of the
// identity service. This file holds the ephemeral upstream dialog graph and
// the resolved conversation result returned to callers.
package domain

// PeerKind discriminates the peer variant a dialog entry points at.
type PeerKind string

// Peer variants.
const (
	PeerChat    PeerKind = "chat"
	PeerChannel PeerKind = "channel"
	PeerUser    PeerKind = "user"
)

// Peer identifies the single counterpart of a dialog entry. Exactly one of
// ChatID, ChannelID, or UserID is meaningful, selected by Kind.
type Peer struct {
	Kind      PeerKind
	ChatID    int64
	ChannelID int64
	UserID    int64
}

// Dialog is one entry of the upstream dialog list.
type Dialog struct {
	Peer Peer
}

// ChatRecord is a raw upstream chat or channel record. MigratedTo, when
// non-nil, points at the channel this basic group was upgraded into; the
// upgrade is one-way and the old chat record stays behind as a tombstone.
type ChatRecord struct {
	ID         int64
	Title      string
	MigratedTo *int64
	Photo      string
}

// UserRecord is a raw upstream user record.
type UserRecord struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Photo     string
}

// DialogGraph is the complete, unpaginated dialog/chat/user set fetched from
// upstream in a single call. It is read-only input to dialog resolution and
// is never persisted.
type DialogGraph struct {
	Dialogs []Dialog
	Chats   []ChatRecord
	Users   []UserRecord
}

// UserChat is one resolved conversation. At most one of ChatID, ChannelID,
// and UserID is set at emission time; a migrated group ends up with both
// ChatID and ChannelID populated so callers see a single logical conversation
// under either identity.
type UserChat struct {
	ChatID    *int64 `json:"chat_id,omitempty"`
	ChannelID *int64 `json:"channel_id,omitempty"`
	UserID    *int64 `json:"user_id,omitempty"`
	Title     string `json:"title"`
}
