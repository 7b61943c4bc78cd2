// Package chats implements the conversation-list queries of the identity
// service. Its central piece is the GetUserChats handler, which turns the
// raw upstream dialog/chat/user graph into a flat list of conversations,
// merging chats that were migrated into channels so each logical conversation
// appears exactly once.
package chats

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fwt/identity-core/internal/cqrs"
	"github.com/fwt/identity-core/internal/domain"
	"github.com/fwt/identity-core/internal/events"
	"github.com/fwt/identity-core/internal/telegram"
)

// QueryNameGetUserChats is the dispatcher registry key for GetUserChats.
const QueryNameGetUserChats = "GetUserChats"

// GetUserChats asks for the user's resolved conversation list. DoRefresh
// bypasses the cache read for this invocation only.
type GetUserChats struct {
	UserID    int64
	DoRefresh bool
}

// Name implements cqrs.Request.
func (GetUserChats) Name() string { return QueryNameGetUserChats }

// Refresh implements cqrs.Query.
func (q GetUserChats) Refresh() bool { return q.DoRefresh }

// CacheKey implements cqrs.Query. The key is the query name concatenated
// with the user id, e.g. "GetUserChats5".
func (q GetUserChats) CacheKey() string {
	return QueryNameGetUserChats + strconv.FormatInt(q.UserID, 10)
}

var _ cqrs.Query = GetUserChats{}

// GetUserChatsHandler resolves GetUserChats queries against the upstream
// data source. The session store and client are explicit dependencies.
type GetUserChatsHandler struct {
	Sessions telegram.SessionStore
	Client   telegram.Client
	Log      zerolog.Logger
}

// NewGetUserChatsHandler constructs a handler over the given collaborators.
func NewGetUserChatsHandler(sessions telegram.SessionStore, client telegram.Client, log zerolog.Logger) *GetUserChatsHandler {
	return &GetUserChatsHandler{Sessions: sessions, Client: client, Log: log}
}

// Handle implements cqrs.Handler. It performs a single upstream fetch and
// resolves the graph in two passes; see resolve. The result type is
// []domain.UserChat. No events are emitted by a read.
func (h *GetUserChatsHandler) Handle(ctx context.Context, req cqrs.Request) (any, []events.Event, error) {
	q, ok := req.(GetUserChats)
	if !ok {
		return nil, nil, cqrs.ErrInvalidRequest
	}
	if q.UserID <= 0 {
		return nil, nil, cqrs.ErrInvalidRequest
	}

	session, err := h.Sessions.Load(ctx, q.UserID)
	if err != nil {
		return nil, nil, err
	}
	graph, err := h.Client.FetchDialogs(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	return h.resolve(graph), nil, nil
}

// resolve flattens the dialog graph into results.
//
// Pass 1 emits one result per dialog entry, except chats that carry a
// migration target: those are deferred entirely to pass 2, where the old
// chat's id is folded into the result of the channel it migrated to. Lookups
// go through id-keyed indices built once, never by chasing record references.
func (h *GetUserChatsHandler) resolve(graph *domain.DialogGraph) []domain.UserChat {
	chats := make(map[int64]*domain.ChatRecord, len(graph.Chats))
	for i := range graph.Chats {
		chats[graph.Chats[i].ID] = &graph.Chats[i]
	}
	users := make(map[int64]*domain.UserRecord, len(graph.Users))
	for i := range graph.Users {
		users[graph.Users[i].ID] = &graph.Users[i]
	}

	results := make([]domain.UserChat, 0, len(graph.Dialogs))

	for _, dialog := range graph.Dialogs {
		peer := dialog.Peer
		switch peer.Kind {
		case domain.PeerChat:
			chat, ok := chats[peer.ChatID]
			if !ok {
				h.Log.Warn().Int64("chat_id", peer.ChatID).Msg("dialog references unknown chat")
				continue
			}
			if chat.MigratedTo != nil {
				// Emitted as part of the target channel in pass 2.
				continue
			}
			id := peer.ChatID
			results = append(results, domain.UserChat{Title: chat.Title, ChatID: &id})

		case domain.PeerChannel:
			record, ok := chats[peer.ChannelID]
			if !ok {
				h.Log.Warn().Int64("channel_id", peer.ChannelID).Msg("dialog references unknown channel")
				continue
			}
			id := peer.ChannelID
			results = append(results, domain.UserChat{Title: record.Title, ChannelID: &id})

		case domain.PeerUser:
			user, ok := users[peer.UserID]
			if !ok {
				h.Log.Warn().Int64("user_id", peer.UserID).Msg("dialog references unknown user")
				continue
			}
			id := peer.UserID
			results = append(results, domain.UserChat{Title: displayName(user), UserID: &id})
		}
	}

	// Pass 2: merge each migrated chat's identity into the result of the
	// channel it became, so callers see one conversation with both ids.
	for _, dialog := range graph.Dialogs {
		peer := dialog.Peer
		if peer.Kind != domain.PeerChat {
			continue
		}
		chat, ok := chats[peer.ChatID]
		if !ok || chat.MigratedTo == nil {
			continue
		}
		target := *chat.MigratedTo
		merged := false
		for i := range results {
			if results[i].ChannelID != nil && *results[i].ChannelID == target {
				id := peer.ChatID
				results[i].ChatID = &id
				merged = true
				break
			}
		}
		if !merged {
			// The migration target never showed up in the dialog list.
			// Soft failure: the old chat's identity is omitted.
			h.Log.Warn().
				Int64("chat_id", peer.ChatID).
				Int64("migrated_to", target).
				Msg("migration target channel not in dialog list, chat identity dropped")
		}
	}

	return results
}

// displayName builds a user's title as "First Last", falling back to the
// username only when both name parts are absent.
func displayName(u *domain.UserRecord) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
