package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

type MemberPayload struct {
	Username string `json:"username" validate:"required"`
}

type ChatMemberEventPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// Chats creates chats and applies membership changes. Every change keeps
// room subscriptions of live connections and the membership cache in step
// with the store and sends chat_updated to the members after the change.
type Chats struct {
	store      ChatStore
	membership *MembershipResolver
	rooms      *RoomRouter
	registry   *ConnRegistry
	locks      *KeyedMutex
	logger     *slog.Logger
}

func NewChats(store ChatStore, membership *MembershipResolver, rooms *RoomRouter,
	registry *ConnRegistry, locks *KeyedMutex, logger *slog.Logger) *Chats {
	return &Chats{
		store:      store,
		membership: membership,
		rooms:      rooms,
		registry:   registry,
		locks:      locks,
		logger:     logger,
	}
}

// List returns the chats of user, most recently active first.
func (s *Chats) List(ctx context.Context, user string) ([]Chat, error) {
	chats, err := s.store.GetUserChats(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("GetUserChats: %w", err)
	}
	return chats, nil
}

// Open returns a chat of user and resets its unread counter.
func (s *Chats) Open(ctx context.Context, user, chatID string) (*Chat, error) {
	if _, err := s.membership.Authorize(ctx, chatID, user); err != nil {
		return nil, err
	}
	if err := s.store.ResetUnread(ctx, chatID, user); err != nil {
		return nil, fmt.Errorf("ResetUnread: %w", err)
	}
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("GetChatByID: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// JoinChat subscribes c to the room of chatID and announces it to the room.
// The membership check and the join happen under the chat lock so that a
// concurrent removal either sees the connection in the room or wins the check.
func (s *Chats) JoinChat(ctx context.Context, c *Conn, chatID string) error {
	if err := s.join(ctx, c, chatID); err != nil {
		return err
	}
	s.broadcast(chatID, UserJoinedEvent, ChatMemberEventPayload{ChatID: chatID, UserID: c.User}, c)
	return nil
}

func (s *Chats) join(ctx context.Context, c *Conn, chatID string) error {
	unlock := s.locks.Lock(chatKey(chatID))
	defer unlock()
	if _, err := s.membership.Authorize(ctx, chatID, c.User); err != nil {
		return err
	}
	return s.rooms.Join(chatID, c)
}

// Subscribe joins c to the room of every chat of its user, silently.
// Chats the user stopped being a member of since the chat list was read are skipped.
func (s *Chats) Subscribe(ctx context.Context, c *Conn) error {
	chats, err := s.membership.ChatsOf(ctx, c.User)
	if err != nil {
		return err
	}
	for _, chatID := range chats {
		err := s.join(ctx, c, chatID)
		if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnauthorized) {
			return err
		}
	}
	return nil
}

// LeaveChat unsubscribes c from the room of chatID. Membership is not affected.
func (s *Chats) LeaveChat(_ context.Context, c *Conn, chatID string) error {
	if !c.InRoom(chatID) {
		return nil
	}
	s.rooms.Leave(chatID, c)
	s.broadcast(chatID, UserLeftEvent, ChatMemberEventPayload{ChatID: chatID, UserID: c.User}, nil)
	return nil
}

// CreateDirect returns the direct chat between user and other, creating it if needed.
func (s *Chats) CreateDirect(ctx context.Context, user, other string) (*Chat, error) {
	chat, created, err := s.store.FindOrCreateDirectChat(ctx, user, other)
	if err != nil {
		return nil, fmt.Errorf("FindOrCreateDirectChat: %w", err)
	}
	if created {
		s.attach(ctx, chat, chat.Members)
	}
	return chat, nil
}

func (s *Chats) CreateGroup(ctx context.Context, admin string, input CreateGroupInput) (*Chat, error) {
	if err := Validate(&input); err != nil {
		return nil, err
	}
	chat, err := s.store.CreateGroupChat(ctx, input.Name, admin, input.Members)
	if err != nil {
		return nil, fmt.Errorf("CreateGroupChat: %w", err)
	}
	s.attach(ctx, chat, chat.Members)
	return chat, nil
}

// attach subscribes the live connections of users to a new or grown chat
// and tells every member about it.
func (s *Chats) attach(ctx context.Context, chat *Chat, users []string) {
	s.membership.Invalidate(ctx, chat.ID, users...)
	for _, u := range users {
		s.rooms.JoinUser(chat.ID, u)
	}
	s.notify(chat)
}

// lockGroup takes the chat lock and loads a group that user administers.
func (s *Chats) lockGroup(ctx context.Context, user, chatID string) (*Chat, func(), error) {
	unlock := s.locks.Lock(chatKey(chatID))
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("GetChatByID: %w", err)
	}
	switch {
	case chat == nil:
		err = ErrChatNotFound
	case !chat.IsGroup:
		err = ErrNotGroupChat
	case !chat.HasMember(user):
		err = ErrNotChatMember
	}
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return chat, unlock, nil
}

// UpdateGroup renames the group and, when members are given, replaces its
// member list. The admin always stays a member. The member list is replaced
// atomically before the rename, and once it has changed rooms and the cache
// follow it even if the rename fails.
func (s *Chats) UpdateGroup(ctx context.Context, user, chatID string, input UpdateGroupInput) (*Chat, error) {
	if err := Validate(&input); err != nil {
		return nil, err
	}
	chat, unlock, err := s.lockGroup(ctx, user, chatID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if chat.Admin != user {
		return nil, ErrNotGroupAdmin
	}

	var desired, added, removed []string
	if input.Members != nil {
		desired = lo.Uniq(append([]string{chat.Admin}, input.Members...))
		added = lo.Without(desired, chat.Members...)
		removed = lo.Without(chat.Members, desired...)
	}

	if len(added)+len(removed) > 0 {
		if err := s.store.ReplaceMembers(ctx, chatID, desired); err != nil {
			return nil, fmt.Errorf("ReplaceMembers: %w", err)
		}
		s.membership.Invalidate(ctx, chatID, append(added, removed...)...)
		for _, u := range removed {
			s.rooms.LeaveUser(chatID, u)
			s.broadcast(chatID, UserLeftEvent, ChatMemberEventPayload{ChatID: chatID, UserID: u}, nil)
		}
		for _, u := range added {
			s.rooms.JoinUser(chatID, u)
		}
	}

	if input.Name != "" && input.Name != chat.Name {
		if err := s.store.UpdateGroup(ctx, chatID, input.Name, ""); err != nil {
			if len(added)+len(removed) > 0 {
				// members still learn about the membership change
				if _, rerr := s.reload(ctx, chatID); rerr != nil {
					s.logger.Error(rerr.Error(), slog.String("chat", chatID))
				}
			}
			return nil, fmt.Errorf("UpdateGroup: %w", err)
		}
	}

	return s.reload(ctx, chatID)
}

// AddMember adds member to a group administered by user.
func (s *Chats) AddMember(ctx context.Context, user, chatID, member string) (*Chat, error) {
	chat, unlock, err := s.lockGroup(ctx, user, chatID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if chat.Admin != user {
		return nil, ErrNotGroupAdmin
	}
	if chat.HasMember(member) {
		return nil, ErrAlreadyMember
	}

	if err := s.store.AddMember(ctx, chatID, member); err != nil {
		return nil, fmt.Errorf("AddMember: %w", err)
	}
	s.membership.Invalidate(ctx, chatID, member)
	s.rooms.JoinUser(chatID, member)
	s.broadcast(chatID, UserJoinedEvent, ChatMemberEventPayload{ChatID: chatID, UserID: member}, nil)
	return s.reload(ctx, chatID)
}

// RemoveMember removes member from a group. The admin may remove anyone and
// members may remove themselves. When the admin leaves the longest standing
// member becomes admin, and a group left without members is deleted, in
// which case the returned chat is nil.
func (s *Chats) RemoveMember(ctx context.Context, user, chatID, member string) (*Chat, error) {
	chat, unlock, err := s.lockGroup(ctx, user, chatID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if chat.Admin != user && user != member {
		return nil, ErrNotGroupAdmin
	}
	if !chat.HasMember(member) {
		return nil, ErrNotMember
	}

	if err := s.store.RemoveMember(ctx, chatID, member); err != nil {
		return nil, fmt.Errorf("RemoveMember: %w", err)
	}
	s.membership.Invalidate(ctx, chatID, member)
	s.rooms.LeaveUser(chatID, member)

	remaining := lo.Without(chat.Members, member)
	if len(remaining) == 0 {
		if err := s.store.DeleteChat(ctx, chatID); err != nil {
			return nil, fmt.Errorf("DeleteChat: %w", err)
		}
		s.membership.Invalidate(ctx, chatID)
		s.rooms.CloseRoom(chatID)
		return nil, nil
	}

	if member == chat.Admin {
		if err := s.store.UpdateGroup(ctx, chatID, "", remaining[0]); err != nil {
			s.logger.Error(fmt.Sprintf("UpdateGroup: %v", err), slog.String("chat", chatID))
		}
	}
	s.broadcast(chatID, UserLeftEvent, ChatMemberEventPayload{ChatID: chatID, UserID: member}, nil)
	return s.reload(ctx, chatID)
}

func (s *Chats) reload(ctx context.Context, chatID string) (*Chat, error) {
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("GetChatByID: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	s.notify(chat)
	return chat, nil
}

// notify sends chat to every connection of every current member.
func (s *Chats) notify(chat *Chat) {
	e, err := NewEvent(ChatUpdatedEvent, chat)
	if err != nil {
		s.logger.Error(err.Error())
		return
	}
	s.registry.SendToUsers(e, chat.Members...)
}

func (s *Chats) broadcast(room, eventType string, payload interface{}, exclude *Conn) {
	e, err := NewEvent(eventType, payload)
	if err != nil {
		s.logger.Error(err.Error())
		return
	}
	s.rooms.Broadcast(room, e, exclude)
}
