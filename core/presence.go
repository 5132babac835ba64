package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type StatusPayload struct {
	Status Status `json:"status" validate:"required"`
}

type StatusChangedPayload struct {
	UserID     string    `json:"userId"`
	Status     Status    `json:"status"`
	LastActive time.Time `json:"lastActive"`
}

// PresenceTracker persists presence transitions and announces them to
// every connection of every user sharing a chat with the changed user.
type PresenceTracker struct {
	users      UserStore
	registry   *ConnRegistry
	membership *MembershipResolver
	locks      *KeyedMutex
	logger     *slog.Logger
}

func NewPresenceTracker(users UserStore, registry *ConnRegistry, membership *MembershipResolver, locks *KeyedMutex, logger *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		users:      users,
		registry:   registry,
		membership: membership,
		locks:      locks,
		logger:     logger,
	}
}

// Connected records the first connection of user. The caller holds the user lock.
func (p *PresenceTracker) Connected(ctx context.Context, user string) {
	if err := p.transition(ctx, user, StatusOnline); err != nil {
		p.logger.Error(fmt.Sprintf("presence online: %v", err), slog.String("user", user))
	}
}

// Disconnected records the close of the last connection of user. The caller holds the user lock.
func (p *PresenceTracker) Disconnected(ctx context.Context, user string) {
	if err := p.transition(ctx, user, StatusOffline); err != nil {
		p.logger.Error(fmt.Sprintf("presence offline: %v", err), slog.String("user", user))
	}
}

// SetStatus applies an explicit status change requested by user.
func (p *PresenceTracker) SetStatus(ctx context.Context, user string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	unlock := p.locks.Lock(userKey(user))
	defer unlock()
	if !p.registry.IsConnected(user) {
		return ErrNotConnected
	}
	return p.transition(ctx, user, status)
}

func (p *PresenceTracker) transition(ctx context.Context, user string, status Status) error {
	now := time.Now().UTC()
	if err := p.users.UpdatePresence(ctx, user, status, now); err != nil {
		return fmt.Errorf("UpdatePresence: %w", err)
	}

	audience, err := p.Audience(ctx, user)
	if err != nil {
		return err
	}

	e, err := NewEvent(UserStatusChangedEvent, StatusChangedPayload{UserID: user, Status: status, LastActive: now})
	if err != nil {
		return err
	}
	p.registry.SendToUsers(e, audience...)
	return nil
}

// Audience returns every user who shares a chat with user, excluding user.
func (p *PresenceTracker) Audience(ctx context.Context, user string) ([]string, error) {
	audience, err := p.membership.CoMembers(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("CoMembers: %w", err)
	}
	return audience, nil
}

// Bootstrap sends c the current status of every connected co-member of its user.
func (p *PresenceTracker) Bootstrap(ctx context.Context, c *Conn) {
	audience, err := p.Audience(ctx, c.User)
	if err != nil {
		p.logger.Error(fmt.Sprintf("presence bootstrap: %v", err), slog.String("conn", c.ID))
		return
	}
	connected := p.registry.ConnectedUsers(audience...)
	if len(connected) == 0 {
		return
	}

	users, err := p.users.GetUsersByUsernames(ctx, connected...)
	if err != nil {
		p.logger.Error(fmt.Sprintf("GetUsersByUsernames: %v", err), slog.String("conn", c.ID))
		return
	}
	for _, u := range users {
		status := u.Status
		if status == StatusOffline {
			status = StatusOnline
		}
		e, err := NewEvent(UserStatusChangedEvent, StatusChangedPayload{UserID: u.Username, Status: status, LastActive: u.LastActive})
		if err != nil {
			p.logger.Error(err.Error())
			return
		}
		c.Send(e)
	}
}
