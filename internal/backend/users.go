package backend

import (
	"context"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
)

func (b *Backend) CreateProfile(ctx context.Context, u *domain.User) error {
	if err := ident.Check("user id", u.ID); err != nil {
		return err
	}
	if err := b.repos.Users.Create(ctx, u); err != nil {
		return wrap("users.create", err)
	}
	b.publish(ctx, realtime.ChannelUsers, realtime.TableUsers, realtime.OpInsert, "", u)
	return nil
}

// DeleteProfile removes a user row. Sign-up uses it to undo a profile whose
// credentials could not be stored.
func (b *Backend) DeleteProfile(ctx context.Context, id string) error {
	if err := ident.Check("user id", id); err != nil {
		return err
	}
	if err := b.repos.Users.Delete(ctx, id); err != nil {
		return wrap("users.delete", err)
	}
	b.publish(ctx, realtime.ChannelUsers, realtime.TableUsers, realtime.OpDelete, "", domain.User{ID: id})
	return nil
}

func (b *Backend) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := ident.Check("user id", id); err != nil {
		return nil, err
	}
	u, err := b.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("users.get", err)
	}
	return u, nil
}

func (b *Backend) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := b.repos.Users.List(ctx)
	if err != nil {
		return nil, wrap("users.list", err)
	}
	return users, nil
}

// UpdatePresence sets status and last_seen=now.
func (b *Backend) UpdatePresence(ctx context.Context, id string, status domain.UserStatus) (*domain.User, error) {
	if err := ident.Check("user id", id); err != nil {
		return nil, err
	}
	u, err := b.repos.Users.UpdateStatus(ctx, id, status, b.now())
	if err != nil {
		return nil, wrap("users.updateStatus", err)
	}
	b.publish(ctx, realtime.ChannelUsers, realtime.TableUsers, realtime.OpUpdate, "", u)
	return u, nil
}
