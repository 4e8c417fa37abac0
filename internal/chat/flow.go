package chat

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/glasschat/pkg/errs"
)

// RoomCreationFlow opens the interactive flow that collects a new room's
// name, kind and participants.
type RoomCreationFlow interface {
	Open(ctx context.Context) error
}

type UnimplementedRoomCreationFlow struct{}

func (UnimplementedRoomCreationFlow) Open(context.Context) error {
	return fmt.Errorf("%w: room creation flow", errs.ErrNotImplemented)
}

func (s *Store) OpenRoomCreation(ctx context.Context) error {
	return s.flow.Open(ctx)
}
