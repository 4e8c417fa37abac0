// Package ident generates and validates the identifiers exchanged with the backend.
package ident

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cwrk-planet/glasschat/pkg/errs"
)

// CommunityRoomID is the reserved id of the room every user belongs to.
const CommunityRoomID = "00000000-0000-0000-0000-000000000001"

func New() string {
	return uuid.NewString()
}

// Valid accepts canonical 36-char UUIDs of version 1-5 with the RFC 4122
// variant, plus CommunityRoomID.
func Valid(id string) bool {
	if id == CommunityRoomID {
		return true
	}
	if len(id) != 36 {
		return false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	if v := u.Version(); v < 1 || v > 5 {
		return false
	}
	return u.Variant() == uuid.RFC4122
}

// Check returns errs.ErrInvalidInput naming the first malformed id.
func Check(field string, ids ...string) error {
	for _, id := range ids {
		if !Valid(id) {
			return fmt.Errorf("%w: malformed %s %q", errs.ErrInvalidInput, field, id)
		}
	}
	return nil
}

func IsCommunity(roomID string) bool {
	return roomID == CommunityRoomID
}
