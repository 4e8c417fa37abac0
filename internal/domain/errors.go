package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrCreatorCannotLeave = errors.New("room creator cannot leave the room")
	ErrUnknownKind        = errors.New("unknown kind")
	ErrEmptyEmoji         = errors.New("emoji is empty")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrEmptyTokenHash     = errors.New("empty token hash")
	ErrPastExpiry         = errors.New("expiry is in the past")
)
