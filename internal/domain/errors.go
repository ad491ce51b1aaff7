package domain

import "errors"

var (
	// ErrNotConnected is returned when a send is attempted before connect.
	ErrNotConnected = errors.New("not connected to a room")
	// ErrNoRoomCode indicates the provisioning endpoint returned no code.
	ErrNoRoomCode = errors.New("room code missing from response")
	// ErrRoomNotFound indicates the requested room code is unknown.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound indicates a player name is absent from the roster.
	ErrPlayerNotFound = errors.New("player not found in room")
)
