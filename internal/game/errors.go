package game

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrNotInRoom        = errors.New("player is not in this room")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrCodeAlreadySet   = errors.New("code already set")
	ErrWrongPhase       = errors.New("action not allowed in current phase")
	ErrNoRematchPending = errors.New("no rematch pending")
)
