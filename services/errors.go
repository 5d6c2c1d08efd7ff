package services

import "errors"

// Validation failures returned by the world and combat entry points.
// None of them mutate state.
var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrAlreadyJoined     = errors.New("player already joined")
	ErrWorldFull         = errors.New("no free cell to place player")
	ErrInvalidMove       = errors.New("invalid move")
	ErrNoTarget          = errors.New("no target at that position")
	ErrOutOfRange        = errors.New("target out of range")
	ErrAlreadyInCombat   = errors.New("already in combat")
	ErrTargetEngaged     = errors.New("target is fighting someone else")
	ErrUnknownAbility    = errors.New("unknown ability")
	ErrAbilityActive     = errors.New("ability already active")
	ErrUnknownPotion     = errors.New("unknown potion")
	ErrPotionUnavailable = errors.New("potion unavailable")
)
