package persistence

import (
	"context"
	"time"
)

// Kinds of journal entries
const (
	KindJoin          = "join"
	KindLeave         = "leave"
	KindChat          = "chat"
	KindAbility       = "ability"
	KindEnemyDefeated = "enemy_defeated"
	KindPlayerDied    = "player_died"
)

// Entry is one recorded game event
type Entry struct {
	ID       int64     `json:"id,omitempty"`
	Time     time.Time `json:"time"`
	Kind     string    `json:"kind"`
	PlayerID int       `json:"player_id,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// Journal defines the interface for the append-only game event log.
// Nothing in it is read back to restore world state.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NopJournal discards every entry
type NopJournal struct{}

func (NopJournal) Record(context.Context, Entry) error            { return nil }
func (NopJournal) Recent(context.Context, int) ([]Entry, error) { return nil, nil }
func (NopJournal) Close() error                                  { return nil }
