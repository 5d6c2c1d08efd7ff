package models

import (
	"strings"
	"time"
)

// ModifierKind tags a temporary or permanent stat/behavior augmentation
type ModifierKind string

const (
	// player abilities
	ModBoost  ModifierKind = "BOOST"
	ModShield ModifierKind = "SHIELD"
	ModRegen  ModifierKind = "REGEN"

	// enemy traits
	ModExploding   ModifierKind = "EXPLODING"
	ModTeleporting ModifierKind = "TELEPORTING"
	ModVampire     ModifierKind = "VAMPIRE"
)

// EnemyTraits lists the modifiers an enemy may spawn with
var EnemyTraits = []ModifierKind{ModExploding, ModTeleporting, ModVampire}

// ParseAbility maps a client ability name onto a player modifier kind
func ParseAbility(name string) (ModifierKind, bool) {
	switch ModifierKind(strings.ToUpper(strings.TrimSpace(name))) {
	case ModBoost:
		return ModBoost, true
	case ModShield:
		return ModShield, true
	case ModRegen:
		return ModRegen, true
	}
	return "", false
}

// Modifier is one active augmentation. Magnitude means power bonus for
// BOOST and health per tick for REGEN. Fired marks one-shot triggers.
type Modifier struct {
	Kind      ModifierKind
	Magnitude int
	ExpiresAt time.Time
	Fired     bool
}

// Remaining returns how long the modifier lasts after now. Modifiers
// without an expiry report zero.
func (m Modifier) Remaining(now time.Time) time.Duration {
	if m.ExpiresAt.IsZero() || !now.Before(m.ExpiresAt) {
		return 0
	}
	return m.ExpiresAt.Sub(now)
}

// Modifiers is the ordered list of active modifiers on a character.
// Stat queries fold over the list; the base stats stay in the owning struct.
type Modifiers []Modifier

// Has reports whether a modifier of the given kind is active
func (ms Modifiers) Has(kind ModifierKind) bool {
	_, ok := ms.Get(kind)
	return ok
}

// Get returns the first modifier of the given kind
func (ms Modifiers) Get(kind ModifierKind) (Modifier, bool) {
	for _, m := range ms {
		if m.Kind == kind {
			return m, true
		}
	}
	return Modifier{}, false
}

// Add appends a modifier
func (ms *Modifiers) Add(m Modifier) {
	*ms = append(*ms, m)
}

// Remove drops every modifier of the given kind and reports whether any existed
func (ms *Modifiers) Remove(kind ModifierKind) bool {
	kept := (*ms)[:0]
	removed := false
	for _, m := range *ms {
		if m.Kind == kind {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	*ms = kept
	return removed
}

// Fire marks the first unfired modifier of the given kind as fired.
// It returns false when no such modifier exists or it already fired.
func (ms Modifiers) Fire(kind ModifierKind) bool {
	for i := range ms {
		if ms[i].Kind == kind && !ms[i].Fired {
			ms[i].Fired = true
			return true
		}
	}
	return false
}

// PowerBonus sums the attack bonus of every active BOOST
func (ms Modifiers) PowerBonus() int {
	bonus := 0
	for _, m := range ms {
		if m.Kind == ModBoost {
			bonus += m.Magnitude
		}
	}
	return bonus
}

// Names returns the modifier kinds as strings, in application order
func (ms Modifiers) Names() []string {
	if len(ms) == 0 {
		return nil
	}
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, string(m.Kind))
	}
	return names
}
