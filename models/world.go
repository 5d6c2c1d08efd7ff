package models

import "math/rand"

// Entity is anything that occupies a cell on the board
type Entity interface {
	GetID() int
	GetPosition() Position
}

// Combatant is an entity that can attack and be attacked
type Combatant interface {
	Entity
	Profile() CombatProfile
	AttackPower() int
	HitPoints() int
	IsDead() bool
	ReceiveDamage(amount int, rng *rand.Rand)
}

// Blocks reports whether an entity stops movement into its cell.
// Walls, players and enemies block; potions and treasure do not.
func Blocks(e Entity) bool {
	switch v := e.(type) {
	case *Player, *Enemy:
		return true
	case *Item:
		return v.Kind == ItemWall
	}
	return false
}
