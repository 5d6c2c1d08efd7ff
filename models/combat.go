package models

import "math/rand"

// AttackStyle selects the damage formula used by the combat resolver
type AttackStyle int

const (
	StylePhysical AttackStyle = iota
	StyleMagic
)

func (s AttackStyle) String() string {
	if s == StyleMagic {
		return "magic"
	}
	return "physical"
}

// Element is the elemental affinity of magic users
type Element string

const (
	ElementNone  Element = ""
	ElementFire  Element = "fire"
	ElementWater Element = "water"
	ElementEarth Element = "earth"
)

// each element beats exactly one other
var elementBeats = map[Element]Element{
	ElementFire:  ElementEarth,
	ElementEarth: ElementWater,
	ElementWater: ElementFire,
}

// StrongerThan reports whether e has the advantage over other
func (e Element) StrongerThan(other Element) bool {
	if e == ElementNone || other == ElementNone {
		return false
	}
	return elementBeats[e] == other
}

// CombatProfile is the fixed combat capability of a class or enemy kind
type CombatProfile struct {
	Style      AttackStyle
	Range      int
	CritChance float64
	Evasion    float64
	Armor      int // percent of incoming damage absorbed
	Element    Element
}

// RollCritical rolls for a critical physical hit
func (cp CombatProfile) RollCritical(rng *rand.Rand) bool {
	return cp.CritChance > 0 && rng.Float64() < cp.CritChance
}

// mitigate applies evasion and armor and returns the damage that lands
func (cp CombatProfile) mitigate(amount int, rng *rand.Rand) int {
	if amount <= 0 {
		return 0
	}
	if cp.Evasion > 0 && rng.Float64() < cp.Evasion {
		return 0
	}
	if cp.Armor > 0 {
		amount -= amount * cp.Armor / 100
	}
	return amount
}
