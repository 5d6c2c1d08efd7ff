package services

import (
	"math/rand"

	"gridrealm/server/models"
)

// AttackResult is the outcome of a single attack
type AttackResult struct {
	DamageDealt int
	WasCritical bool
	WasEvaded   bool
}

// ResolveAttack performs one attack from attacker on defender and reports
// what happened. Only the defender's health changes; announcing the result
// is up to the caller.
func ResolveAttack(attacker, defender models.Combatant, rng *rand.Rand) AttackResult {
	healthBefore := defender.HitPoints()
	profile := attacker.Profile()
	power := attacker.AttackPower()

	var result AttackResult
	switch profile.Style {
	case models.StyleMagic:
		damage := float64(power) * 1.5
		defElement := defender.Profile().Element
		if profile.Element.StrongerThan(defElement) {
			damage *= 1.2
		} else if defElement.StrongerThan(profile.Element) {
			damage *= 0.8
		}
		defender.ReceiveDamage(int(damage), rng)
	default:
		damage := power
		if profile.RollCritical(rng) {
			result.WasCritical = true
			damage *= 2
		}
		defender.ReceiveDamage(damage, rng)
	}

	healthAfter := defender.HitPoints()
	result.DamageDealt = healthBefore - healthAfter
	result.WasEvaded = result.DamageDealt == 0 && healthBefore > 0
	return result
}
