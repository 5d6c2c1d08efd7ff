package services

import (
	"sort"

	"gridrealm/server/messages"
	"gridrealm/server/models"
)

func playerState(p *models.Player) messages.PlayerState {
	return messages.PlayerState{
		PlayerID:         p.ID,
		Name:             p.Name,
		Position:         p.Position,
		Health:           p.HP,
		Power:            p.AttackPower(),
		Class:            string(p.Class),
		LifePotionCount:  p.CountItems(models.ItemLifePotion),
		PowerPotionCount: p.CountItems(models.ItemPowerPotion),
		TreasurePoints:   p.TreasurePoints,
		Abilities:        p.Modifiers.Names(),
	}
}

func playerUpdate(p *models.Player) messages.PlayerUpdateMessage {
	return messages.PlayerUpdateMessage{
		PlayerID: p.ID,
		Health:   p.HP,
		Power:    p.AttackPower(),
		State:    playerState(p),
	}
}

func enemyState(e *models.Enemy) messages.EnemyState {
	return messages.EnemyState{
		EnemyID:  e.ID,
		Type:     string(e.Kind),
		Position: e.Position,
		Health:   e.HP,
		Visible:  e.Visible,
		Traits:   e.Modifiers.Names(),
	}
}

func itemState(i *models.Item) messages.ItemState {
	return messages.ItemState{
		ItemID:   i.ID,
		Type:     string(i.Kind),
		Position: i.Position,
		Visible:  i.Visible,
	}
}

// visibleTo reports whether any player stands within radius of pos
func visibleTo(players map[int]*models.Player, pos models.Position, radius int) bool {
	for _, p := range players {
		if p.Position.DistanceTo(pos) <= radius {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
