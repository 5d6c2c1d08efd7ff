package services

import (
	"fmt"
	"strings"
	"time"

	"gridrealm/server/config"
	"gridrealm/server/models"
)

const maxNameLength = 20

// Potion kinds accepted by UsePotion
const (
	PotionLife  = "LIFE"
	PotionPower = "POWER"
)

// PlayerService applies player-level rules: naming, item pickups,
// potions and abilities. It holds no state of its own; the world calls it
// with the world lock held.
type PlayerService struct {
	cfg config.WorldConfig
	now func() time.Time
}

// NewPlayerService creates a player service for the given world settings
func NewPlayerService(cfg config.WorldConfig) *PlayerService {
	return &PlayerService{cfg: cfg, now: time.Now}
}

// CreatePlayer builds a full-health player from a join request
func (ps *PlayerService) CreatePlayer(id int, name, class string) *models.Player {
	return models.NewPlayer(id, ps.sanitizeName(id, name), models.ParseClass(class))
}

func (ps *PlayerService) sanitizeName(id int, name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	if name == "" {
		name = fmt.Sprintf("Player%d", id)
	}
	return name
}

// Pickup applies an item the player stepped on. It reports whether the
// item was consumed; walls are never consumed.
func (ps *PlayerService) Pickup(player *models.Player, item *models.Item) bool {
	switch item.Kind {
	case models.ItemLifePotion:
		if player.HP < player.MaxHP {
			player.SetHealth(player.MaxHP)
		} else {
			player.AddItem(models.ItemLifePotion)
		}
	case models.ItemPowerPotion:
		player.AddItem(models.ItemPowerPotion)
	case models.ItemTreasure:
		player.TreasurePoints += item.Value
	default:
		return false
	}
	return true
}

// UsePotion drinks a carried potion. A life potion heals to full and is
// refused at full health; a power potion raises base power permanently.
func (ps *PlayerService) UsePotion(player *models.Player, kind string) error {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case PotionLife:
		if player.HP >= player.MaxHP {
			return fmt.Errorf("%w: already at full health", ErrPotionUnavailable)
		}
		if !player.TakeItem(models.ItemLifePotion) {
			return fmt.Errorf("%w: no life potion", ErrPotionUnavailable)
		}
		player.SetHealth(player.MaxHP)
	case PotionPower:
		if !player.TakeItem(models.ItemPowerPotion) {
			return fmt.Errorf("%w: no power potion", ErrPotionUnavailable)
		}
		player.BasePower += ps.cfg.PowerPotionGain
	default:
		return ErrUnknownPotion
	}
	return nil
}

// ApplyAbility adds a timed ability modifier. Different abilities stack;
// repeating one that is still active is refused.
func (ps *PlayerService) ApplyAbility(player *models.Player, name string) (models.ModifierKind, error) {
	kind, ok := models.ParseAbility(name)
	if !ok {
		return "", ErrUnknownAbility
	}
	if active, exists := player.Modifiers.Get(kind); exists {
		remaining := active.Remaining(ps.now()).Round(time.Second)
		return "", fmt.Errorf("%w: %s for another %s", ErrAbilityActive, kind, remaining)
	}

	mod := models.Modifier{Kind: kind, ExpiresAt: ps.now().Add(ps.cfg.AbilityDuration)}
	switch kind {
	case models.ModBoost:
		mod.Magnitude = ps.cfg.BoostAmount
	case models.ModRegen:
		mod.Magnitude = ps.cfg.RegenAmount
	}
	player.Modifiers.Add(mod)
	return kind, nil
}

// Regenerate heals a regenerating player by one tick and returns the amount healed
func (ps *PlayerService) Regenerate(player *models.Player) int {
	mod, ok := player.Modifiers.Get(models.ModRegen)
	if !ok || player.IsDead() {
		return 0
	}
	return player.Heal(mod.Magnitude)
}
