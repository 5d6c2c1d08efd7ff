package services

import (
	"math/rand"

	"gridrealm/server/models"
)

type statRange struct{ min, max int }

func (r statRange) roll(rng *rand.Rand) int {
	if r.max <= r.min {
		return r.min
	}
	return r.min + rng.Intn(r.max-r.min+1)
}

type enemyTemplate struct {
	health, power, loot statRange
}

var enemyTemplates = map[models.EnemyKind]enemyTemplate{
	models.EnemyGoblin: {health: statRange{20, 35}, power: statRange{4, 7}, loot: statRange{5, 15}},
	models.EnemyOrc:    {health: statRange{35, 55}, power: statRange{6, 10}, loot: statRange{10, 25}},
	models.EnemyDragon: {health: statRange{50, 80}, power: statRange{8, 12}, loot: statRange{20, 40}},
}

// EnemyFactory rolls new enemies with random kind, stats and trait
type EnemyFactory struct {
	rng         *rand.Rand
	traitChance float64
}

// NewEnemyFactory creates a factory drawing from rng. rng must only be used
// under the same lock as the factory.
func NewEnemyFactory(rng *rand.Rand, traitChance float64) *EnemyFactory {
	return &EnemyFactory{rng: rng, traitChance: traitChance}
}

// Create builds an enemy of a random kind at pos
func (f *EnemyFactory) Create(id int, pos models.Position) *models.Enemy {
	kind := models.EnemyKinds[f.rng.Intn(len(models.EnemyKinds))]
	return f.CreateKind(id, kind, pos)
}

// CreateKind builds an enemy of the given kind at pos, possibly with a trait
func (f *EnemyFactory) CreateKind(id int, kind models.EnemyKind, pos models.Position) *models.Enemy {
	t := enemyTemplates[kind]
	enemy := models.NewEnemy(id, kind, pos, t.health.roll(f.rng), t.power.roll(f.rng), t.loot.roll(f.rng))
	if f.traitChance > 0 && f.rng.Float64() < f.traitChance {
		trait := models.EnemyTraits[f.rng.Intn(len(models.EnemyTraits))]
		enemy.Modifiers.Add(models.Modifier{Kind: trait})
	}
	return enemy
}
