package models

import (
	"math/rand"
	"strings"
)

// CharacterClass determines a player's attack style and range
type CharacterClass string

const (
	ClassWarrior CharacterClass = "Warrior"
	ClassMage    CharacterClass = "Mage"
	ClassArcher  CharacterClass = "Archer"
)

// PlayerMaxHealth is the health every player starts and respawns with
const PlayerMaxHealth = 100

var classProfiles = map[CharacterClass]CombatProfile{
	ClassWarrior: {Style: StylePhysical, Range: 1, CritChance: 0.15, Evasion: 0.05, Armor: 20},
	ClassArcher:  {Style: StylePhysical, Range: 2, CritChance: 0.25, Evasion: 0.15},
	ClassMage:    {Style: StyleMagic, Range: 2, Evasion: 0.10, Element: ElementFire},
}

var classBasePower = map[CharacterClass]int{
	ClassWarrior: 12,
	ClassArcher:  10,
	ClassMage:    9,
}

// ParseClass maps a requested class name onto a known class.
// Unknown names fall back to Warrior.
func ParseClass(name string) CharacterClass {
	for class := range classProfiles {
		if strings.EqualFold(string(class), strings.TrimSpace(name)) {
			return class
		}
	}
	return ClassWarrior
}

// Player is a client-controlled character
type Player struct {
	ID             int
	Name           string
	Class          CharacterClass
	Position       Position
	HP             int
	MaxHP          int
	BasePower      int
	Inventory      []ItemKind // ordered multiset of carried potions
	TreasurePoints int
	Modifiers      Modifiers
	Visible        bool
}

// NewPlayer creates a full-health player of the given class
func NewPlayer(id int, name string, class CharacterClass) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Class:     class,
		HP:        PlayerMaxHealth,
		MaxHP:     PlayerMaxHealth,
		BasePower: classBasePower[class],
		Visible:   true,
	}
}

func (p *Player) GetID() int             { return p.ID }
func (p *Player) GetPosition() Position  { return p.Position }
func (p *Player) Profile() CombatProfile { return classProfiles[p.Class] }
func (p *Player) HitPoints() int         { return p.HP }
func (p *Player) IsDead() bool           { return p.HP <= 0 }

// AttackPower is the base power plus active boosts
func (p *Player) AttackPower() int {
	return p.BasePower + p.Modifiers.PowerBonus()
}

// SetHealth sets health clamped to [0, MaxHP]
func (p *Player) SetHealth(hp int) {
	p.HP = clamp(hp, 0, p.MaxHP)
}

// Heal restores health and returns the amount actually restored
func (p *Player) Heal(amount int) int {
	before := p.HP
	p.SetHealth(p.HP + amount)
	return p.HP - before
}

// ReceiveDamage applies an incoming hit. An active shield absorbs it entirely;
// otherwise the class evasion and armor decide what lands.
func (p *Player) ReceiveDamage(amount int, rng *rand.Rand) {
	if p.IsDead() || p.Modifiers.Has(ModShield) {
		return
	}
	p.SetHealth(p.HP - p.Profile().mitigate(amount, rng))
}

// AddItem puts an item kind into the inventory
func (p *Player) AddItem(kind ItemKind) {
	p.Inventory = append(p.Inventory, kind)
}

// TakeItem removes the first carried item of the given kind
func (p *Player) TakeItem(kind ItemKind) bool {
	for i, k := range p.Inventory {
		if k == kind {
			p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// CountItems counts carried items of the given kind
func (p *Player) CountItems(kind ItemKind) int {
	n := 0
	for _, k := range p.Inventory {
		if k == kind {
			n++
		}
	}
	return n
}

// EnemyKind determines an enemy's base stats and range
type EnemyKind string

const (
	EnemyGoblin EnemyKind = "Goblin"
	EnemyOrc    EnemyKind = "Orc"
	EnemyDragon EnemyKind = "Dragon"
)

// EnemyKinds lists every spawnable enemy kind
var EnemyKinds = []EnemyKind{EnemyGoblin, EnemyOrc, EnemyDragon}

var enemyProfiles = map[EnemyKind]CombatProfile{
	EnemyGoblin: {Style: StylePhysical, Range: 1, CritChance: 0.10, Evasion: 0.20},
	EnemyOrc:    {Style: StylePhysical, Range: 1, CritChance: 0.10, Armor: 25},
	EnemyDragon: {Style: StyleMagic, Range: 2, Element: ElementEarth},
}

const (
	explosionShare    = 20 // percent of max health dealt on death
	explosionRadius   = 1
	teleportThreshold = 30 // percent of starting health
)

// Enemy is a server-controlled hostile character
type Enemy struct {
	ID        int
	Kind      EnemyKind
	Position  Position
	HP        int
	MaxHP     int
	Power     int
	Loot      int
	Active    bool
	Modifiers Modifiers
	Visible   bool
}

// NewEnemy creates an enemy at full health
func NewEnemy(id int, kind EnemyKind, pos Position, hp, power, loot int) *Enemy {
	return &Enemy{
		ID:       id,
		Kind:     kind,
		Position: pos,
		HP:       hp,
		MaxHP:    hp,
		Power:    power,
		Loot:     loot,
		Visible:  true,
	}
}

func (e *Enemy) GetID() int             { return e.ID }
func (e *Enemy) GetPosition() Position  { return e.Position }
func (e *Enemy) Profile() CombatProfile { return enemyProfiles[e.Kind] }
func (e *Enemy) HitPoints() int         { return e.HP }
func (e *Enemy) IsDead() bool           { return e.HP <= 0 }

// AttackPower is the enemy's power plus any boosts
func (e *Enemy) AttackPower() int {
	return e.Power + e.Modifiers.PowerBonus()
}

// SetHealth sets health clamped to [0, MaxHP]
func (e *Enemy) SetHealth(hp int) {
	e.HP = clamp(hp, 0, e.MaxHP)
}

// ReceiveDamage applies an incoming hit through the kind's evasion and armor
func (e *Enemy) ReceiveDamage(amount int, rng *rand.Rand) {
	if e.IsDead() {
		return
	}
	e.SetHealth(e.HP - e.Profile().mitigate(amount, rng))
}

// UpdateAggro activates the enemy when the target is within radius
func (e *Enemy) UpdateAggro(target Position, radius int) {
	e.Active = e.Position.DistanceTo(target) <= radius
}

// TriggerExplosion returns the area damage and radius of an exploding enemy.
// ok is true at most once per enemy, however often it is dead-checked.
func (e *Enemy) TriggerExplosion() (damage, radius int, ok bool) {
	if !e.IsDead() || !e.Modifiers.Fire(ModExploding) {
		return 0, 0, false
	}
	return e.MaxHP * explosionShare / 100, explosionRadius, true
}

// TriggerTeleport reports, once, that a teleporting enemy has dropped
// below the health threshold while still alive.
func (e *Enemy) TriggerTeleport() bool {
	if e.IsDead() || !e.Modifiers.Has(ModTeleporting) {
		return false
	}
	if e.HP*100 >= e.MaxHP*teleportThreshold {
		return false
	}
	return e.Modifiers.Fire(ModTeleporting)
}

// DrainHeal heals a vampire enemy by half the damage it just dealt
// (at least one point) and returns the amount healed.
func (e *Enemy) DrainHeal(dealt int) int {
	if dealt <= 0 || e.IsDead() || !e.Modifiers.Has(ModVampire) {
		return 0
	}
	before := e.HP
	e.SetHealth(e.HP + max(dealt/2, 1))
	return e.HP - before
}

// ItemKind identifies what an item does when a player reaches it
type ItemKind string

const (
	ItemWall        ItemKind = "Wall"
	ItemLifePotion  ItemKind = "Potion"
	ItemPowerPotion ItemKind = "PowerPotion"
	ItemTreasure    ItemKind = "Treasure"
)

// Item is a static board object
type Item struct {
	ID       int
	Kind     ItemKind
	Position Position
	Value    int // treasure points
	Visible  bool
}

// NewItem creates a visible item
func NewItem(id int, kind ItemKind, pos Position, value int) *Item {
	return &Item{ID: id, Kind: kind, Position: pos, Value: value, Visible: true}
}

func (i *Item) GetID() int            { return i.ID }
func (i *Item) GetPosition() Position { return i.Position }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
