package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gridrealm/server/logger"
	"gridrealm/server/messages"
	"gridrealm/server/models"
	"gridrealm/server/scheduler"
)

// ResolveFunc resolves a single attack
type ResolveFunc func(attacker, defender models.Combatant, rng *rand.Rand) AttackResult

// CombatHooks lets the world react to combat outcomes. Every hook runs
// with the world lock held and appends its own events to out.
type CombatHooks struct {
	EnemyDefeated  func(enemy *models.Enemy, out *Outbox)
	PlayerDefeated func(player *models.Player, out *Outbox)
	EnemyWounded   func(enemy *models.Enemy, out *Outbox)
}

type combatSession struct {
	player     *models.Player
	enemy      *models.Enemy
	playerTurn bool
	task       scheduler.Task
}

// CombatManager runs the turn-based fights between players and enemies,
// at most one per player and one per enemy.
//
// Its state is guarded by the world lock passed to NewCombatManager.
// Exported methods expect the caller to hold that lock; the turn timers
// take it themselves.
type CombatManager struct {
	lock       sync.Locker
	sched      scheduler.Scheduler
	rng        *rand.Rand
	interval   time.Duration
	hooks      CombatHooks
	dispatcher Dispatcher
	resolve    ResolveFunc
	sessions   map[int]*combatSession
}

// NewCombatManager creates a combat manager whose turn timers run on sched
func NewCombatManager(lock sync.Locker, sched scheduler.Scheduler, rng *rand.Rand, interval time.Duration, hooks CombatHooks, dispatcher Dispatcher) *CombatManager {
	if dispatcher == nil {
		dispatcher = discardDispatcher{}
	}
	return &CombatManager{
		lock:       lock,
		sched:      sched,
		rng:        rng,
		interval:   interval,
		hooks:      hooks,
		dispatcher: dispatcher,
		resolve:    ResolveAttack,
		sessions:   make(map[int]*combatSession),
	}
}

// StartCombat opens a session between player and enemy. The player must
// not already be fighting, the enemy must not be fighting anyone else and
// the enemy must be within the player's attack range.
func (cm *CombatManager) StartCombat(player *models.Player, enemy *models.Enemy, out *Outbox) error {
	if _, exists := cm.sessions[player.ID]; exists {
		return ErrAlreadyInCombat
	}
	if cm.engaged(enemy) {
		return ErrTargetEngaged
	}
	if player.Position.DistanceTo(enemy.Position) > player.Profile().Range {
		return ErrOutOfRange
	}

	session := &combatSession{player: player, enemy: enemy, playerTurn: true}
	cm.sessions[player.ID] = session
	enemy.Active = false

	out.Broadcast(messages.MessageTypeCombatUpdate, messages.CombatUpdateMessage{
		PlayerID: player.ID,
		EnemyID:  enemy.ID,
		Phase:    messages.CombatStart,
	})
	logger.Info("Combat started", "player_id", player.ID, "player", player.Name, "enemy_id", enemy.ID, "enemy", enemy.Kind)

	session.task = cm.sched.Every(fmt.Sprintf("combat:%d", player.ID), 0, cm.interval, func() {
		cm.tick(session)
	})
	return nil
}

// EndCombat closes the player's session if there is one. It is safe to
// call repeatedly.
func (cm *CombatManager) EndCombat(playerID int, out *Outbox) {
	session, exists := cm.sessions[playerID]
	if !exists {
		return
	}
	delete(cm.sessions, playerID)
	if session.task != nil {
		session.task.Stop()
	}
	if !session.enemy.IsDead() {
		session.enemy.Active = true
	}

	out.Broadcast(messages.MessageTypeCombatUpdate, messages.CombatUpdateMessage{
		PlayerID: playerID,
		EnemyID:  session.enemy.ID,
		Phase:    messages.CombatEnd,
	})
	logger.Info("Combat ended", "player_id", playerID, "enemy_id", session.enemy.ID)
}

// EndCombatWithEnemy closes whichever session the enemy is part of
func (cm *CombatManager) EndCombatWithEnemy(enemyID int, out *Outbox) {
	for playerID, session := range cm.sessions {
		if session.enemy.ID == enemyID {
			cm.EndCombat(playerID, out)
			return
		}
	}
}

// InCombat reports whether the player has an active session
func (cm *CombatManager) InCombat(playerID int) bool {
	_, exists := cm.sessions[playerID]
	return exists
}

// EnemyEngaged reports whether the enemy is part of any session
func (cm *CombatManager) EnemyEngaged(enemyID int) bool {
	for _, session := range cm.sessions {
		if session.enemy.ID == enemyID {
			return true
		}
	}
	return false
}

// ActiveSessions returns the number of running sessions
func (cm *CombatManager) ActiveSessions() int {
	return len(cm.sessions)
}

// HandleCombatMovement decides whether a fighting player may step to newPos.
// Stepping out of combat range ends the session as a flight and is allowed;
// any other step during combat is refused.
func (cm *CombatManager) HandleCombatMovement(playerID int, newPos models.Position, out *Outbox) bool {
	session, exists := cm.sessions[playerID]
	if !exists {
		return true
	}
	if newPos.DistanceTo(session.enemy.Position) > maxCombatRange(session.player, session.enemy) {
		logger.Debug("Player fled combat", "player_id", playerID, "enemy_id", session.enemy.ID)
		cm.EndCombat(playerID, out)
		return true
	}
	return false
}

// EndAll closes every session
func (cm *CombatManager) EndAll(out *Outbox) {
	for playerID := range cm.sessions {
		cm.EndCombat(playerID, out)
	}
}

func (cm *CombatManager) engaged(enemy *models.Enemy) bool {
	return cm.EnemyEngaged(enemy.ID)
}

// tick runs one turn of a session on the scheduler
func (cm *CombatManager) tick(session *combatSession) {
	var out Outbox
	cm.lock.Lock()
	cm.runTurn(session, &out)
	cm.lock.Unlock()
	out.flush(cm.dispatcher)
}

func (cm *CombatManager) runTurn(session *combatSession, out *Outbox) {
	playerID := session.player.ID
	if cm.sessions[playerID] != session {
		return
	}
	if session.player.IsDead() || session.enemy.IsDead() {
		cm.EndCombat(playerID, out)
		return
	}
	if session.player.Position.DistanceTo(session.enemy.Position) > maxCombatRange(session.player, session.enemy) {
		cm.EndCombat(playerID, out)
		return
	}

	if session.playerTurn {
		cm.playerTurn(session, out)
	} else {
		cm.enemyTurn(session, out)
	}
	session.playerTurn = !session.playerTurn
}

func (cm *CombatManager) playerTurn(session *combatSession, out *Outbox) {
	player, enemy := session.player, session.enemy
	result := cm.resolve(player, enemy, cm.rng)

	switch {
	case result.WasEvaded:
		cm.damageEvent(out, player.ID, enemy.Position, 0, messages.DamageMiss)
	case result.DamageDealt > 0:
		kind := messages.DamageNormal
		if result.WasCritical {
			kind = messages.DamageCrit
		}
		cm.damageEvent(out, player.ID, enemy.Position, result.DamageDealt, kind)
	}

	if enemy.IsDead() {
		logger.Info("Enemy defeated in combat", "player_id", player.ID, "enemy_id", enemy.ID)
		cm.damageEvent(out, player.ID, enemy.Position, 0, messages.DamageEnemyDeath)
		if cm.hooks.EnemyDefeated != nil {
			cm.hooks.EnemyDefeated(enemy, out)
		}
		cm.EndCombat(player.ID, out)
		return
	}
	if result.DamageDealt > 0 && cm.hooks.EnemyWounded != nil {
		cm.hooks.EnemyWounded(enemy, out)
	}
}

func (cm *CombatManager) enemyTurn(session *combatSession, out *Outbox) {
	player, enemy := session.player, session.enemy
	shielded := player.Modifiers.Has(models.ModShield)
	result := cm.resolve(enemy, player, cm.rng)

	switch {
	case shielded:
		cm.damageEvent(out, player.ID, player.Position, 0, messages.DamageShieldBlock)
	case result.WasEvaded:
		cm.damageEvent(out, player.ID, player.Position, 0, messages.DamageMiss)
	case result.DamageDealt > 0:
		cm.damageEvent(out, player.ID, player.Position, result.DamageDealt, messages.DamageEnemy)
		if healed := enemy.DrainHeal(result.DamageDealt); healed > 0 {
			logger.Debug("Vampire drained health", "enemy_id", enemy.ID, "healed", healed)
		}
	}

	out.Broadcast(messages.MessageTypePlayerUpdate, playerUpdate(player))

	if player.IsDead() {
		logger.Info("Player defeated in combat", "player_id", player.ID, "enemy_id", enemy.ID)
		if cm.hooks.PlayerDefeated != nil {
			cm.hooks.PlayerDefeated(player, out)
		}
		cm.EndCombat(player.ID, out)
	}
}

func (cm *CombatManager) damageEvent(out *Outbox, playerID int, pos models.Position, amount int, kind string) {
	out.Unicast(playerID, messages.MessageTypeDamageDealt, messages.DamageMessage{
		PlayerID:       playerID,
		TargetPlayerID: playerID,
		Position:       pos,
		Amount:         amount,
		Kind:           kind,
	})
}

// maxCombatRange is the distance beyond which a session counts as fled
func maxCombatRange(player *models.Player, enemy *models.Enemy) int {
	return max(player.Profile().Range, enemy.Profile().Range)
}
