package services

import (
	"fmt"
	"time"

	"gridrealm/server/logger"
	"gridrealm/server/messages"
	"gridrealm/server/models"
	"gridrealm/server/persistence"
)

func (ws *WorldService) spawnTick() {
	var out Outbox
	ws.worldMutex.Lock()
	if !ws.closed && len(ws.enemies) < ws.cfg.MaxEnemies {
		ws.spawnEnemy(&out)
	}
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
}

func (ws *WorldService) spawnEnemy(out *Outbox) *models.Enemy {
	pos, ok := ws.gameMap.RandomEmptyPosition(ws.rng)
	if !ok {
		return nil
	}
	enemy := ws.factory.Create(ws.nextEnemyID, pos)
	ws.nextEnemyID++
	ws.addEnemy(enemy)
	logger.Debug("Spawned enemy", "enemy_id", enemy.ID, "kind", enemy.Kind, "position", pos.String(), "traits", enemy.Modifiers.Names())
	return enemy
}

func (ws *WorldService) addEnemy(enemy *models.Enemy) {
	ws.enemies[enemy.ID] = enemy
	ws.gameMap.AddEntity(enemy)

	id := enemy.ID
	ws.aiTasks[id] = ws.sched.Every(fmt.Sprintf("ai:%d", id), ws.cfg.AIDelay, ws.aiPeriod(), func() {
		ws.aiTick(id)
	})
}

// aiPeriod picks an enemy's tick period in [AIMinPeriod, AIMaxPeriod)
func (ws *WorldService) aiPeriod() time.Duration {
	spread := ws.cfg.AIMaxPeriod - ws.cfg.AIMinPeriod
	if spread <= 0 {
		return ws.cfg.AIMinPeriod
	}
	return ws.cfg.AIMinPeriod + time.Duration(ws.rng.Int63n(int64(spread)))
}

func (ws *WorldService) aiTick(enemyID int) {
	var out Outbox
	ws.worldMutex.Lock()
	if !ws.closed {
		ws.updateEnemy(enemyID, &out)
	}
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
}

// updateEnemy runs one AI step: wake up near players, attack an adjacent
// one or take a step towards one within chase range.
func (ws *WorldService) updateEnemy(enemyID int, out *Outbox) {
	enemy, exists := ws.enemies[enemyID]
	if !exists {
		if task, ok := ws.aiTasks[enemyID]; ok {
			task.Stop()
			delete(ws.aiTasks, enemyID)
		}
		return
	}
	if enemy.IsDead() {
		ws.handleEnemyDeath(enemy, out)
		return
	}
	if ws.combat.EnemyEngaged(enemyID) {
		return
	}

	target := ws.nearestPlayer(enemy.Position)
	if target == nil {
		return
	}
	enemy.UpdateAggro(target.Position, ws.cfg.AggroRadius)
	if !enemy.Active || ws.combat.InCombat(target.ID) {
		return
	}

	distance := enemy.Position.DistanceTo(target.Position)
	switch {
	case distance <= 1:
		if err := ws.combat.StartCombat(target, enemy, out); err != nil {
			logger.Debug("Enemy could not engage", "enemy_id", enemyID, "player_id", target.ID, "error", err)
		}
	case distance <= ws.cfg.ChaseRadius:
		ws.moveEnemyTowards(enemy, target.Position, out)
	}
}

func (ws *WorldService) nearestPlayer(pos models.Position) *models.Player {
	var nearest *models.Player
	best := 0
	for _, id := range sortedKeys(ws.players) {
		p := ws.players[id]
		if d := pos.DistanceTo(p.Position); nearest == nil || d < best {
			nearest, best = p, d
		}
	}
	return nearest
}

func (ws *WorldService) moveEnemyTowards(enemy *models.Enemy, target models.Position, out *Outbox) {
	path := FindPath(ws.gameMap, enemy.Position, target, func(p models.Position) bool {
		return !ws.gameMap.IsBlocked(p)
	})
	if len(path) < 2 {
		return
	}
	next := path[1]
	if ws.gameMap.IsBlocked(next) {
		return
	}
	ws.relocateEnemy(enemy, next, out)
}

func (ws *WorldService) relocateEnemy(enemy *models.Enemy, to models.Position, out *Outbox) {
	from := enemy.Position
	enemy.Position = to
	ws.gameMap.MoveEntity(enemy, from, to)
	out.Broadcast(messages.MessageTypeEnemyUpdate, messages.EnemyUpdateMessage{EnemyID: enemy.ID, Position: to})
}

// handleEnemyDeath removes a dead enemy: its explosion goes off, it drops
// its loot as treasure and the population is topped up. Calling it again
// for the same enemy does nothing.
func (ws *WorldService) handleEnemyDeath(enemy *models.Enemy, out *Outbox) {
	if ws.enemies[enemy.ID] != enemy {
		return
	}

	if damage, radius, ok := enemy.TriggerExplosion(); ok {
		ws.explode(enemy, damage, radius, out)
	}

	delete(ws.enemies, enemy.ID)
	ws.gameMap.RemoveEntity(enemy.Position, enemy)
	if task, ok := ws.aiTasks[enemy.ID]; ok {
		task.Stop()
		delete(ws.aiTasks, enemy.ID)
	}
	ws.combat.EndCombatWithEnemy(enemy.ID, out)

	ws.addItem(models.ItemTreasure, enemy.Position, enemy.Loot)
	logger.Info("Enemy defeated", "enemy_id", enemy.ID, "kind", enemy.Kind, "loot", enemy.Loot, "position", enemy.Position.String())
	ws.record(persistence.KindEnemyDefeated, nil, fmt.Sprintf("%s #%d dropped %d", enemy.Kind, enemy.ID, enemy.Loot))

	if len(ws.enemies) < ws.cfg.MaxEnemies {
		ws.spawnEnemy(out)
	}
}

func (ws *WorldService) explode(enemy *models.Enemy, damage, radius int, out *Outbox) {
	logger.Info("Explosion", "enemy_id", enemy.ID, "position", enemy.Position.String(), "damage", damage)
	for _, id := range sortedKeys(ws.players) {
		player := ws.players[id]
		if player.Position.DistanceTo(enemy.Position) > radius {
			continue
		}
		before := player.HP
		player.ReceiveDamage(damage, ws.rng)
		out.Unicast(player.ID, messages.MessageTypeDamageDealt, messages.DamageMessage{
			PlayerID:       player.ID,
			TargetPlayerID: player.ID,
			Position:       player.Position,
			Amount:         before - player.HP,
			Kind:           messages.DamageExplosion,
		})
		out.Broadcast(messages.MessageTypePlayerUpdate, playerUpdate(player))
		if player.IsDead() {
			ws.handlePlayerDeath(player, out)
		}
	}
}

// handlePlayerDeath respawns a player at full health on a random free cell.
// Inventory and treasure are kept.
func (ws *WorldService) handlePlayerDeath(player *models.Player, out *Outbox) {
	if ws.players[player.ID] != player {
		return
	}
	ws.combat.EndCombat(player.ID, out)

	if pos, ok := ws.gameMap.RandomEmptyPosition(ws.rng); ok {
		from := player.Position
		player.Position = pos
		ws.gameMap.MoveEntity(player, from, pos)
	}
	player.SetHealth(player.MaxHP)

	out.Broadcast(messages.MessageTypePlayerMoved, messages.PlayerMovedMessage{PlayerID: player.ID, Position: player.Position})
	out.Broadcast(messages.MessageTypePlayerUpdate, playerUpdate(player))
	logger.Info("Player died and respawned", "player_id", player.ID, "name", player.Name, "position", player.Position.String())
	ws.record(persistence.KindPlayerDied, player, player.Position.String())
}

// handleTeleport moves a wounded teleporting enemy to a random free cell
func (ws *WorldService) handleTeleport(enemy *models.Enemy, out *Outbox) {
	if !enemy.TriggerTeleport() {
		return
	}
	pos, ok := ws.gameMap.RandomEmptyPosition(ws.rng)
	if !ok {
		return
	}
	from := enemy.Position
	ws.relocateEnemy(enemy, pos, out)
	enemy.Active = true
	logger.Info("Enemy teleported", "enemy_id", enemy.ID, "from", from.String(), "to", pos.String())
}
