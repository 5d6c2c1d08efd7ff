package services

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"gridrealm/server/messages"
	"gridrealm/server/models"
	"gridrealm/server/scheduler"
)

func stubResolve(ws *WorldService, fn ResolveFunc) {
	ws.worldMutex.Lock()
	ws.combat.resolve = fn
	ws.worldMutex.Unlock()
}

func (ws *WorldService) inCombat(playerID int) bool {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return ws.combat.InCombat(playerID)
}

func TestCombatManager_AtMostOneSession(t *testing.T) {
	var mu sync.Mutex
	sched := scheduler.NewManual()
	cm := NewCombatManager(&mu, sched, rand.New(rand.NewSource(1)), time.Second, CombatHooks{}, nil)

	player := models.NewPlayer(1, "Alice", models.ClassWarrior)
	player.Position = models.NewPosition(2, 2)
	goblin := models.NewEnemy(1000, models.EnemyGoblin, models.NewPosition(2, 3), 30, 5, 10)
	orc := models.NewEnemy(1001, models.EnemyOrc, models.NewPosition(3, 2), 30, 5, 10)

	var out Outbox
	if err := cm.StartCombat(player, goblin, &out); err != nil {
		t.Fatalf("first StartCombat failed: %v", err)
	}
	if err := cm.StartCombat(player, orc, &out); !errors.Is(err, ErrAlreadyInCombat) {
		t.Errorf("second StartCombat error = %v, want ErrAlreadyInCombat", err)
	}
	if goblin.Active {
		t.Error("enemy AI should be suspended during combat")
	}

	other := models.NewPlayer(2, "Bob", models.ClassWarrior)
	other.Position = models.NewPosition(1, 3)
	if err := cm.StartCombat(other, goblin, &out); !errors.Is(err, ErrTargetEngaged) {
		t.Errorf("engaging a busy enemy error = %v, want ErrTargetEngaged", err)
	}

	cm.EndCombat(1, &out)
	cm.EndCombat(1, &out)
	if cm.InCombat(1) || sched.Pending("combat:1") {
		t.Error("session and timer should be gone after EndCombat")
	}
	if !goblin.Active {
		t.Error("surviving enemy should be reactivated")
	}

	ends := 0
	for _, e := range out.Drain() {
		if e.Message.Type == messages.MessageTypeCombatUpdate &&
			e.Message.Payload.(messages.CombatUpdateMessage).Phase == messages.CombatEnd {
			ends++
		}
	}
	if ends != 1 {
		t.Errorf("combat end notifications = %d, want 1", ends)
	}
}

func TestCombat_TurnCadence(t *testing.T) {
	ws, sched, _ := newTestWorld(t, nil)
	ws.placePlayer(1, models.ClassWarrior, models.NewPosition(5, 5))
	ws.placeEnemy(models.EnemyGoblin, models.NewPosition(5, 6), 30)

	var calls []string
	stubResolve(ws, func(attacker, defender models.Combatant, rng *rand.Rand) AttackResult {
		switch attacker.(type) {
		case *models.Player:
			calls = append(calls, "player")
		case *models.Enemy:
			calls = append(calls, "enemy")
		}
		return AttackResult{}
	})

	if err := ws.Attack(1, models.NewPosition(5, 6)); err != nil {
		t.Fatalf("Attack failed: %v", err)
	}
	want := []string{"player", "enemy", "player"}
	for i := range want {
		sched.Fire("combat:1")
		if len(calls) != i+1 {
			t.Fatalf("after tick %d resolve was called %d times", i+1, len(calls))
		}
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("turn %d = %s, want %s", i+1, calls[i], want[i])
		}
	}
}

func TestCombat_EnemyDefeated(t *testing.T) {
	ws, sched, rec := newTestWorld(t, nil)
	ws.placePlayer(1, models.ClassWarrior, models.NewPosition(5, 5))
	enemy := ws.placeEnemy(models.EnemyGoblin, models.NewPosition(5, 6), 30)

	stubResolve(ws, func(attacker, defender models.Combatant, rng *rand.Rand) AttackResult {
		e := defender.(*models.Enemy)
		dealt := e.HP
		e.SetHealth(0)
		return AttackResult{DamageDealt: dealt}
	})
	if err := ws.Attack(1, enemy.Position); err != nil {
		t.Fatalf("Attack failed: %v", err)
	}
	sched.Fire("combat:1")

	kinds := rec.damageKinds(1)
	if len(kinds) != 2 || kinds[0] != messages.DamageNormal || kinds[1] != messages.DamageEnemyDeath {
		t.Errorf("damage kinds = %v, want [NORMAL ENEMY_DEATH]", kinds)
	}
	if ws.inCombat(1) || sched.Pending("combat:1") {
		t.Error("combat should end when the enemy dies")
	}
	if sched.Pending("ai:1000") {
		t.Error("dead enemy's AI timer should be cancelled")
	}
	ws.worldMutex.Lock()
	_, alive := ws.enemies[enemy.ID]
	ws.worldMutex.Unlock()
	if alive {
		t.Error("dead enemy should be removed from the world")
	}
}

func TestCombat_PlayerDefeatedRespawns(t *testing.T) {
	ws, sched, _ := newTestWorld(t, nil)
	ws.placePlayer(1, models.ClassWarrior, models.NewPosition(5, 5))
	ws.placeEnemy(models.EnemyOrc, models.NewPosition(5, 6), 30)

	stubResolve(ws, func(attacker, defender models.Combatant, rng *rand.Rand) AttackResult {
		if p, ok := defender.(*models.Player); ok {
			dealt := p.HP
			p.SetHealth(0)
			return AttackResult{DamageDealt: dealt}
		}
		return AttackResult{}
	})
	if err := ws.Attack(1, models.NewPosition(5, 6)); err != nil {
		t.Fatalf("Attack failed: %v", err)
	}
	sched.Fire("combat:1")
	sched.Fire("combat:1")

	state, _ := ws.Player(1)
	if state.Health != models.PlayerMaxHealth {
		t.Errorf("respawned health = %d, want %d", state.Health, models.PlayerMaxHealth)
	}
	if ws.inCombat(1) {
		t.Error("combat should end when the player dies")
	}
}

func TestCombat_ShieldBlock(t *testing.T) {
	ws, sched, rec := newTestWorld(t, nil)
	ws.placePlayer(1, models.ClassWarrior, models.NewPosition(5, 5))
	ws.placeEnemy(models.EnemyOrc, models.NewPosition(5, 6), 500)

	if err := ws.ActivateAbility(1, "SHIELD"); err != nil {
		t.Fatalf("shield failed: %v", err)
	}
	if err := ws.Attack(1, models.NewPosition(5, 6)); err != nil {
		t.Fatalf("Attack failed: %v", err)
	}
	sched.Fire("combat:1")
	sched.Fire("combat:1")

	kinds := rec.damageKinds(1)
	if len(kinds) == 0 || kinds[len(kinds)-1] != messages.DamageShieldBlock {
		t.Errorf("last damage kind = %v, want SHIELD_BLOCK", kinds)
	}
	state, _ := ws.Player(1)
	if state.Health != models.PlayerMaxHealth {
		t.Errorf("shielded player health = %d", state.Health)
	}
}

func TestCombat_VampireDrains(t *testing.T) {
	ws, sched, _ := newTestWorld(t, nil)
	ws.placePlayer(1, models.ClassWarrior, models.NewPosition(5, 5))
	enemy := ws.placeEnemy(models.EnemyGoblin, models.NewPosition(5, 6), 30)
	enemy.Modifiers.Add(models.Modifier{Kind: models.ModVampire})
	enemy.SetHealth(10)

	stubResolve(ws, func(attacker, defender models.Combatant, rng *rand.Rand) AttackResult {
		if p, ok := defender.(*models.Player); ok {
			p.SetHealth(p.HP - 8)
			return AttackResult{DamageDealt: 8}
		}
		return AttackResult{}
	})
	if err := ws.Attack(1, enemy.Position); err != nil {
		t.Fatalf("Attack failed: %v", err)
	}
	sched.Fire("combat:1")
	sched.Fire("combat:1")

	ws.worldMutex.Lock()
	hp := enemy.HP
	ws.worldMutex.Unlock()
	if hp != 14 {
		t.Errorf("vampire health = %d, want 14", hp)
	}
}

func TestCombat_TeleportOnLowHealth(t *testing.T) {
	ws, sched, rec := newTestWorld(t, nil)
	ws.placePlayer(1, models.ClassWarrior, models.NewPosition(5, 5))
	enemy := ws.placeEnemy(models.EnemyGoblin, models.NewPosition(5, 6), 40)
	enemy.Modifiers.Add(models.Modifier{Kind: models.ModTeleporting})

	stubResolve(ws, func(attacker, defender models.Combatant, rng *rand.Rand) AttackResult {
		if e, ok := defender.(*models.Enemy); ok {
			e.SetHealth(10)
			return AttackResult{DamageDealt: 30}
		}
		return AttackResult{}
	})
	if err := ws.Attack(1, enemy.Position); err != nil {
		t.Fatalf("Attack failed: %v", err)
	}
	sched.Fire("combat:1")

	updates := rec.ofType(messages.MessageTypeEnemyUpdate)
	if len(updates) != 1 {
		t.Fatalf("enemy_update events = %d, want 1", len(updates))
	}
	ws.worldMutex.Lock()
	pos := enemy.Position
	ws.worldMutex.Unlock()
	if pos == models.NewPosition(5, 6) {
		t.Error("teleporting enemy should have moved")
	}
	if updates[0].Message.Payload.(messages.EnemyUpdateMessage).Position != pos {
		t.Error("enemy_update should carry the new position")
	}
}

func TestCombat_FleeAndCloseIn(t *testing.T) {
	ws, _, _ := newTestWorld(t, nil)
	ws.placePlayer(1, models.ClassArcher, models.NewPosition(5, 5))
	ws.placeEnemy(models.EnemyGoblin, models.NewPosition(5, 7), 30)
	if err := ws.Attack(1, models.NewPosition(5, 7)); err != nil {
		t.Fatalf("Attack failed: %v", err)
	}

	if err := ws.MovePlayer(1, models.NewPosition(4, 5)); !errors.Is(err, ErrInvalidMove) {
		t.Errorf("in-range move during combat error = %v, want ErrInvalidMove", err)
	}
	if !ws.inCombat(1) {
		t.Fatal("refused move must not end combat")
	}

	if err := ws.MovePlayer(1, models.NewPosition(5, 4)); err != nil {
		t.Fatalf("flee move failed: %v", err)
	}
	if ws.inCombat(1) {
		t.Error("fleeing out of range should end combat")
	}
}

func TestCombat_TickDetectsDistance(t *testing.T) {
	ws, sched, _ := newTestWorld(t, nil)
	p := ws.placePlayer(1, models.ClassWarrior, models.NewPosition(5, 5))
	ws.placeEnemy(models.EnemyGoblin, models.NewPosition(5, 6), 30)
	if err := ws.Attack(1, models.NewPosition(5, 6)); err != nil {
		t.Fatalf("Attack failed: %v", err)
	}

	ws.worldMutex.Lock()
	ws.gameMap.MoveEntity(p, p.Position, models.NewPosition(0, 0))
	p.Position = models.NewPosition(0, 0)
	ws.worldMutex.Unlock()

	sched.Fire("combat:1")
	if ws.inCombat(1) {
		t.Error("tick should end a session whose combatants drifted apart")
	}
}

func TestCombat_ShutdownSweep(t *testing.T) {
	ws, sched, rec := newTestWorld(t, nil)
	ws.placePlayer(1, models.ClassWarrior, models.NewPosition(5, 5))
	ws.placePlayer(2, models.ClassWarrior, models.NewPosition(9, 9))
	ws.placeEnemy(models.EnemyGoblin, models.NewPosition(5, 6), 30)
	ws.placeEnemy(models.EnemyGoblin, models.NewPosition(9, 10), 30)
	for id, target := range map[int]models.Position{1: {Row: 5, Col: 6}, 2: {Row: 9, Col: 10}} {
		if err := ws.Attack(id, target); err != nil {
			t.Fatalf("Attack by %d failed: %v", id, err)
		}
	}
	if got := ws.Combat().ActiveSessions(); got != 2 {
		t.Fatalf("active sessions = %d, want 2", got)
	}
	rec.reset()

	ws.Shutdown()
	if got := ws.Combat().ActiveSessions(); got != 0 {
		t.Errorf("active sessions after shutdown = %d, want 0", got)
	}
	if sched.Pending("combat:1") || sched.Pending("combat:2") {
		t.Error("combat timers should be cancelled")
	}
	if got := len(rec.ofType(messages.MessageTypeCombatUpdate)); got != 2 {
		t.Errorf("combat_update events = %d, want 2", got)
	}
}
