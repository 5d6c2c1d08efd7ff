package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sasha-s/go-deadlock"

	"gridrealm/server/config"
	"gridrealm/server/logger"
	"gridrealm/server/messages"
	"gridrealm/server/models"
	"gridrealm/server/persistence"
	"gridrealm/server/scheduler"
)

const firstEnemyID = 1000

// WorldService manages the game world. Every exported method is an atomic
// step under the world mutex; the events a step produces are dispatched
// after the mutex is released.
type WorldService struct {
	cfg        config.WorldConfig
	gameMap    *GameMap
	players    map[int]*models.Player
	enemies    map[int]*models.Enemy
	items      map[int]*models.Item
	combat     *CombatManager
	chat       *ChatService
	playerSvc  *PlayerService
	factory    *EnemyFactory
	sched      scheduler.Scheduler
	dispatcher Dispatcher
	journal    persistence.Journal
	rng        *rand.Rand

	nextEnemyID int
	nextItemID  int

	aiTasks      map[int]scheduler.Task
	abilityTasks map[int]map[models.ModifierKind]scheduler.Task
	regenTasks   map[int]scheduler.Task
	spawnTask    scheduler.Task

	initialized bool
	closed      bool
	worldMutex  deadlock.Mutex
}

// NewWorldService creates an empty world. The scheduler is owned by the
// caller and is stopped by Shutdown.
func NewWorldService(cfg *config.ServerConfig, sched scheduler.Scheduler, dispatcher Dispatcher, journal persistence.Journal) *WorldService {
	if dispatcher == nil {
		dispatcher = discardDispatcher{}
	}
	if journal == nil {
		journal = persistence.NopJournal{}
	}
	seed := cfg.World.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	ws := &WorldService{
		cfg:          cfg.World,
		gameMap:      NewGameMap(cfg.World.BoardSize),
		players:      make(map[int]*models.Player),
		enemies:      make(map[int]*models.Enemy),
		items:        make(map[int]*models.Item),
		chat:         NewChatService(),
		playerSvc:    NewPlayerService(cfg.World),
		factory:      NewEnemyFactory(rng, cfg.World.TraitChance),
		sched:        sched,
		dispatcher:   dispatcher,
		journal:      journal,
		rng:          rng,
		nextEnemyID:  firstEnemyID,
		nextItemID:   1,
		aiTasks:      make(map[int]scheduler.Task),
		abilityTasks: make(map[int]map[models.ModifierKind]scheduler.Task),
		regenTasks:   make(map[int]scheduler.Task),
	}
	ws.combat = NewCombatManager(&ws.worldMutex, sched, rng, cfg.Combat.TurnInterval, CombatHooks{
		EnemyDefeated:  ws.handleEnemyDeath,
		PlayerDefeated: ws.handlePlayerDeath,
		EnemyWounded:   ws.handleTeleport,
	}, dispatcher)
	return ws
}

// Combat returns the world's combat manager
func (ws *WorldService) Combat() *CombatManager {
	return ws.combat
}

// Map returns the world's spatial index
func (ws *WorldService) Map() *GameMap {
	return ws.gameMap
}

// Initialize places the starting items and enemies and starts the spawn timer
func (ws *WorldService) Initialize() {
	var out Outbox
	ws.worldMutex.Lock()
	if ws.initialized || ws.closed {
		ws.worldMutex.Unlock()
		return
	}
	ws.initialized = true

	ws.placeItems()
	for i := 0; i < ws.cfg.InitialEnemies && len(ws.enemies) < ws.cfg.MaxEnemies; i++ {
		ws.spawnEnemy(&out)
	}
	ws.spawnTask = ws.sched.Every("spawn", ws.cfg.SpawnInterval, ws.cfg.SpawnInterval, ws.spawnTick)

	logger.Info("World initialized",
		"board_size", ws.cfg.BoardSize,
		"items", len(ws.items),
		"enemies", len(ws.enemies))
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
}

func (ws *WorldService) placeItems() {
	count := int(float64(ws.cfg.BoardSize*ws.cfg.BoardSize) * ws.cfg.ItemDensity)
	for i := 0; i < count; i++ {
		pos, ok := ws.gameMap.RandomEmptyPosition(ws.rng)
		if !ok {
			return
		}
		var kind models.ItemKind
		switch roll := ws.rng.Intn(100); {
		case roll < 30:
			kind = models.ItemWall
		case roll < 65:
			kind = models.ItemLifePotion
		default:
			kind = models.ItemPowerPotion
		}
		ws.addItem(kind, pos, 0)
	}
}

func (ws *WorldService) addItem(kind models.ItemKind, pos models.Position, value int) *models.Item {
	item := models.NewItem(ws.nextItemID, kind, pos, value)
	ws.nextItemID++
	ws.items[item.ID] = item
	ws.gameMap.AddEntity(item)
	return item
}

func (ws *WorldService) removeItem(item *models.Item) {
	delete(ws.items, item.ID)
	ws.gameMap.RemoveEntity(item.Position, item)
}

// Join places a new player on a random free cell. The player is announced
// to everyone, and receives the chat history and a full snapshot.
func (ws *WorldService) Join(playerID int, name, class string) (messages.PlayerState, error) {
	var out Outbox
	ws.worldMutex.Lock()
	state, err := ws.join(playerID, name, class, &out)
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
	return state, err
}

func (ws *WorldService) join(playerID int, name, class string, out *Outbox) (messages.PlayerState, error) {
	if _, exists := ws.players[playerID]; exists {
		return messages.PlayerState{}, ErrAlreadyJoined
	}
	pos, ok := ws.gameMap.RandomEmptyPosition(ws.rng)
	if !ok {
		return messages.PlayerState{}, ErrWorldFull
	}

	player := ws.playerSvc.CreatePlayer(playerID, name, class)
	player.Position = pos
	ws.players[playerID] = player
	ws.gameMap.AddEntity(player)

	out.Broadcast(messages.MessageTypePlayerJoined, messages.PlayerJoinedMessage{
		PlayerID: playerID,
		Name:     player.Name,
		Position: pos,
	})
	for _, line := range ws.chat.Recent(maxChatHistory) {
		out.Unicast(playerID, messages.MessageTypeChat, line)
	}
	out.Unicast(playerID, messages.MessageTypeFullState, ws.snapshot())
	out.Broadcast(messages.MessageTypeChat, ws.chat.System(player.Name+" has joined the game!"))

	logger.Info("Player joined", "player_id", playerID, "name", player.Name, "class", player.Class, "position", pos.String())
	ws.record(persistence.KindJoin, player, string(player.Class))
	return playerState(player), nil
}

// RemovePlayer removes a player from the world, ending its combat and
// abilities. It reports whether the player was present.
func (ws *WorldService) RemovePlayer(playerID int) bool {
	var out Outbox
	ws.worldMutex.Lock()
	player, exists := ws.players[playerID]
	if exists {
		ws.combat.EndCombat(playerID, &out)
		ws.stopAbilities(playerID)
		delete(ws.players, playerID)
		ws.gameMap.RemoveEntity(player.Position, player)

		out.Broadcast(messages.MessageTypePlayerLeft, messages.PlayerLeftMessage{PlayerID: playerID})
		out.Broadcast(messages.MessageTypeChat, ws.chat.System(player.Name+" has left the game."))
		logger.Info("Player removed from game", "player_id", playerID, "name", player.Name)
		ws.record(persistence.KindLeave, player, "")
	}
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
	return exists
}

// MovePlayer validates and performs a one-step move. The destination must
// be on the board, orthogonally adjacent and not blocked. A fighting player
// may only step out of combat range, which ends the fight.
func (ws *WorldService) MovePlayer(playerID int, newPos models.Position) error {
	var out Outbox
	ws.worldMutex.Lock()
	err := ws.movePlayer(playerID, newPos, &out)
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
	return err
}

func (ws *WorldService) movePlayer(playerID int, newPos models.Position, out *Outbox) error {
	player, exists := ws.players[playerID]
	if !exists {
		return ErrPlayerNotFound
	}
	if !ws.gameMap.IsValidPosition(newPos) {
		return fmt.Errorf("%w: %s is off the board", ErrInvalidMove, newPos)
	}
	if manhattan(player.Position, newPos) != 1 {
		return fmt.Errorf("%w: %s is not adjacent", ErrInvalidMove, newPos)
	}
	if ws.gameMap.IsBlocked(newPos) {
		return fmt.Errorf("%w: %s is blocked", ErrInvalidMove, newPos)
	}
	if !ws.combat.HandleCombatMovement(playerID, newPos, out) {
		return fmt.Errorf("%w: cannot close in during combat", ErrInvalidMove)
	}

	oldPos := player.Position
	player.Position = newPos
	ws.gameMap.MoveEntity(player, oldPos, newPos)
	out.Broadcast(messages.MessageTypePlayerMoved, messages.PlayerMovedMessage{PlayerID: playerID, Position: newPos})

	ws.collectItems(player, out)
	out.Broadcast(messages.MessageTypePlayerUpdate, playerUpdate(player))
	return nil
}

func (ws *WorldService) collectItems(player *models.Player, out *Outbox) {
	for _, e := range ws.gameMap.EntitiesAt(player.Position) {
		item, ok := e.(*models.Item)
		if !ok || !ws.playerSvc.Pickup(player, item) {
			continue
		}
		ws.removeItem(item)
		out.Unicast(player.ID, messages.MessageTypeItemCollected, messages.ItemCollectedMessage{
			PlayerID: player.ID,
			Item:     string(item.Kind),
			Value:    item.Value,
		})
		logger.Debug("Item collected", "player_id", player.ID, "item", item.Kind, "value", item.Value)
	}
}

// UsePotion drinks a carried LIFE or POWER potion
func (ws *WorldService) UsePotion(playerID int, kind string) error {
	var out Outbox
	ws.worldMutex.Lock()
	err := ws.usePotion(playerID, kind, &out)
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
	return err
}

func (ws *WorldService) usePotion(playerID int, kind string, out *Outbox) error {
	player, exists := ws.players[playerID]
	if !exists {
		return ErrPlayerNotFound
	}
	if err := ws.playerSvc.UsePotion(player, kind); err != nil {
		return err
	}
	out.Broadcast(messages.MessageTypePlayerUpdate, playerUpdate(player))
	return nil
}

// ActivateAbility applies BOOST, SHIELD or REGEN for the configured
// duration. Everyone receives the activation and a full snapshot, and a
// second snapshot follows when the ability expires.
func (ws *WorldService) ActivateAbility(playerID int, ability string) error {
	var out Outbox
	ws.worldMutex.Lock()
	err := ws.activateAbility(playerID, ability, &out)
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
	return err
}

func (ws *WorldService) activateAbility(playerID int, ability string, out *Outbox) error {
	player, exists := ws.players[playerID]
	if !exists {
		return ErrPlayerNotFound
	}
	kind, err := ws.playerSvc.ApplyAbility(player, ability)
	if err != nil {
		return err
	}

	tasks := ws.abilityTasks[playerID]
	if tasks == nil {
		tasks = make(map[models.ModifierKind]scheduler.Task)
		ws.abilityTasks[playerID] = tasks
	}
	tasks[kind] = ws.sched.After(fmt.Sprintf("ability:%d:%s", playerID, kind), ws.cfg.AbilityDuration, func() {
		ws.expireAbility(playerID, kind)
	})
	if kind == models.ModRegen {
		ws.regenTasks[playerID] = ws.sched.Every(fmt.Sprintf("regen:%d", playerID), ws.cfg.RegenInterval, ws.cfg.RegenInterval, func() {
			ws.regenTick(playerID)
		})
	}

	out.Broadcast(messages.MessageTypeAbilityActivated, messages.AbilityActivatedMessage{PlayerID: playerID, Ability: string(kind)})
	out.Broadcast(messages.MessageTypeFullState, ws.snapshot())
	logger.Info("Ability activated", "player_id", playerID, "ability", kind)
	ws.record(persistence.KindAbility, player, string(kind))
	return nil
}

func (ws *WorldService) expireAbility(playerID int, kind models.ModifierKind) {
	var out Outbox
	ws.worldMutex.Lock()
	if !ws.closed {
		if player, exists := ws.players[playerID]; exists && player.Modifiers.Remove(kind) {
			delete(ws.abilityTasks[playerID], kind)
			if kind == models.ModRegen {
				ws.stopRegen(playerID)
			}
			out.Broadcast(messages.MessageTypeFullState, ws.snapshot())
			logger.Info("Ability expired", "player_id", playerID, "ability", kind)
		}
	}
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
}

func (ws *WorldService) regenTick(playerID int) {
	var out Outbox
	ws.worldMutex.Lock()
	if !ws.closed {
		if player, exists := ws.players[playerID]; exists {
			if healed := ws.playerSvc.Regenerate(player); healed > 0 {
				out.Broadcast(messages.MessageTypePlayerUpdate, playerUpdate(player))
			}
		}
	}
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
}

func (ws *WorldService) stopRegen(playerID int) {
	if task, exists := ws.regenTasks[playerID]; exists {
		task.Stop()
		delete(ws.regenTasks, playerID)
	}
}

func (ws *WorldService) stopAbilities(playerID int) {
	for _, task := range ws.abilityTasks[playerID] {
		task.Stop()
	}
	delete(ws.abilityTasks, playerID)
	ws.stopRegen(playerID)
}

// Attack starts combat with the enemy standing at target
func (ws *WorldService) Attack(playerID int, target models.Position) error {
	var out Outbox
	ws.worldMutex.Lock()
	err := ws.attack(playerID, target, &out)
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
	return err
}

func (ws *WorldService) attack(playerID int, target models.Position, out *Outbox) error {
	player, exists := ws.players[playerID]
	if !exists {
		return ErrPlayerNotFound
	}
	enemy := ws.enemyAt(target)
	if enemy == nil {
		return ErrNoTarget
	}
	return ws.combat.StartCombat(player, enemy, out)
}

func (ws *WorldService) enemyAt(pos models.Position) *models.Enemy {
	for _, e := range ws.gameMap.EntitiesAt(pos) {
		if enemy, ok := e.(*models.Enemy); ok {
			return enemy
		}
	}
	return nil
}

// Chat posts a player's chat line to everyone
func (ws *WorldService) Chat(playerID int, text string) error {
	var out Outbox
	ws.worldMutex.Lock()
	player, exists := ws.players[playerID]
	if exists {
		if msg, ok := ws.chat.Post(player.Name, text); ok {
			out.Broadcast(messages.MessageTypeChat, msg)
			ws.record(persistence.KindChat, player, msg.Message)
		}
	}
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)
	if !exists {
		return ErrPlayerNotFound
	}
	return nil
}

// Snapshot returns the full state: every player, plus the enemies and
// items within visibility range of at least one player.
func (ws *WorldService) Snapshot() messages.FullStateMessage {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return ws.snapshot()
}

func (ws *WorldService) snapshot() messages.FullStateMessage {
	state := messages.FullStateMessage{
		Players: make([]messages.PlayerState, 0, len(ws.players)),
		Enemies: []messages.EnemyState{},
		Items:   []messages.ItemState{},
	}
	radius := ws.cfg.VisibilityRadius
	for _, id := range sortedKeys(ws.players) {
		state.Players = append(state.Players, playerState(ws.players[id]))
	}
	for _, id := range sortedKeys(ws.enemies) {
		if enemy := ws.enemies[id]; visibleTo(ws.players, enemy.Position, radius) {
			state.Enemies = append(state.Enemies, enemyState(enemy))
		}
	}
	for _, id := range sortedKeys(ws.items) {
		if item := ws.items[id]; visibleTo(ws.players, item.Position, radius) {
			state.Items = append(state.Items, itemState(item))
		}
	}
	return state
}

// Player returns the current state of one player
func (ws *WorldService) Player(playerID int) (messages.PlayerState, bool) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	player, exists := ws.players[playerID]
	if !exists {
		return messages.PlayerState{}, false
	}
	return playerState(player), true
}

// PlayerCount returns the number of players in the world
func (ws *WorldService) PlayerCount() int {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return len(ws.players)
}

// EnemyCount returns the number of living enemies
func (ws *WorldService) EnemyCount() int {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return len(ws.enemies)
}

// Shutdown ends every combat, cancels every world timer and stops the
// scheduler. Callbacks already waiting on the world mutex find the world
// closed and return.
func (ws *WorldService) Shutdown() {
	var out Outbox
	ws.worldMutex.Lock()
	if ws.closed {
		ws.worldMutex.Unlock()
		return
	}
	ws.closed = true
	if n := ws.combat.ActiveSessions(); n > 0 {
		logger.Info("Ending combat sessions", "count", n)
	}
	ws.combat.EndAll(&out)
	for id, task := range ws.aiTasks {
		task.Stop()
		delete(ws.aiTasks, id)
	}
	for id := range ws.abilityTasks {
		ws.stopAbilities(id)
	}
	for id := range ws.regenTasks {
		ws.stopRegen(id)
	}
	if ws.spawnTask != nil {
		ws.spawnTask.Stop()
	}
	ws.worldMutex.Unlock()
	out.flush(ws.dispatcher)

	ws.sched.Stop()

	ws.worldMutex.Lock()
	ws.players = make(map[int]*models.Player)
	ws.enemies = make(map[int]*models.Enemy)
	ws.items = make(map[int]*models.Item)
	ws.gameMap.Clear()
	ws.worldMutex.Unlock()
	logger.Info("World shut down")
}

func (ws *WorldService) record(kind string, player *models.Player, detail string) {
	entry := persistence.Entry{Time: time.Now(), Kind: kind, Detail: detail}
	if player != nil {
		entry.PlayerID = player.ID
		entry.Actor = player.Name
	}
	if err := ws.journal.Record(context.Background(), entry); err != nil {
		logger.Warning("Failed to record journal entry", "kind", kind, "error", err)
	}
}

func manhattan(a, b models.Position) int {
	return abs(a.Row-b.Row) + abs(a.Col-b.Col)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
