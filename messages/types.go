package messages

import "gridrealm/server/models"

// MessageType defines the type of message being sent
type MessageType string

// Server to client
const (
	MessageTypeWelcome          MessageType = "welcome"
	MessageTypeFullState        MessageType = "full_state"
	MessageTypePlayerUpdate     MessageType = "player_update"
	MessageTypePlayerMoved      MessageType = "player_moved"
	MessageTypePlayerJoined     MessageType = "player_joined"
	MessageTypePlayerLeft       MessageType = "player_left"
	MessageTypeEnemyUpdate      MessageType = "enemy_update"
	MessageTypeItemCollected    MessageType = "item_collected"
	MessageTypeCombatUpdate     MessageType = "combat_update"
	MessageTypeAbilityActivated MessageType = "ability_activated"
	MessageTypeDamageDealt      MessageType = "damage_dealt"
	MessageTypeMoveFailed       MessageType = "move_failed"
	MessageTypeServerShutdown   MessageType = "server_shutdown"
	MessageTypeError            MessageType = "error"
)

// Client to server
const (
	MessageTypeJoinGame        MessageType = "join_game"
	MessageTypeMoveRequest     MessageType = "move_request"
	MessageTypeUsePotion       MessageType = "use_potion"
	MessageTypeActivateAbility MessageType = "activate_ability"
	MessageTypeAttackRequest   MessageType = "attack_request"
	MessageTypeDisconnect      MessageType = "disconnect"
)

// Both directions
const MessageTypeChat MessageType = "chat_message"

// BaseMessage is the base structure for all messages
type BaseMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// New wraps a payload in an envelope
func New(msgType MessageType, payload interface{}) BaseMessage {
	return BaseMessage{Type: msgType, Payload: payload}
}

// WelcomeMessage carries the identifier assigned to a new connection
type WelcomeMessage struct {
	PlayerID int    `json:"player_id"`
	Message  string `json:"message"`
}

// JoinGameMessage requests a character in the world
type JoinGameMessage struct {
	Name  string `json:"name"`
	Class string `json:"class"` // Warrior, Mage or Archer
}

// MoveRequestMessage asks to step onto an adjacent cell
type MoveRequestMessage struct {
	Position models.Position `json:"position"`
}

// UsePotionMessage drinks a carried potion
type UsePotionMessage struct {
	Kind string `json:"kind"` // LIFE or POWER
}

// ActivateAbilityMessage applies a timed ability
type ActivateAbilityMessage struct {
	Kind string `json:"kind"` // BOOST, SHIELD or REGEN
}

// AttackRequestMessage starts combat with the enemy on a cell
type AttackRequestMessage struct {
	Position models.Position `json:"position"`
}

// ChatMessage represents a chat message
type ChatMessage struct {
	Sender    string `json:"sender,omitempty"`
	Message   string `json:"message"`
	System    bool   `json:"system,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PlayerState is a full snapshot record of one player
type PlayerState struct {
	PlayerID         int             `json:"player_id"`
	Name             string          `json:"name"`
	Position         models.Position `json:"position"`
	Health           int             `json:"health"`
	Power            int             `json:"power"`
	Class            string          `json:"class"`
	LifePotionCount  int             `json:"life_potions"`
	PowerPotionCount int             `json:"power_potions"`
	TreasurePoints   int             `json:"treasure_points"`
	Abilities        []string        `json:"abilities,omitempty"`
}

// EnemyState is a snapshot record of one enemy
type EnemyState struct {
	EnemyID  int             `json:"enemy_id"`
	Type     string          `json:"type"`
	Position models.Position `json:"position"`
	Health   int             `json:"health"`
	Visible  bool            `json:"visible"`
	Traits   []string        `json:"traits,omitempty"`
}

// ItemState is a snapshot record of one item
type ItemState struct {
	ItemID   int             `json:"item_id"`
	Type     string          `json:"type"`
	Position models.Position `json:"position"`
	Visible  bool            `json:"visible"`
}

// FullStateMessage is the periodic resynchronization snapshot
type FullStateMessage struct {
	Players []PlayerState `json:"players"`
	Enemies []EnemyState  `json:"enemies"`
	Items   []ItemState   `json:"items"`
}

// PlayerUpdateMessage carries a player's current stats and inventory
type PlayerUpdateMessage struct {
	PlayerID int         `json:"player_id"`
	Health   int         `json:"health"`
	Power    int         `json:"power"`
	State    PlayerState `json:"state"`
}

// PlayerMovedMessage announces a completed move
type PlayerMovedMessage struct {
	PlayerID int             `json:"player_id"`
	Position models.Position `json:"position"`
}

// PlayerJoinedMessage announces a new player
type PlayerJoinedMessage struct {
	PlayerID int             `json:"player_id"`
	Name     string          `json:"name"`
	Position models.Position `json:"position"`
}

// PlayerLeftMessage announces a departed player
type PlayerLeftMessage struct {
	PlayerID int `json:"player_id"`
}

// EnemyUpdateMessage announces an enemy's new position
type EnemyUpdateMessage struct {
	EnemyID  int             `json:"enemy_id"`
	Position models.Position `json:"position"`
}

// ItemCollectedMessage tells a player what they picked up
type ItemCollectedMessage struct {
	PlayerID int    `json:"player_id"`
	Item     string `json:"item"`
	Value    int    `json:"value,omitempty"`
}

// Combat phases carried by CombatUpdateMessage
const (
	CombatStart = "COMBAT_START"
	CombatEnd   = "COMBAT_END"
)

// CombatUpdateMessage marks the start or end of a combat session
type CombatUpdateMessage struct {
	PlayerID int    `json:"player_id"`
	EnemyID  int    `json:"enemy_id"`
	Phase    string `json:"phase"`
}

// AbilityActivatedMessage announces an ability
type AbilityActivatedMessage struct {
	PlayerID int    `json:"player_id"`
	Ability  string `json:"ability"`
}

// Damage kinds carried by DamageMessage
const (
	DamageNormal      = "NORMAL"
	DamageCrit        = "CRIT"
	DamageEnemy       = "ENEMY"
	DamageMiss        = "MISS"
	DamageShieldBlock = "SHIELD_BLOCK"
	DamageEnemyDeath  = "ENEMY_DEATH"
	DamageExplosion   = "EXPLOSION"
)

// DamageMessage reports one hit (or miss) to the player involved
type DamageMessage struct {
	PlayerID       int             `json:"player_id"`
	TargetPlayerID int             `json:"target_player_id"`
	Position       models.Position `json:"position"`
	Amount         int             `json:"amount"`
	Kind           string          `json:"kind"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ShutdownMessage tells clients the server is going away
type ShutdownMessage struct {
	Message string `json:"message"`
}

// Error codes
const (
	CodeUnknownMessageType = "UNKNOWN_MESSAGE_TYPE"
	CodeMalformed          = "MALFORMED_MESSAGE"
	CodeServerFull         = "SERVER_FULL"
	CodeNotJoined          = "NOT_JOINED"
	CodeJoinFailed         = "JOIN_FAILED"
	CodeMoveFailed         = "MOVE_FAILED"
	CodeCombatFailed       = "COMBAT_FAILED"
	CodeAbilityFailed      = "ABILITY_FAILED"
	CodePotionFailed       = "POTION_FAILED"
)

// NewError builds an error envelope
func NewError(code, message string) BaseMessage {
	return New(MessageTypeError, ErrorMessage{Code: code, Message: message})
}
