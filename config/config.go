// Package config loads the server configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"gridrealm/server/logger"
)

// DefaultPort is the port the game server listens on when none is given
const DefaultPort = 62222

// ServerConfig holds all configuration for the game server
type ServerConfig struct {
	Server  NetworkConfig `yaml:"server"`
	World   WorldConfig   `yaml:"world"`
	Combat  CombatConfig  `yaml:"combat"`
	Journal JournalConfig `yaml:"journal"`
	Logging logger.Config `yaml:"logging"`
	Debug   DebugConfig   `yaml:"debug"`
}

// NetworkConfig holds listener and session settings
type NetworkConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxPlayers is the number of concurrent sessions before new
	// connections are turned away.
	MaxPlayers int `yaml:"max_players"`

	// BroadcastInterval is the period of the full-state resync
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Codec is the wire encoding: "json" (text frames) or "msgpack" (binary frames)
	Codec string `yaml:"codec"`

	MaxMessageSize int64    `yaml:"max_message_size"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WorldConfig holds world simulation settings
type WorldConfig struct {
	BoardSize      int           `yaml:"board_size"`
	MaxEnemies     int           `yaml:"max_enemies"`
	InitialEnemies int           `yaml:"initial_enemies"`
	SpawnInterval  time.Duration `yaml:"spawn_interval"`

	// ItemDensity is the share of cells that receive an item at startup
	ItemDensity float64 `yaml:"item_density"`

	// Enemy AI timers start after AIDelay and tick at a random period in
	// [AIMinPeriod, AIMaxPeriod).
	AIDelay     time.Duration `yaml:"ai_delay"`
	AIMinPeriod time.Duration `yaml:"ai_min_period"`
	AIMaxPeriod time.Duration `yaml:"ai_max_period"`

	AggroRadius      int `yaml:"aggro_radius"`
	ChaseRadius      int `yaml:"chase_radius"`
	VisibilityRadius int `yaml:"visibility_radius"`

	AbilityDuration time.Duration `yaml:"ability_duration"`
	BoostAmount     int           `yaml:"boost_amount"`
	RegenAmount     int           `yaml:"regen_amount"`
	RegenInterval   time.Duration `yaml:"regen_interval"`
	PowerPotionGain int           `yaml:"power_potion_gain"`

	// TraitChance is the probability a spawned enemy carries a trait
	TraitChance float64 `yaml:"trait_chance"`

	// Seed fixes the world's random source; 0 seeds from the clock
	Seed int64 `yaml:"seed"`
}

// CombatConfig holds combat session settings
type CombatConfig struct {
	TurnInterval time.Duration `yaml:"turn_interval"`
}

// JournalConfig selects where game events are recorded
type JournalConfig struct {
	// Driver is one of "none", "file", "sqlite" or "postgres"
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`

	// BufferSize is the number of entries queued before new ones are dropped
	BufferSize int `yaml:"buffer_size"`
}

// DebugConfig holds lock diagnostics settings
type DebugConfig struct {
	DeadlockDetection bool          `yaml:"deadlock_detection"`
	DeadlockTimeout   time.Duration `yaml:"deadlock_timeout"`
}

// DefaultConfig returns a ServerConfig with the reference game settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Server: NetworkConfig{
			Port:              DefaultPort,
			MaxPlayers:        10,
			BroadcastInterval: 100 * time.Millisecond,
			Codec:             "json",
			MaxMessageSize:    8192,
			AllowedOrigins:    []string{"*"},
		},
		World: WorldConfig{
			BoardSize:        15,
			MaxEnemies:       20,
			InitialEnemies:   10,
			SpawnInterval:    5 * time.Second,
			ItemDensity:      0.10,
			AIDelay:          time.Second,
			AIMinPeriod:      500 * time.Millisecond,
			AIMaxPeriod:      1500 * time.Millisecond,
			AggroRadius:      2,
			ChaseRadius:      5,
			VisibilityRadius: 2,
			AbilityDuration:  15 * time.Second,
			BoostAmount:      10,
			RegenAmount:      5,
			RegenInterval:    time.Second,
			PowerPotionGain:  5,
			TraitChance:      0.5,
		},
		Combat: CombatConfig{
			TurnInterval: time.Second,
		},
		Journal: JournalConfig{
			Driver:     "none",
			Path:       "data/journal.db",
			BufferSize: 256,
		},
		Logging: logger.DefaultConfig(),
		Debug: DebugConfig{
			DeadlockDetection: false,
			DeadlockTimeout:   30 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults; a malformed one yields the defaults
// and the parse error.
func LoadConfig(path string) (*ServerConfig, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return config, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return DefaultConfig(), fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	config.ApplyEnv()
	return config, config.Validate()
}

// ApplyEnv applies environment variable overrides
func (c *ServerConfig) ApplyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		c.Journal.Driver = dbType
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Journal.DSN = dsn
	}
	if dbFile := os.Getenv("DB_FILE"); dbFile != "" {
		c.Journal.Path = dbFile
	}
	c.Logging.ApplyEnv()
}

// Validate rejects settings the simulation cannot run with
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.MaxPlayers <= 0 {
		return fmt.Errorf("max_players must be positive")
	}
	if c.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast_interval must be positive")
	}
	if c.World.BoardSize < 2 {
		return fmt.Errorf("board_size must be at least 2")
	}
	if c.World.AIMinPeriod <= 0 || c.World.AIMaxPeriod < c.World.AIMinPeriod {
		return fmt.Errorf("invalid AI period range %s..%s", c.World.AIMinPeriod, c.World.AIMaxPeriod)
	}
	if c.World.SpawnInterval <= 0 {
		return fmt.Errorf("spawn_interval must be positive")
	}
	if c.World.RegenInterval <= 0 {
		return fmt.Errorf("regen_interval must be positive")
	}
	if c.Combat.TurnInterval <= 0 {
		return fmt.Errorf("turn_interval must be positive")
	}
	switch c.Journal.Driver {
	case "", "none", "file", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown journal driver %q", c.Journal.Driver)
	}
	return nil
}

// Address returns the host:port the listener binds
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsOriginAllowed checks a websocket Origin header against AllowedOrigins.
// An empty origin (non-browser client) is always allowed.
func (n NetworkConfig) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range n.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
