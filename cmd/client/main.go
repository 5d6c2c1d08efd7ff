// Command client is a line-oriented client for the game server. It prints
// server events and turns typed commands into requests.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"gridrealm/server/config"
	"gridrealm/server/messages"
	"gridrealm/server/models"
)

const helpText = `Commands:
  w, a, s, d            move up, left, down, right
  attack <row> <col>    attack the enemy on a cell
  potion life|power     drink a potion
  ability boost|shield|regen
  say <text>            chat
  help                  show this help
  quit                  leave the game`

type envelope struct {
	Type    messages.MessageType `json:"type"`
	Payload json.RawMessage      `json:"payload"`
}

// client tracks what the command parser needs to know about our player
type client struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	playerID int
	position models.Position
}

func main() {
	in := bufio.NewScanner(os.Stdin)

	host := prompt(in, "Host", "localhost")
	port := prompt(in, "Port", strconv.Itoa(config.DefaultPort))
	name := prompt(in, "Name", "")
	class := prompt(in, "Class (Warrior/Mage/Archer)", "Warrior")

	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect to %s: %v\n", u.String(), err)
		os.Exit(1)
	}
	defer conn.Close()

	c := &client{conn: conn}
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readLoop()
	}()

	if err := c.send(messages.New(messages.MessageTypeJoinGame, messages.JoinGameMessage{Name: name, Class: class})); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(helpText)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			lines <- in.Text()
		}
	}()

	for {
		select {
		case <-done:
			fmt.Println("Disconnected from server")
			return
		case line, ok := <-lines:
			if !ok {
				c.send(messages.New(messages.MessageTypeDisconnect, nil))
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			c.mu.Lock()
			pos := c.position
			c.mu.Unlock()

			msg, err := parseCommand(line, pos)
			if errors.Is(err, errQuit) {
				c.send(messages.New(messages.MessageTypeDisconnect, nil))
				return
			}
			if errors.Is(err, errHelp) {
				fmt.Println(helpText)
				continue
			}
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := c.send(msg); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}
		}
	}
}

func prompt(in *bufio.Scanner, label, fallback string) string {
	if fallback != "" {
		fmt.Printf("%s [%s]: ", label, fallback)
	} else {
		fmt.Printf("%s: ", label)
	}
	if !in.Scan() {
		return fallback
	}
	if value := strings.TrimSpace(in.Text()); value != "" {
		return value
	}
	return fallback
}

func (c *client) send(msg messages.BaseMessage) error {
	return c.conn.WriteJSON(msg)
}

func (c *client) readLoop() {
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.handle(env)
	}
}

func (c *client) handle(env envelope) {
	switch env.Type {
	case messages.MessageTypeWelcome:
		var m messages.WelcomeMessage
		json.Unmarshal(env.Payload, &m)
		c.mu.Lock()
		c.playerID = m.PlayerID
		c.mu.Unlock()
		fmt.Println(m.Message)
	case messages.MessageTypeFullState:
		var m messages.FullStateMessage
		json.Unmarshal(env.Payload, &m)
		c.mu.Lock()
		for _, p := range m.Players {
			if p.PlayerID == c.playerID {
				c.position = p.Position
			}
		}
		c.mu.Unlock()
	case messages.MessageTypePlayerMoved:
		var m messages.PlayerMovedMessage
		json.Unmarshal(env.Payload, &m)
		c.mu.Lock()
		if m.PlayerID == c.playerID {
			c.position = m.Position
			fmt.Printf("You are at %s\n", m.Position)
		}
		c.mu.Unlock()
	case messages.MessageTypeChat:
		var m messages.ChatMessage
		json.Unmarshal(env.Payload, &m)
		fmt.Printf("[%s] %s\n", m.Sender, m.Message)
	case messages.MessageTypeDamageDealt:
		var m messages.DamageMessage
		json.Unmarshal(env.Payload, &m)
		fmt.Printf("%s %d at %s\n", m.Kind, m.Amount, m.Position)
	case messages.MessageTypePlayerUpdate:
		var m messages.PlayerUpdateMessage
		json.Unmarshal(env.Payload, &m)
		c.mu.Lock()
		if m.PlayerID == c.playerID {
			fmt.Printf("Health %d  Power %d  Potions %d/%d  Treasure %d\n",
				m.Health, m.Power, m.State.LifePotionCount, m.State.PowerPotionCount, m.State.TreasurePoints)
		}
		c.mu.Unlock()
	case messages.MessageTypeError, messages.MessageTypeMoveFailed:
		var m messages.ErrorMessage
		json.Unmarshal(env.Payload, &m)
		fmt.Printf("! %s: %s\n", m.Code, m.Message)
	case messages.MessageTypeServerShutdown:
		fmt.Println("Server is shutting down")
	default:
		fmt.Printf("<%s> %s\n", env.Type, string(env.Payload))
	}
}

var moveKeys = map[string][2]int{
	"w": {-1, 0}, "s": {1, 0}, "a": {0, -1}, "d": {0, 1},
}

var (
	errQuit = errors.New("quit")
	errHelp = errors.New("help")
)

// parseCommand turns a typed line into a request. pos is the player's
// current position, used to resolve relative moves.
func parseCommand(line string, pos models.Position) (messages.BaseMessage, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return messages.BaseMessage{}, errHelp
	}

	switch strings.ToLower(fields[0]) {
	case "w", "a", "s", "d":
		delta := moveKeys[strings.ToLower(fields[0])]
		return messages.New(messages.MessageTypeMoveRequest, messages.MoveRequestMessage{Position: pos.Add(delta[0], delta[1])}), nil
	case "attack":
		if len(fields) != 3 {
			return messages.BaseMessage{}, fmt.Errorf("usage: attack <row> <col>")
		}
		row, errRow := strconv.Atoi(fields[1])
		col, errCol := strconv.Atoi(fields[2])
		if errRow != nil || errCol != nil {
			return messages.BaseMessage{}, fmt.Errorf("row and col must be numbers")
		}
		return messages.New(messages.MessageTypeAttackRequest, messages.AttackRequestMessage{Position: models.Position{Row: row, Col: col}}), nil
	case "potion":
		if len(fields) != 2 {
			return messages.BaseMessage{}, fmt.Errorf("usage: potion life|power")
		}
		return messages.New(messages.MessageTypeUsePotion, messages.UsePotionMessage{Kind: strings.ToUpper(fields[1])}), nil
	case "ability":
		if len(fields) != 2 {
			return messages.BaseMessage{}, fmt.Errorf("usage: ability boost|shield|regen")
		}
		return messages.New(messages.MessageTypeActivateAbility, messages.ActivateAbilityMessage{Kind: strings.ToUpper(fields[1])}), nil
	case "say":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		return messages.New(messages.MessageTypeChat, messages.ChatMessage{Message: text}), nil
	case "help":
		return messages.BaseMessage{}, errHelp
	case "quit", "exit":
		return messages.BaseMessage{}, errQuit
	}
	return messages.BaseMessage{}, fmt.Errorf("unknown command %q (type help)", fields[0])
}
