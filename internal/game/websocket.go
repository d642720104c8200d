package game

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/patpanic/patpanic-backend/internal"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one WebSocket connection in a room. Gorilla allows a single
// concurrent writer per connection, so every write goes through the client
// mutex: broadcasts and error replies come from different goroutines.
type client struct {
	conn *websocket.Conn
	ref  string
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub fans session events out to every connection in a room and dispatches
// inbound commands to the right session. It is the EventEmitter the game
// package broadcasts through.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool

	registry *Registry
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*client]bool)}
}

// AttachRegistry wires the registry in after construction; the registry
// itself needs the hub as its emitter, so neither can be built first with
// the other already in hand.
func (h *Hub) AttachRegistry(r *Registry) {
	h.registry = r
}

// =============================================================================
// EVENT EMITTER
// =============================================================================

func (h *Hub) EmitTimerUpdate(roomID string, secondsLeft int) {
	h.broadcast(roomID, internal.Message[internal.TimerUpdateData]{
		Type: "timer_update",
		Data: internal.TimerUpdateData{RoomID: roomID, SecondsLeft: secondsLeft},
	})
}

func (h *Hub) EmitStatus(roomID string, status internal.GameStatus) {
	h.broadcast(roomID, internal.Message[internal.GameStatus]{
		Type: "game_status",
		Data: status,
	})
}

func (h *Hub) broadcast(roomID string, msg any) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			log.Printf("[broadcast] room=%s: write failed, dropping client: %v", roomID, err)
			h.unregister(roomID, c)
		}
	}
}

func (h *Hub) register(roomID string, c *client) {
	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*client]bool)
	}
	h.rooms[roomID][c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(roomID string, c *client) {
	h.mu.Lock()
	if clients, ok := h.rooms[roomID]; ok {
		if clients[c] {
			delete(clients, c)
			c.conn.Close()
		}
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()
}

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// HandleWebSocket upgrades the HTTP connection and attaches it to the room's
// session, sending the current status straight away so a reconnecting client
// catches up without a command.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade failed: ", err)
		return
	}

	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		log.Println("No room id provided")
		conn.Close()
		return
	}

	c := &client{conn: conn, ref: uuid.NewString()}
	g := h.registry.Get(roomID)
	h.register(g.RoomID, c)

	if err := c.send(internal.Message[internal.GameStatus]{
		Type: "game_status",
		Data: g.Status(),
	}); err != nil {
		log.Printf("[HandleWebSocket] room=%s: initial status write failed: %v", g.RoomID, err)
		h.unregister(g.RoomID, c)
		return
	}

	go h.handleMessages(g, c)
}

// command payloads

type joinPayload struct {
	Name string `json:"name"`
}

type playerPayload struct {
	PlayerID string `json:"playerId"`
}

type profilePayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
}

type themePayload struct {
	PlayerID string `json:"playerId"`
	Theme    string `json:"theme"`
}

type adjustPayload struct {
	PlayerID string `json:"playerId"`
	Delta    int    `json:"delta"`
}

// handleMessages reads commands off one connection until it drops. Command
// failures are business errors; they go back to the offending client only,
// never to the room.
func (h *Hub) handleMessages(g *GameInstance, c *client) {
	defer func() {
		h.unregister(g.RoomID, c)
		h.handleDisconnect(g, c)
	}()
	log.Printf("Started message handler for connection %s in room %s", c.ref, g.RoomID)

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			log.Printf("Read error occured during websocket message %s, %v", c.ref, err)
			break
		}
		var baseMsg internal.Message[json.RawMessage]
		if err := json.Unmarshal(rawMessage, &baseMsg); err != nil {
			log.Printf("Failed to parse base message: %v", err)
			continue
		}
		log.Printf("Received message type: %s from connection: %s", baseMsg.Type, c.ref)

		if err := h.dispatch(g, c, baseMsg); err != nil {
			h.sendError(c, err)
		}
	}
}

func (h *Hub) dispatch(g *GameInstance, c *client, msg internal.Message[json.RawMessage]) error {
	switch msg.Type {
	case "add_player":
		var p joinPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		player, err := g.AddPlayer(p.Name, c.ref)
		if err != nil {
			return err
		}
		return c.send(internal.Message[*internal.Player]{Type: "player_joined", Data: player})

	case "remove_player":
		var p playerPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		return g.RemovePlayer(p.PlayerID)

	case "update_player":
		var p profilePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		return g.UpdatePlayerProfile(p.PlayerID, p.Name, p.Icon)

	case "reconnect":
		var p playerPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		player, err := g.Reconnect(p.PlayerID, c.ref)
		if err != nil {
			return err
		}
		return c.send(internal.Message[*internal.Player]{Type: "reconnected", Data: player})

	case "select_personal_theme":
		var p themePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		return g.SelectPersonalTheme(p.PlayerID, p.Theme)

	case "adjust_score":
		var p adjustPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		return g.AdjustTurnScore(p.PlayerID, p.Delta)

	case "initialize_round":
		return g.InitializeRound()

	case "setup_next_player_turn":
		return g.SetupNextPlayerTurn()

	case "start_turn":
		return g.StartTurn()

	case "validate_card":
		return g.ValidateCard()

	case "pass_card":
		return g.PassCard()

	case "pause_toggle":
		return g.PauseToggle()

	case "restart_game":
		return g.RestartGame()

	case "get_status":
		return c.send(internal.Message[internal.GameStatus]{Type: "game_status", Data: g.Status()})

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		return nil
	}
}

func (h *Hub) sendError(c *client, err error) {
	if werr := c.send(internal.Message[string]{Type: "error", Data: err.Error()}); werr != nil {
		log.Printf("Failed to send error to client %s: %v", c.ref, werr)
	}
}

// handleDisconnect pauses a live game when the connection that dropped
// belonged to one of its players, so the table does not lose clock time to a
// flaky network.
func (h *Hub) handleDisconnect(g *GameInstance, c *client) {
	status := g.Status()
	if status.GameState != internal.StatePlaying || status.IsPaused {
		return
	}
	for _, p := range status.Players {
		if p.ConnectionRef == c.ref {
			log.Printf("[handleDisconnect] room=%s: player %s dropped mid-turn, pausing", g.RoomID, p.Name)
			if err := g.PauseToggle(); err != nil {
				log.Printf("[handleDisconnect] room=%s: pause failed: %v", g.RoomID, err)
			}
			return
		}
	}
}
