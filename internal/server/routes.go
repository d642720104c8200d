package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/patpanic/patpanic-backend/internal"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.HealthHandler)

	r.HandleFunc("/themes", s.GetThemes).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms", s.GetRooms).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}/status", s.GetRoomStatus).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}", s.CloseRoom).Methods(http.MethodDelete, http.MethodOptions)
	r.HandleFunc("/stats/cards", s.GetCardStats).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws/{roomId}", s.hub.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}

	jsonResp, err := json.Marshal(resp)
	if err != nil {
		log.Printf("error handling JSON marshal. Err: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(jsonResp)
}

// GetThemes lists the loaded theme names with how many elimination-round
// cards each can still contribute.
func (s *Server) GetThemes(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	type themeInfo struct {
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
	}
	themes := make([]themeInfo, 0)
	for _, name := range s.cards.AllThemeNames() {
		themes = append(themes, themeInfo{Name: name, Capacity: s.cards.ThemeCapacity(name)})
	}

	s.writeResponse(w, internal.Response{
		StatusCode:    http.StatusOK,
		RespStartTime: startTime,
		Data:          themes,
	})
}

// GetRooms lists the codes of rooms currently live in the registry.
func (s *Server) GetRooms(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	s.writeResponse(w, internal.Response{
		StatusCode:    http.StatusOK,
		RespStartTime: startTime,
		Data:          s.registry.Rooms(),
	})
}

// GetRoomStatus returns the live status of one room without creating it.
func (s *Server) GetRoomStatus(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	roomID := mux.Vars(r)["roomId"]

	g, ok := s.registry.Peek(roomID)
	if !ok {
		s.writeResponse(w, internal.Response{
			StatusCode:    http.StatusNotFound,
			RespStartTime: startTime,
			Data:          "Room not found",
		})
		return
	}

	s.writeResponse(w, internal.Response{
		StatusCode:    http.StatusOK,
		RespStartTime: startTime,
		Data:          g.Status(),
	})
}

// CloseRoom tears down a room and deletes its snapshot.
func (s *Server) CloseRoom(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	roomID := mux.Vars(r)["roomId"]

	s.registry.CloseRoom(roomID)
	s.writeResponse(w, internal.Response{
		StatusCode:    http.StatusOK,
		RespStartTime: startTime,
		Data:          "Room closed",
	})
}

// GetCardStats exposes card usage analytics. Only available with a database.
func (s *Server) GetCardStats(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	if s.pg == nil {
		s.writeResponse(w, internal.Response{
			StatusCode:    http.StatusServiceUnavailable,
			RespStartTime: startTime,
			Data:          "Analytics require a database",
		})
		return
	}

	round := 0
	if v := r.URL.Query().Get("round"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			s.writeResponse(w, internal.Response{
				StatusCode:    http.StatusBadRequest,
				RespStartTime: startTime,
				Data:          "Invalid round parameter",
			})
			return
		}
		round = parsed
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	stats, err := s.pg.CardStats(r.Context(), r.URL.Query().Get("category"), round, limit)
	if err != nil {
		log.Printf("Error querying card stats: %v", err)
		s.writeResponse(w, internal.Response{
			StatusCode:    http.StatusInternalServerError,
			RespStartTime: startTime,
			Data:          "Failed to query card stats",
		})
		return
	}

	s.writeResponse(w, internal.Response{
		StatusCode:    http.StatusOK,
		RespStartTime: startTime,
		Data:          stats,
	})
}

func (s *Server) writeResponse(w http.ResponseWriter, resp internal.Response) {
	endTime := time.Now().UnixMilli()
	resp.RespEndTime = endTime
	resp.NetRespTime = endTime - resp.RespStartTime

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
