package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dmehra21/codebid/go/internal/arena/session"
	"github.com/dmehra21/codebid/go/internal/models"
)

func setupServer(cfg *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerRoutes(mux, services)
	setupHealthCheck(mux)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerRoutes(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "valid user_id query parameter is required")
			return
		}
		if _, err := services.Store.GetUser(r.Context(), userID); err != nil {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		if err := services.Manager.UpgradeConnection(w, r, userID); err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
		}
	})

	mux.HandleFunc("POST /api/users", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string          `json:"username"`
			TeamName string          `json:"team_name"`
			Role     models.UserRole `json:"role"`
			Wallet   int             `json:"wallet"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" {
			writeError(w, http.StatusBadRequest, "username is required")
			return
		}
		if req.Role == "" {
			req.Role = models.UserRoleUser
		}
		user := models.User{
			ID:        uuid.New(),
			Username:  req.Username,
			TeamName:  req.TeamName,
			Role:      req.Role,
			Wallet:    req.Wallet,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		if err := services.Store.CreateUser(r.Context(), user); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, user)
	})

	mux.HandleFunc("POST /api/questions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title       string            `json:"title"`
			Description string            `json:"description"`
			Difficulty  models.Difficulty `json:"difficulty"`
			TestCases   []models.TestCase `json:"test_cases"`
			StarterCode string            `json:"starter_code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		question := models.Question{
			ID:          uuid.New(),
			Title:       req.Title,
			Description: req.Description,
			Difficulty:  req.Difficulty,
			TestCases:   req.TestCases,
			StarterCode: req.StarterCode,
			CreatedAt:   time.Now().UTC(),
		}
		if err := services.Store.CreateQuestion(r.Context(), question); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, question)
	})

	mux.HandleFunc("POST /api/auction/push", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID uuid.UUID `json:"question_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		auctionID, err := services.Engine.Controller.PushQuestion(r.Context(), req.QuestionID)
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"auction_id": auctionID})
	})

	mux.HandleFunc("POST /api/auction/start-coding", func(w http.ResponseWriter, r *http.Request) {
		if err := services.Engine.Controller.StartCoding(r.Context()); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "coding started"})
	})

	mux.HandleFunc("POST /api/auction/bid", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AuctionID uuid.UUID `json:"auction_id"`
			UserID    uuid.UUID `json:"user_id"`
			Amount    int       `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		bid, err := services.Engine.PlaceAdhocBid(r.Context(), req.AuctionID, req.UserID, req.Amount)
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, bid)
	})

	mux.HandleFunc("POST /api/submissions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AllotmentID uuid.UUID `json:"allotment_id"`
			UserID      uuid.UUID `json:"user_id"`
			Code        string    `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := services.Engine.SubmitCode(r.Context(), req.AllotmentID, req.UserID, req.Code); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "submitted"})
	})

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title           string      `json:"title"`
			Description     string      `json:"description"`
			ScheduledTime   time.Time   `json:"scheduled_time"`
			QuestionIDs     []uuid.UUID `json:"question_ids"`
			MinUsers        int         `json:"min_users"`
			MaxUsers        int         `json:"max_users"`
			AuctionDuration int         `json:"auction_duration"`
			CodingDuration  int         `json:"coding_duration"`
			CreatedBy       uuid.UUID   `json:"created_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := services.Automaton.Schedule(r.Context(), session.ScheduleParams{
			Title:           req.Title,
			Description:     req.Description,
			ScheduledTime:   req.ScheduledTime,
			QuestionIDs:     req.QuestionIDs,
			MinUsers:        req.MinUsers,
			MaxUsers:        req.MaxUsers,
			AuctionDuration: req.AuctionDuration,
			CodingDuration:  req.CodingDuration,
			CreatedBy:       req.CreatedBy,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, created)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		found, err := services.Store.GetSession(r.Context(), sessionID)
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, found)
	})

	mux.HandleFunc("POST /api/sessions/{id}/join", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		var req struct {
			UserID uuid.UUID `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		joined, err := services.Automaton.Join(r.Context(), sessionID, req.UserID)
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, joined)
	})

	mux.HandleFunc("POST /api/sessions/{id}/leave", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		var req struct {
			UserID uuid.UUID `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := services.Automaton.Leave(r.Context(), sessionID, req.UserID); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "left"})
	})

	mux.HandleFunc("POST /api/sessions/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		if err := services.Automaton.Cancel(r.Context(), sessionID); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
	})

	mux.HandleFunc("GET /api/sessions/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		found, err := services.Store.GetSession(r.Context(), sessionID)
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": found.ID,
			"status":     found.Status,
			"results":    found.Results,
		})
	})

	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, services.Manager.Stats())
	})
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
