package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"authguard/pkg/behavior"
)

// Server wires the HTTP endpoints to the risk engine and the repository.
type Server struct {
	repo        Repository
	engine      *behavior.Engine
	jwtSecret   []byte
	adminSecret string
	tokenTTL    time.Duration
}

func NewServer(repo Repository, engine *behavior.Engine, jwtSecret []byte, adminSecret string) *Server {
	return &Server{
		repo:        repo,
		engine:      engine,
		jwtSecret:   jwtSecret,
		adminSecret: adminSecret,
		tokenTTL:    15 * time.Minute,
	}
}

type profilePayload struct {
	FlightMean  float64 `json:"flight_mean"`
	DwellMean   float64 `json:"dwell_mean"`
	MouseMean   float64 `json:"mouse_mean"`
	ScrollMean  int     `json:"scroll_mean"`
	ScrollSpeed float64 `json:"scroll_speed"`
	TouchMean   float64 `json:"touch_mean"`
}

func profileOf(b behavior.Baseline) profilePayload {
	return profilePayload{
		FlightMean:  b.FlightMean,
		DwellMean:   b.DwellMean,
		MouseMean:   b.MouseMean,
		ScrollMean:  b.ScrollMean,
		ScrollSpeed: b.ScrollSpeedMean,
		TouchMean:   b.TouchMean,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// HandleRegister enrolls a new account with credentials and a baseline
// seeded from the enrollment telemetry.
func (s *Server) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	username := asString(raw["username"])
	password := asString(raw["password"])
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	sample := behavior.NormalizeSample(raw)
	nowMs := time.Now().UnixMilli()
	baseline := behavior.SeedBaseline(sample, nowMs)
	baseline.Status = behavior.StatusRegistered

	err = s.repo.CreateUser(r.Context(), User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         "customer",
		Baseline:     *baseline,
	})
	if errors.Is(err, ErrUserExists) {
		writeError(w, http.StatusBadRequest, "user already exists")
		return
	}
	if err != nil {
		log.Printf("Failed to create user: %v", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	rec := behavior.HistoryRecord{
		ID:          uuid.NewString(),
		Identity:    username,
		Timestamp:   nowMs,
		FlightMean:  baseline.FlightMean,
		DwellMean:   baseline.DwellMean,
		MouseSpeed:  baseline.MouseMean,
		TouchSpeed:  baseline.TouchMean,
		ScrollCount: baseline.ScrollMean,
		ScrollSpeed: baseline.ScrollSpeedMean,
		Status:      behavior.StatusRegistered,
	}
	if err := s.repo.AppendHistory(r.Context(), username, rec); err != nil {
		log.Printf("Failed to append registration history: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "registered",
		"profile": profileOf(*baseline),
	})
}

// HandleLogin checks credentials, refuses locked identities, and issues a
// short-lived session token.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Secret   string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Role == "admin" {
		if req.Secret != s.adminSecret {
			writeError(w, http.StatusForbidden, "invalid admin secret")
			return
		}
		token, err := s.issueToken(req.Username, "admin")
		if err != nil {
			log.Printf("Failed to issue admin token: %v", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "role": "admin", "token": token})
		return
	}

	user, err := s.repo.GetUser(r.Context(), req.Username)
	if err != nil {
		log.Printf("Failed to load user: %v", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if user.Baseline.LockedAt(time.Now().UnixMilli()) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":        "locked",
			"locked_until": user.Baseline.LockedUntil,
		})
		return
	}

	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusForbidden, "invalid credentials")
		return
	}

	token, err := s.issueToken(user.Username, user.Role)
	if err != nil {
		log.Printf("Failed to issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "role": user.Role, "token": token})
}

// HandleVerify runs one telemetry sample through the risk engine.
func (s *Server) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	username := asString(raw["username"])
	if username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}

	sample := behavior.NormalizeSample(raw)
	res, err := s.engine.Verify(r.Context(), username, sample)
	if err != nil {
		log.Printf("Verification failed for %s: %v", username, err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	verificationsTotal.WithLabelValues(string(res.Status)).Inc()
	if res.Status == behavior.StatusLocked {
		lockoutsTotal.Inc()
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleProfiles lists every identity's baseline summary.
func (s *Server) HandleProfiles(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		log.Printf("Failed to list users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	result := make(map[string]any, len(users))
	for _, u := range users {
		result[u.Username] = map[string]any{
			"profile":     profileOf(u.Baseline),
			"status":      u.Baseline.Status,
			"fraud":       u.Baseline.FraudScore,
			"last_update": u.Baseline.LastUpdate,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleAdmin returns every profile with its full verification history.
// Gated by the admin secret header or an admin session token.
func (s *Server) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	if !s.isAdmin(r) {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		log.Printf("Failed to list users: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	result := make(map[string]any, len(users))
	for _, u := range users {
		history, err := s.repo.ListHistory(r.Context(), u.Username)
		if err != nil {
			log.Printf("Failed to list history for %s: %v", u.Username, err)
			writeError(w, http.StatusInternalServerError, "failed to list history")
			return
		}
		result[u.Username] = map[string]any{
			"profile":     profileOf(u.Baseline),
			"role":        u.Role,
			"status":      u.Baseline.Status,
			"fraud":       u.Baseline.FraudScore,
			"last_update": u.Baseline.LastUpdate,
			"history":     history,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"authguard"}`))
}

func (s *Server) issueToken(username, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  username,
		"role": role,
		"jti":  uuid.NewString(),
		"iss":  "authguard",
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Server) isAdmin(r *http.Request) bool {
	if secret := r.Header.Get("X-Admin-Secret"); secret != "" && secret == s.adminSecret {
		return true
	}
	return s.roleFromToken(r) == "admin"
}

func (s *Server) roleFromToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	token, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
