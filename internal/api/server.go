package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/nutriscan/internal/assess"
	"github.com/pbaille/nutriscan/internal/auth"
	"github.com/pbaille/nutriscan/internal/classifier"
	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/mealgen"
	"github.com/pbaille/nutriscan/internal/session"
	"github.com/pbaille/nutriscan/internal/store"
)

// Deps are the services the API serves
type Deps struct {
	Store       *store.Store
	Assess      *assess.Service
	Credentials auth.CredentialStore
	Issuer      *session.Issuer
	LogDays     int
}

// Server handles HTTP requests for the nutriscan API
type Server struct {
	Deps
	addr string
}

// New creates a new API server
func New(d Deps, addr string) *Server {
	if d.LogDays <= 0 {
		d.LogDays = mealgen.DefaultDays
	}
	return &Server{Deps: d, addr: addr}
}

// Handler builds the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Accounts
	mux.HandleFunc("POST /signup", s.signup)
	mux.HandleFunc("POST /login", s.login)

	// Profile
	mux.HandleFunc("GET /profile", s.withSession(s.getProfile))
	mux.HandleFunc("PUT /profile", s.withSession(s.putProfile))

	// Food log
	mux.HandleFunc("GET /logs", s.withSession(s.getLog))
	mux.HandleFunc("PUT /logs/{date}", s.withSession(s.putLogDay))
	mux.HandleFunc("DELETE /logs/{date}", s.withSession(s.deleteLogDay))
	mux.HandleFunc("POST /logs/generate", s.withSession(s.generateLog))

	// Assessment
	mux.HandleFunc("POST /assess", s.assess)
	mux.HandleFunc("GET /assessments", s.withSession(s.listAssessments))

	// Catalog
	mux.HandleFunc("GET /catalog/search", s.searchCatalog)

	// Tools
	mux.HandleFunc("POST /mcp", s.mcp)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	log.Printf("Starting server on %s", s.addr)
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession rejects requests without a valid bearer token
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			writeErr(w, err)
			return
		}
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		h(w, r, sess)
	}
}

// session rebuilds the caller from the request token. No header means
// an anonymous caller; a bad header is an error.
func (s *Server) session(r *http.Request) (*session.Session, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	token, ok := session.BearerToken(header)
	if !ok {
		return nil, session.ErrInvalidToken
	}

	sess, err := s.Issuer.Parse(token)
	if err != nil {
		return nil, err
	}

	profile, err := s.Store.GetProfile(sess.UserID)
	switch {
	case err == nil:
		sess.Profile = profile
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return sess, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    ServerInfo.Name,
		"version": ServerInfo.Version,
	})
}

// CredentialsRequest is the body of signup and login
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned after signup and login
type TokenResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.Credentials.Create(req.Username, req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.writeToken(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.Credentials.Verify(req.Username, req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.writeToken(w, http.StatusOK, u)
}

func (s *Server) writeToken(w http.ResponseWriter, status int, u *domain.User) {
	token, err := s.Issuer.Issue(u)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, status, TokenResponse{User: u, Token: token})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.Profile == nil {
		writeError(w, http.StatusNotFound, "profile not set")
		return
	}
	writeJSON(w, http.StatusOK, sess.Profile)
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var p domain.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.Validate(); err != nil {
		writeErr(w, err)
		return
	}

	if err := s.Store.SaveProfile(sess.UserID, &p); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getLog(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	l, err := s.Store.GetLog(sess.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": l.Entries(),
	})
}

// LogDayRequest is the body of PUT /logs/{date}
type LogDayRequest struct {
	Items []string `json:"items"`
}

func (s *Server) putLogDay(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	day, ok := parseDay(w, r)
	if !ok {
		return
	}

	var req LogDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.Store.PutLogDay(sess.UserID, day, req.Items); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.FoodLogEntry{Date: day, Items: req.Items})
}

func (s *Server) deleteLogDay(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	day, ok := parseDay(w, r)
	if !ok {
		return
	}

	if err := s.Store.DeleteLogDay(sess.UserID, day); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateLogRequest is the body of POST /logs/generate. All fields are optional.
type GenerateLogRequest struct {
	Seed *uint64 `json:"seed,omitempty"`
	Days int     `json:"days,omitempty"`
	End  string  `json:"end,omitempty"`
}

func (s *Server) generateLog(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req GenerateLogRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	end := time.Now()
	if req.End != "" {
		t, err := time.Parse(domain.DateLayout, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		end = t
	}
	days := s.LogDays
	if req.Days < 0 || req.Days > mealgen.MaxDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be within 1..%d", mealgen.MaxDays))
		return
	}
	if req.Days > 0 {
		days = req.Days
	}
	seed := uint64(time.Now().UnixNano())
	if req.Seed != nil {
		seed = *req.Seed
	}

	l := mealgen.New(seed).Log(end, days)
	if err := s.Store.ReplaceLog(sess.UserID, l); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"seed":    seed,
		"entries": l.Entries(),
	})
}

func (s *Server) assess(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeErr(w, err)
		return
	}

	var in assess.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.Assess.Assess(r.Context(), sess, in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listAssessments(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	limit := queryInt(r, "limit", 20)

	list, err := s.Store.ListAssessments(sess.UserID, limit)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": list,
		"limit":       limit,
	})
}

func (s *Server) searchCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	matches := s.Assess.Aggregator().Search(query, queryInt(r, "n", 5))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"query":   query,
	})
}

func parseDay(w http.ResponseWriter, r *http.Request) (string, bool) {
	day := r.PathValue("date")
	if _, err := time.Parse(domain.DateLayout, day); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return day, true
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// statusFor maps package errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, classifier.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, assess.ErrModelUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
