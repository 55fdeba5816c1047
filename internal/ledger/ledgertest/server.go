// Package ledgertest serves a memory.Ledger over the ledger service's REST
// routes, for end-to-end tests of the HTTP client and for local development.
package ledgertest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/ledger/memory"
	"budget/internal/log"
	"budget/internal/middleware/trace"
)

// Server routes REST requests to an in-memory ledger.
type Server struct {
	ledger *memory.Ledger
	logger *log.Logger
	mux    *http.ServeMux
}

// NewHandler returns the REST handler wrapped in request tracing.
func NewHandler(l *memory.Ledger, logger *log.Logger) http.Handler {
	s := NewServer(l, logger)
	return trace.NewMiddleware(s.logger).Middleware(s)
}

func NewServer(l *memory.Ledger, logger *log.Logger) *Server {
	s := &Server{
		ledger: l,
		logger: log.OrDefault(logger, log.ComponentLedger),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/register", s.handleRegister)
	s.mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	s.mux.HandleFunc("GET /api/transactions/all", s.handleListAllTransactions)
	s.mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	s.mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	s.mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("PUT /api/profile/settings", s.handleProfileSettings)
	s.mux.HandleFunc("GET /api/admin/users", s.handleListUsers)
	s.mux.HandleFunc("PUT /api/admin/users/{id}", s.handleUpdateUser)
	s.mux.HandleFunc("DELETE /api/admin/users/{id}", s.handleDeleteUser)
	s.mux.HandleFunc("GET /api/roles", s.handleListRoles)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.ledger.Login(body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse("Login successful", res))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body ledger.Registration
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.ledger.Register(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse("User registered successfully", res))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := core.Query{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}
	txs, err := s.ledger.ListTransactions(bearer(r), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactionsJSON(txs)})
}

func (s *Server) handleListAllTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListAllTransactions(bearer(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"all_transactions": transactionsJSON(txs)})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var body ledger.DraftJSON
	if !s.decode(w, r, &body) {
		return
	}
	d, err := body.Core()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.ledger.CreateTransaction(bearer(r), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "Transaction added successfully",
		"transaction": ledger.TransactionToJSON(t),
	})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body ledger.PatchJSON
	if !s.decode(w, r, &body) {
		return
	}
	p, err := body.Core()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.ledger.UpdateTransaction(bearer(r), id, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Transaction updated successfully",
		"transaction": ledger.TransactionToJSON(t),
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteTransaction(bearer(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted successfully"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	month, err1 := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("month")))
	year, err2 := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("year")))
	if err1 != nil || err2 != nil {
		s.writeError(w, r, &core.ValidationError{Reason: "month and year are required"})
		return
	}
	res, err := s.ledger.GetStats(bearer(r), core.StatsQuery{Month: month, Year: year})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.StatsToJSON(res))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(bearer(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleProfileSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Currency string `json:"currency"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	u, err := s.ledger.UpdateProfileSettings(bearer(r), core.Currency(body.Currency))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Settings updated successfully",
		"user":    ledger.UserToJSON(u),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.ledger.ListUsers(bearer(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]ledger.AccountJSON, len(users))
	for i, u := range users {
		out[i] = ledger.AccountToJSON(u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body core.UserPatch
	if !s.decode(w, r, &body) {
		return
	}
	acc, err := s.ledger.UpdateUser(bearer(r), id, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    ledger.AccountToJSON(acc),
	})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteUser(bearer(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.ledger.ListRoles(bearer(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, &core.ValidationError{Reason: "malformed JSON body"})
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, &core.ValidationError{Field: "id", Reason: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// writeError maps the error taxonomy onto the status codes the service uses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).WithComponent(log.ComponentLedger).
			ErrorContext(r.Context(), "Request failed", log.FieldPath, r.URL.Path, log.FieldError, err)
	}
	writeJSON(w, status, ledger.ErrorJSON{Error: err.Error()})
}

// StatusFor returns the HTTP status the service answers with for err.
func StatusFor(err error) int {
	var (
		ve *core.ValidationError
		ae *core.AuthError
		ze *core.AuthorizationError
		ne *core.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ae):
		return http.StatusUnauthorized
	case errors.As(err, &ze):
		return http.StatusForbidden
	case errors.As(err, &ne):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func authResponse(message string, res ledger.AuthResult) map[string]any {
	return map[string]any{
		"message": message,
		"token":   res.Token,
		"user":    ledger.UserToJSON(res.User),
	}
}

func transactionsJSON(txs []core.Transaction) []ledger.TransactionJSON {
	out := make([]ledger.TransactionJSON, len(txs))
	for i, t := range txs {
		out[i] = ledger.TransactionToJSON(t)
	}
	return out
}
