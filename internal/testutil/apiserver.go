package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/domain/model"
)

// ExpiredTokenMessage is the backend's 401 wording for an expired session.
const ExpiredTokenMessage = "Invalid or expired token"

// RevokedTokenMessage is the 401 wording for a token the backend no longer honours.
const RevokedTokenMessage = "Session revoked"

var apiServerSigningKey = []byte("mmk-console-test") //nolint:gochecknoglobals // test-only key

type apiAccount struct {
	user     domainauth.User
	password string
}

// APIServer is an in-process fake of the console backend. Tokens are HS256 JWTs whose
// validity the server tracks itself, so a token can be expired on demand.
type APIServer struct {
	*httptest.Server

	mu         sync.Mutex
	accounts   map[string]*apiAccount
	tokens     map[string]string // token -> email
	expired    map[string]bool
	revoked    map[string]bool
	failures   map[string]int // "METHOD /path" -> forced status
	products   []model.Product
	calls      map[string]int
	renewFails bool
	renewGate  chan struct{}
	tokenTTL   time.Duration
}

// NewAPIServer starts a fake backend that is closed when the test ends.
func NewAPIServer(t TestingTB) *APIServer {
	t.Helper()

	s := &APIServer{
		accounts: make(map[string]*apiAccount),
		tokens:   make(map[string]string),
		expired:  make(map[string]bool),
		revoked:  make(map[string]bool),
		failures: make(map[string]int),
		calls:    make(map[string]int),
		tokenTTL: time.Hour,
		products: []model.Product{
			{ID: "p-1", Name: "Widget", SKU: "W-1", Price: 9.5, Quantity: 3},
			{ID: "p-2", Name: "Gadget", SKU: "G-1", Price: 20, Quantity: 0},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/renew", s.handleRenew)
	mux.HandleFunc("GET /users/me/role", s.authed(s.handleMyRole))
	mux.HandleFunc("PATCH /users/me/role", s.authed(s.handleUpdateMyRole))
	mux.HandleFunc("POST /users/change-password", s.authed(s.handleChangePassword))
	mux.HandleFunc("GET /admin/users", s.authed(s.handleAdminUsers))
	mux.HandleFunc("GET /admin/users/{id}", s.authed(s.handleAdminUser))
	mux.HandleFunc("GET /products", s.authed(s.handleProducts))
	mux.HandleFunc("GET /products/{id}", s.authed(s.handleProduct))

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	registerCleanup(t, s.Close)
	return s
}

// AddUser registers an account directly.
func (s *APIServer) AddUser(email, password, name string, role domainauth.Role) domainauth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, name, role)
}

func (s *APIServer) addUserLocked(email, password, name string, role domainauth.Role) domainauth.User {
	now := time.Now().UTC().Format(time.RFC3339)
	user := domainauth.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.accounts[email] = &apiAccount{user: user, password: password}
	return user
}

// IssueToken mints a valid token for email.
func (s *APIServer) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(email)
}

func (s *APIServer) issueLocked(email string) string {
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(apiServerSigningKey)
	if err != nil {
		panic(err)
	}
	s.tokens[token] = email
	return token
}

// ExpireToken makes token answer 401 with ExpiredTokenMessage. It stays renewable.
func (s *APIServer) ExpireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired[token] = true
}

// ExpireAll expires every issued token.
func (s *APIServer) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.tokens {
		s.expired[token] = true
	}
}

// RevokeAll makes every issued token answer 401 with RevokedTokenMessage. Revoked
// tokens cannot be renewed.
func (s *APIServer) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.tokens {
		s.revoked[token] = true
	}
}

// FailRoute makes an authenticated route such as "GET /products" answer status once
// the caller's token has been accepted. A zero status restores normal handling.
func (s *APIServer) FailRoute(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// FailRenewals makes POST /auth/renew answer 401.
func (s *APIServer) FailRenewals(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewFails = fail
}

// HoldRenewals blocks renewal responses until the returned func is called.
func (s *APIServer) HoldRenewals() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.renewGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Calls reports how many requests reached "METHOD /path".
func (s *APIServer) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// RenewCalls reports how many requests reached POST /auth/renew.
func (s *APIServer) RenewCalls() int {
	return s.Calls("POST /auth/renew")
}

func (s *APIServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in domainauth.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "message", "invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[in.Email]
	if !ok || acct.password != in.Password {
		s.mu.Unlock()
		writeAPIError(w, http.StatusUnauthorized, "error", "Invalid credentials")
		return
	}
	token := s.issueLocked(in.Email)
	user := acct.user
	s.mu.Unlock()

	writeAPIJSON(w, http.StatusOK, domainauth.SignInResponse{
		Token: token,
		User:  domainauth.Principal{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

func (s *APIServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in domainauth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "message", "invalid request body")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[in.Email]; exists {
		s.mu.Unlock()
		writeAPIError(w, http.StatusConflict, "detail", "email already registered")
		return
	}
	user := s.addUserLocked(in.Email, in.Password, in.Name, domainauth.RoleUser)
	s.mu.Unlock()

	writeAPIJSON(w, http.StatusCreated, domainauth.RegisterResponse{
		User: domainauth.Principal{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

func (s *APIServer) handleRenew(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.renewGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	old := domainauth.BearerToken(r.Header.Get("Authorization"))

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.tokens[old]
	if !ok || s.renewFails || s.revoked[old] {
		writeAPIError(w, http.StatusUnauthorized, "error", ExpiredTokenMessage)
		return
	}
	delete(s.tokens, old)
	delete(s.expired, old)
	writeAPIJSON(w, http.StatusOK, domainauth.RenewResponse{Token: s.issueLocked(email)})
}

func (s *APIServer) authed(next func(http.ResponseWriter, *http.Request, *apiAccount)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := domainauth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeAPIError(w, http.StatusUnauthorized, "error", "Missing authorization header")
			return
		}

		s.mu.Lock()
		email, ok := s.tokens[token]
		expired := s.expired[token]
		revoked := s.revoked[token]
		acct := s.accounts[email]
		forced := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		switch {
		case revoked:
			writeAPIError(w, http.StatusUnauthorized, "message", RevokedTokenMessage)
			return
		case !ok || expired || acct == nil:
			writeAPIError(w, http.StatusUnauthorized, "error", ExpiredTokenMessage)
			return
		case forced != 0:
			writeAPIError(w, forced, "message", http.StatusText(forced))
			return
		}
		next(w, r, acct)
	}
}

func (s *APIServer) handleMyRole(w http.ResponseWriter, _ *http.Request, acct *apiAccount) {
	s.mu.Lock()
	user := acct.user
	s.mu.Unlock()
	writeAPIJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *APIServer) handleUpdateMyRole(w http.ResponseWriter, r *http.Request, acct *apiAccount) {
	var in domainauth.UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Role == "" {
		writeAPIError(w, http.StatusBadRequest, "message", "role is required")
		return
	}
	s.mu.Lock()
	acct.user.Role = in.Role
	user := acct.user
	s.mu.Unlock()
	writeAPIJSON(w, http.StatusOK, user)
}

func (s *APIServer) handleChangePassword(w http.ResponseWriter, r *http.Request, acct *apiAccount) {
	var in domainauth.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeAPIError(w, http.StatusBadRequest, "message", "invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct.password != in.CurrentPassword {
		writeAPIError(w, http.StatusBadRequest, "message", "current password is incorrect")
		return
	}
	acct.password = in.NewPassword
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminUsers answers in PascalCase under a data envelope, the shape older
// backends emit.
func (s *APIServer) handleAdminUsers(w http.ResponseWriter, r *http.Request, acct *apiAccount) {
	if !s.isAdmin(acct) {
		writeAPIError(w, http.StatusForbidden, "error", "admin role required")
		return
	}
	role := r.URL.Query().Get("role")
	search := strings.ToLower(r.URL.Query().Get("search"))

	s.mu.Lock()
	var out []map[string]any
	for _, a := range s.accounts {
		if role != "" && string(a.user.Role) != role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.user.Email+" "+a.user.Name), search) {
			continue
		}
		out = append(out, map[string]any{
			"ID":        a.user.ID,
			"Email":     a.user.Email,
			"Name":      a.user.Name,
			"Role":      string(a.user.Role),
			"CreatedAt": a.user.CreatedAt,
		})
	}
	s.mu.Unlock()

	writeAPIJSON(w, http.StatusOK, map[string]any{"data": out, "total": len(out)})
}

func (s *APIServer) handleAdminUser(w http.ResponseWriter, r *http.Request, acct *apiAccount) {
	if !s.isAdmin(acct) {
		writeAPIError(w, http.StatusForbidden, "error", "admin role required")
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.ID == id {
			writeAPIJSON(w, http.StatusOK, a.user)
			return
		}
	}
	writeAPIError(w, http.StatusNotFound, "message", "user not found")
}

func (s *APIServer) handleProducts(w http.ResponseWriter, _ *http.Request, _ *apiAccount) {
	s.mu.Lock()
	items := append([]model.Product(nil), s.products...)
	s.mu.Unlock()
	writeAPIJSON(w, http.StatusOK, model.ProductList{Items: items})
}

func (s *APIServer) handleProduct(w http.ResponseWriter, r *http.Request, _ *apiAccount) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			writeAPIJSON(w, http.StatusOK, p)
			return
		}
	}
	writeAPIError(w, http.StatusNotFound, "message", "product not found")
}

func (s *APIServer) isAdmin(acct *apiAccount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return acct.user.Role == domainauth.RoleAdmin
}

func writeAPIJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, field, message string) {
	writeAPIJSON(w, status, map[string]string{field: message})
}
