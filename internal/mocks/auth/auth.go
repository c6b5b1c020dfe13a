package auth

// Package auth contains simple hand-written test doubles for the session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.Navigator     = (*RecordingNavigator)(nil)
	_ ports.KeyValueStore = (*FlakyStore)(nil)
)

// ErrStorageFailure is returned by FlakyStore for operations configured to fail.
var ErrStorageFailure = errors.New("storage failure")

// MockAuthClient simulates the sign-in and registration endpoints.
type MockAuthClient struct {
	SignInFunc   func(ctx context.Context, in domainauth.SignInRequest) (domainauth.SignInResponse, error)
	RegisterFunc func(ctx context.Context, in domainauth.RegisterRequest) (domainauth.Principal, error)

	// Token and User are returned by the default SignIn.
	Token string
	User  domainauth.Principal

	mu            sync.Mutex
	signInCalls   int
	registerCalls int
}

// NewMockAuthClient creates a MockAuthClient that accepts any credentials.
func NewMockAuthClient() *MockAuthClient {
	return &MockAuthClient{
		Token: "mock-token-1",
		User:  domainauth.Principal{ID: "mock-user-1", Email: "mock.user@example.com", Name: "Mock User"},
	}
}

func (m *MockAuthClient) SignIn(ctx context.Context, in domainauth.SignInRequest) (domainauth.SignInResponse, error) {
	m.mu.Lock()
	m.signInCalls++
	m.mu.Unlock()

	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, in)
	}
	return domainauth.SignInResponse{Token: m.Token, User: m.User}, nil
}

func (m *MockAuthClient) Register(ctx context.Context, in domainauth.RegisterRequest) (domainauth.Principal, error) {
	m.mu.Lock()
	m.registerCalls++
	m.mu.Unlock()

	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, in)
	}
	return domainauth.Principal{ID: "mock-user-2", Email: in.Email, Name: in.Name}, nil
}

// SignInCalls reports how many times SignIn ran.
func (m *MockAuthClient) SignInCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signInCalls
}

// RegisterCalls reports how many times Register ran.
func (m *MockAuthClient) RegisterCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerCalls
}

// RecordingNavigator records every navigation.
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *RecordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

// Paths returns the navigations in order.
func (n *RecordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// FlakyStore is an in-memory KeyValueStore whose operations can be made to fail.
type FlakyStore struct {
	mu         sync.Mutex
	data       map[string]string
	FailGet    bool
	FailSet    bool
	FailRemove bool
}

// NewFlakyStore creates a FlakyStore seeded with data.
func NewFlakyStore(seed map[string]string) *FlakyStore {
	data := make(map[string]string, len(seed))
	for k, v := range seed {
		data[k] = v
	}
	return &FlakyStore{data: data}
}

func (s *FlakyStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet {
		return "", false, ErrStorageFailure
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *FlakyStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSet {
		return ErrStorageFailure
	}
	s.data[key] = value
	return nil
}

func (s *FlakyStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRemove {
		return ErrStorageFailure
	}
	delete(s.data, key)
	return nil
}

// SetFailures toggles every failure mode at once.
func (s *FlakyStore) SetFailures(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailGet, s.FailSet, s.FailRemove = fail, fail, fail
}

// Value returns the stored value regardless of failure modes.
func (s *FlakyStore) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}
