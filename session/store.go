// Package session holds the in-memory credential pair and the signed-in user's
// view state. Nothing here survives the process; a new run starts signed out.
package session

import (
	"sync"

	"golang.org/x/oauth2"
)

// View is the signed-in user as the rest of the client sees it.
type View struct {
	UserID          int64
	Email           string
	FullName        string
	IsAuthenticated bool
}

// Store owns the access/refresh token pair and the session view.
// The zero value is an empty, signed-out store.
type Store struct {
	mu    sync.RWMutex
	token oauth2.Token
	view  View
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// SetTokens overwrites the held pair. No validation is performed.
func (s *Store) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
}

// Authenticate stores a fresh pair together with the user it belongs to.
func (s *Store) Authenticate(access, refresh string, v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	v.IsAuthenticated = access != ""
	s.view = v
}

// ClearTokens drops the pair and the view. Safe to call repeatedly.
func (s *Store) ClearTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = oauth2.Token{}
	s.view = View{}
}

// AccessToken returns the held access token, if any.
func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.AccessToken, s.token.AccessToken != ""
}

// RefreshToken returns the held refresh token, if any.
func (s *Store) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.RefreshToken, s.token.RefreshToken != ""
}

// Token returns a copy of the held pair as an oauth2 token, or false when no
// access token is held.
func (s *Store) Token() (*oauth2.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token.AccessToken == "" {
		return nil, false
	}
	tok := s.token
	return &tok, true
}

// View returns a snapshot of the session view. IsAuthenticated is false once
// the pair has been cleared, even if the view was never reset by a login.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.IsAuthenticated = v.IsAuthenticated && s.token.AccessToken != ""
	return v
}
