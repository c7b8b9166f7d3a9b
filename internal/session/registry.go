// Package session keeps one order form per client session in memory.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Wordite/tablecrm-t/internal/order"
	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

var ErrNotFound = errors.New("session not found")

// Session is the server-side half of one order form.
type Session struct {
	ID    uuid.UUID
	Store *order.Store

	submitting atomic.Bool
	lastSeen   atomic.Int64

	mu       sync.Mutex
	clients  Listing[tablecrm.Contragent]
	products Listing[tablecrm.Product]
}

// Listing is the last lookup result recorded for a session, tagged with
// the query it answered.
type Listing[T any] struct {
	Query string
	Items []T
}

func newSession(id uuid.UUID, now time.Time) *Session {
	s := &Session{ID: id, Store: order.NewStore()}
	s.touch(now)
	return s
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the time of the last registry lookup of this session.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// BeginSubmit marks a submission as in flight. It returns false when one
// already is.
func (s *Session) BeginSubmit() bool {
	return s.submitting.CompareAndSwap(false, true)
}

func (s *Session) EndSubmit() {
	s.submitting.Store(false)
}

func (s *Session) SetClients(query string, items []tablecrm.Contragent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = Listing[tablecrm.Contragent]{Query: query, Items: items}
}

// SetClientsIf records the client list only if current still reports true.
// The check and the write happen under the session lock, so a result for
// older inputs cannot replace one recorded for newer inputs.
func (s *Session) SetClientsIf(query string, items []tablecrm.Contragent, current func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !current() {
		return false
	}
	s.clients = Listing[tablecrm.Contragent]{Query: query, Items: items}
	return true
}

func (s *Session) Clients() Listing[tablecrm.Contragent] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients
}

func (s *Session) SetProducts(query string, items []tablecrm.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = Listing[tablecrm.Product]{Query: query, Items: items}
}

// SetProductsIf is SetClientsIf for the product list.
func (s *Session) SetProductsIf(query string, items []tablecrm.Product, current func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !current() {
		return false
	}
	s.products = Listing[tablecrm.Product]{Query: query, Items: items}
	return true
}

func (s *Session) Products() Listing[tablecrm.Product] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products
}

// Registry is an in-memory set of sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		now:      time.Now,
	}
}

func (r *Registry) Create() (*Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		log.Error().Err(err).Msg("session: failed to generate session ID")
		return nil, fmt.Errorf("session: failed to generate session ID: %w", err)
	}

	s := newSession(id, r.now())
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	log.Info().Stringer("session_id", id).Msg("session: created")
	return s, nil
}

func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(r.now())
	return s, nil
}

func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	log.Info().Stringer("session_id", id).Msg("session: deleted")
	return nil
}

// Sweep drops sessions not used for longer than maxIdle and returns how
// many were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Int("active", len(r.sessions)).Msg("session: swept idle sessions")
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
