// Package account keeps the one shared view of who is signed in and what
// they hold: the session, the profile row and the coin balance. The
// Synchronizer is its only writer; everything else reads snapshots.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"
)

var (
	ErrUnknownAuthEvent = errors.New("unknown auth event")
	ErrMissingSession   = errors.New("auth event without session")
	ErrNoProfile        = errors.New("profile not resolved")
	ErrSessionChanged   = errors.New("session changed during request")
	ErrAlreadyRunning   = errors.New("synchronizer already running")
)

// AuthEvents is the identity provider's change stream.
type AuthEvents interface {
	OnAuthStateChange(fn func(models.AuthEvent)) (unsubscribe func())
}

// Backend is the data the synchronizer resolves for a session.
type Backend interface {
	FetchUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	FetchBalance(ctx context.Context, userID string) (*models.Balance, error)
}

// State is a snapshot of the account. A nil Profile or Balance means "not
// available yet", never zero.
type State struct {
	Session   *models.Session
	UserID    string
	UserEmail string
	Profile   *models.UserProfile
	Balance   *decimal.Decimal
	AuthError error
}

// SignedIn reports whether the snapshot carries a session.
func (s State) SignedIn() bool {
	return s.Session != nil
}

func (s State) clone() State {
	c := s
	c.Session = s.Session.Clone()
	if s.Profile != nil {
		p := *s.Profile
		c.Profile = &p
	}
	if s.Balance != nil {
		b := *s.Balance
		c.Balance = &b
	}
	return c
}

type Synchronizer struct {
	events  AuthEvents
	backend Backend
	logger  logging.Logger
	stores  []metadata.Repository

	running atomic.Bool

	mu    sync.RWMutex
	state State
	// bumped whenever the session identity changes; results fetched under
	// an older generation are dropped
	gen    uint64
	subs   map[int]chan State
	nextID int

	qmu    sync.Mutex
	queue  []models.AuthEvent
	notify chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

// New builds a Synchronizer. stores are wiped on sign-out.
func New(events AuthEvents, backend Backend, logger logging.Logger, stores ...metadata.Repository) *Synchronizer {
	return &Synchronizer{
		events:  events,
		backend: backend,
		logger:  logger.With("component", "account"),
		stores:  stores,
		subs:    make(map[int]chan State),
		notify:  make(chan struct{}, 1),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once Run has registered its listener. Events emitted after
// that are never missed.
func (s *Synchronizer) Ready() <-chan struct{} {
	return s.ready
}

// Run registers one listener on the auth stream and handles events in
// arrival order until ctx is done. The listener is released on return.
func (s *Synchronizer) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	unsubscribe := s.events.OnAuthStateChange(s.enqueue)
	defer unsubscribe()
	s.readyOnce.Do(func() { close(s.ready) })

	s.logger.Debug(ctx, "listening for auth events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.notify:
		}

		for {
			ev, ok := s.dequeue()
			if !ok {
				break
			}
			s.HandleEvent(ctx, ev)
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

// enqueue never blocks the emitter.
func (s *Synchronizer) enqueue(ev models.AuthEvent) {
	s.qmu.Lock()
	s.queue = append(s.queue, ev)
	s.qmu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) dequeue() (models.AuthEvent, bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return models.AuthEvent{}, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

// HandleEvent applies one auth event. Failures end up in State.AuthError.
func (s *Synchronizer) HandleEvent(ctx context.Context, ev models.AuthEvent) {
	log := s.logger.With("event", ev.Type)

	switch ev.Type {
	case models.EventInitialSession, models.EventSignedIn, models.EventUserUpdated:
		if ev.Session == nil {
			if ev.Type == models.EventInitialSession {
				s.reset()
				return
			}
			s.setAuthError(fmt.Errorf("%w: %s", ErrMissingSession, ev.Type))
			log.Warn(ctx, "auth event without session")
			return
		}
		gen, userID := s.adopt(ev.Session, true)
		s.resolve(ctx, gen, userID)

	case models.EventPasswordRecovery, models.EventTokenRefreshed:
		if ev.Session == nil {
			s.setAuthError(fmt.Errorf("%w: %s", ErrMissingSession, ev.Type))
			return
		}
		s.adopt(ev.Session, false)

	case models.EventSignedOut:
		s.signOut(ctx)

	default:
		log.Warn(ctx, "unknown auth event")
		s.setAuthError(fmt.Errorf("%w: %q", ErrUnknownAuthEvent, ev.Type))
	}
}

// adopt installs sess. A different user invalidates the profile and the
// balance. clearError drops the previous auth error.
func (s *Synchronizer) adopt(sess *models.Session, clearError bool) (uint64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.UserID != sess.UserID {
		s.gen++
		s.state.Profile = nil
		s.state.Balance = nil
	}
	s.state.Session = sess.Clone()
	s.state.UserID = sess.UserID
	s.state.UserEmail = sess.Email
	if clearError {
		s.state.AuthError = nil
	}
	s.publishLocked()
	return s.gen, sess.UserID
}

// resolve fetches the profile and then the balance of userID.
func (s *Synchronizer) resolve(ctx context.Context, gen uint64, userID string) {
	profile, err := s.backend.FetchUserProfile(ctx, userID)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.logger.Debug(ctx, "dropping profile of a superseded session", "user_id", userID)
		return
	}
	if err != nil {
		s.state.Profile = nil
		s.state.Balance = nil
		s.state.AuthError = fmt.Errorf("fetch profile: %w", err)
		s.publishLocked()
		s.mu.Unlock()
		s.logger.Error(ctx, "profile fetch failed", "user_id", userID, "error", err)
		return
	}
	p := *profile
	s.state.Profile = &p
	s.publishLocked()
	s.mu.Unlock()

	if _, err := s.fetchBalance(ctx, gen, p.UserID); err != nil && !errors.Is(err, ErrSessionChanged) {
		s.logger.Error(ctx, "balance fetch failed", "user_id", p.UserID, "error", err)
	}
}

// RefreshUserBalance re-reads the balance of the resolved profile and
// replaces the cached value. Concurrent refreshes race; the last to finish
// wins.
func (s *Synchronizer) RefreshUserBalance(ctx context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	gen := s.gen
	signedIn := s.state.Session != nil
	var userID string
	if s.state.Profile != nil {
		userID = s.state.Profile.UserID
	}
	s.mu.RUnlock()

	if !signedIn {
		return decimal.Zero, common.ErrNotSignedIn
	}
	if userID == "" {
		return decimal.Zero, ErrNoProfile
	}
	return s.fetchBalance(ctx, gen, userID)
}

func (s *Synchronizer) fetchBalance(ctx context.Context, gen uint64, userID string) (decimal.Decimal, error) {
	b, err := s.backend.FetchBalance(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return decimal.Zero, ErrSessionChanged
	}
	if err != nil {
		s.state.Balance = nil
		s.state.AuthError = fmt.Errorf("fetch balance: %w", err)
		s.publishLocked()
		return decimal.Zero, err
	}

	v := b.Balance
	s.state.Balance = &v
	s.publishLocked()
	return v, nil
}

func (s *Synchronizer) signOut(ctx context.Context) {
	s.reset()

	for _, st := range s.stores {
		if err := st.Clear(ctx); err != nil {
			s.logger.Error(ctx, "failed to wipe client storage", "error", err)
		}
	}
	s.logger.Info(ctx, "signed out, client state cleared")
}

func (s *Synchronizer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = State{}
	s.publishLocked()
}

func (s *Synchronizer) setAuthError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AuthError = err
	s.publishLocked()
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe returns a channel carrying the latest state after every change.
// A slow reader only sees the newest snapshot.
func (s *Synchronizer) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	ch := make(chan State, 1)
	s.subs[id] = ch
	ch <- s.state.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Synchronizer) publishLocked() {
	for _, ch := range s.subs {
		st := s.state.clone()
		select {
		case ch <- st:
			continue
		default:
		}
		// replace the unread snapshot
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
