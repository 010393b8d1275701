package session

import (
	"context"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/securewatch/securewatch/internal/client"
)

// API is the subset of the remote service the machine talks to.
type API interface {
	Login(ctx context.Context, email, password string) (*client.AuthResult, error)
	Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResult, error)
	CurrentUser(ctx context.Context) (*client.UserDetail, error)
}

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Get() (string, bool)
	Set(token string)
	Clear()
}

// Machine owns the session state. All mutation happens under mu; network
// calls happen outside it and their results are applied only if no newer
// operation has committed in the meantime.
type Machine struct {
	api      API
	tokens   TokenStore
	logger   zerolog.Logger
	validate *validator.Validate
	hydrate  singleflight.Group

	mu    sync.Mutex
	state State
	phase Phase

	// seq numbers every operation. loadingOwner is the operation that
	// currently holds IsLoading; lastCommit is the newest operation whose
	// result was applied.
	seq          uint64
	loadingOwner uint64
	lastCommit   uint64
	hydrating    bool

	// uncheckedToken is set when hydration deferred to a login or register
	// already in flight and so never validated the stored token. The next
	// commit decides the token's fate.
	uncheckedToken bool

	subscribers map[int]chan State
	nextSubID   int
}

// New creates a machine in the uninitialized phase. Nothing is read from
// the token store until InitializeAuth runs.
func New(api API, tokens TokenStore, logger zerolog.Logger) *Machine {
	return &Machine{
		api:         api,
		tokens:      tokens,
		logger:      logger.With().Str("component", "session").Logger(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		phase:       PhaseUninitialized,
		subscribers: make(map[int]chan State),
	}
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Subscribe returns a channel that receives the state after every change.
// Slow readers only see the latest state. The cancel func closes the channel.
func (m *Machine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// notify must be called with mu held.
func (m *Machine) notify() {
	s := m.state.clone()
	for _, ch := range m.subscribers {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

// begin registers a new operation. Preempting operations always take over
// IsLoading; the others only take it when nothing else is in flight.
// Must be called with mu held.
func (m *Machine) begin(phase Phase, preempt bool) (op uint64, owns bool) {
	m.seq++
	op = m.seq
	if m.loadingOwner != 0 && !preempt {
		return op, false
	}

	m.loadingOwner = op
	m.state.IsLoading = true
	m.state.Error = nil
	m.phase = phase
	m.notify()
	return op, true
}

// settle releases IsLoading if op still owns it and reports whether op may
// apply its result. Must be called with mu held.
func (m *Machine) settle(op uint64, owns bool) (apply bool) {
	if !owns || m.loadingOwner != op {
		return false
	}
	m.loadingOwner = 0
	m.state.IsLoading = false
	m.phase = m.settledPhase()
	return op > m.lastCommit
}

// settledPhase must be called with mu held.
func (m *Machine) settledPhase() Phase {
	switch {
	case m.state.User != nil:
		return PhaseAuthenticated
	case m.state.HasHydrated || m.lastCommit > 0:
		return PhaseAnonymous
	default:
		return PhaseUninitialized
	}
}

func (m *Machine) setUser(u *User) {
	m.state.User = u
	m.state.IsAuthenticated = u != nil
}

// InitializeAuth restores the session from the token store. Concurrent and
// repeated calls share one hydration; once HasHydrated is set it is a no-op.
// A cancelled ctx stops the wait but not the hydration itself.
func (m *Machine) InitializeAuth(ctx context.Context) {
	m.mu.Lock()
	done := m.state.HasHydrated
	m.mu.Unlock()
	if done {
		return
	}

	ch := m.hydrate.DoChan("hydrate", func() (any, error) {
		m.runHydration(context.WithoutCancel(ctx))
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (m *Machine) runHydration(ctx context.Context) {
	m.mu.Lock()
	if m.state.HasHydrated || m.hydrating {
		m.mu.Unlock()
		return
	}
	m.hydrating = true
	op, owns := m.begin(PhaseHydrating, false)
	if !owns {
		m.uncheckedToken = true
	}
	m.mu.Unlock()

	var (
		user   *client.UserDetail
		err    error
		hadTok bool
	)
	// A user-triggered login or register already in flight decides the
	// session; hydration only marks the store as read.
	if owns {
		_, hadTok = m.tokens.Get()
		if hadTok {
			user, err = m.api.CurrentUser(ctx)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settle(op, owns) {
		m.lastCommit = op
		switch {
		case !hadTok:
			m.setUser(nil)
			m.logger.Debug().Msg("No stored token, session is anonymous")
		case err != nil:
			m.tokens.Clear()
			m.setUser(nil)
			if e := classify(opHydrate, err); e.Kind != SessionExpired {
				m.state.Error = e
				m.logger.Warn().Err(err).Str("kind", string(e.Kind)).Msg("Failed to restore session")
			} else {
				m.logger.Info().Msg("Stored token rejected, session is anonymous")
			}
		default:
			m.setUser(userFromDetail(*user))
			m.logger.Debug().Str("user_id", user.ID).Str("role", user.Role).Msg("Session restored")
		}
	}

	m.hydrating = false
	m.state.HasHydrated = true
	if m.loadingOwner == 0 {
		m.phase = m.settledPhase()
	}
	m.notify()
}

// Login authenticates with the remote service. On success the token is
// persisted and the user becomes authenticated. A newer login, register or
// logout supersedes an in-flight login, whose result is then discarded and
// ErrSuperseded returned.
func (m *Machine) Login(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	op, _ := m.begin(PhaseAuthenticating, true)
	m.mu.Unlock()

	var (
		res *client.AuthResult
		err = m.validate.Struct(creds)
	)
	if err == nil {
		res, err = m.api.Login(ctx, creds.Email, creds.Password)
	}

	return m.commitAuth(opLogin, op, res, err)
}

// Register creates an account and signs in with it. Input is validated
// locally before any request is sent.
func (m *Machine) Register(ctx context.Context, details RegisterDetails) error {
	m.mu.Lock()
	op, _ := m.begin(PhaseRegistering, true)
	m.mu.Unlock()

	var (
		res *client.AuthResult
		err = m.validate.Struct(details)
	)
	if err == nil {
		res, err = m.api.Register(ctx, client.RegisterRequest{
			Name:     details.Name,
			Email:    details.Email,
			Password: details.Password,
			Role:     string(details.Role),
		})
	}

	return m.commitAuth(opRegister, op, res, err)
}

func (m *Machine) commitAuth(kind operation, op uint64, res *client.AuthResult, err error) error {
	classified := classify(kind, err)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settle(op, true) {
		m.logger.Debug().Str("operation", kind.String()).Msg("Discarding superseded result")
		m.notify()
		if classified != nil {
			return classified
		}
		return ErrSuperseded
	}

	m.lastCommit = op
	unchecked := m.uncheckedToken
	m.uncheckedToken = false
	if classified != nil {
		if unchecked {
			// The token predates this attempt and was never validated.
			m.tokens.Clear()
			m.logger.Debug().Msg("Dropping unvalidated stored token")
		}
		m.state.Error = classified
		m.phase = m.settledPhase()
		m.logger.Info().Str("operation", kind.String()).Str("kind", string(classified.Kind)).Msg("Authentication failed")
		m.notify()
		return classified
	}

	m.tokens.Set(res.Token)
	m.setUser(userFromDetail(res.User))
	m.phase = PhaseAuthenticated
	m.logger.Info().Str("operation", kind.String()).Str("user_id", res.User.ID).Str("role", res.User.Role).Msg("Authenticated")
	m.notify()
	return nil
}

// GetCurrentUser revalidates the stored token. A rejected token clears the
// session without recording an error; other failures keep the user and
// record the error. When another operation is in flight it does nothing.
func (m *Machine) GetCurrentUser(ctx context.Context) error {
	if _, ok := m.tokens.Get(); !ok {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.loadingOwner != 0 {
			return nil
		}
		m.seq++
		m.lastCommit = m.seq
		m.uncheckedToken = false
		hadUser := m.state.User != nil
		m.setUser(nil)
		m.phase = m.settledPhase()
		m.notify()
		if hadUser {
			return &Error{Kind: SessionExpired, Message: "session expired, please log in again"}
		}
		return nil
	}

	m.mu.Lock()
	op, owns := m.begin(PhaseRefreshing, false)
	m.mu.Unlock()
	if !owns {
		m.logger.Debug().Msg("Skipping revalidation, another operation is in flight")
		return nil
	}

	user, err := m.api.CurrentUser(ctx)
	classified := classify(opRefresh, err)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settle(op, owns) {
		m.notify()
		if classified != nil {
			return classified
		}
		return ErrSuperseded
	}

	m.lastCommit = op
	m.uncheckedToken = false
	switch {
	case classified == nil:
		m.setUser(userFromDetail(*user))
	case classified.Kind == SessionExpired:
		m.tokens.Clear()
		m.setUser(nil)
		m.logger.Info().Msg("Stored token rejected, session is anonymous")
	default:
		m.state.Error = classified
		m.logger.Warn().Err(err).Str("kind", string(classified.Kind)).Msg("Failed to revalidate session")
	}
	m.phase = m.settledPhase()
	m.notify()
	return classified.orNil()
}

// orNil keeps a nil *Error from becoming a non-nil error interface.
func (e *Error) orNil() error {
	if e == nil {
		return nil
	}
	return e
}

// Logout discards the session locally. Any operation still in flight will
// have its result discarded. No request is sent.
func (m *Machine) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.lastCommit = m.seq
	m.uncheckedToken = false
	m.tokens.Clear()
	m.setUser(nil)
	m.state.Error = nil
	if m.loadingOwner == 0 {
		m.phase = PhaseAnonymous
	}
	m.logger.Info().Msg("Logged out")
	m.notify()
}

// ClearError resets Error and touches nothing else.
func (m *Machine) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Error == nil {
		return
	}
	m.state.Error = nil
	m.notify()
}

// IsSessionExpired reports whether err was caused by a rejected token.
func IsSessionExpired(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == SessionExpired
}
