package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"dokan/internal/access"
	"dokan/internal/auth"
	"dokan/internal/domain"
	"dokan/internal/session"
	"dokan/internal/store"
	"dokan/internal/syncgw"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Location          *time.Location
	LowStockThreshold int
	Logger            *slog.Logger
	// Now overrides the clock, mainly in tests.
	Now func() time.Time
}

// Service is the application facade. Every call resolves the acting
// profile from ctx, runs engine code against that profile's session store
// and saves the result through the sync gateway.
//
// Write methods may return a SYNC_FAILED error together with a valid
// result: the change is applied in memory but the local save failed.
type Service struct {
	repo     store.Repository
	auth     *auth.Manager
	sync     *syncgw.Gateway
	sessions *session.Manager
	loc      *time.Location
	lowStock int
	logger   *slog.Logger
	clock    func() time.Time
}

func New(repo store.Repository, authManager *auth.Manager, gateway *syncgw.Gateway, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = domain.DefaultLowStockThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		repo:     repo,
		auth:     authManager,
		sync:     gateway,
		loc:      opts.Location,
		lowStock: opts.LowStockThreshold,
		logger:   opts.Logger.With("component", "service"),
		clock:    opts.Now,
	}
	s.sessions = session.NewManager(s.loadState, gateway.Watch)
	return s
}

func (s *Service) now() time.Time {
	return s.clock().In(s.loc)
}

func (s *Service) today() string {
	return s.now().Format(domain.DateLayout)
}

func (s *Service) loadState(ctx context.Context, profileID string) (session.State, error) {
	profile, err := s.repo.LoadProfile(ctx, profileID)
	if err != nil {
		return session.State{}, err
	}
	txs, err := s.repo.LoadTransactions(ctx, profileID)
	if err != nil {
		return session.State{}, err
	}
	st := session.Empty(profile)
	if txs != nil {
		st.Transactions = txs
	}
	return st, nil
}

// open resolves the actor of ctx and its session store after checking the
// role may use capability. A moderator no longer listed on the shop is
// treated as signed out.
func (s *Service) open(ctx context.Context, capability access.Capability) (domain.Actor, *session.Store, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ProfileID == "" {
		return domain.Actor{}, nil, domain.AuthFailed()
	}
	if err := access.Authorize(actor.Role, capability); err != nil {
		return domain.Actor{}, nil, err
	}
	st, err := s.sessions.Open(ctx, actor.ProfileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Actor{}, nil, domain.AuthFailed()
		}
		return domain.Actor{}, nil, err
	}
	if actor.Role == domain.RoleModerator && !listsModerator(st.Get().Profile, actor.ModeratorID) {
		return domain.Actor{}, nil, domain.AuthFailed()
	}
	return actor, st, nil
}

func listsModerator(profile domain.UserProfile, id string) bool {
	return id != "" && slices.ContainsFunc(profile.Moderators, func(m domain.Moderator) bool { return m.ID == id })
}

func (s *Service) read(ctx context.Context) (domain.Actor, session.State, error) {
	actor, st, err := s.open(ctx, access.Read)
	if err != nil {
		return domain.Actor{}, session.State{}, err
	}
	return actor, st.Get(), nil
}

// mutate applies fn to the actor's state in one transaction and saves the
// result. The returned error is SYNC_FAILED when only the save failed.
func (s *Service) mutate(ctx context.Context, capability access.Capability, fn func(actor domain.Actor, st *session.State) error) (session.State, error) {
	actor, st, err := s.open(ctx, capability)
	if err != nil {
		return session.State{}, err
	}
	next, err := st.Mutate(func(state *session.State) error {
		return fn(actor, state)
	})
	if err != nil {
		return session.State{}, err
	}
	return next, s.persist(ctx, st)
}

// persist saves the newest state of st, not a snapshot taken earlier, so a
// slow save can never overwrite a later one.
func (s *Service) persist(ctx context.Context, st *session.Store) error {
	return st.Save(func(latest session.State) error {
		if err := s.sync.Persist(ctx, latest); err != nil {
			s.logger.Warn("failed to persist state", "profile_id", latest.Profile.ID, "error", err)
			return err
		}
		return nil
	})
}

// IsWarning reports whether err only signals a failed save of an otherwise
// applied change.
func IsWarning(err error) bool {
	return err != nil && errors.Is(err, domain.ErrSyncFailed)
}

// SyncStatus reports the save and mirror state of the actor's shop.
func (s *Service) SyncStatus(ctx context.Context) (domain.SyncStatus, error) {
	actor, _, err := s.open(ctx, access.Read)
	if err != nil {
		return domain.SyncStatus{}, err
	}
	return s.sync.Status(actor.ProfileID), nil
}
