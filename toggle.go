package session

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-session/client"
)

// ToggleKind identifies an optimistic per-item boolean mutation.
type ToggleKind string

const (
	ToggleLike     ToggleKind = "like"
	ToggleFavorite ToggleKind = "favorite"
)

// InteractionState is the per-item, per-viewer interaction snapshot. It is
// ephemeral and reconstructed from the server payload on load.
type InteractionState struct {
	Liked         bool `json:"liked"`
	LikeCount     int  `json:"likeCount"`
	Favorited     bool `json:"favorited"`
	FavoriteCount int  `json:"favoriteCount"`
	ReportCount   int  `json:"reportCount"`
}

// InteractionAPI is the slice of the backend client the coordinator needs.
type InteractionAPI interface {
	ToggleLike(ctx context.Context, lessonID string) (*client.LikeResponse, error)
	ToggleFavorite(ctx context.Context, lessonID, userID string) (*client.FavoriteResponse, error)
	SubmitReport(ctx context.Context, lessonID string, req client.ReportRequest) error
}

// InteractionListener observes local interaction state changes for an item:
// the optimistic application, the server reconciliation, and any rollback.
type InteractionListener func(itemID string, state InteractionState)

// Coordinator manages optimistic like/favorite toggles: apply locally, submit,
// reconcile or roll back. The server response is authoritative; the local
// optimistic value is discarded even when numerically identical so concurrent
// changes by other viewers are absorbed.
type Coordinator struct {
	store       *Store
	policy      *Policy
	api         InteractionAPI
	logger      Logger
	timeout     time.Duration
	featureGate gate.FeatureGate

	mu        sync.Mutex
	items     map[string]InteractionState
	inflight  map[string]struct{}
	listeners map[int]InteractionListener
	nextSubID int
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger overrides the coordinator logger.
func WithCoordinatorLogger(l Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCoordinatorTimeout bounds each mutation call.
func WithCoordinatorTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCoordinatorFeatureGate gates interactions and reports behind feature
// flags in addition to the authentication check.
func WithCoordinatorFeatureGate(fg gate.FeatureGate) CoordinatorOption {
	return func(c *Coordinator) {
		c.featureGate = fg
	}
}

// NewCoordinator creates an interaction toggle coordinator.
func NewCoordinator(store *Store, policy *Policy, api InteractionAPI, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		policy:    policy,
		api:       api,
		logger:    defLogger{},
		timeout:   DefaultRequestTimeout,
		items:     map[string]InteractionState{},
		inflight:  map[string]struct{}{},
		listeners: map[int]InteractionListener{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Prime seeds the local state for an item from the server payload.
func (c *Coordinator) Prime(itemID string, state InteractionState) {
	c.mu.Lock()
	c.items[itemID] = state
	c.mu.Unlock()
}

// Get returns the local interaction state for an item.
func (c *Coordinator) Get(itemID string) (InteractionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.items[itemID]
	return state, ok
}

// OnChange registers a listener for local state changes; returns an
// unsubscribe handle.
func (c *Coordinator) OnChange(fn InteractionListener) func() {
	if fn == nil {
		return func() {}
	}

	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Toggle flips the given interaction optimistically and reconciles against
// the server-confirmed counts.
//
// It rejects with ErrUnauthenticated before any network call when no session
// is ready, and with ErrToggleInFlight while a mutation of the same kind for
// the same item is pending, which keeps rapid double clicks from double
// counting. On backend failure the local state rolls back exactly to its
// pre-toggle value and the error is surfaced once; there is no automatic
// retry.
func (c *Coordinator) Toggle(ctx context.Context, kind ToggleKind, itemID string) (InteractionState, error) {
	sess := c.store.Current()
	if !c.policy.IsAuthenticated(sess) {
		return InteractionState{}, ErrUnauthenticated
	}

	if err := c.requireFeature(ctx, gateKeyInteractions); err != nil {
		return InteractionState{}, err
	}

	key := inflightKey(kind, itemID)

	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		return InteractionState{}, ErrToggleInFlight
	}
	c.inflight[key] = struct{}{}
	before := c.items[itemID]
	optimistic := applyToggle(before, kind)
	c.items[itemID] = optimistic
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}()

	notify(listeners, itemID, optimistic)

	confirmed, err := c.submit(ctx, kind, itemID, sess)
	if err != nil {
		c.mu.Lock()
		c.items[itemID] = before
		listeners = c.snapshotListeners()
		c.mu.Unlock()

		notify(listeners, itemID, before)
		c.logger.Warn("toggle %s on %s rolled back: %v", kind, itemID, err)

		return before, errors.Wrap(err, ErrToggleFailed.Category, ErrToggleFailed.Message).
			WithTextCode(ErrToggleFailed.TextCode)
	}

	// Server counts are authoritative; adopt them even when they match the
	// optimistic value so concurrent changes by other viewers are absorbed.
	final := reconcile(optimistic, kind, confirmed)

	c.mu.Lock()
	c.items[itemID] = final
	listeners = c.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, itemID, final)

	return final, nil
}

// Report submits a moderation report. It shares the toggle auth gate but has
// no optimistic local mutation: report counts are not live feedback for the
// reporting user.
func (c *Coordinator) Report(ctx context.Context, itemID, reason, details string) error {
	sess := c.store.Current()
	if !c.policy.IsAuthenticated(sess) {
		return ErrUnauthenticated
	}

	if err := c.requireFeature(ctx, gateKeyReports); err != nil {
		return err
	}

	handler := &SubmitReportHandler{api: c.api, logger: c.logger, timeout: c.timeout}
	return handler.Execute(ctx, SubmitReportMessage{
		LessonID: itemID,
		Reason:   reason,
		Details:  details,
	})
}

func (c *Coordinator) submit(ctx context.Context, kind ToggleKind, itemID string, sess Session) (confirmedState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch kind {
	case ToggleLike:
		resp, err := c.api.ToggleLike(ctx, itemID)
		if err != nil {
			return confirmedState{}, err
		}
		return confirmedState{flag: resp.Liked, count: resp.LikeCount}, nil
	case ToggleFavorite:
		resp, err := c.api.ToggleFavorite(ctx, itemID, sess.IdentityID)
		if err != nil {
			return confirmedState{}, err
		}
		return confirmedState{flag: resp.IsFavorite, count: resp.FavoritesCount}, nil
	default:
		return confirmedState{}, errors.New("unknown toggle kind", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"kind": string(kind)})
	}
}

func (c *Coordinator) requireFeature(ctx context.Context, key string) error {
	if c.featureGate == nil {
		return nil
	}
	return requireFeatureGate(ctx, c.featureGate, key, ErrPremiumRequired)
}

func (c *Coordinator) snapshotListeners() []InteractionListener {
	listeners := make([]InteractionListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

type confirmedState struct {
	flag  bool
	count int
}

func applyToggle(state InteractionState, kind ToggleKind) InteractionState {
	switch kind {
	case ToggleLike:
		state.Liked = !state.Liked
		state.LikeCount = adjustCount(state.LikeCount, state.Liked)
	case ToggleFavorite:
		state.Favorited = !state.Favorited
		state.FavoriteCount = adjustCount(state.FavoriteCount, state.Favorited)
	}
	return state
}

func reconcile(state InteractionState, kind ToggleKind, confirmed confirmedState) InteractionState {
	switch kind {
	case ToggleLike:
		state.Liked = confirmed.flag
		state.LikeCount = confirmed.count
	case ToggleFavorite:
		state.Favorited = confirmed.flag
		state.FavoriteCount = confirmed.count
	}
	return state
}

// adjustCount keeps counters non-negative even when the primed server count
// was already zero.
func adjustCount(count int, active bool) int {
	if active {
		return count + 1
	}
	if count <= 0 {
		return 0
	}
	return count - 1
}

func inflightKey(kind ToggleKind, itemID string) string {
	return string(kind) + ":" + itemID
}

func notify(listeners []InteractionListener, itemID string, state InteractionState) {
	for _, fn := range listeners {
		fn(itemID, state)
	}
}
