package bootstrap

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-session"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// Store persists session snapshots through the snapshots repository. It
// implements session.SnapshotStore.
type Store struct {
	repo   Snapshots
	sealed bool
	key    [32]byte
	logger session.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSealKey enables bearer token persistence, sealed with the given key.
// Without it tokens are dropped from saved snapshots.
func WithSealKey(key [32]byte) StoreOption {
	return func(s *Store) {
		s.key = key
		s.sealed = true
	}
}

// WithLogger sets the store logger.
func WithLogger(logger session.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore builds a snapshot store on top of a bun database.
func NewStore(db *bun.DB, opts ...StoreOption) *Store {
	s := &Store{
		repo:   NewSnapshotsRepository(db),
		logger: session.DefaultLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Save implements session.SnapshotStore. One row per identity: the record ID
// derives from the identity key so repeated saves update in place.
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	if !sess.HasIdentity() {
		return nil
	}

	id, err := hashid.NewUUID(sess.IdentityKey())
	if err != nil {
		return err
	}

	record := &SessionSnapshot{
		ID:          id,
		IdentityID:  sess.IdentityID,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		AvatarURL:   sess.AvatarURL,
		Phone:       sess.Phone,
		Role:        sess.Role,
		IsPremium:   sess.IsPremium,
		SyncedAt:    sess.SyncedAt,
	}

	now := s.now()
	record.UpdatedAt = &now

	if s.sealed && sess.BearerToken != "" {
		sealed, err := sealToken(s.key, sess.BearerToken)
		if err != nil {
			s.logger.Warn("skipping token in snapshot: %v", err)
		} else {
			record.SealedToken = sealed
		}
	}

	_, err = s.repo.Upsert(ctx, record)
	return err
}

// Load implements session.SnapshotStore. It returns the most recently
// updated snapshot, or nil when none exists.
func (s *Store) Load(ctx context.Context) (*session.Session, error) {
	record, err := s.repo.Latest(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	role, _ := session.ParseRole(record.Role)

	sess := &session.Session{
		State:       session.StateReady,
		IdentityID:  record.IdentityID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		AvatarURL:   record.AvatarURL,
		Phone:       record.Phone,
		Role:        role,
		IsPremium:   record.IsPremium,
		SyncedAt:    record.SyncedAt,
	}

	if s.sealed && len(record.SealedToken) > 0 {
		token, err := openToken(s.key, record.SealedToken)
		if err != nil {
			s.logger.Warn("dropping unreadable sealed token: %v", err)
		} else {
			sess.BearerToken = token
		}
	}

	return sess, nil
}

// Clear implements session.SnapshotStore.
func (s *Store) Clear(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

var _ session.SnapshotStore = (*Store)(nil)
