package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const recoveryCheckInterval = time.Minute

// FailoverStore reads and writes through the primary store and falls
// back to the secondary when the primary errors. Once the primary is
// marked down it is retried at most once per recoveryCheckInterval.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last recovery probe
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverStore) shouldTryPrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	last := time.Unix(0, f.lastCheck.Load())
	if time.Since(last) > recoveryCheckInterval {
		f.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (f *FailoverStore) markDown(err error) {
	if f.isDown.CompareAndSwap(false, true) {
		f.logger.Warn().Err(err).Msg("Primary session store down, switching to fallback")
	}
	f.lastCheck.Store(time.Now().UnixNano())
}

func (f *FailoverStore) markUp() {
	if f.isDown.CompareAndSwap(true, false) {
		f.logger.Info().Msg("Primary session store recovered")
	}
}

func (f *FailoverStore) Get(ctx context.Context, userID int64) (*Session, error) {
	if f.shouldTryPrimary() {
		s, err := f.primary.Get(ctx, userID)
		if err == nil {
			f.markUp()
			return s, nil
		}
		f.markDown(err)
	}
	return f.fallback.Get(ctx, userID)
}

func (f *FailoverStore) Put(ctx context.Context, userID int64, s *Session) error {
	if f.shouldTryPrimary() {
		err := f.primary.Put(ctx, userID, s)
		if err == nil {
			f.markUp()
			// Mirror to fallback so a later failover sees current state.
			_ = f.fallback.Put(ctx, userID, s)
			return nil
		}
		f.markDown(err)
	}
	return f.fallback.Put(ctx, userID, s)
}

func (f *FailoverStore) Clear(ctx context.Context, userID int64) error {
	var primaryErr error
	if f.shouldTryPrimary() {
		primaryErr = f.primary.Clear(ctx, userID)
		if primaryErr == nil {
			f.markUp()
		} else {
			f.markDown(primaryErr)
		}
	}
	if err := f.fallback.Clear(ctx, userID); err != nil {
		return err
	}
	return primaryErr
}
