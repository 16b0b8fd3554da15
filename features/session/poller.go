package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Poller is the primary device's side of the rendezvous: it watches
// the store for a payload under one session identifier and turns it
// back into a file.
type Poller struct {
	store    Store
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewPoller(store Store) *Poller {
	return &Poller{
		store:    store,
		interval: PollInterval,
		ttl:      TTL,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait polls the store until a payload appears, the session TTL
// elapses, or ctx is cancelled. Polls are strictly sequential. On
// success the store entry is deleted before the file is handed back,
// so a session identifier never delivers twice.
//
// A TTL expiry is not an error: the secondary device user may simply
// have walked away. Wait returns (nil, nil) and the caller resets to
// its pre-upload state without surfacing anything.
func (p *Poller) Wait(ctx context.Context, sessionID string) (*File, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	deadline := p.now().Add(p.ttl)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.now().After(deadline) {
			slog.InfoContext(ctx, "rendezvous session expired without upload", "session_id", sessionID)
			return nil, nil
		}

		payload, err := p.store.Get(ctx, sessionID)
		switch {
		case err == nil:
			file, decodeErr := payload.Decode()
			if decodeErr != nil {
				// Corrupt entries are removed so they cannot wedge the
				// session; polling continues in case a clean overwrite
				// arrives.
				slog.WarnContext(ctx, "dropping corrupt relay payload", "session_id", sessionID, "error", decodeErr)
				_ = p.store.Delete(ctx, sessionID)
			} else {
				if delErr := p.store.Delete(ctx, sessionID); delErr != nil {
					slog.WarnContext(ctx, "failed to delete consumed session", "session_id", sessionID, "error", delErr)
				}
				return file, nil
			}
		case errors.Is(err, ErrNotFound):
			// Nothing relayed yet.
		default:
			slog.WarnContext(ctx, "session store read failed", "session_id", sessionID, "error", err)
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
