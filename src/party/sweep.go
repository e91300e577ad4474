package party

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/stake-plus/raidparty/src/platform"
)

const delayedDeleteTimeout = 30 * time.Second

// SweepExpired deletes every party whose deletion time has passed. Protected
// parties are never touched.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UnixMilli()
	expired := lo.Filter(m.Parties(), func(p Party, _ int) bool {
		dt := p.DeletionTime()
		return dt > 0 && dt <= cutoff
	})

	var errs []error
	for _, p := range expired {
		if err := m.DeleteParty(ctx, p.ChannelID(), true); err != nil && !errors.Is(err, ErrPartyNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", p.ChannelID(), err))
		}
	}
	if len(expired) > 0 {
		log.Info().Int("expired", len(expired)).Msg("party: expiry sweep")
	}
	return len(expired), errors.Join(errs...)
}

// ReconcileOrphans retries message deletions and active record removals that
// failed during earlier deletions.
func (m *Manager) ReconcileOrphans(ctx context.Context) error {
	m.pendingMu.Lock()
	orphans := lo.Keys(m.orphans)
	stale := lo.Keys(m.staleRecords)
	m.pendingMu.Unlock()

	var errs []error
	for _, ref := range orphans {
		err := m.deleteMessage(ctx, ref)
		if err != nil && !platform.IsNotFound(err) {
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		m.pendingMu.Lock()
		delete(m.orphans, ref)
		m.pendingMu.Unlock()
	}
	for _, id := range stale {
		if !m.ValidParty(id) {
			if err := m.store.RemoveActive(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
		}
		m.pendingMu.Lock()
		delete(m.staleRecords, id)
		m.pendingMu.Unlock()
	}

	if len(orphans)+len(stale) > 0 {
		log.Info().Int("orphans", len(orphans)).Int("records", len(stale)).Int("failed", len(errs)).Msg("party: reconcile sweep")
	}
	return errors.Join(errs...)
}

// RefreshAll re-renders the status messages of every live party.
func (m *Manager) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, p := range m.Parties() {
		if err := p.RefreshStatusMessages(ctx); err != nil && !errors.Is(err, ErrPartyDeleted) {
			errs = append(errs, fmt.Errorf("%s: %w", p.ChannelID(), err))
		}
	}
	return errors.Join(errs...)
}

// DeleteMessageAfter deletes ref once d has elapsed. Failed deletions are
// queued for ReconcileOrphans.
func (m *Manager) DeleteMessageAfter(ref MessageRef, d time.Duration) {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()
	if m.closed {
		m.addOrphan(ref)
		return
	}

	m.timerWG.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		defer m.timerWG.Done()
		m.timersMu.Lock()
		delete(m.timers, t)
		m.timersMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), delayedDeleteTimeout)
		defer cancel()
		if err := m.deleteMessage(ctx, ref); err != nil && !platform.IsNotFound(err) {
			log.Warn().Err(err).Str("message", string(ref)).Msg("party: delayed delete failed")
			m.addOrphan(ref)
		}
	})
	m.timers[t] = ref
}

// ArchivedParties decodes every archived record filed under key.
func (m *Manager) ArchivedParties(ctx context.Context, key string) ([]Party, error) {
	raws, err := m.store.ListArchived(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("party: list archive %s: %w", key, err)
	}
	var (
		out  []Party
		errs []error
	)
	for _, raw := range raws {
		p, err := DecodeRecord(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}

// Close cancels pending delayed deletions, queueing them as orphans, and
// waits for running ones to finish.
func (m *Manager) Close() {
	m.timersMu.Lock()
	m.closed = true
	for t, ref := range m.timers {
		if t.Stop() {
			m.addOrphan(ref)
			m.timerWG.Done()
		}
		delete(m.timers, t)
	}
	m.timersMu.Unlock()
	m.timerWG.Wait()
}
