package party

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stake-plus/raidparty/src/platform"
)

// deleteStep is one best-effort stage of the deletion flow.
type deleteStep struct {
	name string
	run  func(ctx context.Context) error
}

// DeleteParty removes the party hosted in channelID. Steps run in order and a
// failing step does not stop the ones after it; the failures are returned
// joined. Messages that could not be deleted are retried by ReconcileOrphans.
func (m *Manager) DeleteParty(ctx context.Context, channelID string, deleteChannel bool) error {
	p, ok := m.GetParty(channelID)
	if !ok {
		return ErrPartyNotFound
	}

	b := p.base()
	b.mu.Lock()
	if b.deleted {
		b.mu.Unlock()
		return nil
	}
	b.deleted = true
	refs := b.trackedRefsLocked()
	b.mu.Unlock()

	steps := []deleteStep{
		{"delete-foreign-messages", func(ctx context.Context) error {
			var errs []error
			for _, ref := range refs {
				if ref.ChannelID() == channelID {
					continue
				}
				err := m.deleteMessage(ctx, ref)
				if err == nil || platform.IsNotFound(err) {
					continue
				}
				m.addOrphan(ref)
				errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			}
			return errors.Join(errs...)
		}},
		{"delete-channel", func(ctx context.Context) error {
			if !deleteChannel {
				return nil
			}
			if err := m.services.Channels.Delete(ctx, channelID); err != nil && !platform.IsNotFound(err) {
				return err
			}
			return nil
		}},
		{"strip-references", func(context.Context) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.messages = nil
			b.messagesSinceDeletionScheduled = 0
			return nil
		}},
		{"archive", func(ctx context.Context) error {
			key, ok := p.ArchiveKey()
			if !ok {
				return nil
			}
			raw, err := encodeArchived(p)
			if err != nil {
				return err
			}
			return m.store.AppendArchived(ctx, key, raw)
		}},
		{"remove-active", func(ctx context.Context) error {
			if err := m.store.RemoveActive(ctx, channelID); err != nil {
				m.addStaleRecord(channelID)
				return err
			}
			return nil
		}},
		{"forget", func(context.Context) error {
			m.unregister(channelID)
			for _, ref := range refs {
				m.forgetRendered(ref)
			}
			return nil
		}},
	}

	var errs []error
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			log.Error().Err(err).Str("channel", channelID).Str("step", s.name).Msg("party: delete step failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	log.Info().Str("channel", channelID).Str("party_type", string(p.Type())).Int("failed_steps", len(errs)).Msg("party: deleted")
	return errors.Join(errs...)
}

func (m *Manager) addOrphan(ref MessageRef) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.orphans[ref] = struct{}{}
}

func (m *Manager) addStaleRecord(channelID string) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.staleRecords[channelID] = struct{}{}
}

// PendingCleanup returns the number of orphaned messages and stale active
// records waiting for ReconcileOrphans.
func (m *Manager) PendingCleanup() (orphans, records int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	return len(m.orphans), len(m.staleRecords)
}
