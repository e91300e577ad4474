package party

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/stake-plus/raidparty/src/data"
	"github.com/stake-plus/raidparty/src/platform"
	"golang.org/x/sync/errgroup"
)

// Options tunes a Manager. Zero values fall back to defaults.
type Options struct {
	// WarningEvery sends a deletion warning on every Nth message after
	// deletion is scheduled.
	WarningEvery int
	// RaidGrace is added to a raid's end time to get its deletion time.
	RaidGrace time.Duration
	// AnnouncementDeleteDelay is how long a "moved" announcement stays up.
	AnnouncementDeleteDelay time.Duration
	// RefreshConcurrency bounds concurrent message edits per refresh.
	RefreshConcurrency int
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.WarningEvery <= 0 {
		o.WarningEvery = defaultWarningEvery
	}
	if o.RaidGrace <= 0 {
		o.RaidGrace = defaultRaidGrace
	}
	if o.AnnouncementDeleteDelay <= 0 {
		o.AnnouncementDeleteDelay = 10 * time.Minute
	}
	if o.RefreshConcurrency <= 0 {
		o.RefreshConcurrency = 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Manager is the authoritative registry of live parties keyed by hosting
// channel id. It persists parties, keeps their message references valid and
// runs the deletion flow.
type Manager struct {
	store    data.Store
	services platform.Services
	opts     Options

	mu      sync.RWMutex
	parties map[string]Party

	renderMu sync.Mutex
	rendered map[MessageRef]uint64

	pendingMu    sync.Mutex
	orphans      map[MessageRef]struct{}
	staleRecords map[string]struct{}

	timersMu sync.Mutex
	timers   map[*time.Timer]MessageRef
	closed   bool
	timerWG  sync.WaitGroup
}

// NewManager returns an empty manager. Call Initialize to load persisted parties.
func NewManager(store data.Store, services platform.Services, opts Options) *Manager {
	return &Manager{
		store:        store,
		services:     services,
		opts:         opts.withDefaults(),
		parties:      make(map[string]Party),
		rendered:     make(map[MessageRef]uint64),
		orphans:      make(map[MessageRef]struct{}),
		staleRecords: make(map[string]struct{}),
		timers:       make(map[*time.Timer]MessageRef),
	}
}

func (m *Manager) now() time.Time {
	return m.opts.Now()
}

// Initialize loads every active record and registers the decoded parties.
// Records that fail to decode are skipped and reported together as
// *RecordError values.
func (m *Manager) Initialize(ctx context.Context) error {
	records, err := m.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("party: load active parties: %w", err)
	}

	ids := lo.Keys(records)
	slices.Sort(ids)

	var errs []error
	loaded := 0
	for _, id := range ids {
		p, err := DecodeRecord(records[id])
		if err != nil {
			var re *RecordError
			if errors.As(err, &re) && re.ChannelID == "" {
				re.ChannelID = id
			}
			errs = append(errs, err)
			continue
		}
		if p.ChannelID() != id {
			errs = append(errs, &RecordError{ChannelID: id, Err: fmt.Errorf("record belongs to channel %s", p.ChannelID())})
			continue
		}
		if err := m.register(p); err != nil {
			errs = append(errs, &RecordError{ChannelID: id, Err: err})
			continue
		}
		loaded++
	}

	for _, err := range errs {
		log.Error().Err(err).Msg("party: skipped unrecoverable record")
	}
	log.Info().Int("loaded", loaded).Int("failed", len(errs)).Msg("party: registry initialized")
	return errors.Join(errs...)
}

func (m *Manager) register(p Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parties[p.ChannelID()]; ok {
		return ErrChannelExists
	}
	p.base().manager = m
	m.parties[p.ChannelID()] = p
	return nil
}

func (m *Manager) unregister(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parties, channelID)
}

func (m *Manager) saveRecord(ctx context.Context, channelID string, raw []byte) error {
	if err := m.store.SetActive(ctx, channelID, raw); err != nil {
		return fmt.Errorf("party: persist %s: %w", channelID, err)
	}
	return nil
}

// PersistParty writes the party's full state to the active store.
func (m *Manager) PersistParty(ctx context.Context, p Party) error {
	return p.Persist(ctx)
}

// GetParty returns the live party hosted in channelID.
func (m *Manager) GetParty(channelID string) (Party, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parties[channelID]
	return p, ok
}

// ValidParty reports whether channelID hosts a live party.
func (m *Manager) ValidParty(channelID string) bool {
	_, ok := m.GetParty(channelID)
	return ok
}

// Parties returns every live party, oldest first.
func (m *Manager) Parties() []Party {
	m.mu.RLock()
	out := lo.Values(m.parties)
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Party) int {
		if c := a.CreationTime().Compare(b.CreationTime()); c != 0 {
			return c
		}
		return cmp.Compare(a.ChannelID(), b.ChannelID())
	})
	return out
}

func (m *Manager) raids() []*Raid {
	return lo.FilterMap(m.Parties(), func(p Party, _ int) (*Raid, bool) {
		r, ok := p.(*Raid)
		return r, ok
	})
}

// FindRaid returns the oldest live raid at gymID.
func (m *Manager) FindRaid(gymID string) (*Raid, bool) {
	return lo.Find(m.raids(), func(r *Raid) bool { return r.GymID() == gymID })
}

// RaidExistsForGym reports whether a live raid is hosted at gymID.
func (m *Manager) RaidExistsForGym(gymID string) bool {
	_, ok := m.FindRaid(gymID)
	return ok
}

// AllRaids returns the live raids announced from sourceChannelID.
func (m *Manager) AllRaids(sourceChannelID string) []*Raid {
	return lo.Filter(m.raids(), func(r *Raid, _ int) bool { return r.SourceChannelID() == sourceChannelID })
}

// GetChannel resolves channelID. A party whose hosting channel has vanished
// is deleted before the not-found error is returned.
func (m *Manager) GetChannel(ctx context.Context, channelID string) (*platform.Channel, error) {
	ch, err := m.services.Channels.Resolve(ctx, channelID)
	if err == nil {
		return ch, nil
	}
	if platform.IsNotFound(err) && m.ValidParty(channelID) {
		log.Warn().Str("channel", channelID).Msg("party: hosting channel vanished, deleting party")
		if derr := m.DeleteParty(ctx, channelID, false); derr != nil {
			log.Error().Err(derr).Str("channel", channelID).Msg("party: self-heal delete failed")
		}
	}
	return nil, fmt.Errorf("party: resolve channel %s: %w", channelID, err)
}

// GetMessage resolves a tracked message reference. A reference whose message
// or channel no longer exists is pruned from whichever party tracks it.
func (m *Manager) GetMessage(ctx context.Context, ref MessageRef) (*platform.Message, error) {
	channelID, messageID, err := ref.Split()
	if err != nil {
		return nil, err
	}
	ch, err := m.GetChannel(ctx, channelID)
	if err != nil {
		if platform.IsNotFound(err) {
			m.pruneMessage(ctx, ref)
		}
		return nil, err
	}
	msg, err := m.services.Messages.Fetch(ctx, ch.ID, messageID)
	if err != nil {
		if platform.IsNotFound(err) {
			m.pruneMessage(ctx, ref)
		}
		return nil, fmt.Errorf("party: fetch message %s: %w", ref, err)
	}
	return msg, nil
}

// pruneMessage drops ref from the party hosting its channel, or failing that
// from any party that tracks it.
func (m *Manager) pruneMessage(ctx context.Context, ref MessageRef) {
	m.forgetRendered(ref)

	var owners []Party
	if p, ok := m.GetParty(ref.ChannelID()); ok && p.base().hasMessage(ref) {
		owners = []Party{p}
	} else {
		owners = lo.Filter(m.Parties(), func(p Party, _ int) bool { return p.base().hasMessage(ref) })
	}
	for _, p := range owners {
		err := p.base().removeMessage(ctx, ref)
		switch {
		case err == nil:
			log.Debug().Str("channel", p.ChannelID()).Str("message", string(ref)).Msg("party: pruned stale message reference")
		case !errors.Is(err, ErrPartyDeleted):
			log.Warn().Err(err).Str("channel", p.ChannelID()).Str("message", string(ref)).Msg("party: prune message reference failed")
		}
	}
}

// GetMember resolves a member of the guild hosting channelID. A member who
// has left is removed from the party's attendees before the error returns.
func (m *Manager) GetMember(ctx context.Context, channelID, memberID string) (*platform.Member, error) {
	ch, err := m.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	member, err := m.services.Members.Member(ctx, ch.GuildID, memberID)
	if err == nil {
		return member, nil
	}
	if platform.IsNotFound(err) {
		if p, ok := m.GetParty(channelID); ok {
			if rerr := p.RemoveAttendee(ctx, memberID); rerr != nil && !errors.Is(rerr, ErrNotSignedUp) {
				log.Warn().Err(rerr).Str("channel", channelID).Str("member", memberID).Msg("party: remove departed member failed")
			}
		}
	}
	return nil, fmt.Errorf("party: member %s: %w", memberID, err)
}

// AddMessage tracks msg on the party hosted in channelID, optionally pinning it.
func (m *Manager) AddMessage(ctx context.Context, channelID string, msg platform.Message, pin bool) error {
	p, ok := m.GetParty(channelID)
	if !ok {
		return ErrPartyNotFound
	}
	if err := p.base().addMessage(ctx, RefOf(msg)); err != nil {
		return err
	}
	if pin {
		if err := m.services.Messages.Pin(ctx, msg); err != nil {
			return fmt.Errorf("party: pin %s: %w", RefOf(msg), err)
		}
	}
	return nil
}

func (m *Manager) deleteMessage(ctx context.Context, ref MessageRef) error {
	if _, _, err := ref.Split(); err != nil {
		return err
	}
	m.forgetRendered(ref)
	return m.services.Messages.Delete(ctx, ref.Message())
}

func fingerprint(c platform.Content) uint64 {
	return xxhash.ChecksumString64(c.Title + "\x00" + c.Body)
}

func (m *Manager) forgetRendered(ref MessageRef) {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()
	delete(m.rendered, ref)
}

// refreshMessages edits every ref to show content. Edits whose content has
// not changed since the last successful edit are skipped.
func (m *Manager) refreshMessages(ctx context.Context, refs []MessageRef, content platform.Content) error {
	sum := fingerprint(content)

	var (
		errMu sync.Mutex
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.RefreshConcurrency)
	for _, ref := range refs {
		g.Go(func() error {
			msg, err := m.GetMessage(gctx, ref)
			if err != nil {
				if !platform.IsNotFound(err) {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
				return nil
			}

			m.renderMu.Lock()
			unchanged := m.rendered[ref] == sum
			m.renderMu.Unlock()
			if unchanged {
				return nil
			}

			if err := m.services.Messages.Edit(gctx, *msg, content); err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("party: edit %s: %w", ref, err))
				errMu.Unlock()
				return nil
			}
			m.renderMu.Lock()
			m.rendered[ref] = sum
			m.renderMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// HandleChannelDeleted removes the party hosted in a channel deleted on the
// platform side.
func (m *Manager) HandleChannelDeleted(ctx context.Context, channelID string) error {
	if !m.ValidParty(channelID) {
		return nil
	}
	return m.DeleteParty(ctx, channelID, false)
}

// HandleChannelMessage reacts to activity in a party channel that is
// scheduled for deletion.
func (m *Manager) HandleChannelMessage(ctx context.Context, channelID string) error {
	p, ok := m.GetParty(channelID)
	if !ok || p.DeletionTime() <= 0 {
		return nil
	}
	return p.SendDeletionWarningMessage(ctx)
}
