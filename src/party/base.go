package party

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/stake-plus/raidparty/src/platform"
)

// Party is the behaviour shared by raids, raid trains and meetups.
type Party interface {
	Type() Type
	ChannelID() string
	SourceChannelID() string
	CreatedByID() string
	CreationTime() time.Time
	// ArchiveKey returns the archive bucket for this party, or false when the
	// party is not archived on deletion.
	ArchiveKey() (string, bool)

	MemberStatus(memberID string) Status
	SetMemberStatus(ctx context.Context, memberID string, status Status) error
	SetMemberStatusWithCount(ctx context.Context, memberID string, status Status, additional int) error
	RemoveAttendee(ctx context.Context, memberID string) error
	AttendeeCount(groupID string) int
	Attendees() map[string]Attendee
	CreateGroup(ctx context.Context, memberID string) (Group, error)
	SetMemberGroup(ctx context.Context, memberID, groupID string) error
	SetGroupLabel(ctx context.Context, memberID, label string) error
	SetMeetingTime(ctx context.Context, memberID string, at time.Time) error
	CancelMeetingTime(ctx context.Context, memberID string) error
	Groups() []Group
	DefaultGroupID() string

	Messages() []MessageRef
	LastStatusMessage() MessageRef
	ReplaceLastMessage(ctx context.Context, ref MessageRef) error
	StatusContent() platform.Content
	RefreshStatusMessages(ctx context.Context) error

	DeletionTime() int64
	ScheduleDeletion(ctx context.Context, at time.Time) error
	ProtectFromDeletion(ctx context.Context) error
	SendDeletionWarningMessage(ctx context.Context) error

	Persist(ctx context.Context) error
	Delete(ctx context.Context) error

	base() *Base
	recordLocked() record
	statusContentLocked() platform.Content
}

// Base holds the state every party variant shares. Variants embed it and
// bind themselves to it so that persistence and rendering reach the full
// variant.
//
// mu is held from the start of a mutation until its store write returns, so
// mutations on one party are applied and persisted strictly in order.
type Base struct {
	mu      sync.Mutex
	manager *Manager
	self    Party
	deleted bool

	partyType         Type
	channelID         string
	sourceChannelID   string
	createdByID       string
	creationTime      time.Time
	attendees         map[string]Attendee
	groups            []Group
	defaultGroupID    string
	messages          []MessageRef
	lastStatusMessage MessageRef

	deletionTime                   int64
	messagesSinceDeletionScheduled int
}

func newBase(t Type, channelID, sourceChannelID, createdByID string, created time.Time) Base {
	return Base{
		partyType:       t,
		channelID:       channelID,
		sourceChannelID: sourceChannelID,
		createdByID:     createdByID,
		creationTime:    created,
		attendees:       make(map[string]Attendee),
		groups:          []Group{{ID: "A"}},
		defaultGroupID:  "A",
	}
}

func (b *Base) bind(self Party) {
	b.self = self
}

func (b *Base) base() *Base { return b }

// mutate applies fn under the party lock and persists the result. fn may
// return errUnchanged to skip the write.
func (b *Base) mutate(ctx context.Context, fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleted {
		return ErrPartyDeleted
	}
	if err := fn(); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	return b.persistLocked(ctx)
}

func (b *Base) persistLocked(ctx context.Context) error {
	if b.manager == nil {
		return nil
	}
	raw, err := encodeRecord(b.self.recordLocked())
	if err != nil {
		return err
	}
	return b.manager.saveRecord(ctx, b.channelID, raw)
}

func (b *Base) Type() Type { return b.partyType }

func (b *Base) ChannelID() string { return b.channelID }

func (b *Base) SourceChannelID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sourceChannelID
}

func (b *Base) CreatedByID() string { return b.createdByID }

func (b *Base) CreationTime() time.Time { return b.creationTime }

// MemberStatus returns NOT_INTERESTED for members without an attendee record.
func (b *Base) MemberStatus(memberID string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.attendees[memberID]
	if !ok {
		return StatusNotInterested
	}
	return a.Status
}

// SetMemberStatus upserts an attendee. A new attendee joins the default group
// as a party of one; an existing attendee keeps its number.
func (b *Base) SetMemberStatus(ctx context.Context, memberID string, status Status) error {
	return b.setMemberStatus(ctx, memberID, status, nil)
}

// SetMemberStatusWithCount is SetMemberStatus with an explicit number of
// additional attendees, which always overwrites the stored number.
func (b *Base) SetMemberStatusWithCount(ctx context.Context, memberID string, status Status, additional int) error {
	if additional < 0 || additional > MaxAdditionalAttendees {
		return ErrInvalidCount
	}
	return b.setMemberStatus(ctx, memberID, status, &additional)
}

func (b *Base) setMemberStatus(ctx context.Context, memberID string, status Status, additional *int) error {
	if memberID == "" {
		return ErrInvalidMember
	}
	if !status.Valid() {
		return fmt.Errorf("party: invalid status %d", int(status))
	}
	return b.mutate(ctx, func() error {
		b.upsertAttendeeLocked(memberID, status, additional)
		return nil
	})
}

func (b *Base) upsertAttendeeLocked(memberID string, status Status, additional *int) {
	a, ok := b.attendees[memberID]
	if !ok {
		a = Attendee{Number: 1, Group: b.defaultGroupID}
	}
	if additional != nil {
		a.Number = 1 + *additional
	}
	a.Status = status
	b.attendees[memberID] = a
}

// RemoveAttendee deletes a member's attendee record.
func (b *Base) RemoveAttendee(ctx context.Context, memberID string) error {
	return b.mutate(ctx, func() error {
		if _, ok := b.attendees[memberID]; !ok {
			return ErrNotSignedUp
		}
		delete(b.attendees, memberID)
		return nil
	})
}

// AttendeeCount sums attendee numbers, skipping completed attendees. An empty
// groupID counts every group.
func (b *Base) AttendeeCount(groupID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attendeeCountLocked(groupID)
}

func (b *Base) attendeeCountLocked(groupID string) int {
	return lo.SumBy(lo.Values(b.attendees), func(a Attendee) int {
		if !a.Status.counted() || (groupID != "" && a.Group != groupID) {
			return 0
		}
		return a.Number
	})
}

// Attendees returns a copy of the attendee map.
func (b *Base) Attendees() map[string]Attendee {
	b.mu.Lock()
	defer b.mu.Unlock()
	return lo.Assign(b.attendees)
}

// CreateGroup appends the next lettered group, makes it the default and moves
// the calling member into it.
func (b *Base) CreateGroup(ctx context.Context, memberID string) (Group, error) {
	if memberID == "" {
		return Group{}, ErrInvalidMember
	}
	var created Group
	err := b.mutate(ctx, func() error {
		if len(b.groups) >= MaxGroups {
			return ErrMaxGroups
		}
		created = Group{ID: string(rune('A' + len(b.groups)))}
		b.groups = append(b.groups, created)
		b.defaultGroupID = created.ID

		a, ok := b.attendees[memberID]
		if !ok {
			a = Attendee{Number: 1, Status: StatusComing}
		}
		a.Group = created.ID
		b.attendees[memberID] = a
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	return created, nil
}

// SetMemberGroup moves a member into groupID, signing them up as COMING first
// when they have no attendee record.
func (b *Base) SetMemberGroup(ctx context.Context, memberID, groupID string) error {
	if memberID == "" {
		return ErrInvalidMember
	}
	return b.mutate(ctx, func() error {
		if b.groupIndexLocked(groupID) < 0 {
			return ErrUnknownGroup
		}
		if _, ok := b.attendees[memberID]; !ok {
			b.upsertAttendeeLocked(memberID, StatusComing, nil)
		}
		a := b.attendees[memberID]
		a.Group = groupID
		b.attendees[memberID] = a
		return nil
	})
}

// SetGroupLabel labels the calling member's group.
func (b *Base) SetGroupLabel(ctx context.Context, memberID, label string) error {
	label = cleanText(label, maxLabelLength)
	return b.mutate(ctx, func() error {
		a, ok := b.attendees[memberID]
		if !ok {
			return ErrNotSignedUp
		}
		idx := b.groupIndexLocked(a.Group)
		if idx < 0 {
			return ErrUnknownGroup
		}
		b.groups[idx].Label = label
		return nil
	})
}

// SetMeetingTime sets the start time of the calling member's group.
func (b *Base) SetMeetingTime(ctx context.Context, memberID string, at time.Time) error {
	at = at.UTC()
	return b.setGroupStart(ctx, memberID, &at)
}

// CancelMeetingTime clears the start time of the calling member's group.
func (b *Base) CancelMeetingTime(ctx context.Context, memberID string) error {
	return b.setGroupStart(ctx, memberID, nil)
}

func (b *Base) setGroupStart(ctx context.Context, memberID string, at *time.Time) error {
	return b.mutate(ctx, func() error {
		a, ok := b.attendees[memberID]
		if !ok {
			return ErrNotSignedUp
		}
		idx := b.groupIndexLocked(a.Group)
		if idx < 0 {
			return ErrUnknownGroup
		}
		b.groups[idx].StartTime = at
		return nil
	})
}

func (b *Base) groupIndexLocked(groupID string) int {
	for i, g := range b.groups {
		if g.ID == groupID {
			return i
		}
	}
	return -1
}

// Groups returns a copy of the groups in creation order.
func (b *Base) Groups() []Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	return lo.Map(b.groups, func(g Group, _ int) Group { return g.clone() })
}

func (b *Base) DefaultGroupID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.defaultGroupID
}

// Messages returns a copy of the tracked message references.
func (b *Base) Messages() []MessageRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]MessageRef(nil), b.messages...)
}

func (b *Base) LastStatusMessage() MessageRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastStatusMessage
}

// trackedRefsLocked returns every tracked reference, lastStatusMessage included.
func (b *Base) trackedRefsLocked() []MessageRef {
	refs := append([]MessageRef(nil), b.messages...)
	if b.lastStatusMessage != "" {
		refs = append(refs, b.lastStatusMessage)
	}
	return lo.Uniq(refs)
}

func (b *Base) hasMessage(ref MessageRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastStatusMessage == ref || lo.Contains(b.messages, ref)
}

func (b *Base) addMessage(ctx context.Context, ref MessageRef) error {
	return b.mutate(ctx, func() error {
		if lo.Contains(b.messages, ref) {
			return errUnchanged
		}
		b.messages = append(b.messages, ref)
		return nil
	})
}

func (b *Base) removeMessage(ctx context.Context, ref MessageRef) error {
	return b.mutate(ctx, func() error {
		changed := false
		if lo.Contains(b.messages, ref) {
			b.messages = lo.Without(b.messages, ref)
			changed = true
		}
		if b.lastStatusMessage == ref {
			b.lastStatusMessage = ""
			changed = true
		}
		if !changed {
			return errUnchanged
		}
		return nil
	})
}

// ReplaceLastMessage deletes the previous primary status message, best
// effort, and records ref in its place.
func (b *Base) ReplaceLastMessage(ctx context.Context, ref MessageRef) error {
	old := b.LastStatusMessage()
	if old != "" && old != ref && b.manager != nil {
		if err := b.manager.deleteMessage(ctx, old); err != nil && !platform.IsNotFound(err) {
			log.Warn().Err(err).Str("channel", b.channelID).Str("message", string(old)).
				Msg("party: delete previous status message failed")
		}
	}
	return b.mutate(ctx, func() error {
		b.lastStatusMessage = ref
		return nil
	})
}

// StatusContent renders the party's current status.
func (b *Base) StatusContent() platform.Content {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.self.statusContentLocked()
}

// RefreshStatusMessages re-renders every tracked message in place. Messages
// that no longer exist are pruned by the manager during lookup.
func (b *Base) RefreshStatusMessages(ctx context.Context) error {
	b.mu.Lock()
	if b.deleted {
		b.mu.Unlock()
		return ErrPartyDeleted
	}
	refs := b.trackedRefsLocked()
	content := b.self.statusContentLocked()
	b.mu.Unlock()

	if b.manager == nil {
		return nil
	}
	return b.manager.refreshMessages(ctx, refs, content)
}

// DeletionTime returns the scheduled deletion time in unix milliseconds, 0
// when none is scheduled, or ProtectedFromDeletion.
func (b *Base) DeletionTime() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deletionTime
}

// ScheduleDeletion sets when the expiry sweep may delete this party.
func (b *Base) ScheduleDeletion(ctx context.Context, at time.Time) error {
	return b.mutate(ctx, func() error {
		if b.deletionTime == ProtectedFromDeletion {
			return ErrDeletionProtected
		}
		b.deletionTime = at.UnixMilli()
		b.messagesSinceDeletionScheduled = 0
		return nil
	})
}

// ProtectFromDeletion exempts the party from automatic deletion.
func (b *Base) ProtectFromDeletion(ctx context.Context) error {
	return b.mutate(ctx, func() error {
		b.deletionTime = ProtectedFromDeletion
		b.messagesSinceDeletionScheduled = 0
		return nil
	})
}

// SendDeletionWarningMessage counts messages posted since deletion was
// scheduled and reminds the channel on every Nth one, starting with the first.
func (b *Base) SendDeletionWarningMessage(ctx context.Context) error {
	every := defaultWarningEvery
	if b.manager != nil {
		every = b.manager.opts.WarningEvery
	}

	var (
		send bool
		at   int64
	)
	err := b.mutate(ctx, func() error {
		if b.deletionTime <= 0 {
			return errUnchanged
		}
		b.messagesSinceDeletionScheduled++
		send = every <= 1 || b.messagesSinceDeletionScheduled%every == 1
		at = b.deletionTime
		return nil
	})
	if err != nil || !send || b.manager == nil {
		return err
	}

	ch, err := b.manager.GetChannel(ctx, b.channelID)
	if err != nil {
		log.Debug().Err(err).Str("channel", b.channelID).Msg("party: deletion warning skipped")
		return nil
	}
	_, err = b.manager.services.Messages.Send(ctx, ch.ID, deletionWarningContent(time.UnixMilli(at), b.manager.now()))
	return err
}

// Persist writes the full party to the active store.
func (b *Base) Persist(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleted {
		return ErrPartyDeleted
	}
	return b.persistLocked(ctx)
}

// Delete runs the manager's deletion flow for this party.
func (b *Base) Delete(ctx context.Context) error {
	if b.manager == nil {
		return ErrPartyNotFound
	}
	return b.manager.DeleteParty(ctx, b.channelID, true)
}

func (b *Base) baseRecordLocked() BaseRecord {
	rec := BaseRecord{
		Type:              b.partyType,
		ChannelID:         b.channelID,
		SourceChannelID:   b.sourceChannelID,
		CreatedByID:       b.createdByID,
		CreationTime:      b.creationTime.UnixMilli(),
		Attendees:         lo.Assign(b.attendees),
		Groups:            lo.Map(b.groups, func(g Group, _ int) Group { return g.clone() }),
		DefaultGroupID:    b.defaultGroupID,
		Messages:          lo.Map(b.messages, func(r MessageRef, _ int) string { return string(r) }),
		LastStatusMessage: string(b.lastStatusMessage),
	}
	if b.deletionTime != 0 {
		dt := b.deletionTime
		rec.DeletionTime = &dt
	}
	if b.messagesSinceDeletionScheduled != 0 {
		n := b.messagesSinceDeletionScheduled
		rec.MessagesSinceDeletionScheduled = &n
	}
	return rec
}

func (b *Base) restore(rec BaseRecord) {
	b.partyType = rec.Type
	b.channelID = rec.ChannelID
	b.sourceChannelID = rec.SourceChannelID
	b.createdByID = rec.CreatedByID
	b.creationTime = time.UnixMilli(rec.CreationTime).UTC()
	b.attendees = make(map[string]Attendee, len(rec.Attendees))
	for id, a := range rec.Attendees {
		b.attendees[id] = a
	}
	b.groups = lo.Map(rec.Groups, func(g Group, _ int) Group { return g.clone() })
	b.defaultGroupID = rec.DefaultGroupID
	b.messages = lo.Map(rec.Messages, func(s string, _ int) MessageRef { return MessageRef(s) })
	b.lastStatusMessage = MessageRef(rec.LastStatusMessage)
	if rec.DeletionTime != nil {
		b.deletionTime = *rec.DeletionTime
	}
	if rec.MessagesSinceDeletionScheduled != nil {
		b.messagesSinceDeletionScheduled = *rec.MessagesSinceDeletionScheduled
	}
}

// attendanceLinesLocked renders one block per group.
func (b *Base) attendanceLinesLocked() []string {
	byGroup := lo.GroupBy(lo.Keys(b.attendees), func(id string) string { return b.attendees[id].Group })
	var lines []string
	for _, g := range b.groups {
		header := "Group " + g.ID
		if g.Label != "" {
			header += " (" + g.Label + ")"
		}
		header += fmt.Sprintf(": %d attending", b.attendeeCountLocked(g.ID))
		if g.StartTime != nil {
			header += " - meeting " + discordTime(*g.StartTime)
		}
		if g.ID == b.defaultGroupID && len(b.groups) > 1 {
			header += " [default]"
		}
		lines = append(lines, header)

		members := byGroup[g.ID]
		sort.Strings(members)
		for _, status := range []Status{StatusPresent, StatusComing, StatusInterested, StatusCompletePending, StatusComplete} {
			var names []string
			for _, id := range members {
				a := b.attendees[id]
				if a.Status != status {
					continue
				}
				name := "<@" + id + ">"
				if a.Number > 1 {
					name += fmt.Sprintf(" +%d", a.Number-1)
				}
				names = append(names, name)
			}
			if len(names) > 0 {
				lines = append(lines, fmt.Sprintf("  %s: %s", statusLabel(status), strings.Join(names, ", ")))
			}
		}
	}
	return lines
}
