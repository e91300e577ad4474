package party

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/stake-plus/raidparty/src/platform"
)

// RaidTrain is a group moving through an ordered route of gyms. currentGym
// is a cursor into route; len(route) means the route is finished.
type RaidTrain struct {
	Base

	trainName  string
	gymID      string
	gymName    string
	route      []string
	currentGym int
	conductor  *Member
	startTime  *time.Time
	endTime    *time.Time
	pokemon    *Pokemon
}

// TrainParams describes a raid train to create.
type TrainParams struct {
	SourceChannelID string
	CreatedByID     string
	Name            string
	Gym             Gym
	StartTime       *time.Time
}

func newRaidTrain(channelID string, p TrainParams, now time.Time) *RaidTrain {
	t := &RaidTrain{
		Base:      newBase(TypeRaidTrain, channelID, p.SourceChannelID, p.CreatedByID, now),
		trainName: p.Name,
		gymID:     p.Gym.ID,
		gymName:   p.Gym.Name,
		startTime: copyTime(p.StartTime),
	}
	if p.Gym.ID != "" {
		t.route = []string{p.Gym.ID}
	}
	t.bind(t)
	t.upsertAttendeeLocked(p.CreatedByID, StatusComing, nil)
	return t
}

func (t *RaidTrain) restore(rec *TrainRecord) error {
	if rec.CurrentGym > len(rec.Route) {
		return fmt.Errorf("current gym %d is past the end of a %d stop route", rec.CurrentGym, len(rec.Route))
	}
	if dups := lo.FindDuplicates(rec.Route); len(dups) > 0 {
		return fmt.Errorf("duplicate route gyms %v", dups)
	}
	t.Base.restore(rec.BaseRecord)
	t.trainName = rec.TrainName
	t.gymID = rec.GymID
	t.gymName = rec.GymName
	t.route = slices.Clone(rec.Route)
	t.currentGym = rec.CurrentGym
	if rec.Conductor != nil {
		c := *rec.Conductor
		t.conductor = &c
	}
	t.startTime = fromUnixMilli(rec.StartTime)
	t.endTime = fromUnixMilli(rec.EndTime)
	if rec.Pokemon != nil {
		pk := *rec.Pokemon
		t.pokemon = &pk
	}
	t.bind(t)
	return nil
}

func (t *RaidTrain) recordLocked() record {
	rec := &TrainRecord{
		BaseRecord: t.baseRecordLocked(),
		TrainName:  t.trainName,
		GymID:      t.gymID,
		GymName:    t.gymName,
		Route:      slices.Clone(t.route),
		CurrentGym: t.currentGym,
		StartTime:  unixMilli(t.startTime),
		EndTime:    unixMilli(t.endTime),
	}
	if rec.Route == nil {
		rec.Route = []string{}
	}
	if t.conductor != nil {
		c := *t.conductor
		rec.Conductor = &c
	}
	if t.pokemon != nil {
		pk := *t.pokemon
		rec.Pokemon = &pk
	}
	return rec
}

// ArchiveKey files trains under their current gym, if any.
func (t *RaidTrain) ArchiveKey() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gymID, t.gymID != ""
}

func (t *RaidTrain) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trainName
}

func (t *RaidTrain) GymID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gymID
}

// Route returns a copy of the route.
func (t *RaidTrain) Route() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.route)
}

func (t *RaidTrain) CurrentGym() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentGym
}

// IsFinished reports whether the cursor has reached the end of the route.
func (t *RaidTrain) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.route) > 0 && t.currentGym >= len(t.route)
}

func (t *RaidTrain) Conductor() *Member {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conductor == nil {
		return nil
	}
	c := *t.conductor
	return &c
}

// IsConductor reports whether memberID holds route-advance authority.
func (t *RaidTrain) IsConductor(memberID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conductor != nil && t.conductor.ID == memberID
}

func (t *RaidTrain) Pokemon() *Pokemon {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pokemon == nil {
		return nil
	}
	pk := *t.pokemon
	return &pk
}

func (t *RaidTrain) StartTime() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyTime(t.startTime)
}

func (t *RaidTrain) EndTime() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyTime(t.endTime)
}

// AddRouteGym appends gymID to the route. It returns false without
// changing anything when the gym is already on the route.
func (t *RaidTrain) AddRouteGym(ctx context.Context, gymID string) (bool, error) {
	if gymID == "" {
		return false, ErrInvalidGym
	}
	added := false
	err := t.mutate(ctx, func() error {
		if slices.Contains(t.route, gymID) {
			return errUnchanged
		}
		t.route = append(t.route, gymID)
		t.syncStopLocked()
		added = true
		return nil
	})
	return added, err
}

// InsertRouteGym inserts gymID before position index. Inserting at or before
// the current stop keeps the cursor on the same gym; on a finished route an
// append at the end becomes the next stop.
func (t *RaidTrain) InsertRouteGym(ctx context.Context, index int, gymID string) (bool, error) {
	if gymID == "" {
		return false, ErrInvalidGym
	}
	added := false
	err := t.mutate(ctx, func() error {
		if index < 0 || index > len(t.route) {
			return ErrInvalidRouteIndex
		}
		if slices.Contains(t.route, gymID) {
			return errUnchanged
		}
		finished := t.currentGym >= len(t.route)
		t.route = slices.Insert(t.route, index, gymID)
		if index < t.currentGym || (index == t.currentGym && !finished) {
			t.currentGym++
		}
		t.syncStopLocked()
		added = true
		return nil
	})
	return added, err
}

// RemoveRouteGym removes the stop at index.
func (t *RaidTrain) RemoveRouteGym(ctx context.Context, index int) error {
	return t.mutate(ctx, func() error {
		if index < 0 || index >= len(t.route) {
			return ErrInvalidRouteIndex
		}
		t.route = slices.Delete(t.route, index, index+1)
		if index < t.currentGym {
			t.currentGym--
		}
		t.syncStopLocked()
		return nil
	})
}

// ClearRoute empties the route and rewinds the cursor.
func (t *RaidTrain) ClearRoute(ctx context.Context) error {
	return t.mutate(ctx, func() error {
		t.route = nil
		t.currentGym = 0
		return nil
	})
}

func (t *RaidTrain) MoveToNextGym(ctx context.Context) error {
	return t.moveCursor(ctx, func() int { return t.currentGym + 1 })
}

// SkipGym advances past the next stop, stopping at the end of the route.
func (t *RaidTrain) SkipGym(ctx context.Context) error {
	return t.moveCursor(ctx, func() int { return min(t.currentGym+2, len(t.route)) })
}

func (t *RaidTrain) MoveToPreviousGym(ctx context.Context) error {
	return t.moveCursor(ctx, func() int { return max(t.currentGym-1, 0) })
}

// FinishRoute moves the cursor to the terminal position.
func (t *RaidTrain) FinishRoute(ctx context.Context) error {
	return t.moveCursor(ctx, func() int { return len(t.route) })
}

// moveCursor is a no-op on an empty or finished route.
func (t *RaidTrain) moveCursor(ctx context.Context, next func() int) error {
	return t.mutate(ctx, func() error {
		if len(t.route) == 0 || t.currentGym >= len(t.route) {
			return errUnchanged
		}
		n := next()
		if n == t.currentGym {
			return errUnchanged
		}
		t.currentGym = n
		t.syncStopLocked()
		return nil
	})
}

// syncStopLocked points gymID at the current stop. The boss belongs to the
// previous stop, so it is cleared whenever the stop changes.
func (t *RaidTrain) syncStopLocked() {
	if t.currentGym > len(t.route) {
		t.currentGym = len(t.route)
	}
	if t.currentGym >= len(t.route) {
		return
	}
	if stop := t.route[t.currentGym]; stop != t.gymID {
		t.gymID = stop
		t.gymName = ""
		t.pokemon = nil
	}
}

// SetConductor hands route-advance authority to member; nil clears it.
func (t *RaidTrain) SetConductor(ctx context.Context, member *Member) error {
	if member != nil && member.ID == "" {
		return ErrInvalidMember
	}
	return t.mutate(ctx, func() error {
		if member == nil {
			t.conductor = nil
			return nil
		}
		c := *member
		c.Name = cleanText(c.Name, maxNameLength)
		t.conductor = &c
		return nil
	})
}

// SetPokemon records the boss at the current stop; nil clears it.
func (t *RaidTrain) SetPokemon(ctx context.Context, pk *Pokemon) error {
	return t.mutate(ctx, func() error {
		if pk == nil {
			t.pokemon = nil
			return nil
		}
		c := *pk
		t.pokemon = &c
		return nil
	})
}

func (t *RaidTrain) SetStartTime(ctx context.Context, at time.Time) error {
	return t.mutate(ctx, func() error {
		t.startTime = copyTime(&at)
		return nil
	})
}

func (t *RaidTrain) SetEndTime(ctx context.Context, at time.Time) error {
	return t.mutate(ctx, func() error {
		t.endTime = copyTime(&at)
		return nil
	})
}

// SetLocation moves the train to gym. When newRegion differs from the current
// source channel the hosting channel is renamed and moved under the region's
// category, and the old region's announcement is replaced by a new one.
func (t *RaidTrain) SetLocation(ctx context.Context, gym Gym, newRegion *platform.Channel) error {
	if gym.ID == "" {
		return ErrInvalidGym
	}
	var (
		moved        bool
		announcement MessageRef
		name         string
	)
	err := t.mutate(ctx, func() error {
		t.gymID = gym.ID
		t.gymName = gym.Name
		t.pokemon = nil
		if idx := slices.Index(t.route, gym.ID); idx >= 0 {
			t.currentGym = idx
		}
		if newRegion != nil && newRegion.ID != t.sourceChannelID {
			if t.lastStatusMessage.ChannelID() == t.sourceChannelID {
				announcement = t.lastStatusMessage
			}
			t.sourceChannelID = newRegion.ID
			moved = true
		}
		name = t.trainName
		return nil
	})
	if err != nil || !moved || t.manager == nil {
		return err
	}

	m := t.manager
	var errs []error
	if err := m.services.Channels.Rename(ctx, t.channelID, channelSlug(name+" "+gym.Name)); err != nil {
		errs = append(errs, fmt.Errorf("rename channel: %w", err))
	}
	if err := m.services.Channels.Reparent(ctx, t.channelID, newRegion.ParentID, true); err != nil {
		errs = append(errs, fmt.Errorf("reparent channel: %w", err))
	}
	if err := t.replaceAnnouncement(ctx, announcement, *newRegion); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Str("channel", t.channelID).Str("region", newRegion.ID).Msg("party: train relocation incomplete")
		return err
	}
	return nil
}

// replaceAnnouncement marks the old announcement as moved, schedules its
// deletion and posts a fresh announcement in region.
func (t *RaidTrain) replaceAnnouncement(ctx context.Context, old MessageRef, region platform.Channel) error {
	m := t.manager
	content := t.StatusContent()

	if old != "" {
		if msg, err := m.GetMessage(ctx, old); err == nil {
			if err := m.services.Messages.Edit(ctx, *msg, movedContent(content, region.Name)); err != nil {
				log.Warn().Err(err).Str("message", string(old)).Msg("party: mark announcement moved failed")
			}
			m.DeleteMessageAfter(old, m.opts.AnnouncementDeleteDelay)
		}
		if err := t.removeMessage(ctx, old); err != nil {
			return err
		}
	}

	sent, err := m.services.Messages.Send(ctx, region.ID, content)
	if err != nil {
		return fmt.Errorf("send announcement: %w", err)
	}
	ref := RefOf(*sent)
	if err := t.mutate(ctx, func() error {
		t.lastStatusMessage = ref
		return nil
	}); err != nil {
		return err
	}
	if err := m.services.Messages.Pin(ctx, *sent); err != nil {
		log.Debug().Err(err).Str("message", string(ref)).Msg("party: pin announcement failed")
	}
	return nil
}

func (t *RaidTrain) statusContentLocked() platform.Content {
	title := t.trainName
	if t.pokemon != nil {
		title += " - " + t.pokemon.Name
	}

	var stop string
	switch {
	case len(t.route) > 0 && t.currentGym >= len(t.route):
		stop = "Route finished"
	case t.gymName != "":
		stop = "Now at: " + t.gymName
	case t.gymID != "":
		stop = "Now at: " + t.gymID
	}

	var route []string
	for i, g := range t.route {
		marker := "  "
		if i == t.currentGym {
			marker = "> "
		} else if i < t.currentGym {
			marker = "x "
		}
		route = append(route, fmt.Sprintf("%s%d. %s", marker, i+1, g))
	}

	var conductor string
	if t.conductor != nil {
		conductor = "Conductor: <@" + t.conductor.ID + ">"
	}

	body := joinNonEmpty(
		stop,
		optionalTime("Starts", t.startTime),
		optionalTime("Ends", t.endTime),
		conductor,
		strings.Join(route, "\n"),
		fmt.Sprintf("Attending: %d", t.attendeeCountLocked("")),
		strings.Join(t.attendanceLinesLocked(), "\n"),
	)
	return platform.Content{Title: title, Body: body}
}
