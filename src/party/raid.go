package party

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stake-plus/raidparty/src/platform"
)

const defaultRaidGrace = 15 * time.Minute

// Raid is a time-boxed boss fight at a single gym. A raid without a boss is an
// unhatched egg.
type Raid struct {
	Base

	gymID     string
	gymName   string
	pokemon   *Pokemon
	tier      int
	hatchTime *time.Time
	endTime   *time.Time
	duration  int
	moveset   Moveset
	exclusive bool
}

// RaidParams describes a raid to create.
type RaidParams struct {
	SourceChannelID string
	CreatedByID     string
	Gym             Gym
	Pokemon         *Pokemon
	Tier            int
	HatchTime       *time.Time
	EndTime         *time.Time
}

func newRaid(channelID string, p RaidParams, now time.Time) *Raid {
	r := &Raid{
		Base:      newBase(TypeRaid, channelID, p.SourceChannelID, p.CreatedByID, now),
		gymID:     p.Gym.ID,
		gymName:   p.Gym.Name,
		tier:      p.Tier,
		hatchTime: copyTime(p.HatchTime),
		endTime:   copyTime(p.EndTime),
	}
	if p.Pokemon != nil {
		pk := *p.Pokemon
		r.pokemon = &pk
		if pk.Tier > 0 {
			r.tier = pk.Tier
		}
		r.exclusive = pk.Exclusive
	}
	r.bind(r)
	r.upsertAttendeeLocked(p.CreatedByID, StatusInterested, nil)
	return r
}

func (r *Raid) restore(rec *RaidRecord) {
	r.Base.restore(rec.BaseRecord)
	r.gymID = rec.GymID
	r.gymName = rec.GymName
	if rec.Pokemon != nil {
		pk := *rec.Pokemon
		r.pokemon = &pk
	}
	r.tier = rec.Tier
	r.hatchTime = fromUnixMilli(rec.HatchTime)
	r.endTime = fromUnixMilli(rec.EndTime)
	r.duration = rec.Duration
	r.moveset = rec.Moveset
	r.exclusive = rec.IsExclusive
	r.bind(r)
}

func (r *Raid) recordLocked() record {
	rec := &RaidRecord{
		BaseRecord:  r.baseRecordLocked(),
		GymID:       r.gymID,
		GymName:     r.gymName,
		Tier:        r.tier,
		HatchTime:   unixMilli(r.hatchTime),
		EndTime:     unixMilli(r.endTime),
		Duration:    r.duration,
		Moveset:     r.moveset,
		IsExclusive: r.exclusive,
	}
	if r.pokemon != nil {
		pk := *r.pokemon
		rec.Pokemon = &pk
	}
	return rec
}

// ArchiveKey files raids under their gym.
func (r *Raid) ArchiveKey() (string, bool) {
	return r.gymID, r.gymID != ""
}

func (r *Raid) GymID() string { return r.gymID }

// Pokemon returns the boss, or nil while unhatched.
func (r *Raid) Pokemon() *Pokemon {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pokemon == nil {
		return nil
	}
	pk := *r.pokemon
	return &pk
}

func (r *Raid) IsHatched() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pokemon != nil
}

func (r *Raid) Tier() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tier
}

func (r *Raid) IsExclusive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exclusive
}

func (r *Raid) HatchTime() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyTime(r.hatchTime)
}

func (r *Raid) EndTime() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyTime(r.endTime)
}

// Duration returns the raid length in minutes.
func (r *Raid) Duration() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}

func (r *Raid) Moveset() Moveset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moveset
}

func (r *Raid) SetHatchTime(ctx context.Context, at time.Time) error {
	return r.mutate(ctx, func() error {
		r.hatchTime = copyTime(&at)
		return nil
	})
}

// SetEndTime sets the end time and moves a scheduled deletion to end time
// plus the grace period. Protected raids stay protected.
func (r *Raid) SetEndTime(ctx context.Context, at time.Time) error {
	return r.mutate(ctx, func() error {
		r.endTime = copyTime(&at)
		r.scheduleAfterEndLocked(r.grace())
		return nil
	})
}

func (r *Raid) grace() time.Duration {
	if r.manager != nil {
		return r.manager.opts.RaidGrace
	}
	return defaultRaidGrace
}

func (r *Raid) scheduleAfterEndLocked(grace time.Duration) {
	if r.endTime == nil || r.deletionTime == ProtectedFromDeletion {
		return
	}
	r.deletionTime = r.endTime.Add(grace).UnixMilli()
	r.messagesSinceDeletionScheduled = 0
}

// SetDuration sets the raid length in minutes.
func (r *Raid) SetDuration(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("party: negative duration %d", minutes)
	}
	return r.mutate(ctx, func() error {
		r.duration = minutes
		return nil
	})
}

func (r *Raid) SetMoveset(ctx context.Context, m Moveset) error {
	return r.mutate(ctx, func() error {
		r.moveset = m
		return nil
	})
}

// SetPokemon hatches the raid with the given boss.
func (r *Raid) SetPokemon(ctx context.Context, pk Pokemon) error {
	if strings.TrimSpace(pk.Name) == "" {
		return fmt.Errorf("party: pokemon name is required")
	}
	return r.mutate(ctx, func() error {
		r.pokemon = &pk
		if pk.Tier > 0 {
			r.tier = pk.Tier
		}
		r.exclusive = pk.Exclusive
		return nil
	})
}

func (r *Raid) statusContentLocked() platform.Content {
	title := fmt.Sprintf("Tier %d egg", r.tier)
	if r.pokemon != nil {
		title = r.pokemon.Name
		if r.exclusive {
			title += " (EX)"
		}
	}
	gym := r.gymName
	if gym == "" {
		gym = r.gymID
	}
	title += " at " + gym

	var moves string
	if r.moveset.Quick != "" || r.moveset.Charge != "" {
		moves = fmt.Sprintf("Moves: %s / %s", orUnknown(r.moveset.Quick), orUnknown(r.moveset.Charge))
	}
	var length string
	if r.duration > 0 {
		length = fmt.Sprintf("Duration: %d min", r.duration)
	}

	body := joinNonEmpty(
		optionalTime("Hatches", r.hatchTime),
		optionalTime("Ends", r.endTime),
		length,
		moves,
		fmt.Sprintf("Attending: %d", r.attendeeCountLocked("")),
		strings.Join(r.attendanceLinesLocked(), "\n"),
	)
	return platform.Content{Title: title, Body: body}
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
