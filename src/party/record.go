package party

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// record is the persisted form of a party variant.
type record interface {
	baseRecord() *BaseRecord
}

// BaseRecord is the persisted form of the shared party state.
type BaseRecord struct {
	Type                           Type                `json:"type" validate:"oneof=RAID RAID_TRAIN MEETUP"`
	ChannelID                      string              `json:"channelId" validate:"required"`
	SourceChannelID                string              `json:"sourceChannelId"`
	CreatedByID                    string              `json:"createdById" validate:"required"`
	CreationTime                   int64               `json:"creationTime" validate:"gt=0"`
	Attendees                      map[string]Attendee `json:"attendees" validate:"dive"`
	Groups                         []Group             `json:"groups" validate:"min=1,max=5,dive"`
	DefaultGroupID                 string              `json:"defaultGroupId" validate:"required"`
	Messages                       []string            `json:"messages,omitempty"`
	LastStatusMessage              string              `json:"lastStatusMessage,omitempty"`
	DeletionTime                   *int64              `json:"deletionTime,omitempty"`
	MessagesSinceDeletionScheduled *int                `json:"messagesSinceDeletionScheduled,omitempty"`
}

func (r *BaseRecord) baseRecord() *BaseRecord { return r }

// RaidRecord is the persisted form of a Raid.
type RaidRecord struct {
	BaseRecord
	GymID       string   `json:"gymId" validate:"required"`
	GymName     string   `json:"gymName,omitempty"`
	Pokemon     *Pokemon `json:"pokemon,omitempty"`
	Tier        int      `json:"tier,omitempty" validate:"gte=0"`
	HatchTime   *int64   `json:"hatchTime,omitempty"`
	EndTime     *int64   `json:"endTime,omitempty"`
	Duration    int      `json:"duration,omitempty" validate:"gte=0"`
	Moveset     Moveset  `json:"moveset"`
	IsExclusive bool     `json:"isExclusive,omitempty"`
}

// TrainRecord is the persisted form of a RaidTrain.
type TrainRecord struct {
	BaseRecord
	TrainName  string   `json:"trainName" validate:"required"`
	GymID      string   `json:"gymId,omitempty"`
	GymName    string   `json:"gymName,omitempty"`
	Route      []string `json:"route" validate:"dive,required"`
	CurrentGym int      `json:"currentGym" validate:"gte=0"`
	Conductor  *Member  `json:"conductor,omitempty"`
	StartTime  *int64   `json:"startTime,omitempty"`
	EndTime    *int64   `json:"endTime,omitempty"`
	Pokemon    *Pokemon `json:"pokemon,omitempty"`
}

// MeetupRecord is the persisted form of a Meetup.
type MeetupRecord struct {
	BaseRecord
	MeetupName  string `json:"meetupName" validate:"required"`
	Description string `json:"description,omitempty"`
	StartTime   *int64 `json:"startTime,omitempty"`
	EndTime     *int64 `json:"endTime,omitempty"`
}

func encodeRecord(rec record) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("party: encode %s: %w", rec.baseRecord().ChannelID, err)
	}
	return raw, nil
}

// Encode serialises a party to its persisted record.
func Encode(p Party) ([]byte, error) {
	b := p.base()
	b.mu.Lock()
	defer b.mu.Unlock()
	return encodeRecord(p.recordLocked())
}

// encodeArchived serialises a party without its message bookkeeping.
func encodeArchived(p Party) ([]byte, error) {
	b := p.base()
	b.mu.Lock()
	rec := p.recordLocked()
	b.mu.Unlock()

	br := rec.baseRecord()
	br.Messages = nil
	br.MessagesSinceDeletionScheduled = nil
	return encodeRecord(rec)
}

// DecodeRecord reconstructs the concrete party variant stored in raw. The
// returned party is detached until a Manager registers it.
func DecodeRecord(raw []byte) (Party, error) {
	var head struct {
		Type      Type   `json:"type"`
		ChannelID string `json:"channelId"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &RecordError{Err: fmt.Errorf("malformed record: %w", err)}
	}

	var (
		rec record
		p   Party
	)
	switch head.Type {
	case TypeRaid:
		rec, p = &RaidRecord{}, &Raid{}
	case TypeRaidTrain:
		rec, p = &TrainRecord{}, &RaidTrain{}
	case TypeMeetup:
		rec, p = &MeetupRecord{}, &Meetup{}
	default:
		return nil, &RecordError{ChannelID: head.ChannelID, Err: fmt.Errorf("unknown party type %q", head.Type)}
	}

	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, &RecordError{ChannelID: head.ChannelID, Err: err}
	}
	if err := validate.Struct(rec); err != nil {
		return nil, &RecordError{ChannelID: head.ChannelID, Err: err}
	}
	if err := checkBaseRecord(rec.baseRecord()); err != nil {
		return nil, &RecordError{ChannelID: head.ChannelID, Err: err}
	}

	switch p := p.(type) {
	case *Raid:
		p.restore(rec.(*RaidRecord))
	case *RaidTrain:
		if err := p.restore(rec.(*TrainRecord)); err != nil {
			return nil, &RecordError{ChannelID: head.ChannelID, Err: err}
		}
	case *Meetup:
		p.restore(rec.(*MeetupRecord))
	}
	return p, nil
}

// checkBaseRecord enforces the cross-field invariants struct tags cannot express.
func checkBaseRecord(r *BaseRecord) error {
	seen := make(map[string]bool, len(r.Groups))
	for i, g := range r.Groups {
		if want := string(rune('A' + i)); g.ID != want {
			return fmt.Errorf("group %d has id %q, want %q", i, g.ID, want)
		}
		seen[g.ID] = true
	}
	if !seen[r.DefaultGroupID] {
		return fmt.Errorf("default group %q does not exist", r.DefaultGroupID)
	}

	var errs []error
	for id, a := range r.Attendees {
		if id == "" {
			errs = append(errs, errors.New("attendee with empty member id"))
			continue
		}
		if !seen[a.Group] {
			errs = append(errs, fmt.Errorf("attendee %s references unknown group %q", id, a.Group))
		}
	}

	for _, m := range r.Messages {
		if _, err := ParseMessageRef(m); err != nil {
			errs = append(errs, err)
		}
	}
	if dups := lo.FindDuplicates(r.Messages); len(dups) > 0 {
		errs = append(errs, fmt.Errorf("duplicate message references %v", dups))
	}
	if r.LastStatusMessage != "" {
		if _, err := ParseMessageRef(r.LastStatusMessage); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func unixMilli(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromUnixMilli(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := t.UTC()
	return &c
}
