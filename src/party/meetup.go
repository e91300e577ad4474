package party

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stake-plus/raidparty/src/platform"
)

// Meetup is an ad-hoc gathering without a fixed gym.
type Meetup struct {
	Base

	meetupName  string
	description string
	startTime   *time.Time
	endTime     *time.Time
}

// MeetupParams describes a meetup to create.
type MeetupParams struct {
	SourceChannelID string
	CreatedByID     string
	Name            string
	Description     string
	StartTime       *time.Time
}

func newMeetup(channelID string, p MeetupParams, now time.Time) *Meetup {
	m := &Meetup{
		Base:        newBase(TypeMeetup, channelID, p.SourceChannelID, p.CreatedByID, now),
		meetupName:  cleanText(p.Name, maxNameLength),
		description: cleanText(p.Description, maxDescriptionLength),
		startTime:   copyTime(p.StartTime),
	}
	m.bind(m)
	m.upsertAttendeeLocked(p.CreatedByID, StatusComing, nil)
	return m
}

func (m *Meetup) restore(rec *MeetupRecord) {
	m.Base.restore(rec.BaseRecord)
	m.meetupName = rec.MeetupName
	m.description = rec.Description
	m.startTime = fromUnixMilli(rec.StartTime)
	m.endTime = fromUnixMilli(rec.EndTime)
	m.bind(m)
}

func (m *Meetup) recordLocked() record {
	return &MeetupRecord{
		BaseRecord:  m.baseRecordLocked(),
		MeetupName:  m.meetupName,
		Description: m.description,
		StartTime:   unixMilli(m.startTime),
		EndTime:     unixMilli(m.endTime),
	}
}

// ArchiveKey files meetups under their own channel, since they have no gym.
func (m *Meetup) ArchiveKey() (string, bool) {
	return "meetup:" + m.channelID, true
}

func (m *Meetup) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meetupName
}

func (m *Meetup) Description() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.description
}

func (m *Meetup) StartTime() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTime(m.startTime)
}

func (m *Meetup) EndTime() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTime(m.endTime)
}

// SetName renames the meetup and its hosting channel.
func (m *Meetup) SetName(ctx context.Context, name string) error {
	name = cleanText(name, maxNameLength)
	if name == "" {
		return ErrInvalidName
	}
	if err := m.mutate(ctx, func() error {
		m.meetupName = name
		return nil
	}); err != nil || m.manager == nil {
		return err
	}
	if err := m.manager.services.Channels.Rename(ctx, m.channelID, channelSlug(name)); err != nil {
		return fmt.Errorf("rename channel: %w", err)
	}
	return nil
}

func (m *Meetup) SetDescription(ctx context.Context, description string) error {
	description = cleanText(description, maxDescriptionLength)
	if description == "" {
		return ErrInvalidDescription
	}
	return m.mutate(ctx, func() error {
		m.description = description
		return nil
	})
}

func (m *Meetup) SetStartTime(ctx context.Context, at time.Time) error {
	return m.mutate(ctx, func() error {
		m.startTime = copyTime(&at)
		return nil
	})
}

func (m *Meetup) SetEndTime(ctx context.Context, at time.Time) error {
	return m.mutate(ctx, func() error {
		m.endTime = copyTime(&at)
		return nil
	})
}

func (m *Meetup) statusContentLocked() platform.Content {
	body := joinNonEmpty(
		m.description,
		optionalTime("Starts", m.startTime),
		optionalTime("Ends", m.endTime),
		fmt.Sprintf("Attending: %d", m.attendeeCountLocked("")),
		strings.Join(m.attendanceLinesLocked(), "\n"),
	)
	return platform.Content{Title: m.meetupName, Body: body}
}
