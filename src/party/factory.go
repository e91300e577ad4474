package party

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stake-plus/raidparty/src/platform"
)

// CreateRaid opens a hosting channel for a raid reported in the source
// channel and registers the raid with its reporter as INTERESTED.
func (m *Manager) CreateRaid(ctx context.Context, p RaidParams) (*Raid, error) {
	if p.CreatedByID == "" {
		return nil, ErrInvalidMember
	}
	if p.Gym.ID == "" {
		return nil, ErrInvalidGym
	}
	boss := fmt.Sprintf("tier %d", p.Tier)
	if p.Pokemon != nil {
		boss = p.Pokemon.Name
	}
	gym := p.Gym.Name
	if gym == "" {
		gym = p.Gym.ID
	}

	var raid *Raid
	err := m.launch(ctx, p.SourceChannelID, boss+" "+gym, func(hosting *platform.Channel) Party {
		raid = newRaid(hosting.ID, p, m.now())
		raid.scheduleAfterEndLocked(m.opts.RaidGrace)
		return raid
	})
	if err != nil {
		return nil, err
	}
	return raid, nil
}

// CreateRaidTrain opens a hosting channel for a raid train with its
// organiser as COMING.
func (m *Manager) CreateRaidTrain(ctx context.Context, p TrainParams) (*RaidTrain, error) {
	if p.CreatedByID == "" {
		return nil, ErrInvalidMember
	}
	p.Name = cleanText(p.Name, maxNameLength)
	if p.Name == "" {
		return nil, ErrInvalidName
	}

	var train *RaidTrain
	err := m.launch(ctx, p.SourceChannelID, strings.TrimSpace(p.Name+" "+p.Gym.Name), func(hosting *platform.Channel) Party {
		train = newRaidTrain(hosting.ID, p, m.now())
		return train
	})
	if err != nil {
		return nil, err
	}
	return train, nil
}

// CreateMeetup opens a hosting channel for a meetup with its organiser as
// COMING.
func (m *Manager) CreateMeetup(ctx context.Context, p MeetupParams) (*Meetup, error) {
	if p.CreatedByID == "" {
		return nil, ErrInvalidMember
	}
	if cleanText(p.Name, maxNameLength) == "" {
		return nil, ErrInvalidName
	}

	var meetup *Meetup
	err := m.launch(ctx, p.SourceChannelID, cleanText(p.Name, maxNameLength), func(hosting *platform.Channel) Party {
		meetup = newMeetup(hosting.ID, p, m.now())
		return meetup
	})
	if err != nil {
		return nil, err
	}
	return meetup, nil
}

// launch creates the hosting channel next to the source channel, builds the
// party, registers and persists it, then posts the status message in the
// hosting channel and the announcement in the source channel. Failures before
// the party is persisted undo the channel; message failures are only logged.
func (m *Manager) launch(ctx context.Context, sourceChannelID, name string, build func(*platform.Channel) Party) error {
	source, err := m.GetChannel(ctx, sourceChannelID)
	if err != nil {
		return err
	}
	hosting, err := m.services.Channels.Create(ctx, source.GuildID, channelSlug(name), platform.ChannelOptions{
		ParentID: source.ParentID,
		Topic:    name,
	})
	if err != nil {
		return fmt.Errorf("party: create channel: %w", err)
	}

	p := build(hosting)
	undo := func(cause error) error {
		if derr := m.services.Channels.Delete(ctx, hosting.ID); derr != nil {
			log.Warn().Err(derr).Str("channel", hosting.ID).Msg("party: remove channel after failed create")
		}
		return cause
	}
	if err := m.register(p); err != nil {
		return undo(err)
	}
	if err := p.Persist(ctx); err != nil {
		m.unregister(hosting.ID)
		return undo(err)
	}

	content := p.StatusContent()
	if status, err := m.services.Messages.Send(ctx, hosting.ID, content); err != nil {
		log.Warn().Err(err).Str("channel", hosting.ID).Msg("party: send status message failed")
	} else if err := m.AddMessage(ctx, hosting.ID, *status, true); err != nil {
		log.Warn().Err(err).Str("channel", hosting.ID).Msg("party: track status message failed")
	}

	if ann, err := m.services.Messages.Send(ctx, source.ID, content); err != nil {
		log.Warn().Err(err).Str("channel", source.ID).Msg("party: send announcement failed")
	} else if err := p.ReplaceLastMessage(ctx, RefOf(*ann)); err != nil {
		log.Warn().Err(err).Str("channel", hosting.ID).Msg("party: track announcement failed")
	}

	log.Info().Str("channel", hosting.ID).Str("party_type", string(p.Type())).Str("source", source.ID).Msg("party: created")
	return nil
}
