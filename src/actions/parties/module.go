package parties

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/stake-plus/raidparty/src/actions/core"
	sharedconfig "github.com/stake-plus/raidparty/src/config"
	"github.com/stake-plus/raidparty/src/data"
	shareddiscord "github.com/stake-plus/raidparty/src/discord"
	"github.com/stake-plus/raidparty/src/party"
)

var _ core.Module = (*Module)(nil)

const eventTimeout = 30 * time.Second

// Module owns the Discord session, the party manager and its periodic sweeps.
type Module struct {
	config     *sharedconfig.PartyConfig
	session    *discordgo.Session
	manager    *party.Manager
	handler    *Handler
	quartz     *cron.Cron
	runtimeCtx context.Context
	cancel     context.CancelFunc
}

func NewModule(cfg *sharedconfig.PartyConfig, store data.Store) (*Module, error) {
	session, err := discordgo.New("Bot " + cfg.Base.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages

	manager := party.NewManager(store, shareddiscord.NewClient(session).Services(), party.Options{
		WarningEvery:            cfg.WarningEvery,
		RaidGrace:               cfg.RaidGrace,
		AnnouncementDeleteDelay: cfg.AnnouncementDeleteDelay,
	})

	module := &Module{
		config:  cfg,
		session: session,
		manager: manager,
		handler: &Handler{Parties: manager, ModeratorRoleID: cfg.ModeratorRoleID},
		quartz:  cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger))),
	}

	module.initHandlers()
	return module, nil
}

// Name implements core.Module.
func (m *Module) Name() string { return "parties" }

// Manager exposes the party registry to sibling modules.
func (m *Module) Manager() *party.Manager { return m.manager }

func (m *Module) initHandlers() {
	m.session.AddHandler(m.onReady)
	m.session.AddHandler(m.onChannelDelete)
	m.session.AddHandler(m.onMessageCreate)
	m.session.AddHandler(m.onInteractionCreate)
}

func (m *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("user", s.State.User.Username).Msg("parties: bot logged in")

	if err := shareddiscord.RegisterSlashCommands(s, m.config.Base.GuildID, shareddiscord.CommandParty); err != nil {
		log.Error().Err(err).Msg("parties: failed to register slash commands")
	}
}

func (m *Module) eventContext() (context.Context, context.CancelFunc) {
	parent := m.runtimeCtx
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, eventTimeout)
}

func (m *Module) onChannelDelete(s *discordgo.Session, e *discordgo.ChannelDelete) {
	if e.Channel == nil {
		return
	}
	ctx, cancel := m.eventContext()
	defer cancel()
	m.handler.ChannelDeleted(ctx, e.Channel.ID)
}

func (m *Module) onMessageCreate(s *discordgo.Session, e *discordgo.MessageCreate) {
	if e.Author == nil || e.Author.Bot {
		return
	}
	ctx, cancel := m.eventContext()
	defer cancel()
	m.handler.MessageCreated(ctx, e.ChannelID)
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	cmd := i.ApplicationCommandData()
	if cmd.Name != shareddiscord.CommandParty {
		return
	}

	ctx, cancel := m.eventContext()
	defer cancel()

	result, err := m.handler.Command(ctx, i.ChannelID, shareddiscord.Subcommand(cmd), i.Member)
	if err != nil {
		log.Error().Err(err).Str("channel", i.ChannelID).Msg("parties: command failed")
		result.Reply = "Something went wrong, please try again."
	}
	if err := shareddiscord.RespondEphemeral(s, i.Interaction, result.Reply); err != nil {
		log.Warn().Err(err).Msg("parties: interaction response failed")
	}
	if result.Followup != nil {
		if err := result.Followup(ctx); err != nil {
			log.Error().Err(err).Str("channel", i.ChannelID).Msg("parties: command followup failed")
		}
	}
}

func (m *Module) Start(ctx context.Context) error {
	runtimeCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.runtimeCtx = runtimeCtx

	if err := m.manager.Initialize(runtimeCtx); err != nil {
		log.Warn().Err(err).Msg("parties: some records could not be restored")
	}

	if err := m.session.Open(); err != nil {
		cancel()
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	if err := m.scheduleSweeps(); err != nil {
		cancel()
		m.session.Close()
		return err
	}
	m.quartz.Start()
	return nil
}

func (m *Module) scheduleSweeps() error {
	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"expiry", m.config.ExpirySweep, func(ctx context.Context) error {
			_, err := m.manager.SweepExpired(ctx, time.Now())
			return err
		}},
		{"reconcile", m.config.ReconcileSweep, m.manager.ReconcileOrphans},
		{"refresh", m.config.RefreshSweep, m.manager.RefreshAll},
	}

	for _, job := range jobs {
		if job.spec == "" {
			log.Info().Str("sweep", job.name).Msg("parties: sweep disabled")
			continue
		}
		if _, err := m.quartz.AddFunc(job.spec, func() {
			if err := job.run(m.runtimeCtx); err != nil {
				log.Warn().Err(err).Str("sweep", job.name).Msg("parties: sweep finished with errors")
			}
		}); err != nil {
			return fmt.Errorf("parties: schedule %s sweep %q: %w", job.name, job.spec, err)
		}
	}
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	<-m.quartz.Stop().Done()

	if m.cancel != nil {
		m.cancel()
	}

	m.manager.Close()
	if m.session != nil {
		m.session.Close()
	}
}
