package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/stake-plus/raidparty/src/party"
)

// Registry is the read/delete surface of the party manager.
type Registry interface {
	Parties() []party.Party
	GetParty(channelID string) (party.Party, bool)
	DeleteParty(ctx context.Context, channelID string, deleteChannel bool) error
	ArchivedParties(ctx context.Context, key string) ([]party.Party, error)
}

// Parties serves the /v1/parties and /v1/archive endpoints.
type Parties struct {
	Registry Registry
}

type partySummary struct {
	ChannelID       string     `json:"channelId"`
	Type            party.Type `json:"type"`
	SourceChannelID string     `json:"sourceChannelId"`
	CreatedByID     string     `json:"createdById"`
	CreationTime    int64      `json:"creationTime"`
	Attendees       int        `json:"attendees"`
	DeletionTime    int64      `json:"deletionTime"`
}

func summarize(p party.Party) partySummary {
	return partySummary{
		ChannelID:       p.ChannelID(),
		Type:            p.Type(),
		SourceChannelID: p.SourceChannelID(),
		CreatedByID:     p.CreatedByID(),
		CreationTime:    p.CreationTime().UnixMilli(),
		Attendees:       p.AttendeeCount(""),
		DeletionTime:    p.DeletionTime(),
	}
}

func (h *Parties) List(c *gin.Context) {
	parties := h.Registry.Parties()
	out := make([]partySummary, 0, len(parties))
	for _, p := range parties {
		out = append(out, summarize(p))
	}
	c.JSON(http.StatusOK, gin.H{"parties": out})
}

func (h *Parties) Show(c *gin.Context) {
	p, ok := h.Registry.GetParty(c.Param("channel"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"err": "party not found"})
		return
	}
	raw, err := party.Encode(p)
	if err != nil {
		log.Error().Err(err).Str("channel", p.ChannelID()).Msg("api: encode party")
		c.JSON(http.StatusInternalServerError, gin.H{"err": "encode failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"party": summarize(p), "record": json.RawMessage(raw)})
}

func (h *Parties) Delete(c *gin.Context) {
	channelID := c.Param("channel")
	err := h.Registry.DeleteParty(c.Request.Context(), channelID, true)
	switch {
	case errors.Is(err, party.ErrPartyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": "party not found"})
	case err != nil:
		// The party is already out of the registry; failed steps are queued for retry.
		log.Warn().Err(err).Str("channel", channelID).Msg("api: delete finished with errors")
		c.JSON(http.StatusAccepted, gin.H{"deleted": channelID, "warning": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"deleted": channelID})
	}
}

func (h *Parties) Refresh(c *gin.Context) {
	p, ok := h.Registry.GetParty(c.Param("channel"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"err": "party not found"})
		return
	}
	if err := p.RefreshStatusMessages(c.Request.Context()); err != nil {
		if errors.Is(err, party.ErrPartyDeleted) {
			c.JSON(http.StatusNotFound, gin.H{"err": "party not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Parties) Archive(c *gin.Context) {
	key := c.Param("key")
	parties, err := h.Registry.ArchivedParties(c.Request.Context(), key)
	if err != nil && len(parties) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("api: skipped unreadable archive records")
	}

	records := make([]json.RawMessage, 0, len(parties))
	for _, p := range parties {
		raw, err := party.Encode(p)
		if err != nil {
			continue
		}
		records = append(records, raw)
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "records": records})
}
