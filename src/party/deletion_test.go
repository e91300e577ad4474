package party

import (
	"context"
	"testing"
	"time"

	"github.com/stake-plus/raidparty/src/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteParty_RaidWithForeignMessages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)
	channelID := raid.ChannelID()

	first := env.fake.PutMessage("region-1", raid.StatusContent())
	second := env.fake.PutMessage("region-2", raid.StatusContent())
	require.NoError(t, env.mgr.AddMessage(ctx, channelID, first, false))
	require.NoError(t, env.mgr.AddMessage(ctx, channelID, second, false))

	require.NoError(t, env.mgr.DeleteParty(ctx, channelID, true))

	deleted := map[string]bool{}
	for _, m := range env.fake.DeletedMessages {
		deleted[m.ID] = true
	}
	assert.True(t, deleted[first.ID])
	assert.True(t, deleted[second.ID])
	assert.Equal(t, []string{channelID}, env.fake.DeletedChannels)

	archived, err := env.store.ListArchived(ctx, "G1")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(archived[0], &rec))
	assert.NotContains(t, rec, "messages")
	assert.NotContains(t, rec, "messagesSinceDeletionScheduled")
	assert.Equal(t, channelID, rec["channelId"])

	_, ok := env.mgr.GetParty(channelID)
	assert.False(t, ok)
	_, err = env.store.GetActive(ctx, channelID)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func TestDeleteParty_UnknownAndRepeated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)

	assert.ErrorIs(t, env.mgr.DeleteParty(ctx, "nope", true), ErrPartyNotFound)
	require.NoError(t, raid.Delete(ctx))
	assert.ErrorIs(t, env.mgr.DeleteParty(ctx, raid.ChannelID(), true), ErrPartyNotFound)
}

func TestDeleteParty_LateMutationsDoNotResurrect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)
	require.NoError(t, env.mgr.DeleteParty(ctx, raid.ChannelID(), true))

	assert.ErrorIs(t, raid.SetMemberStatus(ctx, "U2", StatusComing), ErrPartyDeleted)
	assert.ErrorIs(t, raid.Persist(ctx), ErrPartyDeleted)
	assert.ErrorIs(t, raid.RefreshStatusMessages(ctx), ErrPartyDeleted)

	active, err := env.store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeleteParty_ArchiveKeys(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	meetup, err := env.mgr.CreateMeetup(ctx, MeetupParams{SourceChannelID: "region-1", CreatedByID: "U1", Name: "Picnic"})
	require.NoError(t, err)
	train, err := env.mgr.CreateRaidTrain(ctx, TrainParams{SourceChannelID: "region-1", CreatedByID: "U1", Name: "Loop"})
	require.NoError(t, err)

	require.NoError(t, meetup.Delete(ctx))
	require.NoError(t, train.Delete(ctx))

	parties, err := env.mgr.ArchivedParties(ctx, "meetup:"+meetup.ChannelID())
	require.NoError(t, err)
	require.Len(t, parties, 1)
	assert.Equal(t, TypeMeetup, parties[0].Type())
	assert.Equal(t, "Picnic", parties[0].(*Meetup).Name())

	// A train that never reached a gym has nowhere to be filed.
	parties, err = env.mgr.ArchivedParties(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, parties)
	assert.False(t, env.mgr.ValidParty(train.ChannelID()))
}

func TestDeleteParty_OrphansAreReconciled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)
	ann := raid.LastStatusMessage()
	env.fake.FailMessageDelete[ann.MessageID()] = true

	err := env.mgr.DeleteParty(ctx, raid.ChannelID(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete-foreign-messages")
	assert.False(t, env.mgr.ValidParty(raid.ChannelID()), "later steps still ran")

	orphans, _ := env.mgr.PendingCleanup()
	assert.Equal(t, 1, orphans)

	require.Error(t, env.mgr.ReconcileOrphans(ctx))
	orphans, _ = env.mgr.PendingCleanup()
	assert.Equal(t, 1, orphans)

	delete(env.fake.FailMessageDelete, ann.MessageID())
	require.NoError(t, env.mgr.ReconcileOrphans(ctx))
	orphans, _ = env.mgr.PendingCleanup()
	assert.Zero(t, orphans)
	_, exists := env.fake.MessageContent(ann.ChannelID(), ann.MessageID())
	assert.False(t, exists)
}

func TestDeleteParty_StaleRecordsAreReconciled(t *testing.T) {
	ctx := context.Background()
	fakeStore := &flakyRemoveStore{MemoryStore: data.NewMemoryStore(), failures: 1}
	env := newTestEnv(t)
	env.mgr.store = fakeStore
	raid := env.createRaid(t)

	err := env.mgr.DeleteParty(ctx, raid.ChannelID(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remove-active")
	_, records := env.mgr.PendingCleanup()
	assert.Equal(t, 1, records)

	require.NoError(t, env.mgr.ReconcileOrphans(ctx))
	_, records = env.mgr.PendingCleanup()
	assert.Zero(t, records)
	_, err = fakeStore.GetActive(ctx, raid.ChannelID())
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	past := testNow.Add(-time.Hour)
	expired, err := env.mgr.CreateRaid(ctx, RaidParams{SourceChannelID: "region-1", CreatedByID: "U1", Gym: Gym{ID: "G1"}, Tier: 1, EndTime: &past})
	require.NoError(t, err)
	protected, err := env.mgr.CreateRaid(ctx, RaidParams{SourceChannelID: "region-1", CreatedByID: "U1", Gym: Gym{ID: "G2"}, Tier: 1, EndTime: &past})
	require.NoError(t, err)
	require.NoError(t, protected.ProtectFromDeletion(ctx))
	future := testNow.Add(time.Hour)
	pending, err := env.mgr.CreateRaid(ctx, RaidParams{SourceChannelID: "region-1", CreatedByID: "U1", Gym: Gym{ID: "G3"}, Tier: 1, EndTime: &future})
	require.NoError(t, err)
	unscheduled := env.createRaid(t)

	n, err := env.mgr.SweepExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.False(t, env.mgr.ValidParty(expired.ChannelID()))
	assert.True(t, env.mgr.ValidParty(protected.ChannelID()))
	assert.True(t, env.mgr.ValidParty(pending.ChannelID()))
	assert.True(t, env.mgr.ValidParty(unscheduled.ChannelID()))
}

func TestRefreshAll(t *testing.T) {
	env := newTestEnv(t)
	env.createRaid(t)
	_, err := env.mgr.CreateMeetup(context.Background(), MeetupParams{SourceChannelID: "region-2", CreatedByID: "U1", Name: "Picnic"})
	require.NoError(t, err)

	require.NoError(t, env.mgr.RefreshAll(context.Background()))
	assert.Len(t, env.fake.Edits, 4)
}

// flakyRemoveStore fails the first n active record removals.
type flakyRemoveStore struct {
	*data.MemoryStore
	failures int
}

func (s *flakyRemoveStore) RemoveActive(ctx context.Context, channelID string) error {
	if s.failures > 0 {
		s.failures--
		return errStoreDown
	}
	return s.MemoryStore.RemoveActive(ctx, channelID)
}
