package party

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberStatus_DefaultsToNotInterested(t *testing.T) {
	r := detachedRaid()
	assert.Equal(t, StatusInterested, r.MemberStatus("U1"))
	assert.Equal(t, StatusNotInterested, r.MemberStatus("nobody"))
}

func TestSetMemberStatus_Upsert(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	before := r.AttendeeCount("")

	require.NoError(t, r.SetMemberStatusWithCount(ctx, "U2", StatusComing, 2))
	assert.Equal(t, Attendee{Number: 3, Status: StatusComing, Group: "A"}, r.Attendees()["U2"])
	assert.Equal(t, before+3, r.AttendeeCount(""))

	// Without an explicit count the stored number is kept.
	require.NoError(t, r.SetMemberStatus(ctx, "U2", StatusPresent))
	assert.Equal(t, Attendee{Number: 3, Status: StatusPresent, Group: "A"}, r.Attendees()["U2"])

	require.NoError(t, r.SetMemberStatusWithCount(ctx, "U2", StatusPresent, 0))
	assert.Equal(t, 1, r.Attendees()["U2"].Number)
}

func TestSetMemberStatus_Idempotent(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	require.NoError(t, r.SetMemberStatus(ctx, "U2", StatusComing))
	once := r.Attendees()["U2"]
	require.NoError(t, r.SetMemberStatus(ctx, "U2", StatusComing))
	assert.Equal(t, once, r.Attendees()["U2"])
}

func TestSetMemberStatus_InvalidInput(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	assert.ErrorIs(t, r.SetMemberStatus(ctx, "", StatusComing), ErrInvalidMember)
	assert.ErrorIs(t, r.SetMemberStatusWithCount(ctx, "U2", StatusComing, -1), ErrInvalidCount)
	assert.Error(t, r.SetMemberStatus(ctx, "U2", Status(42)))
	assert.NotContains(t, r.Attendees(), "U2")
}

func TestRemoveAttendee(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()

	require.NoError(t, r.RemoveAttendee(ctx, "U1"))
	assert.Empty(t, r.Attendees())
	assert.Equal(t, StatusNotInterested, r.MemberStatus("U1"))
	assert.ErrorIs(t, r.RemoveAttendee(ctx, "U1"), ErrNotSignedUp)
}

func TestAttendeeCount_SkipsCompleted(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	require.NoError(t, r.SetMemberStatusWithCount(ctx, "U2", StatusComplete, 3))
	require.NoError(t, r.SetMemberStatusWithCount(ctx, "U3", StatusCompletePending, 1))
	require.NoError(t, r.SetMemberStatusWithCount(ctx, "U4", StatusPresent, 1))

	assert.Equal(t, 3, r.AttendeeCount(""))
}

func TestAttendeeCount_GroupsSumToTotal(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	require.NoError(t, r.SetMemberStatusWithCount(ctx, "U2", StatusComing, 1))
	_, err := r.CreateGroup(ctx, "U3")
	require.NoError(t, err)
	require.NoError(t, r.SetMemberStatusWithCount(ctx, "U4", StatusPresent, 2))
	require.NoError(t, r.SetMemberStatus(ctx, "U5", StatusComplete))

	total := r.AttendeeCount("")
	sum := 0
	for _, g := range r.Groups() {
		n := r.AttendeeCount(g.ID)
		assert.LessOrEqual(t, n, total)
		sum += n
	}
	assert.Equal(t, total, sum)
}

func TestCreateGroup_CapsAtFive(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()

	for i, want := range []string{"B", "C", "D", "E"} {
		g, err := r.CreateGroup(ctx, "U1")
		require.NoError(t, err, "group %d", i)
		assert.Equal(t, want, g.ID)
		assert.Equal(t, want, r.DefaultGroupID())
		assert.Equal(t, want, r.Attendees()["U1"].Group)
	}

	_, err := r.CreateGroup(ctx, "U1")
	assert.ErrorIs(t, err, ErrMaxGroups)
	assert.Len(t, r.Groups(), MaxGroups)
	assert.Equal(t, "E", r.DefaultGroupID())
}

func TestCreateGroup_SignsUpNewMember(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()

	g, err := r.CreateGroup(ctx, "U2")
	require.NoError(t, err)
	assert.Equal(t, Attendee{Number: 1, Status: StatusComing, Group: g.ID}, r.Attendees()["U2"])

	// New attendees now join the new default group.
	require.NoError(t, r.SetMemberStatus(ctx, "U3", StatusInterested))
	assert.Equal(t, "B", r.Attendees()["U3"].Group)
	assert.Equal(t, "A", r.Attendees()["U1"].Group)
}

func TestSetMemberGroup(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	_, err := r.CreateGroup(ctx, "U1")
	require.NoError(t, err)

	require.NoError(t, r.SetMemberGroup(ctx, "U1", "A"))
	assert.Equal(t, "A", r.Attendees()["U1"].Group)

	require.NoError(t, r.SetMemberGroup(ctx, "U9", "A"))
	assert.Equal(t, Attendee{Number: 1, Status: StatusComing, Group: "A"}, r.Attendees()["U9"])

	assert.ErrorIs(t, r.SetMemberGroup(ctx, "U1", "Z"), ErrUnknownGroup)
	assert.ErrorIs(t, r.SetMemberGroup(ctx, "", "A"), ErrInvalidMember)
}

func TestSetGroupLabel(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()

	assert.ErrorIs(t, r.SetGroupLabel(ctx, "stranger", "late crew"), ErrNotSignedUp)

	require.NoError(t, r.SetGroupLabel(ctx, "U1", "<b>early</b> crew"))
	assert.Equal(t, "early crew", r.Groups()[0].Label)
}

func TestMeetingTime(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	at := testNow.Add(30 * time.Minute)

	assert.ErrorIs(t, r.SetMeetingTime(ctx, "stranger", at), ErrNotSignedUp)

	require.NoError(t, r.SetMeetingTime(ctx, "U1", at))
	require.NotNil(t, r.Groups()[0].StartTime)
	assert.True(t, at.Equal(*r.Groups()[0].StartTime))

	require.NoError(t, r.CancelMeetingTime(ctx, "U1"))
	assert.Nil(t, r.Groups()[0].StartTime)
}

func TestGroupInvariantHolds(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	for _, id := range []string{"U2", "U3", "U4"} {
		require.NoError(t, r.SetMemberStatus(ctx, id, StatusComing))
		_, _ = r.CreateGroup(ctx, id)
	}
	require.NoError(t, r.SetMemberGroup(ctx, "U2", "C"))

	ids := map[string]bool{}
	for _, g := range r.Groups() {
		ids[g.ID] = true
	}
	assert.True(t, ids[r.DefaultGroupID()])
	for member, a := range r.Attendees() {
		assert.True(t, ids[a.Group], "attendee %s in unknown group %s", member, a.Group)
	}
}

func TestMutationsPersist(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)

	require.NoError(t, raid.SetMemberStatusWithCount(ctx, "U2", StatusComing, 1))
	rec := env.storedRecord(t, raid.ChannelID())
	attendees := rec["attendees"].(map[string]any)
	assert.Contains(t, attendees, "U2")
	assert.EqualValues(t, 2, attendees["U2"].(map[string]any)["number"])
}

func TestConcurrentMutationsAllPersist(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, raid.SetMemberStatus(ctx, "member-"+string(rune('a'+i%26))+string(rune('a'+i/26)), StatusComing))
		}(i)
	}
	wg.Wait()

	rec := env.storedRecord(t, raid.ChannelID())
	assert.Len(t, rec["attendees"], 41)
}

func TestScheduleDeletion(t *testing.T) {
	ctx := context.Background()
	r := detachedRaid()
	at := testNow.Add(time.Hour)

	require.NoError(t, r.ScheduleDeletion(ctx, at))
	assert.Equal(t, at.UnixMilli(), r.DeletionTime())

	require.NoError(t, r.ProtectFromDeletion(ctx))
	assert.Equal(t, ProtectedFromDeletion, r.DeletionTime())
	assert.ErrorIs(t, r.ScheduleDeletion(ctx, at), ErrDeletionProtected)
}

func TestSendDeletionWarningMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)
	sentBefore := len(env.fake.Sent)

	// Nothing scheduled: no counter, no warning.
	require.NoError(t, raid.SendDeletionWarningMessage(ctx))
	assert.Len(t, env.fake.Sent, sentBefore)

	require.NoError(t, raid.ScheduleDeletion(ctx, testNow.Add(time.Hour)))
	for i := 0; i < 6; i++ {
		require.NoError(t, raid.SendDeletionWarningMessage(ctx))
	}

	warnings := 0
	for _, s := range env.fake.Sent[sentBefore:] {
		assert.Equal(t, raid.ChannelID(), s.Message.ChannelID)
		warnings++
	}
	assert.Equal(t, 2, warnings)
	assert.EqualValues(t, 6, env.storedRecord(t, raid.ChannelID())["messagesSinceDeletionScheduled"])
}

func TestReplaceLastMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)
	old := raid.LastStatusMessage()
	require.NotEmpty(t, old)

	next := env.fake.PutMessage("region-1", raid.StatusContent())
	require.NoError(t, raid.ReplaceLastMessage(ctx, RefOf(next)))

	assert.Equal(t, RefOf(next), raid.LastStatusMessage())
	_, exists := env.fake.MessageContent(old.ChannelID(), old.MessageID())
	assert.False(t, exists)
	assert.Equal(t, string(RefOf(next)), env.storedRecord(t, raid.ChannelID())["lastStatusMessage"])
}

func TestRefreshStatusMessages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)

	require.NoError(t, raid.SetMemberStatus(ctx, "U2", StatusComing))
	require.NoError(t, raid.RefreshStatusMessages(ctx))
	assert.Len(t, env.fake.Edits, 2)

	// Unchanged content is not edited again.
	require.NoError(t, raid.RefreshStatusMessages(ctx))
	assert.Len(t, env.fake.Edits, 2)

	content, ok := env.fake.MessageContent(raid.ChannelID(), raid.Messages()[0].MessageID())
	require.True(t, ok)
	assert.Contains(t, content.Body, "<@U2>")
}

func TestRefreshStatusMessages_PrunesVanished(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raid := env.createRaid(t)
	ann := raid.LastStatusMessage()
	env.fake.RemoveMessage(ann.ChannelID(), ann.MessageID())

	require.NoError(t, raid.RefreshStatusMessages(ctx))
	assert.Empty(t, raid.LastStatusMessage())
	assert.NotContains(t, env.storedRecord(t, raid.ChannelID()), "lastStatusMessage")
}
