package party

import (
	"context"
	"testing"
	"time"

	"github.com/stake-plus/raidparty/src/data"
	"github.com/stake-plus/raidparty/src/platform"
	"github.com/stake-plus/raidparty/src/platform/platformtest"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	fake  *platformtest.Fake
	store *data.MemoryStore
	mgr   *Manager
}

func newTestEnv(t *testing.T, tweak ...func(*Options)) *testEnv {
	t.Helper()
	fake := platformtest.New()
	fake.AddChannel(platform.Channel{ID: "region-1", GuildID: "guild", ParentID: "cat-1", Name: "downtown"})
	fake.AddChannel(platform.Channel{ID: "region-2", GuildID: "guild", ParentID: "cat-2", Name: "harbour"})

	opts := Options{Now: func() time.Time { return testNow }}
	for _, fn := range tweak {
		fn(&opts)
	}
	store := data.NewMemoryStore()
	mgr := NewManager(store, fake.Services(), opts)
	t.Cleanup(mgr.Close)
	return &testEnv{fake: fake, store: store, mgr: mgr}
}

func (e *testEnv) createRaid(t *testing.T) *Raid {
	t.Helper()
	raid, err := e.mgr.CreateRaid(context.Background(), RaidParams{
		SourceChannelID: "region-1",
		CreatedByID:     "U1",
		Gym:             Gym{ID: "G1", Name: "Fountain"},
		Pokemon:         &Pokemon{Name: "Mewtwo", Tier: 5},
	})
	require.NoError(t, err)
	return raid
}

// storedRecord decodes the active store entry for channelID into a generic map.
func (e *testEnv) storedRecord(t *testing.T, channelID string) map[string]any {
	t.Helper()
	raw, err := e.store.GetActive(context.Background(), channelID)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func detachedRaid() *Raid {
	return newRaid("host-1", RaidParams{
		SourceChannelID: "region-1",
		CreatedByID:     "U1",
		Gym:             Gym{ID: "G1", Name: "Fountain"},
		Tier:            5,
	}, testNow)
}

func refsToStrings(refs []MessageRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = string(r)
	}
	return out
}
