package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingModule struct {
	name    string
	failErr error
	log     *[]string
}

func (r *recordingModule) Name() string { return r.name }

func (r *recordingModule) Start(context.Context) error {
	if r.failErr != nil {
		return r.failErr
	}
	*r.log = append(*r.log, "start "+r.name)
	return nil
}

func (r *recordingModule) Stop(context.Context) {
	*r.log = append(*r.log, "stop "+r.name)
}

func TestManager_StartStopOrder(t *testing.T) {
	var calls []string
	m := NewManager(&recordingModule{name: "a", log: &calls})
	require.NoError(t, m.Add(&recordingModule{name: "b", log: &calls}))

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Add(&recordingModule{name: "c", log: &calls}), ErrStarted)
	assert.ErrorIs(t, m.Start(context.Background()), ErrStarted)

	m.Stop(context.Background())
	m.Stop(context.Background())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, calls)
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	m := NewManager(
		&recordingModule{name: "a", log: &calls},
		nil,
		&recordingModule{name: "b", log: &calls, failErr: boom},
		&recordingModule{name: "c", log: &calls},
	)

	err := m.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "module b failed")
	assert.Equal(t, []string{"start a", "stop a"}, calls)
}
