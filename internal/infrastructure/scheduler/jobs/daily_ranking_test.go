package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/albion-guild-ranking/internal/application/command"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/shared"
)

type stubRunner struct {
	result *command.DailyCycleResult
	err    error
	got    command.RunDailyCycleCommand
}

func (r *stubRunner) Handle(_ context.Context, cmd command.RunDailyCycleCommand) (*command.DailyCycleResult, error) {
	r.got = cmd
	return r.result, r.err
}

func TestDailyRankingJob_Run(t *testing.T) {
	runner := &stubRunner{result: &command.DailyCycleResult{RunID: "r1", Day: "2024-05-01"}}
	job := NewDailyRankingJob(runner, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "scheduler", runner.got.Trigger)
	assert.False(t, runner.got.Now.IsZero())
	assert.False(t, runner.got.Force)
	assert.Equal(t, "r1", job.LastResult().RunID)
	assert.Equal(t, DailyRankingJobName, job.Name())
}

func TestDailyRankingJob_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		runner  *stubRunner
		wantErr error
	}{
		{
			name:    "upstream unavailable",
			runner:  &stubRunner{result: &command.DailyCycleResult{Unavailable: true}},
			wantErr: ranking.ErrUpstreamUnavailable,
		},
		{
			name:   "lock held elsewhere",
			runner: &stubRunner{err: shared.ErrCycleInProgress},
		},
		{
			name:    "corrupt store",
			runner:  &stubRunner{err: ranking.ErrPersistenceCorrupt},
			wantErr: ranking.ErrPersistenceCorrupt,
		},
		{
			name:   "already ran today",
			runner: &stubRunner{result: &command.DailyCycleResult{Skipped: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDailyRankingJob(tt.runner, nil).Run(context.Background())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
