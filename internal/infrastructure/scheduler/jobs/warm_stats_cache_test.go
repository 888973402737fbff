package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

type fakeCachedProvider struct {
	fetchErr      error
	invalidateErr error
	calls         []string
}

func (p *fakeCachedProvider) FetchGuildMemberStats(_ context.Context, guildID string) ([]ranking.StatSnapshot, error) {
	p.calls = append(p.calls, "fetch:"+guildID)
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return []ranking.StatSnapshot{{Name: "Alice"}}, nil
}

func (p *fakeCachedProvider) Invalidate(_ context.Context, guildID string) error {
	p.calls = append(p.calls, "invalidate:"+guildID)
	return p.invalidateErr
}

func TestWarmStatsCacheJob_Run(t *testing.T) {
	p := &fakeCachedProvider{invalidateErr: errors.New("redis down")}
	job := NewWarmStatsCacheJob(p, "g1", nil)

	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"invalidate:g1", "fetch:g1"}, p.calls)
}

func TestWarmStatsCacheJob_FetchFailure(t *testing.T) {
	p := &fakeCachedProvider{fetchErr: ranking.ErrUpstreamUnavailable}

	err := NewWarmStatsCacheJob(p, "g1", nil).Run(context.Background())
	assert.ErrorIs(t, err, ranking.ErrUpstreamUnavailable)
}
