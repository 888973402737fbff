package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/external/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (s *fakeSender) SendHTML(_ context.Context, chatID int64, html string) (*telegram.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: html})
	return &telegram.Message{MessageID: int64(len(s.sent))}, nil
}

type plainFormatter struct{}

func (plainFormatter) FormatBoard(entries []ranking.Entry, category ranking.Category, style ranking.Style) string {
	return fmt.Sprintf("%s/%s/%v", style, category, entries)
}

func (plainFormatter) FormatUnavailable(reason string) string {
	return "unavailable: " + reason
}

func TestChatPublisher_PublishRanking(t *testing.T) {
	sender := &fakeSender{}
	p := NewChatPublisher(sender, plainFormatter{}, -1001, nil)

	err := p.PublishRanking(context.Background(), []ranking.Entry{{Name: "Alice", Value: 350}}, ranking.CategoryTotal, ranking.StyleDaily)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-1001), sender.sent[0].chatID)
	assert.Equal(t, "daily/total/[{Alice 350}]", sender.sent[0].text)
}

func TestChatPublisher_PublishUnavailable(t *testing.T) {
	sender := &fakeSender{}
	p := NewChatPublisher(sender, plainFormatter{}, 7, nil)

	require.NoError(t, p.PublishUnavailable(context.Background(), "api down"))
	assert.Equal(t, []sentMessage{{chatID: 7, text: "unavailable: api down"}}, sender.sent)
}

func TestChatPublisher_SendFailure(t *testing.T) {
	sendErr := errors.New("telegram down")
	p := NewChatPublisher(&fakeSender{err: sendErr}, plainFormatter{}, 7, nil)

	err := p.PublishRanking(context.Background(), nil, ranking.CategoryPvP, ranking.StyleCumulative)
	assert.ErrorIs(t, err, sendErr)
	assert.ErrorIs(t, p.PublishUnavailable(context.Background(), "x"), sendErr)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(plainFormatter{}, nil)
	assert.NoError(t, p.PublishRanking(context.Background(), nil, ranking.CategoryPvP, ranking.StyleWeekly))
	assert.NoError(t, p.PublishUnavailable(context.Background(), "x"))
}
