package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/albion-guild-ranking/internal/application/command"
	"github.com/alem-hub/albion-guild-ranking/internal/application/query"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/external/telegram"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/handler"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/middleware"
)

type edit struct {
	chatID, messageID int64
	text              string
	keyboard          *telegram.InlineKeyboardMarkup
}

type fakeAPI struct {
	mu       sync.Mutex
	sent     []telegram.SendMessageParams
	edits    []edit
	answers  []string
	updates  []telegram.Update
	pollDone chan struct{}
}

func (f *fakeAPI) GetMe(context.Context) (*telegram.User, error) {
	return &telegram.User{ID: 1, Username: "AlbionRankBot", IsBot: true}, nil
}

func (f *fakeAPI) StartPolling(ctx context.Context, h telegram.UpdateHandler) error {
	for i := range f.updates {
		if err := h(ctx, &f.updates[i]); err != nil {
			return err
		}
	}
	if f.pollDone != nil {
		close(f.pollDone)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeAPI) SendMessage(_ context.Context, p telegram.SendMessageParams) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return &telegram.Message{MessageID: int64(len(f.sent))}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, chatID, messageID int64, text, _ string, kb *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{chatID, messageID, text, kb})
	return nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, len(f.sent))
	for i, p := range f.sent {
		texts[i] = p.Text
	}
	return texts
}

type fakeQuery struct {
	mu    sync.Mutex
	got   []query.GetRankingQuery
	panic bool
}

func (f *fakeQuery) Handle(_ context.Context, q query.GetRankingQuery) (*query.RankingView, error) {
	if f.panic {
		panic("query exploded")
	}
	f.mu.Lock()
	f.got = append(f.got, q)
	f.mu.Unlock()

	if q.Category == "mining" {
		return nil, ranking.ErrUnknownCategory
	}
	category := ranking.CategoryPvP
	if q.Category != "" {
		category, _ = ranking.ParseCategory(q.Category)
	}
	mode := q.Mode
	return &query.RankingView{
		Mode:     mode,
		Category: category,
		Style:    mode.Style(),
		Entries:  []ranking.Entry{{Name: "Alice", Value: 350}, {Name: "Bob", Value: 200}},
	}, nil
}

type fakeCycle struct {
	calls int
}

func (f *fakeCycle) Handle(context.Context, command.RunDailyCycleCommand) (*command.DailyCycleResult, error) {
	f.calls++
	return &command.DailyCycleResult{Day: "2024-05-01", Players: 2, Published: []ranking.Category{ranking.CategoryTotal}}, nil
}

func newTestBot(t *testing.T, api *fakeAPI, q *fakeQuery, cycle handler.DailyCycleRunner) *Bot {
	t.Helper()
	cfg := DefaultBotConfig()
	cfg.AdminIDs = []int64{7}
	cfg.RateLimit = middleware.RateLimitConfig{RequestsPerMinute: 60, BurstSize: 3, BanThreshold: 100}
	bot, err := NewBot(api, cfg, BotDependencies{RankingQuery: q, DailyCycle: cycle})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bot.Stop(context.Background()) })
	return bot
}

func commandMessage(from int64, text string, cmdLen int) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		MessageID: 10,
		From:      &telegram.User{ID: from, FirstName: "Ana"},
		Chat:      &telegram.Chat{ID: -100, Type: "supergroup"},
		Text:      text,
		Entities:  []telegram.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func textMessage(from int64, text string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		MessageID: 11,
		From:      &telegram.User{ID: from},
		Chat:      &telegram.Chat{ID: -100, Type: "supergroup"},
		Text:      text,
	}}
}

func TestBot_RankingCommands(t *testing.T) {
	api := &fakeAPI{}
	q := &fakeQuery{}
	bot := newTestBot(t, api, q, nil)
	ctx := context.Background()

	require.NoError(t, bot.HandleUpdate(ctx, commandMessage(1, "/ranking", 8)))
	require.NoError(t, bot.HandleUpdate(ctx, commandMessage(2, "/daily@AlbionRankBot total", 20)))
	require.NoError(t, bot.HandleUpdate(ctx, textMessage(3, "!Ranking pve")))
	require.NoError(t, bot.HandleUpdate(ctx, textMessage(3, "hola a todos")))

	require.Len(t, q.got, 3)
	assert.Equal(t, query.GetRankingQuery{Mode: query.ModeCumulative}, q.got[0])
	assert.Equal(t, query.GetRankingQuery{Mode: query.ModeDaily, Category: "total"}, q.got[1])
	assert.Equal(t, query.GetRankingQuery{Mode: query.ModeCumulative, Category: "pve"}, q.got[2])

	texts := api.sentTexts()
	require.Len(t, texts, 3)
	assert.Contains(t, texts[0], "🥇 1. Alice — 350 fama")
	assert.Contains(t, texts[1], "🥇 1. Alice — +350 fama")

	require.NotNil(t, api.sent[0].ReplyMarkup)
	assert.Equal(t, "rank:cumulative:total", api.sent[0].ReplyMarkup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, int64(-100), api.sent[0].ChatID)

	snap := bot.Metrics()
	assert.Equal(t, int64(3), snap.TotalRequests)
}

func TestBot_UnknownCategoryAndCommand(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, &fakeQuery{}, nil)
	ctx := context.Background()

	require.NoError(t, bot.HandleUpdate(ctx, commandMessage(1, "/weekly mining", 7)))
	require.NoError(t, bot.HandleUpdate(ctx, commandMessage(1, "/settings", 9)))

	texts := api.sentTexts()
	require.Len(t, texts, 1, "unknown commands are ignored in groups")
	assert.Contains(t, texts[0], "Categoría desconocida")
}

func TestBot_Callback(t *testing.T) {
	api := &fakeAPI{}
	q := &fakeQuery{}
	bot := newTestBot(t, api, q, nil)

	update := &telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb1",
		From:    &telegram.User{ID: 1},
		Message: &telegram.Message{MessageID: 55, Chat: &telegram.Chat{ID: -100}},
		Data:    "rank:weekly:crafting",
	}}
	require.NoError(t, bot.HandleUpdate(context.Background(), update))

	require.Len(t, q.got, 1)
	assert.Equal(t, query.ModeWeekly, q.got[0].Mode)
	require.Len(t, api.edits, 1)
	assert.Equal(t, int64(55), api.edits[0].messageID)
	assert.Contains(t, api.edits[0].text, "Ranking Semanal")
	assert.Equal(t, []string{""}, api.answers)
	assert.Empty(t, api.sent)
}

func TestBot_PanicIsRecovered(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api, &fakeQuery{panic: true}, nil)

	require.NoError(t, bot.HandleUpdate(context.Background(), commandMessage(1, "/ranking", 8)))

	texts := api.sentTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Algo salió mal")
	assert.Equal(t, int64(1), bot.Metrics().TotalErrors)
}

func TestBot_RateLimit(t *testing.T) {
	api := &fakeAPI{}
	q := &fakeQuery{}
	bot := newTestBot(t, api, q, nil)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, bot.HandleUpdate(ctx, commandMessage(1, "/ranking", 8)))
	}
	assert.Len(t, q.got, 3)

	texts := api.sentTexts()
	require.Len(t, texts, 4, "three boards and one warning")
	assert.Contains(t, texts[3], "Demasiadas solicitudes")

	// admins are never throttled
	for range 5 {
		require.NoError(t, bot.HandleUpdate(ctx, commandMessage(7, "/ranking", 8)))
	}
	assert.Len(t, q.got, 8)
}

func TestBot_PublishRequiresAdmin(t *testing.T) {
	api := &fakeAPI{}
	cycle := &fakeCycle{}
	bot := newTestBot(t, api, &fakeQuery{}, cycle)
	ctx := context.Background()

	require.NoError(t, bot.HandleUpdate(ctx, commandMessage(1, "/publish", 8)))
	assert.Zero(t, cycle.calls)

	require.NoError(t, bot.HandleUpdate(ctx, commandMessage(7, "/publish", 8)))
	assert.Equal(t, 1, cycle.calls)

	texts := api.sentTexts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "solo para administradores")
	assert.Contains(t, texts[1], "Ciclo diario 2024-05-01")
}

func TestBot_StartPollsUntilCancelled(t *testing.T) {
	api := &fakeAPI{
		updates:  []telegram.Update{*commandMessage(1, "/help", 5)},
		pollDone: make(chan struct{}),
	}
	bot := newTestBot(t, api, &fakeQuery{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- bot.Start(ctx) }()

	<-api.pollDone
	assert.Eventually(t, func() bool { return len(api.sentTexts()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, bot.IsRunning())

	cancel()
	require.NoError(t, <-errCh)
	assert.False(t, bot.IsRunning())
	assert.Contains(t, api.sentTexts()[0], "Comandos")
}

func TestRouter_LongestCallbackPrefix(t *testing.T) {
	r := NewRouter(nil)
	var hit string
	r.RegisterCallbackPrefix("rank:", func(context.Context, handler.CallbackRequest) (*handler.Response, error) {
		hit = "short"
		return nil, nil
	})
	r.RegisterCallbackPrefix("rank:daily:", func(context.Context, handler.CallbackRequest) (*handler.Response, error) {
		hit = "long"
		return nil, nil
	})

	_, err := r.HandleCallback(context.Background(), handler.CallbackRequest{Data: "rank:daily:pvp"})
	require.NoError(t, err)
	assert.Equal(t, "long", hit)

	resp, err := r.HandleCallback(context.Background(), handler.CallbackRequest{Data: "other"})
	require.NoError(t, err)
	assert.Nil(t, resp)

	cmd, args, ok := r.ResolveAlias("!ranking")
	assert.False(t, ok)
	assert.Empty(t, cmd)
	assert.Empty(t, args)
}
