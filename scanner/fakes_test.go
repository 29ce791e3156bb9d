package scanner

import (
	"context"
	"iter"
	"sort"
	"sync"

	"discord-harvester/bot"
)

// fakeGateway serves canned guilds, channels and histories.
type fakeGateway struct {
	mu       sync.Mutex
	guilds   []bot.Guild
	channels map[int64][]bot.GuildChannel
	history  map[int64][]bot.RawMessage
	failOn   map[int64]error
	panicOn  int64
	cursors  map[int64]*int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels: make(map[int64][]bot.GuildChannel),
		history:  make(map[int64][]bot.RawMessage),
		failOn:   make(map[int64]error),
		cursors:  make(map[int64]*int64),
	}
}

func (g *fakeGateway) Connect(context.Context) error { return nil }
func (g *fakeGateway) Close() error                  { return nil }

func (g *fakeGateway) ListGuilds(context.Context) ([]bot.Guild, error) {
	return g.guilds, nil
}

func (g *fakeGateway) ListChannels(_ context.Context, guildID int64) ([]bot.GuildChannel, error) {
	return g.channels[guildID], nil
}

func (g *fakeGateway) FetchHistory(_ context.Context, _, channelID int64, after *int64) iter.Seq2[bot.RawMessage, error] {
	g.mu.Lock()
	g.cursors[channelID] = after
	g.mu.Unlock()

	return func(yield func(bot.RawMessage, error) bool) {
		if channelID == g.panicOn {
			panic("gateway exploded")
		}
		msgs := append([]bot.RawMessage(nil), g.history[channelID]...)
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
		for _, m := range msgs {
			if after != nil && m.ID <= *after {
				continue
			}
			if !yield(m, nil) {
				return
			}
		}
		if err := g.failOn[channelID]; err != nil {
			yield(bot.RawMessage{}, err)
		}
	}
}

func (g *fakeGateway) cursor(channelID int64) *int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cursors[channelID]
}
