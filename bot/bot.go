package bot

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sort"
	"time"

	"discord-harvester/models"
	"discord-harvester/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// pageSize is the largest page Discord serves for channel history.
const pageSize = 100

const readPermissions = discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory

// Bot encapsulates the bot's Discord session and implements Gateway.
type Bot struct {
	Session *discordgo.Session

	readyTimeout time.Duration
	limiter      *rate.Limiter
	log          zerolog.Logger
}

// New creates a Bot from configuration. The session is not opened yet.
func New(cfg models.BotConfig) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	dg.StateEnabled = true

	limit := rate.Inf
	if cfg.PagesPerSecond > 0 {
		limit = rate.Limit(cfg.PagesPerSecond)
	}

	return &Bot{
		Session:      dg,
		readyTimeout: cfg.ReadyTimeout,
		limiter:      rate.NewLimiter(limit, 1),
		log:          log.With().Str("component", "gateway").Logger(),
	}, nil
}

// NewOpener returns an Opener building a new Bot per call, for ad-hoc sessions.
func NewOpener(cfg models.BotConfig) Opener {
	return func(context.Context) (Gateway, error) {
		return New(cfg)
	}
}

// Connect opens the websocket and waits until the guilds announced in READY
// have been delivered, or until the ready timeout elapses.
func (b *Bot) Connect(ctx context.Context) error {
	if err := b.Session.Open(); err != nil {
		return &models.GatewayError{Op: "connect", Err: err}
	}
	b.log.Info().Str("user", b.Session.State.User.Username).Msg("connected to Discord")

	timeout := b.readyTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for b.pendingGuilds() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			b.log.Warn().Int("pending", b.pendingGuilds()).Msg("guilds still unavailable after ready timeout")
			return nil
		case <-tick.C:
		}
	}
	return nil
}

func (b *Bot) pendingGuilds() int {
	b.Session.State.RLock()
	defer b.Session.State.RUnlock()
	n := 0
	for _, g := range b.Session.State.Guilds {
		if g.Unavailable {
			n++
		}
	}
	return n
}

// Close gracefully closes the session.
func (b *Bot) Close() error {
	if b.Session == nil {
		return nil
	}
	if err := b.Session.Close(); err != nil {
		return &models.GatewayError{Op: "close", Err: err}
	}
	return nil
}

// ListGuilds returns every available guild the bot is a member of.
func (b *Bot) ListGuilds(ctx context.Context) ([]Guild, error) {
	b.Session.State.RLock()
	defer b.Session.State.RUnlock()

	guilds := make([]Guild, 0, len(b.Session.State.Guilds))
	for _, g := range b.Session.State.Guilds {
		if g.Unavailable {
			continue
		}
		id, err := utils.ParseSnowflake("guild", g.ID)
		if err != nil {
			return nil, &models.GatewayError{Op: "list guilds", Err: err}
		}
		guilds = append(guilds, Guild{ID: id, Name: g.Name})
	}
	return guilds, nil
}

// ListChannels returns the text channels of a guild the bot can view.
func (b *Bot) ListChannels(ctx context.Context, guildID int64) ([]GuildChannel, error) {
	guild, err := b.Session.State.Guild(utils.FormatSnowflake(guildID))
	if err != nil {
		if errors.Is(err, discordgo.ErrStateNotFound) {
			return nil, &models.TargetNotFoundError{Kind: "guild", ID: utils.FormatSnowflake(guildID)}
		}
		return nil, &models.GatewayError{Op: "list channels", Err: err}
	}

	var channels []GuildChannel
	for _, ch := range guild.Channels {
		if !isTextChannel(ch) {
			continue
		}
		perms, err := b.permissions(ctx, ch.ID)
		if err != nil {
			b.log.Debug().Err(err).Str("channel_id", ch.ID).Msg("skipping channel, permissions unavailable")
			continue
		}
		if perms&discordgo.PermissionViewChannel == 0 {
			continue
		}
		id, err := utils.ParseSnowflake("channel", ch.ID)
		if err != nil {
			return nil, &models.GatewayError{Op: "list channels", Err: err}
		}
		channels = append(channels, GuildChannel{ID: id, Name: ch.Name})
	}
	return channels, nil
}

// FetchHistory pages through a channel oldest first, pageSize messages per request.
func (b *Bot) FetchHistory(ctx context.Context, guildID, channelID int64, after *int64) iter.Seq2[RawMessage, error] {
	return func(yield func(RawMessage, error) bool) {
		chID := utils.FormatSnowflake(channelID)
		if err := b.checkReadable(ctx, guildID, channelID); err != nil {
			yield(RawMessage{}, err)
			return
		}

		cursor := "0"
		if after != nil {
			cursor = utils.FormatSnowflake(*after)
		}

		for {
			if err := b.limiter.Wait(ctx); err != nil {
				yield(RawMessage{}, err)
				return
			}
			page, err := b.Session.ChannelMessages(chID, pageSize, "", cursor, "", discordgo.WithContext(ctx))
			if err != nil {
				yield(RawMessage{}, classifyError("fetch history", channelID, err))
				return
			}
			if len(page) == 0 {
				return
			}

			raws := make([]RawMessage, 0, len(page))
			for _, m := range page {
				raw, err := toRawMessage(m)
				if err != nil {
					yield(RawMessage{}, &models.GatewayError{Op: "fetch history", Err: err})
					return
				}
				raws = append(raws, raw)
			}
			sort.Slice(raws, func(i, j int) bool { return raws[i].ID < raws[j].ID })

			for _, raw := range raws {
				if !yield(raw, nil) {
					return
				}
			}
			cursor = utils.FormatSnowflake(raws[len(raws)-1].ID)
			if len(page) < pageSize {
				return
			}
		}
	}
}

func (b *Bot) checkReadable(ctx context.Context, guildID, channelID int64) error {
	chID := utils.FormatSnowflake(channelID)
	ch, err := b.Session.State.Channel(chID)
	if err != nil || ch.GuildID != utils.FormatSnowflake(guildID) {
		return &models.TargetNotFoundError{Kind: "channel", ID: chID}
	}
	if !isTextChannel(ch) {
		return &models.TargetNotFoundError{Kind: "channel", ID: chID}
	}
	perms, err := b.permissions(ctx, chID)
	if err != nil {
		return classifyError("check permissions", channelID, err)
	}
	if perms&readPermissions != readPermissions {
		return &models.PermissionError{ChannelID: channelID, Err: errors.New("read messages and read message history are required")}
	}
	return nil
}

// permissions resolves the bot's permissions from state, falling back to REST
// when the member is not cached.
func (b *Bot) permissions(ctx context.Context, channelID string) (int64, error) {
	userID := b.Session.State.User.ID
	perms, err := b.Session.State.UserChannelPermissions(userID, channelID)
	if err == nil {
		return perms, nil
	}
	return b.Session.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
}

func isTextChannel(ch *discordgo.Channel) bool {
	return ch.Type == discordgo.ChannelTypeGuildText || ch.Type == discordgo.ChannelTypeGuildNews
}

func toRawMessage(m *discordgo.Message) (RawMessage, error) {
	id, err := utils.ParseSnowflake("message", m.ID)
	if err != nil {
		return RawMessage{}, err
	}
	chID, err := utils.ParseSnowflake("channel", m.ChannelID)
	if err != nil {
		return RawMessage{}, err
	}

	raw := RawMessage{
		ID:         id,
		ChannelID:  chID,
		Content:    m.Content,
		EmbedCount: len(m.Embeds),
		CreatedAt:  m.Timestamp.UTC(),
	}
	if m.Author != nil {
		if raw.AuthorID, err = utils.ParseSnowflake("user", m.Author.ID); err != nil {
			return RawMessage{}, err
		}
		raw.AuthorName = m.Author.GlobalName
		if raw.AuthorName == "" {
			raw.AuthorName = m.Author.Username
		}
	}
	if m.Member != nil && m.Member.Nick != "" {
		raw.AuthorName = m.Member.Nick
	}
	if m.MessageReference != nil && m.MessageReference.MessageID != "" {
		parent, err := utils.ParseSnowflake("message", m.MessageReference.MessageID)
		if err != nil {
			return RawMessage{}, err
		}
		raw.ParentMessageID = &parent
	}
	for _, a := range m.Attachments {
		raw.AttachmentURLs = append(raw.AttachmentURLs, a.URL)
	}
	return raw, nil
}

// classifyError maps REST failures onto the harvesting error taxonomy.
func classifyError(op string, channelID int64, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return &models.PermissionError{ChannelID: channelID, Err: err}
		case http.StatusNotFound:
			return &models.TargetNotFoundError{Kind: "channel", ID: utils.FormatSnowflake(channelID)}
		}
	}
	return &models.GatewayError{Op: op, Err: err}
}
