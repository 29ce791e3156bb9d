package bot

import (
	"context"
	"errors"
	"iter"
	"time"
)

// Guild is a server the bot is a member of.
type Guild struct {
	ID   int64  `json:"id,string"`
	Name string `json:"name"`
}

// GuildChannel is a text channel the bot can read.
type GuildChannel struct {
	ID   int64  `json:"id,string"`
	Name string `json:"name"`
}

// RawMessage is a history record as returned by the gateway, before
// content enrichment.
type RawMessage struct {
	ID              int64
	ChannelID       int64
	ParentMessageID *int64
	AuthorID        int64
	AuthorName      string
	Content         string
	AttachmentURLs  []string
	EmbedCount      int
	CreatedAt       time.Time
}

// Gateway is the Discord capability the harvester depends on.
type Gateway interface {
	Connect(ctx context.Context) error
	Close() error
	ListGuilds(ctx context.Context) ([]Guild, error)
	// ListChannels returns the text channels of guildID the bot can view.
	ListChannels(ctx context.Context, guildID int64) ([]GuildChannel, error)
	// FetchHistory yields the messages of a channel strictly after the given
	// id, oldest first. A nil cursor walks the whole history. Iteration stops
	// at the first error, which is yielded with a zero RawMessage.
	FetchHistory(ctx context.Context, guildID, channelID int64, after *int64) iter.Seq2[RawMessage, error]
}

// Opener creates a fresh, not yet connected gateway.
type Opener func(ctx context.Context) (Gateway, error)

// Dial connects g and closes it again when Connect fails, so a session
// whose websocket opened before the ready wait was cancelled is not leaked.
func Dial(ctx context.Context, g Gateway) error {
	err := g.Connect(ctx)
	if err == nil {
		return nil
	}
	if cerr := g.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// WithSession opens a dedicated gateway session, runs fn and always closes
// the session afterwards, including when Connect or fn fail.
func WithSession(ctx context.Context, open Opener, fn func(Gateway) error) (err error) {
	g, err := open(ctx)
	if err != nil {
		return err
	}
	if err := Dial(ctx, g); err != nil {
		return err
	}
	defer func() {
		if cerr := g.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(g)
}
