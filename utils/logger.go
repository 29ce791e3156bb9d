package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

// EmbedSender is the part of a discordgo session used to mirror log lines.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var (
	mu        sync.RWMutex
	session   EmbedSender
	channelID string
)

// InitLogger configures the global zerolog logger.
func InitLogger(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// AttachAdminChannel mirrors Info/Warn/Error lines to a Discord channel.
// An empty channel id disables the mirror.
func AttachAdminChannel(s EmbedSender, adminChannelID string) {
	mu.Lock()
	defer mu.Unlock()
	session = s
	channelID = adminChannelID
	if channelID == "" {
		log.Warn().Msg("bot.admin_channel_id is not set, logging to channel is disabled")
	}
}

// DetachAdminChannel stops mirroring, typically right before the session closes.
func DetachAdminChannel() {
	mu.Lock()
	defer mu.Unlock()
	session = nil
	channelID = ""
}

// Log writes a structured line and mirrors it to the admin channel when one is attached.
func Log(level, module, operation, details string) {
	var ev *zerolog.Event
	var color int
	switch level {
	case "WARN":
		ev, color = log.Warn(), ColorWarn
	case "ERROR":
		ev, color = log.Error(), ColorError
	default:
		ev, color = log.Info(), ColorInfo
	}
	ev.Str("module", module).Str("operation", operation).Msg(details)

	mu.RLock()
	s, ch := session, channelID
	mu.RUnlock()
	if s == nil || ch == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", level),
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Module", Value: module, Inline: true},
			{Name: "Operation", Value: operation, Inline: true},
			{Name: "Details", Value: Truncate(details, 1024)},
		},
	}
	if _, err := s.ChannelMessageSendEmbed(ch, embed); err != nil {
		log.Error().Err(err).Msg("error sending log message to Discord")
	}
}

// Info logs an informational message.
func Info(module, operation, details string) {
	Log("INFO", module, operation, details)
}

// Warn logs a warning message.
func Warn(module, operation, details string) {
	Log("WARN", module, operation, details)
}

// Error logs an error message.
func Error(module, operation, details string) {
	Log("ERROR", module, operation, details)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
