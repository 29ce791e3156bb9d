package scanner

import (
	"strings"
	"time"

	"discord-harvester/bot"
	"discord-harvester/models"
)

// enrichContent appends attachment URLs and an embed marker to the text of a
// message. The result is empty when the message carries nothing readable.
func enrichContent(raw bot.RawMessage) string {
	text := raw.Content
	if len(raw.AttachmentURLs) > 0 {
		text += " [Attachments: " + strings.Join(raw.AttachmentURLs, ", ") + "]"
	}
	if raw.EmbedCount > 0 {
		text += " [Embeds present]"
	}
	return strings.TrimSpace(text)
}

// toMessage converts a gateway record. ok is false for blank messages.
func toMessage(raw bot.RawMessage, fetchedAt time.Time) (models.Message, bool) {
	content := enrichContent(raw)
	if content == "" {
		return models.Message{}, false
	}
	return models.Message{
		ID:              raw.ID,
		ChannelID:       raw.ChannelID,
		ParentMessageID: raw.ParentMessageID,
		AuthorUserID:    raw.AuthorID,
		AuthorName:      raw.AuthorName,
		Content:         content,
		CreatedAt:       raw.CreatedAt,
		FetchedAt:       fetchedAt,
	}, true
}
