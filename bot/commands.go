package bot

import (
	"context"
	"fmt"

	"discord-harvester/database"
	"discord-harvester/models"
	"discord-harvester/utils"

	"github.com/bwmarrin/discordgo"
)

// Definitions returns the slash commands the daemon registers.
func Definitions() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageGuild)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "harvest",
			Description:              "Queue a history harvest of a channel",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:         "channel",
					Description:  "The text channel to harvest",
					Type:         discordgo.ApplicationCommandOptionChannel,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
					Required:     true,
				},
				{
					Name:        "after",
					Description: "Message id or ISO-8601 timestamp to start after",
					Type:        discordgo.ApplicationCommandOptionString,
				},
				{
					Name:        "before",
					Description: "ISO-8601 timestamp to stop at",
					Type:        discordgo.ApplicationCommandOptionString,
				},
			},
		},
		{
			Name:        "harvest_status",
			Description: "Show the state of a harvest job",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "job_id",
					Description: "The id returned by /harvest",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
				},
			},
		},
	}
}

// CommandHandler answers the slash commands by talking to the job queue.
type CommandHandler struct {
	jobs database.JobQueue
}

// NewCommandHandler binds the commands to a job queue.
func NewCommandHandler(jobs database.JobQueue) *CommandHandler {
	return &CommandHandler{jobs: jobs}
}

// RegisterCommands installs the slash commands and their interaction handler
// on the connected session.
func (b *Bot) RegisterCommands(h *CommandHandler) error {
	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		content := h.Respond(context.Background(), i)
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}); err != nil {
			b.log.Error().Err(err).Msg("failed to respond to interaction")
		}
	})

	if _, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, "", Definitions()); err != nil {
		return fmt.Errorf("could not register commands: %w", err)
	}
	b.log.Info().Int("commands", len(Definitions())).Msg("slash commands registered")
	return nil
}

// Respond runs one application command and returns the reply text.
func (h *CommandHandler) Respond(ctx context.Context, i *discordgo.InteractionCreate) string {
	data := i.ApplicationCommandData()
	options := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		options[opt.Name] = opt
	}

	switch data.Name {
	case "harvest":
		return h.harvest(ctx, i, options)
	case "harvest_status":
		return h.status(ctx, options)
	default:
		return "Unknown command."
	}
}

func (h *CommandHandler) harvest(ctx context.Context, i *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) string {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return "This command can only be used inside a server."
	}
	if i.Member.Permissions&discordgo.PermissionManageGuild == 0 {
		return "You need the Manage Server permission to queue a harvest."
	}

	guildID, err := utils.ParseSnowflake("guild", i.GuildID)
	if err != nil {
		return "Error: " + err.Error()
	}
	opt, ok := options["channel"]
	if !ok {
		return "Error: a channel is required."
	}
	channelID, err := utils.ParseSnowflake("channel", fmt.Sprint(opt.Value))
	if err != nil {
		return "Error: " + err.Error()
	}

	job := models.HarvestJob{
		RequesterID: i.Member.User.ID,
		ServerID:    guildID,
		ChannelIDs:  []int64{channelID},
	}
	if opt, ok := options["after"]; ok {
		job.After = opt.StringValue()
	}
	if opt, ok := options["before"]; ok {
		job.Before = opt.StringValue()
	}

	id, err := h.jobs.Submit(ctx, job)
	if err != nil {
		utils.Error("Commands", "Harvest", fmt.Sprintf("failed to queue job: %v", err))
		return "Error: could not queue the harvest job."
	}
	return fmt.Sprintf("Harvest of <#%d> queued as job `%s`.", channelID, id)
}

func (h *CommandHandler) status(ctx context.Context, options map[string]*discordgo.ApplicationCommandInteractionDataOption) string {
	opt, ok := options["job_id"]
	if !ok {
		return "Error: a job id is required."
	}
	job, err := h.jobs.Get(ctx, opt.StringValue())
	if err != nil {
		return "Error: " + err.Error()
	}

	text := fmt.Sprintf("Job `%s`: **%s**", job.ID, job.Status)
	if job.InsertedCount != nil {
		text += fmt.Sprintf(", %d new messages", *job.InsertedCount)
	}
	if job.ErrorMessage != "" {
		text += "\n" + utils.Truncate(job.ErrorMessage, 1500)
	}
	return text
}
