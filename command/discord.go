package command

import (
	"fmt"

	"discord-harvester/bot"
	"discord-harvester/config"
	"discord-harvester/utils"

	"github.com/spf13/cobra"
)

func newServersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List the servers the bot is a member of",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RequireToken(a.cfg); err != nil {
				return writeCommandError(cmd, err)
			}
			var guilds []bot.Guild
			err := bot.WithSession(cmd.Context(), bot.NewOpener(a.cfg.Bot), func(g bot.Gateway) error {
				var err error
				guilds, err = g.ListGuilds(cmd.Context())
				return err
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if jsonMode(cmd) {
				if guilds == nil {
					guilds = []bot.Guild{}
				}
				return writeJSON(cmd, map[string]any{"servers": guilds})
			}
			if len(guilds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "The bot is not a member of any server.")
				return nil
			}
			for _, g := range guilds {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", utils.FormatSnowflake(g.ID), g.Name)
			}
			return nil
		},
	}
}

func newChannelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "channels <server-id>",
		Short: "List the readable text channels of a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RequireToken(a.cfg); err != nil {
				return writeCommandError(cmd, err)
			}
			serverID, err := utils.ParseSnowflake("server", args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}

			var channels []bot.GuildChannel
			err = bot.WithSession(cmd.Context(), bot.NewOpener(a.cfg.Bot), func(g bot.Gateway) error {
				var err error
				channels, err = g.ListChannels(cmd.Context(), serverID)
				return err
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if jsonMode(cmd) {
				if channels == nil {
					channels = []bot.GuildChannel{}
				}
				return writeJSON(cmd, map[string]any{"server_id": args[0], "channels": channels})
			}
			for _, ch := range channels {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s #%s\n", utils.FormatSnowflake(ch.ID), ch.Name)
			}
			return nil
		},
	}
}
