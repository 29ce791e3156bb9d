package command

import (
	"encoding/json"
	"fmt"

	"discord-harvester/analyzer"
	"discord-harvester/database"
	"discord-harvester/llm"
	"discord-harvester/utils"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run an LLM analysis over stored messages of a channel",
		Long: `Load the stored messages of a channel for the last day, week or month,
send them through a configured prompt and store the result.

Examples:
  harvester analyze --creator 42 --server 1100 --channel 2200 --model gpt-4o-mini --prompt summary --period last_week`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creator, _ := cmd.Flags().GetString("creator")
			server, _ := cmd.Flags().GetString("server")
			channel, _ := cmd.Flags().GetString("channel")
			model, _ := cmd.Flags().GetString("model")
			prompt, _ := cmd.Flags().GetString("prompt")
			period, _ := cmd.Flags().GetString("period")

			req := analyzer.Request{ModelName: model, PromptKey: prompt, Period: period}
			var err error
			if req.CreatorID, err = utils.ParseSnowflake("creator", creator); err != nil {
				return writeCommandError(cmd, err)
			}
			if req.ServerID, err = utils.ParseSnowflake("server", server); err != nil {
				return writeCommandError(cmd, err)
			}
			if req.ChannelID, err = utils.ParseSnowflake("channel", channel); err != nil {
				return writeCommandError(cmd, err)
			}

			client, err := llm.New(a.cfg.LLM)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			var out *analyzer.Outcome
			err = a.withStore(cmd.Context(), func(s database.Store) error {
				var err error
				out, err = analyzer.NewService(s, client).Analyze(cmd.Context(), req)
				return err
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if jsonMode(cmd) {
				return writeJSON(cmd, out)
			}
			if out.Result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), out.Message)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Result %s (%d messages, model %s)\n\n", out.ResultID, out.Count, out.Result.Model)
			if out.Result.Parsed != nil {
				pretty, err := json.MarshalIndent(out.Result.Parsed, "", "  ")
				if err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
					return nil
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Result.Content)
			return nil
		},
	}
	cmd.Flags().String("creator", "", "Discord user id recorded as the creator of the result")
	cmd.Flags().String("server", "", "server id")
	cmd.Flags().String("channel", "", "channel id")
	cmd.Flags().String("model", "", "model name from llm_models.yaml")
	cmd.Flags().String("prompt", "", "prompt key from prompt_models.yaml")
	cmd.Flags().String("period", analyzer.PeriodLastDay, "last_day, last_week or last_month")
	for _, name := range []string{"creator", "server", "channel", "model", "prompt"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the configured LLM models and prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := llm.NewCatalog(a.cfg.LLM)
			if jsonMode(cmd) {
				return writeJSON(cmd, map[string]any{"models": catalog.ModelNames(), "prompts": catalog.PromptKeys()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Models:")
			for _, name := range catalog.ModelNames() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Prompts:")
			for _, key := range catalog.PromptKeys() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", key)
			}
			return nil
		},
	}
}
