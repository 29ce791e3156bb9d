package command

import (
	"fmt"
	"time"

	harvestgrpc "discord-harvester/grpc"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running daemon's gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.GRPC.HealthAddr
			}
			if addr == "" {
				return writeCommandError(cmd, fmt.Errorf("no address: set grpc.health_addr or pass --addr"))
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			client, err := harvestgrpc.NewClient(addr, timeout)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer client.Close()

			status, err := client.Check(cmd.Context(), harvestgrpc.ServiceName)
			if err != nil {
				return writeCommandError(cmd, fmt.Errorf("health check against %s failed: %w", addr, err))
			}
			if jsonMode(cmd) {
				if err := writeJSON(cmd, map[string]string{"addr": addr, "status": status.String()}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", addr, status)
			}
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("daemon is %s", status)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "daemon health address, defaults to grpc.health_addr")
	cmd.Flags().Duration("timeout", 5*time.Second, "probe timeout")
	return cmd
}
