package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"mathbattle/internal/config"
	"mathbattle/internal/rooms"
)

// NewRoomCmd mints a fresh room code.
func NewRoomCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "new-room",
		Short: "Request a new room code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNewRoom(cmd.Context(), *configPath)
		},
	}
}

func runNewRoom(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	code, err := rooms.NewClient(cfg.ResolveEndpoint().HTTP).NewRoomCode(ctx)
	if err != nil {
		return err
	}
	fmt.Println(code)
	return nil
}
