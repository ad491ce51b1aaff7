package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"mathbattle/internal/config"
	"mathbattle/internal/game"
	"mathbattle/internal/transport"
	"mathbattle/internal/transport/ws"
)

// NewHostCmd watches a room as the host/TV display: anonymous device
// identity, no roster slot, scoreboard plus the shared question.
func NewHostCmd(configPath *string) *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Display a room as the host screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			if room == "" {
				return fmt.Errorf("--room is required")
			}
			return runHost(cmd.Context(), *configPath, room)
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room code to display")
	return cmd
}

func runHost(ctx context.Context, configPath, room string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	endpoint := cfg.ResolveEndpoint()

	conn, err := ws.NewSession(endpoint.WS, room, transport.DeviceIdentity(uuid.NewString()))
	if err != nil {
		return err
	}
	client := game.NewClient(conn, "", reconnectPolicy(cfg), game.Callbacks{
		OnDisconnect: func() { fmt.Println("connection lost, reconnecting...") },
	})
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	updates, cancel := client.Subscribe()
	defer cancel()
	go hostRenderLoop(updates)

	fmt.Printf("hosting room %s; type reset to start a new round, quit to exit\n", room)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "reset":
			client.ResetGame()
		case "quit":
			return nil
		}
	}
	return scanner.Err()
}

func hostRenderLoop(updates <-chan game.Snapshot) {
	var lastPrinted string
	for snap := range updates {
		line := fmt.Sprintf("[%s] %s", snap.State, scoreboard(snap.Players))
		if snap.ActiveBattle != nil {
			for _, q := range snap.ActiveBattle.Questions {
				// Shared mode: every entry is the same question.
				line += fmt.Sprintf("   %d x %d   %ds left", q.LHS, q.RHS, snap.RemainingTime)
				break
			}
		}
		if line != lastPrinted {
			lastPrinted = line
			fmt.Println(line)
		}
	}
}
