package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"mathbattle/internal/config"
	"mathbattle/internal/domain"
	"mathbattle/internal/game"
	"mathbattle/internal/transport"
	"mathbattle/internal/transport/scripted"
	"mathbattle/internal/transport/ws"
)

// NewPlayCmd joins a room as a named player and answers from stdin.
func NewPlayCmd(configPath *string) *cobra.Command {
	var room, name string
	var offline bool

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a room and play",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if room == "" && !offline {
				return fmt.Errorf("--room is required unless --offline")
			}
			return runPlay(cmd.Context(), *configPath, room, name, offline)
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room code to join")
	cmd.Flags().StringVar(&name, "name", "", "player name")
	cmd.Flags().BoolVar(&offline, "offline", false, "play against a simulated room, no server")
	return cmd
}

func runPlay(ctx context.Context, configPath, room, name string, offline bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var conn transport.Conn
	if offline {
		conn = scripted.NewPractice(name, battleMode(cfg), cfg.Battle.MaxTime)
	} else {
		endpoint := cfg.ResolveEndpoint()
		conn, err = ws.NewSession(endpoint.WS, room, transport.PlayerIdentity(name))
		if err != nil {
			return err
		}
	}

	client := game.NewClient(conn, name, reconnectPolicy(cfg), game.Callbacks{
		OnIncorrect:  func() { fmt.Println("wrong, try again") },
		OnDisconnect: func() { fmt.Println("connection lost, reconnecting...") },
	})
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	updates, cancel := client.Subscribe()
	defer cancel()
	go renderLoop(updates, name)

	fmt.Println("type an answer and press enter; /reset starts a new round, /quit leaves")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/reset":
			client.ResetGame()
		default:
			client.SubmitAnswer(line)
		}
	}
	return scanner.Err()
}

// renderLoop is the whole presentation layer: it prints the player's
// question when a new round starts and the scores as they change.
func renderLoop(updates <-chan game.Snapshot, name string) {
	var lastBattle *domain.Battle
	lastState := game.StateDisconnected
	for snap := range updates {
		if snap.State != lastState {
			lastState = snap.State
			fmt.Printf("[%s]\n", snap.State)
		}
		if snap.ActiveBattle == nil || snap.ActiveBattle == lastBattle {
			continue
		}
		lastBattle = snap.ActiveBattle
		if q, ok := snap.ActiveBattle.QuestionFor(name); ok {
			fmt.Printf("%d x %d = ?   (%ds)  %s\n", q.LHS, q.RHS, snap.RemainingTime, scoreboard(snap.Players))
		}
	}
}

func scoreboard(players []domain.Player) string {
	parts := make([]string, 0, len(players))
	for _, p := range players {
		parts = append(parts, fmt.Sprintf("%s:%d", p.Name, p.Score))
	}
	return strings.Join(parts, " ")
}

func battleMode(cfg config.Config) domain.BattleMode {
	if cfg.Battle.Mode == string(domain.BattleSpeedTrial) {
		return domain.BattleSpeedTrial
	}
	return domain.BattleShared
}

func reconnectPolicy(cfg config.Config) game.ReconnectPolicy {
	policy := game.DefaultReconnectPolicy()
	policy.InitialInterval = config.Duration(cfg.Reconnect.InitialInterval, policy.InitialInterval)
	policy.MaxInterval = config.Duration(cfg.Reconnect.MaxInterval, policy.MaxInterval)
	if cfg.Reconnect.MaxRetries > 0 {
		policy.MaxRetries = cfg.Reconnect.MaxRetries
	}
	return policy
}
