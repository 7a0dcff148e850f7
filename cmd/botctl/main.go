// botctl drives bots from a terminal through the same orchestration the dashboard uses
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"botdeck/backend/internal/config"
	"botdeck/backend/internal/lifecycle"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/service"
	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	apiURL   string
	timeout  time.Duration
	logLevel string
)

// app is what every command needs once flags are parsed
type app struct {
	client   *botapi.Client
	bus      *notification.Bus
	store    *tokenStore
	sessions *cliSessions
}

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "botctl",
		Short:         "Manage trading bots from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", os.Getenv("UPSTREAM_API_URL"), "Trading service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for each trading service call")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(dashboardCmd())
	for _, a := range []lifecycle.Action{lifecycle.ActionStart, lifecycle.ActionStop, lifecycle.ActionPause, lifecycle.ActionResume} {
		rootCmd.AddCommand(actionCmd(a))
	}
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() (*app, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("trading service URL is required (--api-url or UPSTREAM_API_URL)")
	}
	// stdout is for command output
	logger.Set(logger.NewWithWriter(os.Stderr, logLevel, "pretty"))

	store, err := defaultTokenStore()
	if err != nil {
		return nil, err
	}

	bus := notification.NewBus(
		notification.WithLogger(logger.GetLogger().Component("notification_bus")),
		notification.WithSink(&consoleSink{out: os.Stdout}),
	)

	return &app{
		client:   botapi.NewClient(apiURL, timeout),
		bus:      bus,
		store:    store,
		sessions: &cliSessions{store: store, out: os.Stderr},
	}, nil
}

func (a *app) close() {
	a.bus.Close()
}

func (a *app) principal() (model.Principal, error) {
	token, err := a.store.Load()
	if err != nil {
		return model.Principal{}, err
	}
	return model.Principal{UserID: "cli", Username: "cli", Token: token}, nil
}

func (a *app) actions() *service.BotActionService {
	return service.NewBotActionService(service.BotActionConfig{
		Client:        a.client,
		Bus:           a.bus,
		Sessions:      a.sessions,
		ActionTimeout: timeout,
	})
}

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the trading service and remember the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if email == "" {
				email = prompt("Email: ")
			}
			if password == "" {
				password = prompt("Password: ")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := a.client.Login(ctx, &botapi.LoginRequest{Email: strings.TrimSpace(email), Password: password})
			if err != nil {
				if msg := botapi.MessageOf(err); msg != "" {
					return fmt.Errorf("login failed: %s", msg)
				}
				return fmt.Errorf("login failed: %w", err)
			}
			if err := a.store.Save(resp.Token); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", resp.User.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := defaultTokenStore()
			if err != nil {
				return err
			}
			return store.Clear()
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"bots", "ls"},
		Short:   "List bots with the actions each one accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.principal()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			bots, err := a.client.ListBots(ctx, p.Token)
			if err != nil {
				if botapi.IsUnauthorized(err) {
					a.sessions.Expire(ctx, p)
				}
				return fmt.Errorf("failed to load bots: %w", err)
			}

			actions := a.actions()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSYMBOL\tSTATUS\tP&L\tWIN RATE\tACTIONS")
			for _, b := range bots {
				var labels []string
				for _, c := range actions.Controls(b).Actions {
					labels = append(labels, c.Label)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f%%\t%s\n",
					b.ID, b.Name, b.Symbol, b.Status,
					service.FormatPnL(b.Performance.TotalPnl),
					service.WinRate(b.Performance),
					strings.Join(labels, ", "))
			}
			return w.Flush()
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the account summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.principal()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			view, err := service.NewDashboardService(a.client, a.bus, a.sessions, nil).Load(ctx, p)
			if err != nil {
				return err
			}

			fmt.Printf("Bots:      %d total, %d running, %d paused, %d stopped\n",
				view.Bots.Total, view.Bots.Running, view.Bots.Paused, view.Bots.Stopped)
			fmt.Printf("Trades:    %d total, %d today\n", view.Trades.Total, view.Trades.Today)
			fmt.Printf("P&L:       %s (%s)\n", view.PnLDisplay, view.PnLTrend)
			fmt.Printf("Exchanges: %d\n", view.ExchangeAccounts)
			if len(view.RecentBots) > 0 {
				fmt.Println("\nRecent bots:")
				for _, b := range view.RecentBots {
					fmt.Printf("  %-24s %-10s %-8s %s\n", b.Name, b.Symbol, b.Status, b.PnLDisplay)
				}
			}
			return nil
		},
	}
}

func actionCmd(action lifecycle.Action) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   string(action) + " <bot-id>",
		Short: fmt.Sprintf("%s a bot", lifecycle.ActionLabel(lifecycle.StatusStopped, action)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.principal()
			if err != nil {
				return err
			}

			result, err := a.actions().PerformByID(cmd.Context(), p, service.ActionRequest{
				BotID:       args[0],
				Action:      action,
				KnownStatus: status,
				Scope:       model.ScopeDetail,
			})
			if err != nil {
				return err
			}
			if result.Bot != nil {
				fmt.Printf("%s is now %s\n", result.Bot.Name, result.Bot.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Status you expect the bot to be in (skips the lookup)")
	return cmd
}

func deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <bot-id>",
		Short: "Delete a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				answer := prompt(fmt.Sprintf("Delete bot %s? This cannot be undone. [y/N] ", args[0]))
				yes = strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.principal()
			if err != nil {
				return err
			}

			_, err = a.actions().Delete(cmd.Context(), p, args[0], service.DeleteOptions{Confirmed: yes})
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// doctorCmd checks the server-side dependencies using the API server's configuration
func doctorCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check Redis and the cached state the API server keeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			redisClient, err := redis.New(redis.Config{
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			defer redisClient.Close()
			fmt.Printf("Redis %s: ok\n", cfg.Redis.Address())

			if userID == "" {
				return nil
			}

			ctx := cmd.Context()
			sessions, err := redisClient.SMembers(ctx, redis.UserSessionsKey(userID))
			if err != nil {
				return err
			}
			fmt.Printf("Sessions for %s: %d\n", userID, len(sessions))

			bots, ok, err := repository.NewBotListRepository(redisClient, cfg.Bots.ListCacheTTL).Get(ctx, userID)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Bot list cache: empty")
				return nil
			}
			fmt.Printf("Bot list cache: %d bots\n", len(bots))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Also inspect sessions and cached bots for this user id")
	return cmd
}

func prompt(label string) string {
	fmt.Print(label)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
