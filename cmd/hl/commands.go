package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"habitline/internal/app"
	"habitline/internal/domain"
	"habitline/internal/engine"
	"habitline/internal/reminder"
	"habitline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server (and reminder jobs when enabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetString("jwt-secret") == "" {
				return fmt.Errorf("HABITLINE_JWT_SECRET is required for bearer auth; run hl config init")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
				if !cmd.Flags().Changed("addr") && ws.Config.Server.Addr != "" {
					addr = ws.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && ws.Config.Server.BasePath != "" {
					basePath = ws.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: basePath, Logger: ws.Log.Named("http")})
				if err != nil {
					return err
				}
				if ws.Config.Reminders.Enabled {
					sched, err := startReminders(ws)
					if err != nil {
						return err
					}
					defer sched.Stop()
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				ws.Log.Infof("serving Habitline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)", addr, basePath, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func startReminders(ws *app.Workspace) (*reminder.Scheduler, error) {
	svc := reminder.Service{Engine: ws.Engine, Log: ws.Log.Named("reminder")}
	if token := viper.GetString("telegram-token"); token != "" {
		n, err := reminder.NewTelegramNotifier(token)
		if err != nil {
			return nil, err
		}
		svc.Notifier = n
	} else {
		ws.Log.Warn("HABITLINE_TELEGRAM_TOKEN not set; daily digests disabled")
	}
	sched := reminder.NewScheduler(ws.Engine.Location)
	if err := svc.Register(sched, ws.Config.Reminders.DigestAt, ws.Config.Reminders.RolloverAt); err != nil {
		return nil, err
	}
	sched.Start()
	ws.Log.Infow("reminders scheduled", "digest_at", ws.Config.Reminders.DigestAt, "rollover_at", ws.Config.Reminders.RolloverAt)
	return sched, nil
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage accounts"}
	usr.AddCommand(userCreateCmd())
	return usr
}

func userCreateCmd() *cobra.Command {
	var email, password, username string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("HABITLINE_PASSWORD")
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				u, err := ws.Engine.Auth.SignUp(ctx, email, password, username)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("Created user %s (%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "password (or HABITLINE_PASSWORD)")
	cmd.Flags().StringVar(&username, "username", "", "display name (defaults to the email local part)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func onboardCmd() *cobra.Command {
	var in engine.OnboardingInput
	var saveOnly bool
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Answer the questionnaire and generate today's plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, ws *app.Workspace, u domain.User) error {
				if saveOnly {
					o, err := ws.Engine.SavePreferences(ctx, u.ID, in)
					if err != nil {
						return err
					}
					return printJSONOrTable(o)
				}
				res, err := ws.Engine.SubmitOnboarding(ctx, u.ID, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				printPlan(res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.MainProblem, "problem", "", "main problem (laziness, procrastination, discipline, focus)")
	cmd.Flags().StringVar(&in.DailyRoutine, "routine", "", "daily routine")
	cmd.Flags().StringVar(&in.AvailableTime, "time", "", "available time slot")
	cmd.Flags().StringSliceVar(&in.PersonalGoals, "goal", nil, "personal goal (repeatable: study, work, health, habits)")
	cmd.Flags().IntVar(&in.MotivationLevel, "motivation", 5, "motivation level 1-10")
	cmd.Flags().BoolVar(&saveOnly, "save-only", false, "store answers without regenerating the plan")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func planCmd() *cobra.Command {
	pl := &cobra.Command{Use: "plan", Short: "Manage the action plan"}
	pl.AddCommand(&cobra.Command{
		Use:   "regenerate",
		Short: "Rebuild today's plan from the latest answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, ws *app.Workspace, u domain.User) error {
				res, err := ws.Engine.RegeneratePlan(ctx, u.ID)
				if err != nil {
					if errors.Is(err, engine.ErrNoOnboarding) {
						return fmt.Errorf("%w; run hl onboard first", err)
					}
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				printPlan(res)
				return nil
			})
		},
	})
	return pl
}

func printPlan(res engine.PlanResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Plan for " + taskDate(res.Tasks))
	tw.AppendHeader(table.Row{"#", "Task", "Description"})
	for i, t := range res.Tasks {
		tw.AppendRow(table.Row{i + 1, t.Title, t.Description})
	}
	tw.AppendFooter(table.Row{"", "", res.Plan.MotivationalMessage})
	tw.Render()
}

func taskDate(tasks []domain.Task) string {
	if len(tasks) == 0 {
		return "today"
	}
	return tasks[0].TaskDate
}

func todayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's tasks and streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, ws *app.Workspace, u domain.User) error {
				view, err := ws.Engine.Dashboard(ctx, u.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				printDashboard(view)
				return nil
			})
		},
	}
}

func printDashboard(view engine.DashboardView) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(fmt.Sprintf("%s · %d/%d done", view.Date, view.CompletedCount, view.TotalCount))
	tw.AppendHeader(table.Row{"#", "Done", "Task", "ID"})
	for i, t := range view.Tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		tw.AppendRow(table.Row{i + 1, done, t.Title, t.ID})
	}
	streak := 0
	if view.Profile != nil {
		streak = view.Profile.CurrentStreak
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("streak %d: %s", streak, view.StreakMessage), ""})
	tw.Render()
	if len(view.Tasks) == 0 {
		fmt.Println("No tasks for today. Run hl plan regenerate.")
	}
	if view.MotivationalMessage != "" {
		fmt.Println(view.MotivationalMessage)
	}
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <task-id|#>",
		Short: "Toggle one of today's tasks by id or list position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, ws *app.Workspace, u domain.User) error {
				taskID, err := resolveTaskRef(ctx, ws.Engine, u.ID, args[0])
				if err != nil {
					return err
				}
				res, err := ws.Engine.ToggleTask(ctx, u.ID, taskID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				state := "open"
				if res.Task.Completed {
					state = "done"
				}
				fmt.Printf("%s: %s\n", res.Task.Title, state)
				if res.StreakRecorded {
					fmt.Printf("All tasks complete! %s\n", res.StreakMessage)
				}
				return nil
			})
		},
	}
}

// resolveTaskRef accepts a 1-based position in today's list or a task id.
func resolveTaskRef(ctx context.Context, e engine.Engine, userID, ref string) (string, error) {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return ref, nil
	}
	view, err := e.Dashboard(ctx, userID)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(view.Tasks) {
		return "", fmt.Errorf("no task #%d today (have %d)", n, len(view.Tasks))
	}
	return view.Tasks[n-1].ID, nil
}

func profileCmd() *cobra.Command {
	var username string
	var chatID int64
	var clearChat bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, ws *app.Workspace, u domain.User) error {
				opts := engine.ProfileUpdateOptions{ClearTelegram: clearChat}
				if cmd.Flags().Changed("username") {
					opts.Username = &username
				}
				if cmd.Flags().Changed("telegram-chat") {
					opts.TelegramChatID = &chatID
				}
				if opts.Username != nil || opts.TelegramChatID != nil || opts.ClearTelegram {
					if _, err := ws.Engine.UpdateProfile(ctx, u.ID, opts); err != nil {
						return err
					}
				}
				view, err := ws.Engine.Profile(ctx, u.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				printProfile(view)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "set display name")
	cmd.Flags().Int64Var(&chatID, "telegram-chat", 0, "link a Telegram chat id for daily digests")
	cmd.Flags().BoolVar(&clearChat, "clear-telegram", false, "unlink the Telegram chat")
	return cmd
}

func printProfile(view engine.ProfileView) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendRow(table.Row{"Email", view.User.Email})
	if p := view.Profile; p != nil {
		last := "never"
		if p.LastActiveDate != nil {
			last = *p.LastActiveDate
		}
		chat := "-"
		if p.TelegramChatID != nil {
			chat = strconv.FormatInt(*p.TelegramChatID, 10)
		}
		tw.AppendRow(table.Row{"Username", p.Username})
		tw.AppendRow(table.Row{"Current streak", p.CurrentStreak})
		tw.AppendRow(table.Row{"Days completed", p.TotalTasksCompleted})
		tw.AppendRow(table.Row{"Last active", last})
		tw.AppendRow(table.Row{"Telegram chat", chat})
	}
	tw.AppendRow(table.Row{"Plans created", view.PlansCreated})
	if o := view.Onboarding; o != nil {
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"Main problem", o.MainProblem})
		tw.AppendRow(table.Row{"Routine", o.DailyRoutine})
		tw.AppendRow(table.Row{"Available time", o.AvailableTime})
		tw.AppendRow(table.Row{"Goals", strings.Join(o.PersonalGoals, ", ")})
		tw.AppendRow(table.Row{"Motivation", fmt.Sprintf("%d/10", o.MotivationLevel)})
	}
	tw.AppendFooter(table.Row{"", view.StreakMessage})
	tw.Render()
}

func rolloverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Reset streaks that lapsed before today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				reset, err := reminder.Service{Engine: ws.Engine, Log: ws.Log}.Rollover(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"day": ws.Engine.Today(), "reset": reset})
				}
				fmt.Printf("%s: %d streak(s) reset\n", ws.Engine.Today(), reset)
				return nil
			})
		},
	}
}

func digestCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send today's digest to every linked Telegram chat now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				svc := reminder.Service{Engine: ws.Engine, Log: ws.Log}
				mem := &reminder.MemoryNotifier{}
				if dryRun {
					svc.Notifier = mem
				} else {
					token := viper.GetString("telegram-token")
					if token == "" {
						return fmt.Errorf("HABITLINE_TELEGRAM_TOKEN is required (or use --dry-run)")
					}
					n, err := reminder.NewTelegramNotifier(token)
					if err != nil {
						return err
					}
					svc.Notifier = n
				}
				report, err := svc.SendDailyDigests(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"report": report, "messages": mem.Sent()})
				}
				for _, m := range mem.Sent() {
					fmt.Printf("--- chat %d ---\n%s\n", m.ChatID, m.Text)
				}
				fmt.Printf("sent %d, failed %d\n", report.Sent, report.Failed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print messages instead of sending them")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, ws *app.Workspace, u domain.User) error {
				events, err := ws.Engine.RecentEvents(ctx, u.ID, evtType, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}
