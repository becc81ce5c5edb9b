package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"assetguard/internal/app"
	"assetguard/internal/extract"
	"assetguard/internal/fault"
)

type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func usageError(format string, args ...any) error {
	return &exitError{code: 2, msg: fmt.Sprintf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ex ExitCoder
	if errors.As(err, &ex) {
		return ex.ExitCode()
	}
	return fault.ExitCode(err)
}

// usageArgs turns cobra's argument validation failures into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError("%s", err.Error())
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool
	var principal string

	newSvc := func() (*app.Service, error) {
		return app.New(app.Options{ConfigPath: configPath, Principal: principal})
	}

	cmd := &cobra.Command{
		Use:           "assetguard",
		Short:         "Find duplicate plugin assets and control which ones reach the page",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&principal, "as", "", "principal to act as for state-changing commands")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%s", err.Error())
	})

	cmd.AddCommand(newAnalyzeCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newCacheCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newOptCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newSettingsCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newRenderCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newDoctorCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newAuditCmd(newSvc, &jsonOutput))
	cmd.AddCommand(newVersionCmd(newSvc, &jsonOutput))

	return cmd
}

func newAnalyzeCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var refresh bool
	var showDiff bool
	cmd := &cobra.Command{
		Use:     "analyze",
		Aliases: []string{"scan"},
		Short:   "Analyze active plugins for duplicate resources",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			res, err := svc.RunAnalysis(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			if *jsonOutput {
				if !showDiff {
					res.Diff = ""
				}
				return print(true, res, "")
			}
			fmt.Print(renderReport(res))
			if showDiff {
				switch {
				case res.Cached:
					fmt.Println("served from cache; use --refresh to compare with a fresh pass")
				case res.Diff == "":
					fmt.Println("no changes since the previous analysis")
				default:
					fmt.Print(res.Diff)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached report and analyze again")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "show what changed against the previous report")
	return cmd
}

func newCacheCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	cacheCmd := &cobra.Command{Use: "cache", Short: "Manage the analysis cache"}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Invalidate the cached analysis report",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			if err := svc.ClearCache(); err != nil {
				return err
			}
			return print(*jsonOutput, map[string]bool{"cleared": true}, "analysis cache cleared")
		},
	})
	return cacheCmd
}

func newOptCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	optCmd := &cobra.Command{Use: "opt", Aliases: []string{"optimizations"}, Short: "Manage optimization records"}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List optimization records, newest first",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			recs := svc.ListOptimizations()
			if *jsonOutput {
				return print(true, recs, "")
			}
			if len(recs) == 0 {
				fmt.Println("no optimization records; run analyze first")
				return nil
			}
			fmt.Print(renderRecords(recs))
			return nil
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a record between active and suppressed",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			rec, err := svc.ToggleOptimization(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "suppressed"
			if rec.IsActive {
				state = "active"
			}
			return print(*jsonOutput, map[string]any{"id": rec.ID, "isActive": rec.IsActive},
				fmt.Sprintf("%s %s:%s is now %s", rec.ID, rec.Kind, rec.Handle, state))
		},
	}

	var ids []string
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Suppress the given records",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			res, err := svc.ApplyOptimizations(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			return print(*jsonOutput, res, fmt.Sprintf("applied %d optimization(s)", res.AppliedCount))
		},
	}
	applyCmd.Flags().StringSliceVar(&ids, "id", nil, "record id to suppress (repeatable)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every optimization record",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			n, err := svc.ClearOptimizations(cmd.Context())
			if err != nil {
				return err
			}
			return print(*jsonOutput, map[string]int{"removed": n}, fmt.Sprintf("removed %d record(s)", n))
		},
	}

	optCmd.AddCommand(listCmd, toggleCmd, applyCmd, clearCmd)
	return optCmd
}

func newSettingsCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	settingsCmd := &cobra.Command{Use: "settings", Short: "Show or change optimization settings"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			st, err := svc.Settings()
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, st, "")
			}
			fmt.Printf("auto_optimize = %t\nmonitoring_enabled = %t\nresource_limit = %d\nperformance_mode = %s\n",
				st.AutoOptimize, st.MonitoringEnabled, st.ResourceLimit, st.PerformanceMode)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Change one or more settings",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseAssignments(args)
			if err != nil {
				return err
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			st, err := svc.UpdateSettings(cmd.Context(), changes)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(changes))
			for k := range changes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return print(*jsonOutput, st, "updated "+strings.Join(keys, ", "))
		},
	}

	settingsCmd.AddCommand(showCmd, setCmd)
	return settingsCmd
}

func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageError("expected key=value, got %q", arg)
		}
		out[key] = value
	}
	return out, nil
}

func newRenderCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "render <type:handle>...",
		Short: "Show which queued resources the gate would emit",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := parseQueue(args)
			if err != nil {
				return err
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			d := svc.Render(queue)
			if *jsonOutput {
				return print(true, d, "")
			}
			fmt.Print(renderDecision(d))
			return nil
		},
	}
}

func parseQueue(args []string) ([]extract.Descriptor, error) {
	queue := make([]extract.Descriptor, 0, len(args))
	for _, arg := range args {
		kindStr, handle, ok := strings.Cut(arg, ":")
		if !ok || handle == "" {
			return nil, usageError("expected type:handle, got %q", arg)
		}
		kind, err := extract.ParseKind(kindStr)
		if err != nil {
			return nil, usageError("%s", err.Error())
		}
		queue = append(queue, extract.Descriptor{Handle: handle, Kind: kind})
	}
	return queue, nil
}

func newDoctorCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag", "checkup"},
		Short:   "Run diagnostics",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newSvc()
			if err != nil {
				return err
			}
			report := svc.DoctorRun()
			if *jsonOutput {
				return print(true, report, "")
			}
			if len(report.Findings) == 0 {
				fmt.Println("healthy")
				return nil
			}
			if report.Healthy {
				fmt.Println("healthy with warnings:")
			} else {
				fmt.Println("issues found:")
			}
			for _, f := range report.Findings {
				fmt.Printf("- [%s] %s\n", f.Code, f.Message)
			}
			return nil
		},
	}
}

func newAuditCmd(newSvc func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "audit",
		Aliases: []string{"history"},
		Short:   "Show recent state-changing operations",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return usageError("--limit must be positive")
			}
			svc, err := newSvc()
			if err != nil {
				return err
			}
			events, err := svc.History(limit)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return print(true, events, "")
			}
			if len(events) == 0 {
				fmt.Println("no audit events")
				return nil
			}
			for _, ev := range events {
				who := ev.Principal
				if who == "" {
					who = "-"
				}
				line := fmt.Sprintf("%s %s %s %s", ev.Timestamp, who, ev.Operation, ev.Status)
				if ev.Code != "" {
					line += " " + ev.Code
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	return cmd
}

func print(jsonOutput bool, payload any, message string) error {
	if jsonOutput {
		blob, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}
	if message != "" {
		fmt.Println(message)
	}
	return nil
}
