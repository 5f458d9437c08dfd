package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/3cpo-dev/swarmlaunch/internal/core"
	"github.com/3cpo-dev/swarmlaunch/internal/launch"
	"github.com/3cpo-dev/swarmlaunch/internal/remote"
	"github.com/3cpo-dev/swarmlaunch/internal/runner"
	"github.com/3cpo-dev/swarmlaunch/internal/share"
	"github.com/3cpo-dev/swarmlaunch/internal/store"
	"github.com/3cpo-dev/swarmlaunch/internal/telemetry"
	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

type app struct {
	cfg     core.Config
	metrics *telemetry.Collector
}

// Resolve config and telemetry for a command
func resolveApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := core.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, metrics: telemetry.NewCollector(cfg.Telemetry.Enabled)}, nil
}

// parseOverrides merges config launch arguments with --set k=v flags; flags win.
func parseOverrides(base map[string]string, sets []string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range base {
		out[k] = v
	}
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q: expected name=value", s)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// Compose the plan from config, share index and overrides
func (a *app) compose(cmd *cobra.Command) (*api.Plan, error) {
	sets, _ := cmd.Flags().GetStringArray("set")
	overrides, err := parseOverrides(a.cfg.Launch.Arguments, sets)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	idx := share.NewIndex(a.cfg.Share.Prefixes)
	desc, err := launch.Assemble(idx, a.cfg.Launch.NRobots)
	if err != nil {
		return nil, err
	}
	plan, err := launch.Execute(desc, overrides)
	if err != nil {
		a.metrics.Counter("swarmlaunch_compose_failures", 1, nil)
		return nil, err
	}
	robots := len(plan.Namespaces())
	a.metrics.Counter("swarmlaunch_plans_composed", 1, nil)
	a.metrics.Gauge("swarmlaunch_plan_nodes", float64(len(plan.Nodes)), map[string]string{"robots": fmt.Sprint(robots)})
	a.metrics.Timer("swarmlaunch_compose_duration", time.Since(start), nil)
	log.Debug().Str("plan", plan.ID).Int("robots", robots).Int("nodes", len(plan.Nodes)).Msg("plan composed")
	return plan, nil
}

func renderPlan(plan *api.Plan, format string) ([]byte, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "yaml", "":
		return yaml.Marshal(plan)
	default:
		return nil, fmt.Errorf("unknown format %q (yaml, json)", format)
	}
}

func loadPlan(path string) (*api.Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan api.Plan
	if err := yaml.Unmarshal(content, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &plan, nil
}

// Compose and print the launch plan
func newComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose the swarm launch plan and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.metrics.Flush()
			plan, err := a.compose(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			out, err := renderPlan(plan, format)
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("out"); path != "" {
				return os.WriteFile(path, out, 0644)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringArray("set", nil, "launch argument override name=value (repeatable)")
	cmd.Flags().String("format", "yaml", "output format: yaml or json")
	cmd.Flags().String("out", "", "write the plan to a file instead of stdout")
	return cmd
}

// historyRecorder stores supervisor events for one run.
// Rows are keyed by Command.Seq; labels repeat when roster names do.
type historyRecorder struct {
	ctx   context.Context
	st    *store.Store
	runID string
	mu    sync.Mutex
	rows  map[int]int64
}

func (h *historyRecorder) ProcessStarted(c runner.Command, pid int) {
	id, err := h.st.RecordProcess(h.ctx, h.runID, c.Label, pid)
	if err != nil {
		log.Warn().Err(err).Str("process", c.Label).Msg("record process")
		return
	}
	h.mu.Lock()
	h.rows[c.Seq] = id
	h.mu.Unlock()
}

func (h *historyRecorder) ProcessExited(c runner.Command, res runner.Result) {
	h.mu.Lock()
	id, ok := h.rows[c.Seq]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := h.st.FinishProcess(h.ctx, id, res.ExitCode); err != nil {
		log.Warn().Err(err).Str("process", c.Label).Msg("finish process")
	}
}

func runStatus(ctx context.Context, results []runner.Result, startErr error) api.RunStatus {
	if startErr != nil {
		return api.RunFailed
	}
	if ctx.Err() != nil {
		return api.RunCancelled
	}
	for _, r := range results {
		if r.Err != nil {
			return api.RunFailed
		}
	}
	return api.RunSucceeded
}

// Run the plan locally under supervision
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compose (or load) a plan and run its processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.metrics.Flush()
			var plan *api.Plan
			if path, _ := cmd.Flags().GetString("plan"); path != "" {
				plan, err = loadPlan(path)
			} else {
				plan, err = a.compose(cmd)
			}
			if err != nil {
				return err
			}

			env, err := core.LoadEnvFile(a.cfg.Runtime.EnvFile)
			if err != nil {
				return err
			}
			runDir := filepath.Join(a.cfg.Runtime.RunDir, plan.ID)
			cmds, err := runner.BuildCommands(plan, runner.Options{
				Ros2Bin: a.cfg.Runtime.Ros2Bin,
				RunDir:  runDir,
				Env:     core.EnvList(env),
			})
			if err != nil {
				return err
			}
			batches := runner.Batches(cmds, a.cfg.Runtime.BatchSize)

			if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
				for i, batch := range batches {
					for _, c := range batch {
						fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", i, c.Label, strings.Join(c.Args, " "))
					}
				}
				return nil
			}

			ctx := cmd.Context()
			lock, err := store.LockDataDir(ctx, a.cfg.DataDir)
			if err != nil {
				return err
			}
			defer lock.Unlock()
			st, err := store.Open(a.cfg.DBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			rendered, err := yaml.Marshal(plan)
			if err != nil {
				return err
			}
			n := len(plan.Namespaces())
			run := store.Run{ID: plan.ID, CreatedAt: time.Now(), NRobots: n, RobotsFile: plan.Arguments[launch.ArgRobotsFile], Status: api.RunRunning, Plan: string(rendered)}
			if err := st.CreateRun(ctx, run); err != nil {
				return err
			}
			log.Info().Str("run", plan.ID).Int("robots", n).Int("processes", len(cmds)).Str("dir", runDir).Msg("starting swarm")

			sup := &runner.Supervisor{
				BatchDelay: time.Duration(a.cfg.Runtime.BatchDelayMS) * time.Millisecond,
				Grace:      time.Duration(a.cfg.Runtime.GraceSeconds) * time.Second,
				LogDir:     filepath.Join(runDir, "log"),
				Stdout:     cmd.OutOrStdout(),
				Recorder:   &historyRecorder{ctx: context.WithoutCancel(ctx), st: st, runID: plan.ID, rows: map[int]int64{}},
			}
			started := time.Now()
			results, runErr := sup.Run(ctx, batches)
			status := runStatus(ctx, results, runErr)
			a.metrics.Timer("swarmlaunch_run_duration", time.Since(started), map[string]string{"status": string(status)})
			if err := st.FinishRun(context.WithoutCancel(ctx), plan.ID, status); err != nil {
				log.Warn().Err(err).Msg("finish run")
			}
			log.Info().Str("run", plan.ID).Str("status", string(status)).Msg("swarm stopped")
			if runErr != nil {
				return runErr
			}
			if status == api.RunFailed {
				return errors.New("one or more processes failed")
			}
			return nil
		},
	}
	cmd.Flags().StringArray("set", nil, "launch argument override name=value (repeatable)")
	cmd.Flags().String("plan", "", "run a previously composed plan (YAML or JSON)")
	cmd.Flags().Bool("dry-run", false, "print the commands without starting them")
	return cmd
}

// Deploy the plan and roster to a robot host
func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Upload the composed plan and roster to a configured host",
		RunE: func(cmd *cobra.Command, args []string) error {
			hostName, _ := cmd.Flags().GetString("host")
			keyPath, _ := cmd.Flags().GetString("key")
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			defer a.metrics.Flush()
			host, err := a.cfg.Host(hostName)
			if err != nil {
				return err
			}
			plan, err := a.compose(cmd)
			if err != nil {
				return err
			}
			rendered, err := yaml.Marshal(plan)
			if err != nil {
				return err
			}
			roster, err := os.ReadFile(plan.Arguments[launch.ArgRobotsFile])
			if err != nil {
				return fmt.Errorf("read roster: %w", err)
			}

			if keyPath == "" {
				keyPath = host.KeyPath
			}
			if keyPath == "" {
				keyPath = filepath.Join(filepath.Dir(a.cfg.SSH.KnownHosts), "id_ed25519")
			}
			signer, err := remote.LoadPrivateKeySigner(keyPath)
			if err != nil {
				return err
			}
			if hostKey, _ := cmd.Flags().GetString("host-key"); hostKey != "" {
				if err := trustHostKey(a.cfg.SSH.KnownHosts, host, hostKey); err != nil {
					return err
				}
			}
			kh, err := remote.LoadKnownHostsCallback(a.cfg.SSH.KnownHosts)
			if err != nil {
				return err
			}
			c := &remote.Client{
				Addr:       remote.Addr(host.IP, host.Port),
				User:       host.User,
				Signer:     signer,
				KnownHosts: kh,
				Timeout:    time.Duration(a.cfg.SSH.TimeoutSeconds) * time.Second,
				Retries:    a.cfg.SSH.Retries,
			}
			dir := filepath.ToSlash(filepath.Join(host.Dir, plan.ID))
			out, err := remote.Deploy(cmd.Context(), c, remote.Deployment{
				Dir: dir,
				Files: []remote.File{
					{Name: "plan.yaml", Data: rendered},
					{Name: "robot.yaml", Data: roster},
				},
				Command: remote.ExpandCommand(host.Command, dir, "plan.yaml"),
			})
			if out != "" {
				fmt.Fprint(cmd.OutOrStdout(), out)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deployed %s to %s:%s\n", plan.ID, host.Name, dir)
			return nil
		},
	}
	cmd.Flags().String("host", "", "configured host name")
	cmd.Flags().String("key", "", "private key (defaults to the host's key_path)")
	cmd.Flags().String("host-key", "", "host public key file to add to known_hosts before connecting")
	cmd.Flags().StringArray("set", nil, "launch argument override name=value (repeatable)")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

// trustHostKey pins the public key in keyFile for host in the known_hosts file.
func trustHostKey(knownHosts string, host core.Host, keyFile string) error {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("read host key: %w", err)
	}
	addr := remote.Addr(host.IP, host.Port)
	added, err := remote.TrustHost(knownHosts, addr, string(key))
	if err != nil {
		return err
	}
	if added {
		log.Info().Str("host", host.Name).Str("addr", addr).Msg("host key trusted")
	}
	return nil
}

// List launch history
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous runs, or the processes of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			runID, _ := cmd.Flags().GetString("run")
			a, err := resolveApp(cmd)
			if err != nil {
				return err
			}
			st, err := store.Open(a.cfg.DBPath())
			if err != nil {
				return err
			}
			defer st.Close()
			w := cmd.OutOrStdout()
			if runID != "" {
				r, err := st.GetRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				finished := "-"
				if r.FinishedAt != nil {
					finished = r.FinishedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "run %s\t%s\t%d robots\t%s\t%s\t%s\n", r.ID, r.Status, r.NRobots, r.CreatedAt.Format(time.RFC3339), finished, r.RobotsFile)
				procs, err := st.Processes(cmd.Context(), runID)
				if err != nil {
					return err
				}
				for _, p := range procs {
					exit := "-"
					if p.ExitCode != nil {
						exit = fmt.Sprint(*p.ExitCode)
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", p.Label, p.Pid, exit, p.StartedAt.Format(time.RFC3339))
				}
				return nil
			}
			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Status, r.NRobots, r.CreatedAt.Format(time.RFC3339), r.RobotsFile)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "number of runs to show")
	cmd.Flags().String("run", "", "show processes of this run")
	return cmd
}

// Generate a deployment key
func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 key for deployments",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists", out)
			}
			pub, err := remote.GenerateEd25519Keypair(out)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), pub)
			return nil
		},
	}
	cmd.Flags().String("out", "", "private key path")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
