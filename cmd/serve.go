package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/household/internal/api"
	"github.com/theirongolddev/household/internal/auth"
	"github.com/theirongolddev/household/internal/blob"
	"github.com/theirongolddev/household/internal/capability"
	"github.com/theirongolddev/household/internal/config"
	"github.com/theirongolddev/household/internal/logging"
	"github.com/theirongolddev/household/internal/orders"
	"github.com/theirongolddev/household/internal/scheduler"
)

type serveRuntimeState struct {
	PID        int       `json:"pid"`
	Addr       string    `json:"addr"`
	OrdersAddr string    `json:"orders_addr,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DBPath     string    `json:"db_path"`
}

var (
	flagServeAddr         string
	flagServeDetach       bool
	flagServePIDFile      string
	flagServeLogFile      string
	flagServeEventsBuffer int
	flagServeOrders       bool
	flagServeWatchConfig  bool
	flagServeChild        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, orders worker and scheduled jobs",
	RunE:  runServe,
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server process and API status",
	RunE:  runServeStatus,
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE:  runServeStop,
}

func init() {
	defaultPID := filepath.Join(config.DataDir(), "household.pid")
	defaultLog := filepath.Join(config.DataDir(), "household.log")

	serveCmd.PersistentFlags().StringVar(&flagServeAddr, "addr", "", "HTTP listen address (default server.addr)")
	serveCmd.PersistentFlags().StringVar(&flagServePIDFile, "pid-file", defaultPID, "PID file path")
	serveCmd.PersistentFlags().StringVar(&flagServeLogFile, "log-file", defaultLog, "Log file path for detached mode")
	serveCmd.PersistentFlags().IntVar(&flagServeEventsBuffer, "events-buffer", 200, "Max in-memory events retained")

	serveCmd.Flags().BoolVar(&flagServeDetach, "detach", false, "Run the server as a background process")
	serveCmd.Flags().BoolVar(&flagServeOrders, "orders", false, "Also run the orders worker (default server.run_orders)")
	serveCmd.Flags().BoolVar(&flagServeWatchConfig, "watch-config", false, "Reload log level and allowed users when the config file changes")
	serveCmd.Flags().BoolVar(&flagServeChild, "child", false, "Internal: mark detached child process")
	_ = serveCmd.Flags().MarkHidden("child")

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func serveAddr() string {
	if flagServeAddr != "" {
		return flagServeAddr
	}
	return cfg.Server.Addr
}

func runServe(cmd *cobra.Command, _ []string) error {
	if flagServeDetach && flagServeChild {
		return errors.New("invalid serve launch mode")
	}
	if flagServeOrders {
		cfg.Server.RunOrders = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if flagServeDetach {
		return startServeDetached()
	}
	return runServeForeground(cmd.Context())
}

func startServeDetached() error {
	if err := ensureServerNotRunning(flagServePIDFile); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := filterDetachArg(os.Args[1:])
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(flagServePIDFile), 0o750); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagServeLogFile), 0o750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	//nolint:gosec // log path is configured by the local user
	logf, err := os.OpenFile(flagServeLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	child.Stdout = logf
	child.Stderr = logf
	child.Stdin = nil
	child.Env = os.Environ()

	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached server: %w", err)
	}

	fmt.Printf("  Started household (pid %d)\n", child.Process.Pid)
	fmt.Printf("  PID file: %s\n", flagServePIDFile)
	fmt.Printf("  API: http://%s/v1/status\n", serveAddr())
	fmt.Printf("  Log: %s\n", flagServeLogFile)
	return nil
}

func runServeForeground(ctx context.Context) error {
	if err := ensureServerNotRunning(flagServePIDFile); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(flagServePIDFile), 0o750); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(flagServePIDFile, pid); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagServePIDFile) }()

	addr := serveAddr()
	state := serveRuntimeState{
		PID:       pid,
		Addr:      addr,
		StartedAt: time.Now(),
		DBPath:    cfg.Storage.DatabasePath(),
	}
	if cfg.Server.RunOrders {
		state.OrdersAddr = cfg.Server.OrdersAddr
	}
	_ = writeState(statePath(flagServePIDFile), state)
	defer func() { _ = os.Remove(statePath(flagServePIDFile)) }()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	bucket, err := blob.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening statement storage: %w", err)
	}

	var issuer *auth.Issuer
	if cfg.Auth.Enabled {
		issuer, err = newIssuer(cfg)
		if err != nil {
			return err
		}
	}
	allow := auth.NewAllowlist(cfg.Auth.AllowedUsers)

	srv := api.New(api.Config{
		Addr:             addr,
		Store:            st,
		Bucket:           bucket,
		Catalog:          capability.Default(),
		Orders:           newOrdersClient(cfg, st),
		OrderCacheMaxAge: cfg.Orders.CacheMaxAge(),
		Issuer:           issuer,
		Allow:            allow,
		Logger:           log,
		EventsBuffer:     flagServeEventsBuffer,
	})

	fmt.Printf("  household listening on http://%s\n", addr)
	fmt.Printf("  Database: %s\n", state.DBPath)
	fmt.Printf("  Stop with: household serve stop --pid-file %s\n", flagServePIDFile)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if cfg.Server.RunOrders {
		worker := orders.NewServer(orders.ServerConfig{
			Addr:        cfg.Server.OrdersAddr,
			APIKey:      cfg.Orders.APIKey,
			HasCache:    true,
			HasDatabase: true,
			Logger:      log,
		})
		fmt.Printf("  Orders worker on http://%s\n", cfg.Server.OrdersAddr)
		g.Go(func() error { return worker.Run(gctx) })
	}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(st, scheduler.Options{
			Config:      cfg.Scheduler,
			OrderMaxAge: cfg.Orders.CacheMaxAge(),
			Logger:      log,
		})
		if err != nil {
			return err
		}
		sched.Start()
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return sched.Stop(stopCtx)
		})
	}

	if flagServeWatchConfig {
		g.Go(func() error {
			return watchConfig(gctx, config.ConfigPath(), func() { reloadConfig(allow) })
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newIssuer(c config.Config) (*auth.Issuer, error) {
	issuer, err := auth.NewIssuer(auth.Config{
		Secret:   []byte(c.Auth.Secret),
		Issuer:   c.Auth.Issuer,
		Audience: c.Auth.Audience,
		TTL:      c.Auth.TokenTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return issuer, nil
}

// reloadConfig applies the settings that can change without a restart.
func reloadConfig(allow *auth.Allowlist) {
	next, err := config.LoadEffective()
	if err != nil {
		log.WithError(err).Warn("config reload failed, keeping current settings")
		return
	}
	if !logging.SetLevel(log, next.General.LogLevel) {
		log.WithField("level", next.General.LogLevel).Warn("ignoring unknown log level")
	}
	allow.Set(next.Auth.AllowedUsers)
	log.WithField("allowed_users", len(next.Auth.AllowedUsers)).Info("config reloaded")
}

// watchConfig calls onChange after writes to path settle. The directory is
// watched so editors that replace the file by rename are seen.
func watchConfig(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	log.WithField("path", path).Info("watching config")

	const settle = 250 * time.Millisecond
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("config watcher error")
		case <-timer.C:
			onChange()
		}
	}
}

func runServeStatus(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagServePIDFile)
	if err != nil {
		fmt.Printf("  Server: not running (pid file not found)\n")
		return nil
	}

	if !processAlive(pid) {
		fmt.Printf("  Server: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := serveAddr()
	st, stErr := readState(statePath(flagServePIDFile))
	if stErr == nil && st.Addr != "" {
		addr = st.Addr
	}

	fmt.Printf("  Server PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)
	if stErr == nil {
		fmt.Printf("  Database: %s\n", st.DBPath)
		if st.OrdersAddr != "" {
			fmt.Printf("  Orders worker: http://%s\n", st.OrdersAddr)
		}
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status") //nolint:noctx // short status check
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("  API status: HTTP %d\n", resp.StatusCode)
		return nil
	}

	var status api.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Printf("  API status: malformed response (%v)\n", err)
		return nil
	}

	fmt.Printf("  Uptime: %s\n", time.Duration(status.UptimeSec)*time.Second)
	fmt.Printf("  Requests: %d\n", status.RequestCount)
	fmt.Printf("  Events: %d (%d subscribers)\n", status.EventCount, status.SubscriberCount)
	if !status.LastEventAt.IsZero() {
		fmt.Printf("  Last event: %s\n", status.LastEventAt.Local().Format(time.RFC3339))
	}
	fmt.Printf("  Auth: %v\n", status.AuthEnabled)
	fmt.Printf("  Orders lookups: %v\n", status.OrdersEnabled)
	return nil
}

func runServeStop(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagServePIDFile)
	if err != nil {
		return errors.New("server is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find server process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal server process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(flagServePIDFile)
			_ = os.Remove(statePath(flagServePIDFile))
			fmt.Printf("  Stopped household (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("server (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ensureServerNotRunning(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("server already running (pid %d)", pid)
	}
	_ = os.Remove(pidFile)
	_ = os.Remove(statePath(pidFile))
	return nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

func readPID(path string) (int, error) {
	//nolint:gosec // pid path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func statePath(pidFile string) string {
	return pidFile + ".json"
}

func writeState(path string, st serveRuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func readState(path string) (serveRuntimeState, error) {
	var st serveRuntimeState
	//nolint:gosec // state path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
