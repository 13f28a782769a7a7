package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/layer5one/elysia/internal/buildinfo"
	"github.com/layer5one/elysia/pkg/config"
	"github.com/layer5one/elysia/pkg/core"
	"github.com/layer5one/elysia/pkg/tail"
	"github.com/layer5one/elysia/pkg/transport/uds"
	tuimodel "github.com/layer5one/elysia/pkg/tui/model"
	"github.com/layer5one/elysia/pkg/watchdog"
	"github.com/layer5one/elysia/pkg/watchdog/service"
)

const defaultSocket = "/tmp/elysiad.sock"

var (
	socketPath string
	cfgFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "elysiad",
	Short: "Watchdog for the Elysia assistant process",
	Long: "elysiad launches the assistant, journals every lifecycle transition to the\n" +
		"restart log, captures a crash snippet from the assistant's own log, and\n" +
		"relaunches after a fixed pause until the assistant exits cleanly.",
}

func init() {
	rootCmd.RunE = runWatch
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocket, "watchdog socket path")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default elysia.yaml, then $HOME/.elysiad/elysia.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(snippetCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig resolves the config file and environment overrides.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("elysia")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".elysiad"))
		}
	}

	viper.SetEnvPrefix("ELYSIAD")
	viper.AutomaticEnv()
	viper.BindEnv("socket", "ELYSIAD_SOCKET")

	_ = viper.ReadInConfig()

	// Flag wins, then ELYSIAD_SOCKET or the config file, then the default.
	if !rootCmd.PersistentFlags().Changed("socket") && viper.GetString("socket") != "" {
		socketPath = viper.GetString("socket")
	}
}

// configPath returns the config file to load: the --config flag, the
// file viper discovered, or the default name in the working directory.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return config.DefaultFile
}

// daemonSocket resolves the socket the CLI should talk to. An explicit
// --socket flag wins over the (interpolated) config value.
func daemonSocket() string {
	if rootCmd.PersistentFlags().Changed("socket") {
		return socketPath
	}
	if cfg, err := config.Load(configPath()); err == nil && cfg.Socket != "" {
		return cfg.Socket
	}
	return socketPath
}

func dialDaemon() (*uds.Client, error) {
	sock := daemonSocket()
	client, err := uds.Dial(sock)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to elysiad at %s: %w", sock, err)
	}
	return client, nil
}

// --- Run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watchdog in the foreground",
	Long:  "Loads elysia.yaml, launches the assistant, and supervises it until it exits cleanly.",
	RunE:  runWatchdog,
}

func runWatchdog(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			logger.Error("config validation", "err", e)
		}
		return fmt.Errorf("%s: %d validation error(s)", path, len(errs))
	}

	sock := cfg.Socket
	if sock == "" || rootCmd.PersistentFlags().Changed("socket") {
		sock = socketPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	w, err := watchdog.New(cfg, logger)
	if err != nil {
		return err
	}

	srv := uds.NewServer(sock, logger)
	metrics := watchdog.NewMetrics()
	monitor := watchdog.NewMonitor(w, srv, metrics, logger)
	w.AddSink(watchdog.NotifySystemd(logger))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srv.Start(gctx) })
	defer srv.Shutdown()

	if cfg.ChildLog != "" {
		follower := tail.NewFollower(cfg.ChildLog, logger)
		lines := follower.Run(gctx)
		g.Go(func() error {
			monitor.PumpLines(gctx, lines)
			return nil
		})
	}

	sampler := watchdog.NewUsageSampler(w, metrics, 2*time.Second, logger)
	g.Go(func() error {
		sampler.Run(gctx)
		return nil
	})

	if cfg.HTTPAddr != "" {
		api := watchdog.NewHTTPServer(cfg.HTTPAddr, monitor, metrics, logger)
		g.Go(func() error { return api.Run(gctx) })
	}

	logger.Info("starting elysiad", "version", buildinfo.Version, "command", cfg.Command, "socket", sock)

	// The supervisor finishing (clean child exit) brings everything
	// else down too.
	g.Go(func() error {
		defer cancel()
		return w.Run(gctx)
	})

	return g.Wait()
}

// --- Watch: TUI ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard for the supervised assistant",
	RunE:  runWatch,
}

func runWatch(_ *cobra.Command, _ []string) error {
	sock := daemonSocket()
	if _, err := os.Stat(sock); err != nil {
		return fmt.Errorf("no watchdog socket at %s (start it with: elysiad run)", sock)
	}
	app := tuimodel.New(sock)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the watchdog is running",
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := client.Ping(ctx); err != nil {
			return err
		}
		fmt.Println("pong ✓")
		return nil
	},
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("elysiad %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

// --- Status ---

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the supervised assistant's status",
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodStatus, nil)
		if err != nil {
			return err
		}
		var st core.Status
		if err := resp.UnmarshalData(&st); err != nil {
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property", "Value")
		table.Append([]string{"Name", st.Name})
		table.Append([]string{"State", string(st.State)})
		table.Append([]string{"Policy", string(st.Policy)})
		table.Append([]string{"Command", st.Command})
		if st.PID > 0 {
			table.Append([]string{"PID", strconv.Itoa(st.PID)})
			table.Append([]string{"Uptime", (time.Duration(st.UptimeSec) * time.Second).String()})
		}
		if st.CPUPct > 0 {
			table.Append([]string{"CPU", fmt.Sprintf("%.1f%%", st.CPUPct)})
		}
		if st.MemBytes > 0 {
			table.Append([]string{"Memory", fmt.Sprintf("%.1f MB", float64(st.MemBytes)/(1024*1024))})
		}
		table.Append([]string{"Starts", strconv.Itoa(st.Starts)})
		table.Append([]string{"Restarts", strconv.Itoa(st.Restarts)})
		if st.StartFailures > 0 {
			table.Append([]string{"Start failures", strconv.Itoa(st.StartFailures)})
		}
		if st.LastExitCode != nil {
			exit := fmt.Sprintf("code %d", *st.LastExitCode)
			if st.LastSignal != "" {
				exit += ", signal: " + st.LastSignal
			}
			table.Append([]string{"Last exit", exit})
		}
		table.Append([]string{"Journal", st.JournalPath})
		table.Append([]string{"Snippet", st.SnippetPath})
		if st.ChildLogPath != "" {
			table.Append([]string{"Child log", st.ChildLogPath})
		}
		table.Render()
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

// --- History ---

var (
	historyJSON  bool
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent lifecycle events",
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodEvents, uds.TailRequest{Limit: historyLimit})
		if err != nil {
			return err
		}
		var events []core.Event
		if err := resp.UnmarshalData(&events); err != nil {
			return err
		}

		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("no events")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Time", "Event", "Attempt", "Detail")
		for _, ev := range events {
			table.Append([]string{
				ev.Time().Format("15:04:05"),
				string(ev.Type),
				strconv.Itoa(ev.Attempt),
				ev.Message,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "show only the newest N events")
}

// --- Tail ---

var (
	tailLines  int
	tailFollow bool
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print recent assistant log lines",
	RunE: func(_ *cobra.Command, _ []string) error {
		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()

		if tailFollow {
			client.OnEvent(func(msg uds.Message) {
				if msg.Method != uds.EventLogLine {
					return
				}
				var line core.LogLine
				if err := msg.UnmarshalData(&line); err != nil {
					return
				}
				fmt.Println(line.Line)
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodLogs, uds.TailRequest{Limit: tailLines})
		if err != nil {
			return err
		}
		var lines []core.LogLine
		if err := resp.UnmarshalData(&lines); err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line.Line)
		}

		if tailFollow {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
		}
		return nil
	},
}

func init() {
	tailCmd.Flags().IntVar(&tailLines, "lines", 50, "number of lines to print")
	tailCmd.Flags().BoolVar(&tailFollow, "follow", false, "keep streaming new lines")
}

// --- Snippet ---

var snippetFile string

var snippetCmd = &cobra.Command{
	Use:   "snippet",
	Short: "Print the crash snippet from the last crash",
	RunE: func(_ *cobra.Command, _ []string) error {
		path := snippetFile
		if path == "" {
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("cannot resolve snippet path (use --file): %w", err)
			}
			path = cfg.Snippet
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("no crash snippet at %s", path)
			}
			return err
		}
		if len(data) == 0 {
			fmt.Fprintln(os.Stderr, "crash snippet is empty")
			return nil
		}
		os.Stdout.Write(data)
		return nil
	},
}

func init() {
	snippetCmd.Flags().StringVar(&snippetFile, "file", "", "snippet file path (default from config)")
}

// --- Restart / Kill ---

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "SIGTERM the assistant so the watchdog relaunches it",
	RunE: func(_ *cobra.Command, _ []string) error {
		return doChildAction("restart")
	},
}

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "SIGKILL the assistant so the watchdog relaunches it",
	RunE: func(_ *cobra.Command, _ []string) error {
		return doChildAction("kill")
	},
}

func doChildAction(action string) error {
	client, err := dialDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.Request(ctx, uds.MethodAction, uds.ActionRequest{Action: action}); err != nil {
		return err
	}
	fmt.Printf("%s ✓\n", action)
	return nil
}

// --- Config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the elysia.yaml config",
}

var (
	configInitDir    string
	configInitOutput string
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an elysia.yaml for an assistant checkout",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Detect(configInitDir)
		if err != nil {
			return err
		}
		if err := config.Save(configInitOutput, cfg); err != nil {
			return err
		}
		fmt.Printf("Generated %s\n", configInitOutput)
		fmt.Printf("  command: %s\n", cfg.Command)
		fmt.Printf("  child log: %s\n", cfg.ChildLog)
		fmt.Printf("  journal: %s\n", cfg.Journal)
		fmt.Printf("  snippet: %s\n", cfg.Snippet)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate an elysia.yaml config",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := configPath()
		if len(args) > 0 {
			path = args[0]
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			fmt.Printf("%s: valid\n", path)
			return nil
		}

		fmt.Fprintf(os.Stderr, "%s: %d error(s)\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  • %s\n", e)
		}
		os.Exit(1)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the resolved config",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := configPath()
		if len(args) > 0 {
			path = args[0]
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitDir, "dir", ".", "assistant checkout directory")
	configInitCmd.Flags().StringVar(&configInitOutput, "output", config.DefaultFile, "output file path")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

// --- Service ---

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the systemd user service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start elysiad as a systemd user service",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := service.Install(configPath()); err != nil {
			return err
		}
		fmt.Println("elysiad.service installed and started ✓")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the systemd user service",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := service.Uninstall(); err != nil {
			return err
		}
		fmt.Println("elysiad.service removed ✓")
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service and socket status",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(service.Status(daemonSocket()))
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}
