// otbr-web serves a Thread network topology dashboard for an OpenThread
// border router and offers command-line access to the same operations.
//
// Usage:
//
//	otbr-web [global flags] <command> [command flags]
//
// Commands:
//
//	serve       Run the dashboard service
//	topology    Build and print the network topology
//	status      Show border router properties
//	scan        List joinable networks
//	form        Form a new network
//	join        Join a scanned network
//	prefix      Add or delete an on-mesh prefix
//	commission  Start the commissioner for a joiner
//	logs        Query dashboard logs (Splunk-like)
//	snapshots   List or show stored topology snapshots
//	lifecycle   Show dashboard start/stop history
//	storage     Show dashboard database usage
//	node        Show or change the Thread interface state, or reset the node
//	dataset     Show or update the active and pending datasets
//	version     Print the version
//
// Global Flags:
//
//	--border-router  Border router REST address (default: http://127.0.0.1:8081)
//	--config         YAML configuration file
//	--timeout        Request timeout
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/miguelemosreverte/otbr-web/internal/cli"
	"github.com/miguelemosreverte/otbr-web/internal/config"
	"github.com/miguelemosreverte/otbr-web/internal/node"
	"github.com/miguelemosreverte/otbr-web/internal/poller"
	"github.com/miguelemosreverte/otbr-web/internal/protocol"
	"github.com/miguelemosreverte/otbr-web/internal/store"
	"github.com/miguelemosreverte/otbr-web/internal/topology"
)

var (
	borderRouter  string
	configPath    string
	timeout       time.Duration
	dashboardAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "otbr-web",
		Short: "Thread border router topology dashboard",
		Long: `otbr-web builds the Thread network topology from an OpenThread border
router's REST API, serves it as a live web dashboard and exposes the border
router's network management operations on the command line.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&borderRouter, "border-router", config.DefaultBorderRouter,
		"Border router REST address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", config.DefaultRequestTimeout, "Request timeout")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(topologyCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(formCmd())
	rootCmd.AddCommand(joinCmd())
	rootCmd.AddCommand(prefixCmd())
	rootCmd.AddCommand(commissionCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(snapshotsCmd())
	rootCmd.AddCommand(lifecycleCmd())
	rootCmd.AddCommand(storageCmd())
	rootCmd.AddCommand(nodeCmd())
	rootCmd.AddCommand(datasetCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the global flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("border-router") {
		cfg.BorderRouter = borderRouter
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = timeout
	}
	return cfg, nil
}

func newClient(cmd *cobra.Command) (*cli.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.NewClient(cfg.BorderRouter, cfg.RequestTimeout)
}

func newServiceClient() (*cli.ServiceClient, error) {
	return cli.NewServiceClient(dashboardAddr, timeout)
}

// addDashboardFlag registers --dashboard on commands that query a running service.
func addDashboardFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dashboardAddr, "dashboard", "127.0.0.1:8080", "Address of the running dashboard")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd() *cobra.Command {
	var (
		listen       string
		pollInterval time.Duration
		dataDir      string
		logLevel     string
		noSnapshots  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard service",
		Long: `Poll the border router, keep the topology graph current and serve the
dashboard, its JSON API, a live WebSocket feed and Prometheus metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Listen = listen
			}
			if flags.Changed("poll-interval") {
				cfg.PollInterval = pollInterval
			}
			if flags.Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = strings.ToUpper(logLevel)
			}
			if noSnapshots {
				cfg.Snapshots = false
			}

			d, err := node.New(cfg)
			if err != nil {
				return err
			}
			return d.Run()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", config.DefaultListen, "Dashboard listen address")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", config.DefaultPollInterval, "Border router poll interval")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.otbr-web)")
	cmd.Flags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().BoolVar(&noSnapshots, "no-snapshots", false, "Do not store topology snapshots")

	return cmd
}

func topologyCmd() *cobra.Command {
	var (
		nodeInfoFile    string
		diagnosticsFile string
		asJSON          bool
		selectAddr      string
	)

	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Build and print the network topology",
		Long: `Fetch node information and diagnostics from the border router and print
the resulting topology. With --node-info and --diagnostics the graph is built
from saved responses instead.

Examples:
  otbr-web topology
  otbr-web topology --json
  otbr-web topology --select 0x0401
  otbr-web topology --node-info node.json --diagnostics diag.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker := topology.NewTracker()

			if nodeInfoFile != "" || diagnosticsFile != "" {
				g, err := buildFromFiles(nodeInfoFile, diagnosticsFile)
				if err != nil {
					return err
				}
				tracker.Update(g)
			} else {
				client, err := newClient(cmd)
				if err != nil {
					return err
				}
				p := poller.New(client, tracker, poller.WithLogger(quietLogger()))
				if _, err := p.Refresh(cmd.Context()); err != nil {
					return err
				}
			}

			if selectAddr != "" {
				rloc16, err := topology.ParseRloc16(selectAddr)
				if err != nil {
					return err
				}
				if err := tracker.Select(rloc16); err != nil {
					return fmt.Errorf("cannot select %s: %w", selectAddr, err)
				}
			}

			g := tracker.Current()
			if asJSON {
				return printJSON(g)
			}
			printTopology(os.Stdout, g, tracker.Hops)
			return nil
		},
	}

	cmd.Flags().StringVar(&nodeInfoFile, "node-info", "", "Saved /node_information result (JSON)")
	cmd.Flags().StringVar(&diagnosticsFile, "diagnostics", "", "Saved /topology result (JSON array)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the graph as JSON")
	cmd.Flags().StringVar(&selectAddr, "select", "", "Node to show as selected (0x-hex or decimal Rloc16)")

	return cmd
}

func quietLogger() *store.Logger {
	l := store.NewLogger(nil, "topology")
	l.SetLevel(store.LevelError)
	l.SetOutput(os.Stderr)
	return l
}

// buildFromFiles builds a graph from saved REST responses. Either file may be
// a bare result or a full response envelope.
func buildFromFiles(nodeInfoFile, diagnosticsFile string) (*topology.Graph, error) {
	if nodeInfoFile == "" || diagnosticsFile == "" {
		return nil, fmt.Errorf("--node-info and --diagnostics must be given together")
	}

	infoData, err := readResult(nodeInfoFile)
	if err != nil {
		return nil, err
	}
	info, err := topology.DecodeNodeInfo(infoData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", nodeInfoFile, err)
	}

	diagData, err := readResult(diagnosticsFile)
	if err != nil {
		return nil, err
	}
	records, err := topology.DecodeDiagnostics(diagData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", diagnosticsFile, err)
	}

	return topology.Build(info, records), nil
}

func readResult(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err == nil && len(env.Result) > 0 {
		if env.Error != protocol.CodeOK {
			return nil, fmt.Errorf("%s holds a failed response: %s", path, env.Message)
		}
		return env.Result, nil
	}
	return data, nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show border router properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			props, err := client.Properties(cmd.Context())
			if err != nil {
				return err
			}

			pairs := make([][2]string, 0, len(protocol.PropertyKeys))
			for _, key := range protocol.PropertyKeys {
				if v, ok := props[key]; ok {
					pairs = append(pairs, [2]string{key, v})
				}
			}
			fmt.Println(titleStyle.Render("Border Router Status"))
			fmt.Println(keyValues(pairs))
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List joinable networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			networks, err := client.AvailableNetworks(cmd.Context())
			if err != nil {
				return err
			}
			if len(networks) == 0 {
				fmt.Println("No networks found.")
				return nil
			}

			fmt.Println(titleStyle.Render("Available Networks"))
			fmt.Println(headerStyle.Render(fmt.Sprintf("%-4s %-18s %-18s %-8s %-4s %-5s %s",
				"IDX", "NAME", "EXT PANID", "PANID", "CH", "RSSI", "LQI")))
			fmt.Println(divider)
			for _, n := range networks {
				fmt.Printf("%-4d %-18s %-18s %-8s %-4d %-5d %d\n",
					n.ID, n.NetworkName, n.ExtPanID, n.PanID, n.Channel, n.RSSI, n.LinkQuality)
			}
			return nil
		},
	}
}

// runOperation executes a border router write and reports the outcome.
func runOperation(ctx context.Context, name string, op func(ctx context.Context) error) error {
	if err := op(ctx); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	fmt.Println(successStyle.Render("✓ " + name + " succeeded"))
	return nil
}

func formCmd() *cobra.Command {
	var params protocol.FormParams

	cmd := &cobra.Command{
		Use:   "form",
		Short: "Form a new Thread network",
		Example: `  otbr-web form --network-name OpenThread --channel 15 --panid 0x1234 \
    --ext-panid 1111111122222222 --network-key 00112233445566778899aabbccddeeff`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runOperation(cmd.Context(), "Form network", func(ctx context.Context) error {
				return client.FormNetwork(ctx, params)
			})
		},
	}

	cmd.Flags().StringVar(&params.NetworkName, "network-name", "", "Network name (up to 16 characters)")
	cmd.Flags().IntVar(&params.Channel, "channel", 15, "Channel (11-26)")
	cmd.Flags().StringVar(&params.PanID, "panid", "", "PAN ID (0x-prefixed hex)")
	cmd.Flags().StringVar(&params.ExtPanID, "ext-panid", "", "Extended PAN ID (16 hex digits)")
	cmd.Flags().StringVar(&params.NetworkKey, "network-key", "", "Network key (32 hex digits)")
	cmd.Flags().StringVar(&params.Passphrase, "passphrase", "", "Commissioner passphrase")
	cmd.Flags().StringVar(&params.Prefix, "prefix", "", "On-mesh prefix (default length /64)")
	cmd.Flags().BoolVar((*bool)(&params.DefaultRoute), "default-route", false, "Advertise the prefix as a default route")

	return cmd
}

func joinCmd() *cobra.Command {
	var params protocol.JoinParams

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a network found by scan",
		Long: `Join a network found by scan.

The border router requires both the network key and the PSKd regardless of
the credential type; the type selects which one is used.`,
		Example: `  otbr-web join --index 0 --credential pskdType --pskd J01NME \
    --network-key 00112233445566778899aabbccddeeff --prefix fd11:22::`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runOperation(cmd.Context(), "Join network", func(ctx context.Context) error {
				return client.JoinNetwork(ctx, params)
			})
		},
	}

	cmd.Flags().IntVar(&params.Index, "index", 0, "Index of the network in the last scan")
	cmd.Flags().StringVar(&params.CredentialType, "credential", protocol.CredentialNetworkKey,
		"Credential type (networkKeyType or pskdType)")
	cmd.Flags().StringVar(&params.NetworkKey, "network-key", "", "Network key (32 hex digits)")
	cmd.Flags().StringVar(&params.PSKd, "pskd", "", "Joiner PSKd")
	cmd.Flags().StringVar(&params.Prefix, "prefix", "", "On-mesh prefix (default length /64)")
	cmd.Flags().BoolVar((*bool)(&params.DefaultRoute), "default-route", false, "Advertise the prefix as a default route")

	return cmd
}

func prefixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefix",
		Short: "Manage on-mesh prefixes",
	}

	for _, action := range []string{"add", "delete"} {
		action := action
		var params protocol.PrefixParams
		sub := &cobra.Command{
			Use:   action + " <prefix>",
			Short: strings.ToUpper(action[:1]) + action[1:] + " an on-mesh prefix",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := newClient(cmd)
				if err != nil {
					return err
				}
				params.Prefix = args[0]
				if action == "add" {
					return runOperation(cmd.Context(), "Add prefix", func(ctx context.Context) error {
						return client.AddPrefix(ctx, params)
					})
				}
				return runOperation(cmd.Context(), "Delete prefix", func(ctx context.Context) error {
					return client.DeletePrefix(ctx, params)
				})
			},
		}
		sub.Flags().BoolVar((*bool)(&params.DefaultRoute), "default-route", false, "Advertise the prefix as a default route")
		cmd.AddCommand(sub)
	}

	return cmd
}

func commissionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commission <pskd>",
		Short: "Start the commissioner for a joiner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			return runOperation(cmd.Context(), "Commission", func(ctx context.Context) error {
				return client.Commission(ctx, protocol.CommissionParams{PSKd: args[0]})
			})
		},
	}
}

func logsCmd() *cobra.Command {
	var earliest, latest, search string
	var levels, components []string
	var limit int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query dashboard logs (Splunk-like time syntax)",
		Long: `Query the logs of a running dashboard with Splunk-like time range syntax.

Time range examples:
  -1h        1 hour ago
  -30m       30 minutes ago
  -1h@h      1 hour ago, snapped to hour boundary
  @d         Beginning of today
  now        Current time
  2024-01-15 Specific date

Usage examples:
  otbr-web logs                          # Last 15 minutes
  otbr-web logs --earliest=-1h           # Last hour
  otbr-web logs --level=ERROR            # Only errors
  otbr-web logs --component=poller,ui    # Filter by component
  otbr-web logs -f --level=WARN,ERROR    # Stream new warnings and errors`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newServiceClient()
			if err != nil {
				return err
			}

			if follow {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				fmt.Println(titleStyle.Render("Following logs (Ctrl+C to stop)"))
				fmt.Println(divider)
				return client.FollowLogs(ctx, protocol.LogsParams{Levels: levels, Components: components}, limit,
					func(e protocol.LogEntry) { printLogEntry(e) })
			}

			result, err := client.Logs(cmd.Context(), protocol.LogsParams{
				Earliest:   earliest,
				Latest:     latest,
				Levels:     levels,
				Components: components,
				Search:     search,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			if len(result.Entries) == 0 {
				fmt.Println("No logs found for the specified time range.")
				return nil
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("Logs (%d of %d)", len(result.Entries), result.TotalCount)))
			fmt.Println(divider)
			for _, e := range result.Entries {
				printLogEntry(e)
			}

			if result.HasMore {
				fmt.Printf("\n... %d more entries (use --limit to see more)\n", result.TotalCount-int64(len(result.Entries)))
			}
			return nil
		},
	}

	addDashboardFlag(cmd)
	cmd.Flags().StringVar(&earliest, "earliest", "-15m", "Start time (Splunk syntax: -1h, -30m, @d)")
	cmd.Flags().StringVar(&latest, "latest", "now", "End time (Splunk syntax)")
	cmd.Flags().StringSliceVar(&levels, "level", nil, "Filter by level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().StringSliceVar(&components, "component", nil, "Filter by component (node, poller, ui)")
	cmd.Flags().StringVar(&search, "search", "", "Search text in message")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max entries to return (with --follow, entries replayed first)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new entries as they are written")

	return cmd
}

func printLogEntry(e protocol.LogEntry) {
	ts := e.Timestamp
	if len(ts) > 19 {
		ts = ts[:19]
	}
	level := levelStyle(e.Level).Render(fmt.Sprintf("[%-5s]", e.Level))
	fmt.Printf("%s %s [%s] %s\n", dimStyle.Render(ts), level, e.Component, e.Message)
}

func storageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Show dashboard database usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newServiceClient()
			if err != nil {
				return err
			}
			stats, err := client.Storage(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(titleStyle.Render("Storage"))
			fmt.Println(keyValues([][2]string{
				{"Database", fmt.Sprintf("%.2f MB", stats.DBSizeMB)},
				{"Logs", fmt.Sprint(stats.LogCount)},
				{"Snapshots", fmt.Sprint(stats.SnapshotCount)},
				{"Snapshot data", fmt.Sprintf("%d bytes (compressed)", stats.SnapshotPayloadBytes)},
			}))
			return nil
		},
	}

	addDashboardFlag(cmd)
	return cmd
}

func snapshotsCmd() *cobra.Command {
	var earliest string
	var limit int

	cmd := &cobra.Command{
		Use:   "snapshots [id]",
		Short: "List stored topology snapshots, or print one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newServiceClient()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				raw, err := client.Snapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var g interface{}
				if err := json.Unmarshal(raw, &g); err != nil {
					return fmt.Errorf("failed to parse snapshot: %w", err)
				}
				return printJSON(g)
			}

			result, err := client.Snapshots(cmd.Context(), earliest, limit)
			if err != nil {
				return err
			}
			if len(result.Snapshots) == 0 {
				fmt.Println("No snapshots found.")
				return nil
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("Snapshots (%d of %d)", len(result.Snapshots), result.TotalCount)))
			fmt.Println(headerStyle.Render(fmt.Sprintf("%-36s %-20s %-16s %-7s %-5s %s",
				"ID", "TIME", "NETWORK", "ROUTERS", "NODES", "LINKS")))
			fmt.Println(divider)
			for _, s := range result.Snapshots {
				ts := s.Timestamp
				if len(ts) > 19 {
					ts = ts[:19]
				}
				fmt.Printf("%-36s %-20s %-16s %-7d %-5d %d\n",
					s.ID, ts, s.NetworkName, s.RouterCount, s.NodeCount, s.LinkCount)
			}
			return nil
		},
	}

	addDashboardFlag(cmd)
	cmd.Flags().StringVar(&earliest, "earliest", "-1h", "Start time (Splunk syntax)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max snapshots to list")

	return cmd
}

func lifecycleCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "lifecycle",
		Short: "Show dashboard start/stop history",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newServiceClient()
			if err != nil {
				return err
			}

			result, err := client.Lifecycle(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(result.Events) == 0 {
				fmt.Println("No lifecycle events recorded.")
				return nil
			}

			fmt.Println(titleStyle.Render("Lifecycle Events"))
			fmt.Println(divider)
			for _, e := range result.Events {
				uptime := store.FormatDuration(time.Duration(e.UptimeSeconds * float64(time.Second)))
				fmt.Printf("%s %-6s %-8s %-10s %s\n",
					dimStyle.Render(e.Timestamp), e.Event, e.Version, uptime, e.Reason)
			}
			return nil
		},
	}

	addDashboardFlag(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Max events to show")

	return cmd
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("otbr-web %s (REST API %s)\n", node.Version, protocol.Version)

			if !cmd.Flags().Changed("dashboard") {
				return nil
			}
			client, err := newServiceClient()
			if err != nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			if health, err := client.Health(ctx); err == nil {
				fmt.Printf("dashboard %s: %s, up %s\n", dashboardAddr, health.Version, health.UptimeStr)
			}
			return nil
		},
	}

	addDashboardFlag(cmd)
	return cmd
}
