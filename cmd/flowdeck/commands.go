package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/jmraffin/flowdeck/internal/controller"
	"github.com/jmraffin/flowdeck/internal/discovery"
	"github.com/jmraffin/flowdeck/internal/logging"
	"github.com/jmraffin/flowdeck/internal/settings"
	"github.com/jmraffin/flowdeck/internal/sim"
	"github.com/jmraffin/flowdeck/internal/tui"
)

// Command flags
var (
	controllerHost string
	controllerPort int
	scanTimeout    int
	outputFormat   string

	simHost     string
	simPort     int
	simChannels int
	simPorts    []string
	simAnnounce bool
	simLogLevel string
)

func init() {
	// Common flags for controller commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&controllerHost, "controller", "", "Controller service host (empty = discover via mDNS, fallback 127.0.0.1)")
	rootCmd.PersistentFlags().IntVar(&controllerPort, "port", 9327, "Controller service HTTP port")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(simCmd)
	rootCmd.AddCommand(setCmd)
}

// consoleCmd launches the interactive TUI console
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Launch the interactive console",
	Long: `Launch the interactive terminal console.

The console shows every channel of the rack at once and lets you toggle
channels, edit setpoints, drive valves, configure ramps, select gases and
rename channels. It polls the controller continuously so the grid always
reflects the instruments.`,
	Example: `  # Launch against a discovered controller service
  flowdeck
  # Or explicitly:
  flowdeck console

  # Launch against a specific controller service
  flowdeck console --controller 192.168.1.40`,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeFromEnv(); err != nil {
		return err
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	cfg, err := settings.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := tui.Run(client, cfg); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}

// portsCmd lists the controller's serial ports
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the controller's serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getClient()
		if err != nil {
			return err
		}
		ports, err := client.ListPorts()
		if err != nil {
			return fmt.Errorf("failed to list ports: %w", err)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports available.")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}

// scanCmd discovers controller services on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for controller services on the network",
	Long: `Scan for controller services using mDNS/DNS-SD discovery.

This command listens for mDNS broadcasts from controller services and
displays all discovered services with their addresses and metadata.`,
	Example: `  # Scan for 5 seconds (default)
  flowdeck scan

  # Longer scan for slower networks
  flowdeck scan --timeout 15`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for controller services (timeout: %ds)...\n\n", scanTimeout)

	controllers, err := discovery.Scan(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(controllers) == 0 {
		fmt.Println("No controller services found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the controller service is running")
		fmt.Println("  - Check that mDNS (UDP 5353) is not blocked")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --controller to specify the host manually")
		return nil
	}

	fmt.Printf("Found %d service(s):\n\n", len(controllers))

	for i, c := range controllers {
		fmt.Printf("%d. %s\n", i+1, c.Name)
		fmt.Printf("   Address: %s:%d\n", c.IP, c.Port)
		if len(c.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", c.Metadata)
		}
		fmt.Println()
	}

	fmt.Println("Use 'flowdeck show --controller <host>' to view the rack state")
	fmt.Println("Use 'flowdeck console' for the interactive grid")

	return nil
}

// showCmd prints the current rack snapshot
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current rack state",
	Long: `Fetch and display one snapshot of the rack.

Shows connection state and, per channel, power, tag, setpoint, measured
flow, totalizer, valve mode, ramp and gas configuration.`,
	Example: `  # Show rack state with auto-discovery
  flowdeck show

  # Show rack state of a specific controller
  flowdeck show --controller 192.168.1.40

  # JSON output for scripting
  flowdeck show --format json`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	snap, err := client.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printSnapshot(snap)
	return nil
}

func printSnapshot(snap *controller.Snapshot) {
	if snap.Connected {
		fmt.Println("Serial: connected")
	} else {
		fmt.Println("Serial: disconnected")
	}
	fmt.Println()

	for i := range snap.Devices {
		d := &snap.Devices[i]
		state := "OFF"
		if d.Active {
			state = "ON"
		}
		fmt.Printf("CH %02d  %s  [%s]\n", d.Index+1, d.Tag, state)
		if !d.Active {
			continue
		}
		fmt.Printf("   Consigne: %s\n", tui.FormatValue(d.Consigne))
		fmt.Printf("   Mesure:   %s\n", tui.FormatReading(d.Mesure))
		fmt.Printf("   Total:    %s\n", tui.FormatReading(d.Total))
		fmt.Printf("   Vanne:    %s\n", d.Valve)
		if d.Ramp.Active {
			fmt.Printf("   Rampe:    %s s\n", tui.FormatValue(d.Ramp.TimeS))
		}
		if len(d.Gases) > 0 {
			fmt.Printf("   Gaz:      %v\n", d.Gases)
		}
	}
}

// watchCmd follows the controller's WebSocket snapshot feed
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the controller's snapshot feed",
	Long: `Subscribe to the controller's WebSocket snapshot feed and print a
summary line for every update. Press Ctrl+C to stop.`,
	Example: `  flowdeck watch --controller 192.168.1.40`,
	RunE:    runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	host, err := getHost()
	if err != nil {
		return err
	}
	url := fmt.Sprintf("ws://%s:%d/ws", host, controllerPort)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n\n", url)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		_ = conn.Close()
	}()

	for {
		var snap controller.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			return nil
		}

		active := 0
		for i := range snap.Devices {
			if snap.Devices[i].Active {
				active++
			}
		}
		state := "disconnected"
		if snap.Connected {
			state = "connected"
		}
		fmt.Printf("%s  serial=%s  active=%d/%d\n",
			time.Now().Format("15:04:05"), state, active, len(snap.Devices))
	}
}

// simCmd runs the simulated controller service
var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a simulated controller service",
	Long: `Run a simulated controller service for development.

The simulator serves the full controller HTTP API backed by an in-memory
rack: activation loads a gas table, setpoints clamp to full scale, measured
flow converges on the setpoint, and totalizers integrate. The console
connects to it like to a real service.`,
	Example: `  # Run on the default port
  flowdeck sim

  # Custom port and channel count, announced over mDNS
  flowdeck sim --listen-port 9400 --channels 8 --announce`,
	RunE: runSim,
}

func init() {
	simCmd.Flags().StringVar(&simHost, "listen-host", "127.0.0.1", "Address to listen on")
	simCmd.Flags().IntVar(&simPort, "listen-port", 9327, "Port to listen on")
	simCmd.Flags().IntVar(&simChannels, "channels", controller.DefaultMaxDevices, "Number of simulated channels")
	simCmd.Flags().StringSliceVar(&simPorts, "serial-ports", nil, "Serial port names the rack offers")
	simCmd.Flags().BoolVar(&simAnnounce, "announce", false, "Announce the service over mDNS")
	simCmd.Flags().StringVar(&simLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runSim(cmd *cobra.Command, args []string) error {
	server, err := sim.New(&sim.Config{
		Host:       simHost,
		Port:       simPort,
		MaxDevices: simChannels,
		Ports:      simPorts,
		LogLevel:   simLogLevel,
		Announce:   simAnnounce,
	})
	if err != nil {
		return err
	}
	return server.Start()
}

// setCmd groups the direct command subcommands
var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Send a single command to the controller",
	Long: `Send one command to the controller without the interactive console.

Channel numbers are 1-based, matching the grid labels.`,
}

func init() {
	setCmd.AddCommand(setConsigneCmd)
	setCmd.AddCommand(setVanneCmd)
	setCmd.AddCommand(setRampCmd)
	setCmd.AddCommand(setGasCmd)
	setCmd.AddCommand(setTagCmd)
	setCmd.AddCommand(setToggleCmd)
	setCmd.AddCommand(setResetTotalCmd)
	setCmd.AddCommand(setThemeCmd)
}

// parseChannel converts a 1-based channel argument to a 0-based index.
func parseChannel(arg string) (int, error) {
	ch, err := strconv.Atoi(arg)
	if err != nil || ch < 1 {
		return 0, fmt.Errorf("invalid channel %q (1-based channel number expected)", arg)
	}
	return ch - 1, nil
}

var setConsigneCmd = &cobra.Command{
	Use:     "consigne <channel> <value>",
	Short:   "Set a channel's setpoint",
	Example: `  flowdeck set consigne 3 42.5`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid setpoint %q: %w", args[1], err)
		}
		client, err := getClient()
		if err != nil {
			return err
		}
		snap, err := client.SetConsigne(idx, value)
		if err != nil {
			return err
		}
		fmt.Printf("✓ CH %02d consigne set to %s\n", idx+1, tui.FormatValue(snap.Devices[idx].Consigne))
		return nil
	},
}

var setVanneCmd = &cobra.Command{
	Use:   "vanne <channel> <mode>",
	Short: "Set a channel's valve mode",
	Long: fmt.Sprintf(`Set a channel's valve mode.

Valid modes: %v`, controller.ValveModes()),
	Example: `  flowdeck set vanne 3 Ouverture`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		mode := args[1]
		if !controller.IsValveMode(mode) {
			return fmt.Errorf("unknown valve mode %q (valid: %v)", mode, controller.ValveModes())
		}
		client, err := getClient()
		if err != nil {
			return err
		}
		if _, err := client.SetVanne(idx, mode); err != nil {
			return err
		}
		fmt.Printf("✓ CH %02d valve set to %s\n", idx+1, mode)
		return nil
	},
}

var setRampCmd = &cobra.Command{
	Use:     "ramp <channel> <seconds|off>",
	Short:   "Configure a channel's ramp",
	Example: "  flowdeck set ramp 3 10\n  flowdeck set ramp 3 off",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		client, err := getClient()
		if err != nil {
			return err
		}
		if args[1] == "off" {
			if _, err := client.SetRamp(idx, false, 1.0); err != nil {
				return err
			}
			fmt.Printf("✓ CH %02d ramp disabled\n", idx+1)
			return nil
		}
		seconds, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid ramp time %q: %w", args[1], err)
		}
		if _, err := client.SetRamp(idx, true, seconds); err != nil {
			return err
		}
		fmt.Printf("✓ CH %02d ramp set to %s s\n", idx+1, tui.FormatValue(seconds))
		return nil
	},
}

var setGasCmd = &cobra.Command{
	Use:     "gas <channel> <name>",
	Short:   "Select a channel's gas",
	Example: `  flowdeck set gas 3 N2`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		client, err := getClient()
		if err != nil {
			return err
		}
		if _, err := client.SelectGas(idx, args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ CH %02d gas set to %s\n", idx+1, args[1])
		return nil
	},
}

var setTagCmd = &cobra.Command{
	Use:     "tag <channel> <label>",
	Short:   "Relabel a channel",
	Long:    "Relabel a channel. Labels are cut or padded to 8 characters.",
	Example: `  flowdeck set tag 3 ARGON`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		client, err := getClient()
		if err != nil {
			return err
		}
		tag := controller.NormalizeTag(args[1])
		if err := client.SetTag(idx, tag); err != nil {
			return err
		}

		// Persist the tag so the console seeds it on the next session.
		cfg, err := settings.Load()
		if err != nil {
			return fmt.Errorf("tag set on controller, but settings load failed: %w", err)
		}
		cfg.SetTag(idx, tag)
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("tag set on controller, but settings save failed: %w", err)
		}

		fmt.Printf("✓ CH %02d tagged %s\n", idx+1, tag)
		return nil
	},
}

var setToggleCmd = &cobra.Command{
	Use:     "toggle <channel> <on|off>",
	Short:   "Switch a channel on or off",
	Example: `  flowdeck set toggle 3 on`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		var active bool
		switch args[1] {
		case "on":
			active = true
		case "off":
			active = false
		default:
			return fmt.Errorf("invalid state %q (use on/off)", args[1])
		}
		client, err := getClient()
		if err != nil {
			return err
		}
		if _, err := client.ToggleDevice(idx, active); err != nil {
			return err
		}
		fmt.Printf("✓ CH %02d switched %s\n", idx+1, args[1])
		return nil
	},
}

var setResetTotalCmd = &cobra.Command{
	Use:     "reset-total <channel>",
	Short:   "Zero a channel's totalizer",
	Example: `  flowdeck set reset-total 3`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := parseChannel(args[0])
		if err != nil {
			return err
		}
		client, err := getClient()
		if err != nil {
			return err
		}
		if _, err := client.ResetTotal(idx); err != nil {
			return err
		}
		fmt.Printf("✓ CH %02d totalizer reset\n", idx+1)
		return nil
	},
}

var setThemeCmd = &cobra.Command{
	Use:     "theme <light|dark>",
	Short:   "Set the persisted console theme",
	Example: `  flowdeck set theme dark`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		theme := args[0]
		if !settings.ValidTheme(theme) {
			return fmt.Errorf("unknown theme %q (use light/dark)", theme)
		}

		cfg, err := settings.Load()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		cfg.Theme = theme
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}

		// Best effort: push the theme to the controller too.
		if client, err := getClient(); err == nil {
			_ = client.SetTheme(theme)
		}

		fmt.Printf("✓ Theme set to %s\n", theme)
		return nil
	},
}

// getClient builds a client for the selected controller service.
func getClient() (*controller.Client, error) {
	host, err := getHost()
	if err != nil {
		return nil, err
	}
	return controller.NewClient(host, controllerPort), nil
}

// getHost resolves the controller host: the --controller flag if given,
// otherwise a quick mDNS discovery, otherwise localhost.
func getHost() (string, error) {
	if controllerHost != "" {
		return controllerHost, nil
	}

	controllers, err := discovery.Scan(2 * time.Second)
	if err != nil || len(controllers) == 0 {
		// No discovery available; assume a local service.
		return "127.0.0.1", nil
	}

	if len(controllers) > 1 {
		fmt.Printf("Found %d controller services:\n", len(controllers))
		for i, c := range controllers {
			fmt.Printf("%d. %s (%s:%d)\n", i+1, c.Name, c.IP, c.Port)
		}
		return "", fmt.Errorf("multiple controller services found. Use --controller to specify which one")
	}

	c := controllers[0]
	controllerPort = c.Port
	fmt.Printf("Found controller service: %s (%s:%d)\n\n", c.Name, c.IP, c.Port)
	return c.IP, nil
}
