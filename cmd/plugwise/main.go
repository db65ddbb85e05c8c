// Command plugwise is a CLI front-end over the protocol core: it opens a
// serial (or simulated) transport, connects a Stick, and runs one
// subcommand against it before exiting.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plugwise/stick/pkg/codec"
	"github.com/plugwise/stick/pkg/config"
	dev "github.com/plugwise/stick/pkg/device"
	"github.com/plugwise/stick/pkg/engine"
	"github.com/plugwise/stick/pkg/simulator"
	"github.com/plugwise/stick/pkg/telemetry"
	"github.com/plugwise/stick/pkg/transport"
)

var (
	serialDevice = flag.String("serial", "", "serial device path, overrides the config file")
	baudRate     = flag.Int("baud", 115200, "serial baud rate")
	configPath   = flag.String("config", defaultConfigPath(), "path to the alias/config file")
	useSimulator = flag.Bool("simulate", false, "talk to an in-memory simulator instead of a real stick")
	snoopMode    = flag.String("snoop", "off", "protocol trace level: off, decoded, raw, all")
	retries      = flag.Int("retries", 0, "resend-on-timeout count, 0 keeps the engine default")
	readTimeout  = flag.Duration("read-timeout", 0, "per-attempt read deadline, 0 keeps the engine default (1s)")
	verbose      = flag.Bool("verbose", false, "enable debug-level logging")
	quiet        = flag.Bool("quiet", false, "only log warnings and errors")

	redisAddr = flag.String("redis-addr", "", "optional Redis address for live telemetry publishing")
	redisPass = flag.String("redis-pass", "", "Redis password")
	redisDB   = flag.Int("redis-db", 0, "Redis database number")

	timeOverride = flag.String("time", "", "RFC3339 timestamp for clock-set, defaults to now")
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "plugwise.cbor"
	}
	return filepath.Join(dir, "plugwise", "config.cbor")
}

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case *verbose:
		log.SetLevel(logrus.DebugLevel)
	case *quiet:
		log.SetLevel(logrus.WarnLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		log.Fatalf("usage: %s [flags] <subcommand> [args]", os.Args[0])
	}
	subcommand, rest := args[0], args[1:]

	if subcommand == "list-ports" {
		runListPorts(log)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", *configPath, err)
	}

	devicePath := *serialDevice
	if devicePath == "" {
		devicePath = cfg.SerialDevice
	}
	if devicePath == "" && !*useSimulator {
		log.Fatalf("no serial device given: pass -serial or set serial_device in %s", *configPath)
	}

	if err := run(log, cfg, devicePath, subcommand, rest); err != nil {
		log.Fatalf("%v", err)
	}
}

func runListPorts(log *logrus.Logger) {
	ports, err := transport.ListPorts()
	if err != nil {
		log.Fatalf("failed to list serial ports: %v", err)
	}
	for _, p := range ports {
		fmt.Println(p)
	}
}

func run(log *logrus.Logger, cfg config.Config, devicePath, subcommand string, args []string) error {
	port, err := openPort(devicePath)
	if err != nil {
		return fmt.Errorf("failed to open transport: %w", err)
	}
	defer port.Close()

	stick, err := dev.Connect(port)
	if err != nil {
		return fmt.Errorf("failed to connect to stick: %w", err)
	}
	log.Infof("connected to stick, network id %016X, short id %04X", stick.NetworkID(), stick.ShortID())

	if snoop, ok := newSnoop(*snoopMode, log); ok {
		stick.SetSnoop(snoop)
	}
	if *retries > 0 {
		stick.SetRetries(*retries)
	}
	if *readTimeout > 0 {
		stick.SetReadTimeout(*readTimeout)
	}

	if *redisAddr != "" {
		pub, err := telemetry.New(*redisAddr, *redisPass, *redisDB, nil)
		if err != nil {
			log.Warnf("telemetry publisher unavailable, continuing without it: %v", err)
		} else {
			defer pub.Close()
			stick.SetObserver(pub)
			log.Infof("publishing live telemetry to %s", *redisAddr)
		}
	}

	switch subcommand {
	case "init-stick":
		fmt.Printf("online=%v network=%016X short=%04X\n", true, stick.NetworkID(), stick.ShortID())
		return nil
	case "switch":
		return runSwitch(stick, cfg, args)
	case "info":
		return runInfo(stick, cfg, args)
	case "calibrate":
		return runCalibrate(stick, cfg, args)
	case "power":
		return runPower(stick, cfg, args)
	case "power-buffer":
		return runPowerBuffer(stick, cfg, args)
	case "clock-get":
		return runClockGet(stick, cfg, args)
	case "clock-set":
		return runClockSet(stick, cfg, args)
	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

func openPort(devicePath string) (transport.Port, error) {
	if *useSimulator {
		return simulator.New(), nil
	}
	return transport.OpenSerial(devicePath, *baudRate)
}

// newStdLogAdapter routes the engine's Snoop output (which speaks the
// standard library's *log.Logger, so pkg/engine doesn't have to depend on
// logrus) through the CLI's logrus writer, so trace lines share the same
// formatting and destination as every other log line.
func newStdLogAdapter(l *logrus.Logger) *log.Logger {
	return log.New(l.WriterLevel(logrus.DebugLevel), "", 0)
}

func newSnoop(mode string, l *logrus.Logger) (engine.Snoop, bool) {
	stdlog := newStdLogAdapter(l)
	switch mode {
	case "decoded":
		return engine.NewDecodedSnoop(stdlog), true
	case "raw":
		return engine.NewRawSnoop(stdlog), true
	case "all":
		return engine.NewAllSnoop(stdlog), true
	default:
		return nil, false
	}
}

func resolveSocket(cfg config.Config, args []string) (codec.SocketId, []string, error) {
	if len(args) == 0 {
		return 0, nil, fmt.Errorf("missing circle name or socket id argument")
	}
	id, err := cfg.Resolve(args[0])
	if err != nil {
		return 0, nil, err
	}
	return id, args[1:], nil
}

func runSwitch(stick *dev.Stick, cfg config.Config, args []string) error {
	socket, rest, err := resolveSocket(cfg, args)
	if err != nil {
		return err
	}
	if len(rest) == 0 || (rest[0] != "on" && rest[0] != "off") {
		return fmt.Errorf("usage: switch <circle> <on|off>")
	}
	circle, err := stick.Circle(socket)
	if err != nil {
		return err
	}
	if rest[0] == "on" {
		return circle.SwitchOn()
	}
	return circle.SwitchOff()
}

func runInfo(stick *dev.Stick, cfg config.Config, args []string) error {
	socket, _, err := resolveSocket(cfg, args)
	if err != nil {
		return err
	}
	circle, err := stick.Circle(socket)
	if err != nil {
		return err
	}
	on, err := circle.IsSwitchedOn()
	if err != nil {
		return err
	}
	clk, err := circle.Clock()
	if err != nil {
		return err
	}
	fmt.Printf("relay=%v clock=%s\n", on, clk.Format(time.RFC3339))
	return nil
}

func runCalibrate(stick *dev.Stick, cfg config.Config, args []string) error {
	socket, _, err := resolveSocket(cfg, args)
	if err != nil {
		return err
	}
	circle, err := stick.Circle(socket)
	if err != nil {
		return err
	}
	if err := circle.RefreshCalibration(); err != nil {
		return err
	}
	fmt.Printf("calibration refreshed for %s\n", socket)
	return nil
}

func runPower(stick *dev.Stick, cfg config.Config, args []string) error {
	socket, _, err := resolveSocket(cfg, args)
	if err != nil {
		return err
	}
	circle, err := stick.Circle(socket)
	if err != nil {
		return err
	}
	watts, err := circle.ActualWatts()
	if err != nil {
		return err
	}
	fmt.Printf("%.3f W\n", watts)
	return nil
}

func runPowerBuffer(stick *dev.Stick, cfg config.Config, args []string) error {
	socket, rest, err := resolveSocket(cfg, args)
	if err != nil {
		return err
	}
	circle, err := stick.Circle(socket)
	if err != nil {
		return err
	}

	var maxEntries *int
	if len(rest) > 0 {
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("invalid max-entries %q: %w", rest[0], err)
		}
		maxEntries = &n
	}

	samples, err := circle.PowerBuffer(maxEntries)
	if err != nil {
		return err
	}

	timestamps := make([]time.Time, 0, len(samples))
	for ts := range samples {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
	for _, ts := range timestamps {
		fmt.Printf("%s %.6f kWh\n", ts.Format(time.RFC3339), samples[ts])
	}
	return nil
}

func runClockGet(stick *dev.Stick, cfg config.Config, args []string) error {
	socket, _, err := resolveSocket(cfg, args)
	if err != nil {
		return err
	}
	circle, err := stick.Circle(socket)
	if err != nil {
		return err
	}
	clk, err := circle.Clock()
	if err != nil {
		return err
	}
	fmt.Println(clk.Format(time.RFC3339))
	return nil
}

func runClockSet(stick *dev.Stick, cfg config.Config, args []string) error {
	socket, _, err := resolveSocket(cfg, args)
	if err != nil {
		return err
	}
	circle, err := stick.Circle(socket)
	if err != nil {
		return err
	}

	t := time.Now().UTC()
	if *timeOverride != "" {
		parsed, err := time.Parse(time.RFC3339, *timeOverride)
		if err != nil {
			return fmt.Errorf("invalid -time %q: %w", *timeOverride, err)
		}
		t = parsed.UTC()
	}
	return circle.SetClock(t)
}

