package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ghalamif/VoltLog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:], os.Stdout)
	case "stats":
		err = statsCommand(os.Args[2:])
	case "snapshot":
		err = snapshotCommand(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("voltlog %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := voltlog.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := voltlog.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "config %s looks good: %d channels, interval %s, csv %s\n",
		*cfgPath, len(cfg.Channels()), cfg.Sampler.Interval, cfg.Outputs.CSVPath)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsTargets = []string{
	"voltlog_polls_total",
	"voltlog_poll_failures_total",
	"voltlog_retries_total",
	"voltlog_readings_persisted_total",
	"voltlog_queue_length",
	"voltlog_degraded",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scanMetrics(resp.Body, statsTargets)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] polls=%.0f failures=%.0f retries=%.0f persisted=%.0f queue=%.0f degraded=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["voltlog_polls_total"],
		values["voltlog_poll_failures_total"],
		values["voltlog_retries_total"],
		values["voltlog_readings_persisted_total"],
		values["voltlog_queue_length"],
		values["voltlog_degraded"],
	)
	return nil
}

// scanMetrics sums every sample of the named metrics in Prometheus text
// format, across all label sets.
func scanMetrics(r io.Reader, names []string) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, name := range names {
			rest, ok := strings.CutPrefix(line, name)
			if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '{') {
				continue
			}
			if i := strings.LastIndexByte(rest, '}'); i >= 0 {
				rest = rest[i+1:]
			}
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				continue
			}
			if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
				out[name] += v
			}
		}
	}
	return out, scanner.Err()
}

func snapshotCommand(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	base := fs.String("url", "http://localhost:9100", "Query API base URL")
	channel := fs.Int("channel", 0, "Channel id")
	limit := fs.Int("limit", 10, "Number of most recent readings to print")
	if err := fs.Parse(args); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/channels/%d/readings?limit=%d", strings.TrimRight(*base, "/"), *channel, *limit)
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var readings []voltlog.Reading
	if err := json.NewDecoder(resp.Body).Decode(&readings); err != nil {
		return fmt.Errorf("decode readings: %w", err)
	}
	for _, r := range readings {
		value := ""
		if r.Status != voltlog.StatusError {
			value = strconv.FormatFloat(r.Value, 'f', -1, 64)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Timestamp.Format(time.RFC3339Nano), r.ChannelID, value, r.Status)
	}
	return nil
}

func printUsage() {
	fmt.Printf(`VoltLog CLI

Usage:
  voltlog <command> [flags]

Commands:
  run        Poll the device and persist readings using the provided config
  validate   Load and validate a config file without starting the runtime
  stats      Poll the Prometheus metrics endpoint and print live counters
  snapshot   Print the most recent buffered readings of one channel

Examples:
  voltlog run -config ./data/config.yaml
  voltlog validate -config ./data/config.yaml
  voltlog stats -url http://localhost:9100/metrics -interval 1s
  voltlog snapshot -url http://localhost:9100 -channel 0 -limit 5
`)
}
