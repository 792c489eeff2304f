package client

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dLoop/cmd/util"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/serializer"
	"github.com/ValentinKolb/dLoop/rpc/server"
	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

var (
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for dLoop services",
		Long:  `Measures round trips against a dLoop service. Without an endpoint an echo service is started in-process on a temporary endpoint.`,
		RunE:  runPerf,
	}
)

// latencyPercentiles are reported for the latency run
var latencyPercentiles = []float64{0.5, 0.9, 0.99, 0.999}

func init() {
	util.SetupClientFlags(PerfCmd, "")

	key := "messages"
	PerfCmd.Flags().Int(key, 10000, util.WrapString("How many round trips the latency run measures"))
	key = "payload-size"
	PerfCmd.Flags().Int(key, 64, util.WrapString("Size of the ping payload (in bytes)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func runPerf(cmd *cobra.Command, _ []string) error {
	config, s, err := setupClient(cmd)
	if err != nil {
		return err
	}

	payloadSize := viper.GetInt("payload-size")
	if payloadSize < 0 || payloadSize > serializer.MaxMessageSize-64 {
		return fmt.Errorf("payload size must be between 0 and %d bytes", serializer.MaxMessageSize-64)
	}
	messages := viper.GetInt("messages")

	// Start an in-process service if no endpoint is given
	if config.Endpoint == "" {
		endpoint, stop, err := startLocalService(s, config.SocketType)
		if err != nil {
			return err
		}
		defer stop()
		config.Endpoint = endpoint
	}

	c, err := connect(config, s)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Println("Performance testing tool for dLoop services")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Serializer: %s\n", viper.GetString("serializer"))
	fmt.Printf("Payload:    %d bytes\n", payloadSize)
	fmt.Println()

	fmt.Println("starting tests...")

	payload := make([]byte, payloadSize)
	results := make(map[string]testing.BenchmarkResult)

	results["ping"] = testing.Benchmark(func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := c.Call(common.NewPingMessage(0, payload)); err != nil {
				b.Fatalf("(ping) - %v", err)
			}
		}
	})
	printResult("ping", results["ping"])

	results["text"] = testing.Benchmark(func(b *testing.B) {
		text := string(payload)
		for i := 0; i < b.N; i++ {
			if _, err := c.Call(common.NewTextMessage(0, text)); err != nil {
				b.Fatalf("(text) - %v", err)
			}
		}
	})
	printResult("text", results["text"])

	// Latency distribution
	timer := gometrics.NewTimer()
	for i := 0; i < messages; i++ {
		var callErr error
		timer.Time(func() {
			_, callErr = c.Call(common.NewPingMessage(0, payload))
		})
		if callErr != nil {
			return fmt.Errorf("latency run failed after %d round trips: %w", i, callErr)
		}
	}
	printLatency(timer)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, timer, config, payloadSize); err != nil {
			return err
		}
	}

	return nil
}

// startLocalService runs an echo service on a temporary endpoint. The returned
// function stops it.
func startLocalService(s serializer.IRPCSerializer, socketType common.SocketType) (string, func(), error) {
	config := common.ServerConfig{
		Endpoint:   filepath.Join(os.TempDir(), "dloop-perf-"+uuid.NewString()[:8]+".sock"),
		SocketType: socketType,
		Backlog:    1,
		Echo:       true,
		LogLevel:   viper.GetString("log-level"),
	}

	service, err := server.NewService(config, s, server.NewEchoHandler())
	if err != nil {
		return "", nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		service.Serve()
	}()

	stop := func() {
		service.Stop()
		<-done
		if err := service.Close(); err != nil {
			Logger.Warningf("failed to close local service: %v", err)
		}
	}
	return config.Endpoint, stop, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// printLatency prints the latency distribution of the timed round trips
func printLatency(timer gometrics.Timer) {
	fmt.Printf("\nlatency (%d round trips)\n", timer.Count())
	fmt.Printf("  %-8s%s\n", "min", time.Duration(timer.Min()))
	fmt.Printf("  %-8s%s\n", "mean", time.Duration(timer.Mean()))
	for i, p := range timer.Percentiles(latencyPercentiles) {
		fmt.Printf("  %-8s%s\n", "p"+strconv.FormatFloat(latencyPercentiles[i]*100, 'f', -1, 64), time.Duration(p))
	}
	fmt.Printf("  %-8s%s\n", "max", time.Duration(timer.Max()))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, timer gometrics.Timer, config *common.ClientConfig, payloadSize int) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "SocketType", "Serializer", "PayloadBytes",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	row := func(test string, nsPerOp float64, skipped bool) []string {
		opsPerSec := 0.0
		if nsPerOp > 0 {
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		return []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.FormatBool(skipped),
			config.Endpoint,
			string(config.SocketType),
			viper.GetString("serializer"),
			strconv.Itoa(payloadSize),
		}
	}

	// Write test results
	for test, result := range results {
		nsPerOp := 0.0
		if result.NsPerOp() != 0 {
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
		}
		if err := writer.Write(row(test, nsPerOp, result.NsPerOp() == 0)); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	// Write latency percentiles
	for i, p := range timer.Percentiles(latencyPercentiles) {
		test := "latency-p" + strconv.FormatFloat(latencyPercentiles[i]*100, 'f', -1, 64)
		if err := writer.Write(row(test, p, timer.Count() == 0)); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
