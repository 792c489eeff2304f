package serve

import (
	"errors"
	cmdUtil "github.com/ValentinKolb/dLoop/cmd/util"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/server"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

var (
	Logger = logger.GetLogger("cli")

	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a dLoop service",
		Long:    `Start a dLoop service that answers the messages of every client connected to the endpoint. The configuration can be set via command line flags or environment variables. The format of the environment variables is DLOOP_<flag> (e.g. DLOOP_METRICS_ENDPOINT=:9090)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, cmdUtil.DefaultEndpoint, cmdUtil.WrapString("The filesystem path the service listens on (at most 96 bytes). A stale file at this path is replaced"))

	key = "backlog"
	ServeCmd.PersistentFlags().Int(key, 8, cmdUtil.WrapString("Backlog is the number of pending connections the kernel queues"))

	key = "echo"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Echo the body of every message back to its sender. If disabled, messages are logged and acknowledged"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The http address Prometheus metrics are served on (e.g. :9090). Disabled if empty"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	socketType, err := cmdUtil.GetSocketType()
	if err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.SocketType = socketType
	serveCmdConfig.Backlog = viper.GetInt("backlog")
	serveCmdConfig.Echo = viper.GetBool("echo")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Endpoint == "" {
		return errors.New("endpoint must not be empty")
	}

	return cmdUtil.InitLogging()
}

// run starts the service and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	handler := server.NewAckHandler()
	if serveCmdConfig.Echo {
		handler = server.NewEchoHandler()
	}

	service, err := server.NewService(*serveCmdConfig, s, handler)
	if err != nil {
		return err
	}

	// Start the metrics server
	if serveCmdConfig.MetricsEndpoint != "" {
		go serveMetrics(serveCmdConfig.MetricsEndpoint)
	}

	// Stop the service on SIGINT / SIGTERM
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		Logger.Infof("received %s, shutting down", sig)
		service.Stop()
	}()

	service.Serve()
	signal.Stop(signals)

	return service.Close()
}

// serveMetrics exposes all registered metrics in the Prometheus text format
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	Logger.Infof("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		Logger.Errorf("metrics server stopped: %v", err)
	}
}
