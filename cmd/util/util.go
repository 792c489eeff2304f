package util

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/serializer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// DefaultEndpoint is the endpoint serve listens on and clients connect to by default
	DefaultEndpoint = "/tmp/dloop.sock"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the connection flags to a client command
func SetupClientFlags(cmd *cobra.Command, defaultEndpoint string) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, defaultEndpoint, WrapString("The endpoint of the dLoop service (a filesystem path of at most 96 bytes)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 5, WrapString("How long to wait for a reply (in seconds)"))

	key = "connect-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry connecting to the service"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dloop")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// InitLogging configures all package loggers with the configured level
func InitLogging() error {
	level := viper.GetString("log-level")
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		common.InitLoggers(level)
		return nil
	default:
		return fmt.Errorf("invalid log level %s (expected one of: debug, info, warn, error)", level)
	}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	socketType, err := GetSocketType()
	if err != nil {
		return nil, err
	}

	return &common.ClientConfig{
		Endpoint:       viper.GetString("endpoint"),
		SocketType:     socketType,
		ConnectRetries: viper.GetInt("connect-retries"),
		TimeoutSecond:  viper.GetInt("timeout"),
		LogLevel:       viper.GetString("log-level"),
	}, nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	name := viper.GetString("serializer")
	s, ok := serializer.FromName(name)
	if !ok {
		return nil, fmt.Errorf("invalid serializer %s (expected one of: binary, json, gob, cbor, optionally with a +lz4 suffix)", name)
	}
	return s, nil
}

// GetSocketType parses the configured socket type
func GetSocketType() (common.SocketType, error) {
	return common.ParseSocketType(viper.GetString("socket-type"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
