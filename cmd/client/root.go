package client

import (
	"github.com/ValentinKolb/dLoop/cmd/util"
	rpcClient "github.com/ValentinKolb/dLoop/rpc/client"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/ValentinKolb/dLoop/rpc/serializer"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var Logger = logger.GetLogger("cli")

// setupClient binds the flags of cmd and reads the client configuration
func setupClient(cmd *cobra.Command) (*common.ClientConfig, serializer.IRPCSerializer, error) {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return nil, nil, err
	}
	if err := util.InitLogging(); err != nil {
		return nil, nil, err
	}

	// Get client configuration components
	config, err := util.GetClientConfig()
	if err != nil {
		return nil, nil, err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return nil, nil, err
	}

	return config, s, nil
}

// connect creates a client for config
func connect(config *common.ClientConfig, s serializer.IRPCSerializer) (*rpcClient.Client, error) {
	Logger.Debugf("connecting with configuration:%s", config.String())
	return rpcClient.NewClient(*config, s)
}
