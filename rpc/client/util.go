package client

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/rpc/channel"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"math/rand"
	"time"
)

var (
	Logger = logger.GetLogger("rpc")
)

// DefaultTimeout bounds a call if the configuration sets no timeout
const DefaultTimeout = 5 * time.Second

// connectWithRetry connects c, retrying up to retries times with exponential
// backoff. It always tries at least once.
func connectWithRetry(c *channel.Channel, retries int) error {
	// We always try at least once
	attempts := retries + 1

	// Initial backoff duration in milliseconds
	backoffMs := 50

	for i := 0; i < attempts; i++ {
		if c.TryConnect() {
			return nil
		}

		Logger.Debugf("Connect attempt %d/%d to %s failed", i+1, attempts, c.Name())

		if i < attempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return fmt.Errorf("failed to connect to %s after %d attempts", c.Name(), attempts)
}

// checkResponse converts error responses into errors and verifies the reply type
func checkResponse(req *common.Message, resp *common.Message) error {
	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return fmt.Errorf("%s #%d failed: %s", req.MsgType, req.Seq, resp.Err)
	}

	// Check if the type of the response is the expected type
	expected := common.MsgTSuccess
	if req.MsgType == common.MsgTPing {
		expected = common.MsgTPong
	}
	if resp.MsgType != expected {
		return fmt.Errorf("unexpected reply type %s to %s, expected %s", resp.MsgType, req.MsgType, expected)
	}

	return nil
}
