package client

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/cmd/util"
	"github.com/ValentinKolb/dLoop/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

var (
	SendCmd = &cobra.Command{
		Use:   "send [message]",
		Short: "Send text messages to a dLoop service",
		Long:  `Send one or more text messages to a dLoop service and print the replies. A file can be attached to every message, its open handle is passed to the service.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSend,
	}
)

func init() {
	util.SetupClientFlags(SendCmd, util.DefaultEndpoint)

	key := "count"
	SendCmd.Flags().Int(key, 1, util.WrapString("How many times the message is sent"))
	key = "message"
	SendCmd.Flags().String(key, "hello", util.WrapString("The text to send (overridden by the argument)"))
	key = "attach"
	SendCmd.Flags().String(key, "", util.WrapString("Path of a file whose handle is attached to every message"))
	key = "wait-reply"
	SendCmd.Flags().Bool(key, true, util.WrapString("Wait for and print the reply to every message"))
}

func runSend(cmd *cobra.Command, args []string) error {
	config, s, err := setupClient(cmd)
	if err != nil {
		return err
	}

	text := viper.GetString("message")
	if len(args) == 1 {
		text = args[0]
	}

	var attachments []common.Attachment
	if path := viper.GetString("attach"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open attachment: %w", err)
		}
		defer f.Close()
		attachments = append(attachments, common.NewFileAttachment(f))
	}

	c, err := connect(config, s)
	if err != nil {
		return err
	}
	defer c.Close()

	count := viper.GetInt("count")
	waitReply := viper.GetBool("wait-reply")

	for i := 0; i < count; i++ {
		msg := common.NewTextMessage(0, text)

		if !waitReply {
			if err := c.Send(msg, attachments...); err != nil {
				return err
			}
			continue
		}

		resp, err := c.Call(msg, attachments...)
		if err != nil {
			return err
		}
		printReply(resp)
	}

	if !waitReply {
		fmt.Printf("sent %d message(s)\n", count)
	}
	return nil
}

// printReply prints one reply on a single line
func printReply(resp *common.Message) {
	fmt.Printf("#%d %s", resp.Seq, resp.MsgType)
	if len(resp.Body) > 0 {
		fmt.Printf(" %q", resp.Body)
	}
	if len(resp.Meta) > 0 {
		fmt.Printf(" (%s)", resp.Meta)
	}
	fmt.Println()
}
