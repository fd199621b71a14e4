package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loqui-chat/loqui-go"
)

var sendCmd = &cobra.Command{
	Use:   "send <peer-id> <message>",
	Short: "Send a message to a peer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		peerID := args[0]
		content := strings.Join(args[1:], " ")

		client, err := buildClient(ctx)
		if err != nil {
			return err
		}
		storage, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer storage.Close()

		userID, err := resolveUserID(ctx, client)
		if err != nil {
			return err
		}

		sync := loqui.NewSynchronizer(client, loqui.NewConversationCache(storage), nil)
		if err := sync.Activate(ctx, peerID, userID); err != nil {
			return err
		}
		defer sync.Deactivate()

		msg, err := sync.Send(ctx, content)
		if err != nil {
			return err
		}
		fmt.Printf("Sent %s at %s\n", msg.ID, msg.CreatedAt.Local().Format(time.RFC3339))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <peer-id>",
	Short: "Show the conversation with a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		peerID := args[0]

		client, err := buildClient(ctx)
		if err != nil {
			return err
		}
		storage, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer storage.Close()

		userID, err := resolveUserID(ctx, client)
		if err != nil {
			return err
		}

		sync := loqui.NewSynchronizer(client, loqui.NewConversationCache(storage), nil)
		if err := sync.Activate(ctx, peerID, userID); err != nil {
			return err
		}
		defer sync.Deactivate()

		msgs := sync.Messages()
		if len(msgs) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		for _, m := range msgs {
			printMessage(m, userID)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <peer-id>",
	Short: "Watch a conversation live",
	Long:  "Print the conversation with a peer and keep printing new messages\nas they arrive. Press Ctrl-C to stop.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		peerID := args[0]

		client, err := buildClient(ctx)
		if err != nil {
			return err
		}
		storage, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer storage.Close()

		userID, err := resolveUserID(ctx, client)
		if err != nil {
			return err
		}

		sync := loqui.NewSynchronizer(client, loqui.NewConversationCache(storage), client.OpenStream)

		printed := make(map[string]bool)
		sync.OnUpdate(func(msgs []loqui.Message) {
			for _, m := range msgs {
				if printed[m.ID] {
					continue
				}
				printed[m.ID] = true
				printMessage(m, userID)
			}
		})

		if err := sync.Activate(ctx, peerID, userID); err != nil {
			return err
		}
		defer sync.Deactivate()

		<-ctx.Done()
		return nil
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List your contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := buildClient(ctx)
		if err != nil {
			return err
		}

		contacts, err := client.FetchContacts(ctx)
		if err != nil {
			return err
		}
		if len(contacts) == 0 {
			fmt.Println("No contacts.")
			return nil
		}
		for _, c := range contacts {
			line := fmt.Sprintf("%-24s %s", c.ID, c.DisplayName)
			if c.Status != "" {
				line += "  [" + c.Status + "]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func printMessage(m loqui.Message, currentUserID string) {
	who := m.SenderID
	if m.SenderID == currentUserID {
		who = "me"
	}
	stamp := m.CreatedAt.Local().Format("2006-01-02 15:04")
	suffix := ""
	if m.Status == loqui.StatusPending {
		suffix = " (sending...)"
	} else if m.Status == loqui.StatusError {
		suffix = " (failed)"
	}
	fmt.Printf("[%s] %s: %s%s\n", stamp, who, m.Content, suffix)
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(contactsCmd)
}
