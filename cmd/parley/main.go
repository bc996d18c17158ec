// Command parley is a terminal client for a Parley server: it joins a room
// over the signaling connection, prints room events and relays stdin lines
// as chat messages.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parleyhq/parley/client"
	"github.com/parleyhq/parley/internal/protocol"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Terminal client for a Parley signaling server",
}

var joinCmd = &cobra.Command{
	Use:   "join <room-code>",
	Short: "Join a room and chat from the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().String("server", "ws://localhost:8080/api/ws", "signaling endpoint")
	rootCmd.PersistentFlags().String("token", "", "identity token")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	viper.SetEnvPrefix("parley")
	viper.AutomaticEnv()
	rootCmd.AddCommand(joinCmd)
}

func runJoin(ctx context.Context, room string) error {
	c := client.New(viper.GetString("server"), viper.GetString("token"))

	c.On(protocol.KindRoomJoined, func(data json.RawMessage) {
		var ev protocol.RoomJoinedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		fmt.Printf("* joined %s (%d participants)\n", ev.RoomID, len(ev.Participants))
	})
	c.On(protocol.KindUserJoined, func(data json.RawMessage) {
		var ev protocol.UserJoinedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		fmt.Printf("* %s joined\n", ev.Username)
	})
	c.On(protocol.KindUserLeft, func(data json.RawMessage) {
		var ev protocol.UserLeftEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		fmt.Printf("* %s left\n", ev.Username)
	})
	c.On(protocol.KindChatMessage, func(data json.RawMessage) {
		var ev protocol.ChatMessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		fmt.Printf("[%s] %s: %s\n", ev.TimeAgo, ev.Author.Username, ev.Content)
	})
	c.On(protocol.KindUserTyping, func(data json.RawMessage) {
		var ev protocol.UserTypingEvent
		if err := json.Unmarshal(data, &ev); err != nil || !ev.IsTyping {
			return
		}
		fmt.Printf("* %s is typing...\n", ev.Username)
	})
	c.On(protocol.KindError, func(data json.RawMessage) {
		var ev protocol.ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		fmt.Fprintf(os.Stderr, "! %s: %s\n", ev.Code, ev.Message)
	})

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	if err := c.JoinRoom(room); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := c.SendChat(room, line); err != nil {
				fmt.Fprintf(os.Stderr, "! send failed: %v\n", err)
			}
		}
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
