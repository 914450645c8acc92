package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NicolasHaas/gochat/pkg/client"
	"github.com/NicolasHaas/gochat/pkg/logging"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

const usage = `commands:
  add <user> [message]          send a friend request
  accept <request-id>           accept a friend request
  reject <request-id>           reject a friend request
  group <group-id> <name> [description]
  ping
  quit`

func main() {
	settingsFile := flag.String("settings", client.SettingsPath(), "Settings file")
	server := flag.String("server", "", "Server control address (default from settings)")
	user := flag.String("user", "", "User id (default from settings)")
	password := flag.String("password", "", "Password (or GOCHAT_PASSWORD)")
	useTLS := flag.Bool("tls", false, "Connect with TLS")
	flag.Parse()

	// Default to "warn"; override with GOCHAT_LOG_LEVEL env var (debug, info, warn, error).
	level := "warn"
	if v := os.Getenv("GOCHAT_LOG_LEVEL"); v != "" {
		level = v
	}
	_ = logging.Setup(logging.Options{Level: level, Output: os.Stderr})

	settings := client.LoadSettings(*settingsFile)
	if *server != "" {
		settings.Server = *server
	}
	if *user != "" {
		settings.UserID = *user
	}
	if *useTLS {
		settings.TLS = true
	}
	if *password == "" {
		*password = os.Getenv("GOCHAT_PASSWORD")
	}
	if settings.UserID == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "need -user and -password")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	cc, err := client.Dial(ctx, settings.Server, client.Options{TLS: settings.TLS})
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = cc.Close() }()

	cc.SetEventHandler(printEvent)
	resp, err := cc.Login(settings.UserID, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("logged in as %s (%s)\n", resp.UserID, resp.Username)
	if err := settings.Save(*settingsFile); err != nil {
		slog.Warn("settings not saved", "err", err)
	}

	cc.StartReceiving()
	fmt.Println(usage)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-cc.Done():
			fmt.Println("disconnected")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := runCommand(cc, settings.UserID, line)
			if err != nil {
				fmt.Println("error:", err)
			}
			if quit {
				return
			}
		}
	}
}

func runCommand(cc *client.ControlClient, self, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "add":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: add <user> [message]")
		}
		return false, cc.RequestFriend(self, fields[1], strings.Join(fields[2:], " "))
	case "accept", "reject":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: %s <request-id>", fields[0])
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("bad request id %q", fields[1])
		}
		return false, cc.AnswerFriend(id, fields[0] == "accept")
	case "group":
		if len(fields) < 3 {
			return false, fmt.Errorf("usage: group <group-id> <name> [description]")
		}
		return false, cc.UpdateGroup(self, fields[1], fields[2], strings.Join(fields[3:], " "))
	case "ping":
		return false, cc.Send(&pb.ControlMessage{Ping: &pb.Ping{Timestamp: time.Now().UnixMilli()}})
	case "quit", "exit":
		_ = cc.Send(&pb.ControlMessage{LogoutRequest: &pb.LogoutRequest{}})
		return true, nil
	default:
		fmt.Println(usage)
		return false, nil
	}
}

// printEvent prints one server message as "<type> <json>".
func printEvent(msg *pb.ControlMessage) {
	if msg.Pong != nil {
		fmt.Printf("pong %dms\n", time.Now().UnixMilli()-msg.Pong.Timestamp)
		return
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(msg)
	if err != nil {
		fmt.Println(msg.Type())
		return
	}
	fmt.Printf("%s %s\n", msg.Type(), data)
}
