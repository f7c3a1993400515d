// aidesk CLI - command line client for the AI-manager dashboard
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/clients/go/aidesk"
	"github.com/eldtechnologies/aidesk/internal/config"
	"github.com/eldtechnologies/aidesk/internal/models"
	"github.com/eldtechnologies/aidesk/internal/notify"
	"github.com/eldtechnologies/aidesk/internal/token"
	"github.com/eldtechnologies/aidesk/internal/transport"
)

// cleanup releases the token store. Every exit path runs it.
var cleanup = func() {}

func main() {
	if len(os.Args) < 2 {
		usage()
		exit(1)
	}

	cfg := config.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(zerolog.WarnLevel).
		With().
		Timestamp().
		Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, release, err := openStore(ctx, cfg)
	exitOnError(err)
	cleanup = release
	defer cleanup()

	notifier := notify.Log{Logger: logger}
	client := aidesk.NewClient(transport.New(cfg.APIURL, store, notifier, logger), notifier, logger)
	cmd := os.Args[1]

	switch cmd {
	case "login":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: aidesk login <email> <password>")
			exit(1)
		}
		tok, err := token.Login(ctx, &http.Client{Timeout: 30 * time.Second}, cfg.AuthURL, os.Args[2], os.Args[3])
		exitOnError(err)
		exitOnError(store.Write(ctx, tok))
		fmt.Println("Logged in.")
		printExpiry(tok)

	case "token":
		if len(os.Args) > 2 {
			cleaned, tok, found, err := token.ExtractAndPersist(ctx, store, os.Args[2])
			exitOnError(err)
			if !found {
				fmt.Fprintln(os.Stderr, "No token in address; keeping the stored one.")
				exit(1)
			}
			fmt.Printf("Stored token from address. Clean address: %s\n", cleaned)
			printExpiry(tok)
			return
		}
		tok, ok, err := store.Read(ctx)
		exitOnError(err)
		if !ok {
			fmt.Println("Not logged in.")
			return
		}
		fmt.Println("Logged in.")
		printExpiry(tok)

	case "logout":
		exitOnError(store.Clear(ctx))
		fmt.Println("Token cleared.")

	case "chats":
		chats, ok := client.ListChats(ctx)
		exitUnless(ok)
		for _, ch := range chats {
			flags := ""
			if ch.Waiting {
				flags += "*"
			}
			if ch.AI {
				flags += "ai"
			}
			fmt.Printf("  %5d %-3s %-10s %-20s %s\n", ch.ID, flags, ch.Messager, ch.Name, ch.LastMessage)
		}

	case "read":
		chatID := chatArg("read <chat_id>")
		msgs, ok := client.ListMessages(ctx, chatID)
		exitUnless(ok)
		for _, m := range msgs {
			from := "user"
			if m.MessageType == models.Answer {
				from = "operator"
				if m.AI {
					from = "ai"
				}
			}
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt, from, m.Message)
		}

	case "post":
		chatID := chatArg("post <chat_id> <message>")
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: aidesk post <chat_id> <message>")
			exit(1)
		}
		msg, err := client.SendMessage(ctx, chatID, os.Args[3], false)
		exitOnError(err)
		fmt.Printf("Posted: %d\n", msg.ID)

	case "mark-read":
		chatID := chatArg("mark-read <chat_id>")
		exitOnError(client.MarkAsRead(ctx, chatID))

	case "ai":
		chatID := chatArg("ai <chat_id> on|off")
		if len(os.Args) < 4 || (os.Args[3] != "on" && os.Args[3] != "off") {
			fmt.Fprintln(os.Stderr, "Usage: aidesk ai <chat_id> on|off")
			exit(1)
		}
		chat, err := client.SetAI(ctx, chatID, os.Args[3] == "on")
		exitOnError(err)
		fmt.Printf("AI for chat %d: %v\n", chat.ID, chat.AI)

	case "tag", "untag":
		chatID := chatArg(cmd + " <chat_id> <tag>")
		if len(os.Args) < 4 {
			fmt.Fprintf(os.Stderr, "Usage: aidesk %s <chat_id> <tag>\n", cmd)
			exit(1)
		}
		var res models.TagsResult
		if cmd == "tag" {
			res, err = client.AddTag(ctx, chatID, os.Args[3])
		} else {
			res, err = client.RemoveTag(ctx, chatID, os.Args[3])
		}
		exitOnError(err)
		fmt.Printf("Tags: %v\n", res.Tags)

	case "delete":
		chatID := chatArg("delete <chat_id>")
		exitOnError(client.DeleteChat(ctx, chatID))
		fmt.Printf("Deleted chat %d\n", chatID)

	case "sync-vk":
		chatID := chatArg("sync-vk <chat_id>")
		res, err := client.SyncVK(ctx, chatID)
		exitOnError(err)
		printJSON(res)

	case "stats":
		stats, ok := client.Stats(ctx)
		exitUnless(ok)
		fmt.Printf("Total: %d  Pending: %d  AI: %d\n", stats.Total, stats.Pending, stats.AI)

	case "context":
		if len(os.Args) > 2 {
			data, err := os.ReadFile(os.Args[2])
			exitOnError(err)
			var aiCtx models.AIContext
			exitOnError(json.Unmarshal(data, &aiCtx))
			out, err := client.UpdateAIContext(ctx, aiCtx)
			exitOnError(err)
			printJSON(out)
			return
		}
		aiCtx, ok := client.AIContext(ctx)
		exitUnless(ok)
		printJSON(aiCtx)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		exit(1)
	}
}

func usage() {
	fmt.Println(`aidesk - AI-manager dashboard client

Usage: aidesk <command> [options]

Commands:
  login <email> <password>   Log in and store the token
  token [address]            Show the stored token, or store one from an address
  logout                     Clear the stored token
  chats                      List chats (* = waiting)
  read <chat_id>             Show a chat's messages
  post <chat_id> <message>   Answer a chat as the operator
  mark-read <chat_id>        Clear a chat's waiting flag
  ai <chat_id> on|off        Toggle automated replies
  tag <chat_id> <tag>        Add a tag
  untag <chat_id> <tag>      Remove a tag
  delete <chat_id>           Delete a chat
  sync-vk <chat_id>          Resync a VK chat's history
  stats                      Show aggregate counts
  context [file.json]        Show, or replace from a file, the AI context

Environment:
  AIDESK_API_URL      API base (default: http://localhost:8000/api)
  AIDESK_AUTH_URL     Auth service base (default: $AIDESK_API_URL/auth)
  AIDESK_TOKEN_STORE  file, redis, sqlite or memory (default: file)
  AIDESK_CONFIG       Token directory for the file store (default: ~/.aidesk)
  REDIS_URL           Redis URL for the redis store
  AIDESK_SQLITE_PATH  Database path for the sqlite store`)
}

func chatArg(usageLine string) int {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: aidesk "+usageLine)
		exit(1)
	}
	id, err := strconv.Atoi(os.Args[2])
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "Invalid chat id: %s\n", os.Args[2])
		exit(1)
	}
	return id
}

func printExpiry(tok string) {
	if exp, ok := token.ExpiresAt(tok); ok {
		fmt.Printf("Token expires %s\n", exp.Local().Format("2006-01-02 15:04:05"))
	}
}

// openStore opens the configured token store and returns a func that closes
// it when the backend holds a connection.
func openStore(ctx context.Context, cfg *config.Config) (token.Store, func(), error) {
	store, err := token.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if c, ok := store.(io.Closer); ok {
		return store, func() { c.Close() }, nil
	}
	return store, func() {}, nil
}

func exit(code int) {
	cleanup()
	os.Exit(code)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		exit(1)
	}
}

// exitUnless exits for a read that degraded; the notice was already logged.
func exitUnless(ok bool) {
	if !ok {
		exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
