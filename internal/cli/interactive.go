// Package cli implements the interactive terminal session on top of the
// engine: a read loop for commands plus an event goroutine that surfaces
// pushes, failures and typing activity as they happen.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/essaydesk/chat-engine/internal/domain"
	"github.com/essaydesk/chat-engine/internal/presence"
	"github.com/essaydesk/chat-engine/internal/realtime"
	"github.com/essaydesk/chat-engine/internal/session"
	"github.com/essaydesk/chat-engine/internal/store"
)

// InteractiveCLI handles the interactive command-line interface.
type InteractiveCLI struct {
	ctrl     *session.Controller
	store    *store.MessageStore
	presence *presence.Tracker
	router   *realtime.Router
	bus      domain.EventBus
	selfID   string
	reader   *bufio.Reader
	writer   io.Writer
}

func NewInteractiveCLI(ctrl *session.Controller, st *store.MessageStore, pt *presence.Tracker, router *realtime.Router, bus domain.EventBus, selfID string) *InteractiveCLI {
	return &InteractiveCLI{
		ctrl:     ctrl,
		store:    st,
		presence: pt,
		router:   router,
		bus:      bus,
		selfID:   selfID,
		reader:   bufio.NewReader(os.Stdin),
		writer:   os.Stdout,
	}
}

// Run starts the interactive loop. It returns on EOF, /quit, or context
// cancellation.
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()

	eventChan := cli.bus.Subscribe([]domain.EventType{
		domain.EventTypeMessagesChanged,
		domain.EventTypeMessageFailed,
		domain.EventTypeTypingChanged,
		domain.EventTypePresenceChanged,
		domain.EventTypeConnectionStatus,
	})
	defer cli.bus.Unsubscribe(eventChan)

	go cli.handleEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			quit, err := cli.processLine(ctx, line)
			if err != nil {
				cli.printf("Error: %s\n", err)
			}
			if quit {
				cli.println("Goodbye!")
				return nil
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  chatctl interactive session")
	cli.println("===========================================")
	cli.println("Plain text sends a message to the open chat.")
	cli.println("Type /help for commands.")
}

func (cli *InteractiveCLI) processLine(ctx context.Context, line string) (quit bool, err error) {
	if !strings.HasPrefix(line, "/") {
		return false, cli.ctrl.Send(ctx, domain.SendInput{Content: line})
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/q":
		return true, cli.ctrl.Close(ctx)

	case "/help", "/h":
		cli.printHelp()
		return false, nil

	case "/chats", "/ls":
		return false, cli.cmdChats(ctx)

	case "/open", "/o":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /open <chat-id>")
		}
		return false, cli.cmdOpen(ctx, args[0])

	case "/close":
		return false, cli.ctrl.Deselect(ctx)

	case "/messages", "/msg":
		cli.renderMessages()
		return false, nil

	case "/file", "/f":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: /file <path> [caption]")
		}
		return false, cli.cmdFile(ctx, args[0], strings.Join(args[1:], " "))

	case "/retry":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: /retry <local-id>")
		}
		return false, cli.ctrl.Retry(ctx, args[0])

	case "/who":
		cli.cmdWho()
		return false, nil

	case "/status", "/s":
		cli.cmdStatus()
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

func (cli *InteractiveCLI) printHelp() {
	cli.println("Commands:")
	cli.println("  /chats              List your conversations")
	cli.println("  /open <chat-id>     Open a conversation")
	cli.println("  /close              Leave the open conversation")
	cli.println("  /messages           Re-render the open conversation")
	cli.println("  /file <path> [txt]  Send a file with an optional caption")
	cli.println("  /retry <local-id>   Resend a failed message")
	cli.println("  /who                Show who is online")
	cli.println("  /status             Show connection state")
	cli.println("  /quit               Exit")
	cli.println("Anything else is sent as a message to the open chat.")
}

func (cli *InteractiveCLI) cmdChats(ctx context.Context) error {
	chats, err := cli.ctrl.Chats(ctx)
	if err != nil {
		return err
	}
	cli.printf("Found %d chat(s):\n\n", len(chats))
	for i, chat := range chats {
		unread := ""
		if chat.UnreadCount > 0 {
			unread = fmt.Sprintf(" [%d unread]", chat.UnreadCount)
		}
		cli.printf("%d. %s%s\n", i+1, chat.Title, unread)
		cli.printf("   ID: %s\n", chat.ID)
		if chat.LastPreview != "" {
			preview := chat.LastPreview
			if len(preview) > 50 {
				preview = preview[:50] + "..."
			}
			cli.printf("   Last: %s\n", preview)
		}
	}
	return nil
}

func (cli *InteractiveCLI) cmdOpen(ctx context.Context, chatID string) error {
	if err := cli.ctrl.Select(ctx, chatID); err != nil {
		return err
	}
	cli.printf("Opened chat %s\n", chatID)
	cli.renderMessages()
	return nil
}

func (cli *InteractiveCLI) cmdFile(ctx context.Context, path, caption string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	file := domain.FileInput{
		Name:      fileBase(path),
		MimeType:  sniffMime(path, data),
		SizeBytes: int64(len(data)),
		Data:      data,
		LocalURL:  path,
	}
	return cli.ctrl.Send(ctx, domain.SendInput{Content: caption, Files: []domain.FileInput{file}})
}

func (cli *InteractiveCLI) cmdWho() {
	online := cli.presence.Online()
	if len(online) == 0 {
		cli.println("Nobody else is online.")
		return
	}
	cli.printf("Online (%d):\n", len(online))
	for _, id := range online {
		cli.printf("  %s\n", id)
	}
}

func (cli *InteractiveCLI) cmdStatus() {
	state, joined := cli.router.State()
	cli.printf("Connection: %s\n", state)
	if joined != "" {
		cli.printf("  Room: %s\n", joined)
	}
}

func (cli *InteractiveCLI) renderMessages() {
	msgs := cli.store.Snapshot()
	cli.printf("%d message(s):\n\n", len(msgs))
	for _, m := range msgs {
		cli.printMessage(m)
	}
}

func (cli *InteractiveCLI) printMessage(m domain.Message) {
	sender := m.Sender.Name
	if m.Sender.ID == cli.selfID {
		sender = "Me"
	}
	timestamp := m.Timestamp.Format("2006-01-02 15:04")
	cli.printf("[%s] %s:\n", timestamp, sender)
	if m.Content != "" {
		cli.printf("  %s\n", m.Content)
	}
	if m.Attachment != nil {
		cli.printf("  [file: %s]\n", m.Attachment.Name)
	}
	switch m.State {
	case domain.StatePending:
		cli.printf("  (sending... %s)\n", m.ID)
	case domain.StateFailed:
		cli.printf("  (FAILED: %s; /retry %s)\n", m.FailReason, m.ID)
	}
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan domain.Event) {
	for event := range eventChan {
		switch e := event.(type) {
		case domain.MessagesChangedEvent:
			if m, ok := cli.lastIncoming(); ok {
				cli.printf("\n[%s] %s: %s\n", e.ChatID, m.Sender.Name, previewOf(m))
				cli.print("> ")
			}
		case domain.MessageFailedEvent:
			cli.printf("\n[Send failed: %s; /retry %s]\n> ", e.Reason, e.LocalID)
		case domain.TypingChangedEvent:
			if e.IsTyping {
				cli.printf("\n[%s is typing...]\n> ", e.UserID)
			}
		case domain.PresenceChangedEvent:
			verb := "went offline"
			if e.Online {
				verb = "is online"
			}
			cli.printf("\n[%s %s]\n> ", e.UserID, verb)
		case domain.ConnectionStatusEvent:
			if e.Connected {
				cli.println("\n[Connected]")
			} else {
				cli.printf("\n[Disconnected: %s]\n", e.Reason)
			}
			cli.print("> ")
		}
	}
}

// lastIncoming reports the newest message not sent by this user, if the
// store's tail is one. Keeps the notice channel quiet during own sends.
func (cli *InteractiveCLI) lastIncoming() (domain.Message, bool) {
	msgs := cli.store.Snapshot()
	if len(msgs) == 0 {
		return domain.Message{}, false
	}
	last := msgs[len(msgs)-1]
	if last.Sender.ID == cli.selfID {
		return domain.Message{}, false
	}
	return last, true
}

func previewOf(m domain.Message) string {
	if m.Content != "" {
		return m.Content
	}
	if m.Attachment != nil {
		return "[file: " + m.Attachment.Name + "]"
	}
	return "[empty]"
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
