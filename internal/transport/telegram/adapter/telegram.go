// Package adapter wraps telebot behind the small surface the bot needs:
// command registration plus outbound text delivery.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "voucherbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Command carries the bits of an incoming command the handlers care about.
type Command struct {
	ChatID   int64
	Username string
	Text     string
}

// HandlerFunc handles one command and returns the reply text. An empty reply
// means nothing is sent back.
type HandlerFunc func(ctx context.Context, cmd Command) (string, error)

// MenuCommand is one entry of the Telegram command menu.
type MenuCommand struct {
	Command     string
	Description string
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
	runCtx  context.Context
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{
		cfg: cfg,
		log: log.With(logx.String("comp", "telegram.adapter")),
		bot: b,
	}, nil
}

// HandleCommand registers a handler for an endpoint like "/track". Replies go
// out as Markdown without link previews.
func (a *Adapter) HandleCommand(endpoint string, fn HandlerFunc) {
	a.bot.Handle(endpoint, func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return nil
		}
		cmd := Command{ChatID: chat.ID, Text: c.Text()}
		if s := c.Sender(); s != nil {
			cmd.Username = s.Username
		}

		a.runMu.Lock()
		ctx := a.runCtx
		a.runMu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}

		reply, err := fn(ctx, cmd)
		if err != nil {
			a.log.Warn("command handler failed",
				logx.String("command", endpoint), logx.Int64("chat_id", chat.ID), logx.Err(err))
		}
		if reply == "" {
			return nil
		}
		return c.Send(reply, sendOptions())
	})
}

// SetMenuCommands publishes the command list shown in Telegram's menu.
// Best-effort; a failure only costs menu discoverability.
func (a *Adapter) SetMenuCommands(cmds []MenuCommand) {
	list := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(c.Command, "/"), Description: d})
	}
	if err := a.bot.SetCommands(list); err != nil {
		a.log.Warn("failed to set menu commands", logx.Err(err))
		return
	}
	a.log.Info("menu commands updated", logx.Int("count", len(list)))
}

// SendText delivers one message to one recipient. The recipient ID is the
// stringified chat ID, matching the persisted subscription keys.
func (a *Adapter) SendText(ctx context.Context, recipientID string, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipientID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid recipient id %q: %w", recipientID, err)
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	_, err = a.bot.Send(&tele.Chat{ID: chatID}, text, sendOptions())
	return err
}

func (a *Adapter) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	a.runCtx = ctx
	a.runMu.Unlock()

	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()

	go func() {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
}

func (a *Adapter) Stop(ctx context.Context) {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	a.runCtx = nil
	a.runMu.Unlock()
	if !wasRunning {
		return
	}

	// telebot Stop is expected to be fast; run it async and keep shutdown
	// snappy even if the long-poll is still waiting.
	done := make(chan struct{})
	go func() {
		a.bot.Stop()
		close(done)
	}()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		a.log.Warn("telegram stop timed out")
	case <-ctx.Done():
	}
}

func sendOptions() *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeMarkdown,
		DisableWebPagePreview: true,
	}
}
