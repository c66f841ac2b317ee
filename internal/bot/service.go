// Package bot implements the Telegram command surface: subscription
// management plus on-demand stock checks.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"voucherbot/internal/inventory"
	"voucherbot/internal/tracker"
	"voucherbot/internal/transport/telegram/adapter"
	logx "voucherbot/pkg/logx"
)

// Checker is the on-demand stock check surface, read-only with respect to
// transition detection.
type Checker interface {
	CheckNow(ctx context.Context) inventory.Snapshot
	LastCheck() (time.Time, bool)
}

// Transport is the slice of the Telegram adapter the command service uses.
type Transport interface {
	HandleCommand(endpoint string, fn adapter.HandlerFunc)
	SetMenuCommands(cmds []adapter.MenuCommand)
	SendText(ctx context.Context, recipientID string, text string) error
}

type Config struct {
	ProductURL    string
	CheckInterval time.Duration
}

// Service registers and serves the bot commands.
type Service struct {
	store   *tracker.Store
	checker Checker
	tg      Transport
	log     logx.Logger

	mu       sync.Mutex
	product  string
	interval time.Duration
}

func New(cfg Config, store *tracker.Store, checker Checker, tg Transport, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:    store,
		checker:  checker,
		tg:       tg,
		log:      log.With(logx.String("comp", "bot")),
		product:  cfg.ProductURL,
		interval: cfg.CheckInterval,
	}
}

// Apply picks up config changes relevant to command output.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	if cfg.ProductURL != "" {
		s.product = cfg.ProductURL
	}
	if cfg.CheckInterval > 0 {
		s.interval = cfg.CheckInterval
	}
	s.mu.Unlock()
}

// Register wires every command handler and publishes the command menu.
func (s *Service) Register() {
	s.tg.HandleCommand("/start", s.handleStart)
	s.tg.HandleCommand("/help", s.handleHelp)
	s.tg.HandleCommand("/track", s.handleTrack)
	s.tg.HandleCommand("/untrack", s.handleUntrack)
	s.tg.HandleCommand("/check", s.handleCheck)
	s.tg.HandleCommand("/status", s.handleStatus)

	s.tg.SetMenuCommands([]adapter.MenuCommand{
		{Command: "/track", Description: "Start tracking for stock alerts"},
		{Command: "/untrack", Description: "Stop tracking"},
		{Command: "/check", Description: "Check current stock status"},
		{Command: "/status", Description: "View your tracking status"},
		{Command: "/help", Description: "Show help"},
	})
}

func (s *Service) handleStart(ctx context.Context, cmd adapter.Command) (string, error) {
	return fmt.Sprintf(`🎯 *PhonePe Voucher Tracker Bot*

Welcome! I'll help you track PhonePe gift voucher availability on StanShop.

*Available Commands:*
/track - Start tracking for stock alerts
/untrack - Stop tracking
/check - Check current stock status
/status - View your tracking status
/help - Show this help message

📡 Use /track to get notified when vouchers become available!

🔗 [View on StanShop](%s)`, s.productURL()), nil
}

func (s *Service) handleHelp(ctx context.Context, cmd adapter.Command) (string, error) {
	return fmt.Sprintf(`📖 *Available Commands*

/track - Start tracking for stock notifications
/untrack - Stop tracking
/check - Check current PhonePe voucher stock
/status - View your tracking status
/help - Show this help message

*How it works:*
• Use /track to register for notifications
• I check StanShop every hour automatically
• When vouchers become available, you'll get ONE notification
• Tracking stops after notification (no spam!)
• Use /track again to re-enable after being notified

🔗 [StanShop PhonePe Page](%s)`, s.productURL()), nil
}

func (s *Service) handleTrack(ctx context.Context, cmd adapter.Command) (string, error) {
	id := recipientID(cmd.ChatID)

	rec, exists, err := s.store.Get(ctx, id)
	if err != nil {
		return "⚠️ Something went wrong, please try again.", err
	}

	switch {
	case exists && rec.Notified:
		// Previously notified: re-subscribing re-arms the notification.
		if err := s.store.Subscribe(ctx, id, cmd.Username); err != nil {
			return "⚠️ Something went wrong, please try again.", err
		}
		return "🔄 *Tracking Reset!*\n\n" +
			"You were previously notified about stock availability.\n" +
			"I'll notify you again when new stock arrives.", nil
	case exists:
		return "✅ You're already tracking!\n\n" +
			"I'll notify you as soon as PhonePe vouchers become available.\n" +
			"Use /untrack to stop tracking.", nil
	default:
		if err := s.store.Subscribe(ctx, id, cmd.Username); err != nil {
			return "⚠️ Something went wrong, please try again.", err
		}
		s.log.Info("recipient subscribed", logx.String("recipient", id))
		return "🔔 *Tracking Started!*\n\n" +
			"I'll notify you as soon as PhonePe vouchers become available.\n" +
			"You'll receive one notification, then tracking will stop automatically.\n\n" +
			"Use /track again after being notified to re-enable tracking.\n" +
			"Use /untrack to stop tracking.", nil
	}
}

func (s *Service) handleUntrack(ctx context.Context, cmd adapter.Command) (string, error) {
	id := recipientID(cmd.ChatID)

	removed, err := s.store.Unsubscribe(ctx, id)
	if err != nil {
		return "⚠️ Something went wrong, please try again.", err
	}
	if !removed {
		return "ℹ️ You weren't tracking.\nUse /track to start tracking.", nil
	}
	s.log.Info("recipient unsubscribed", logx.String("recipient", id))
	return "🔕 *Tracking Stopped*\n\n" +
		"You won't receive stock notifications anymore.\n" +
		"Use /track to start tracking again.", nil
}

func (s *Service) handleCheck(ctx context.Context, cmd adapter.Command) (string, error) {
	// Immediate acknowledgement; the fetch can take a while.
	if err := s.tg.SendText(ctx, recipientID(cmd.ChatID), "🔍 Checking stock..."); err != nil {
		s.log.Debug("failed to send check acknowledgement", logx.Err(err))
	}
	snap := s.checker.CheckNow(ctx)
	return snap.Message, nil
}

func (s *Service) handleStatus(ctx context.Context, cmd adapter.Command) (string, error) {
	id := recipientID(cmd.ChatID)

	trackStatus := "❌ Not tracking (use /track to start)"
	rec, exists, err := s.store.Get(ctx, id)
	if err != nil {
		return "⚠️ Something went wrong, please try again.", err
	}
	if exists {
		if rec.Notified {
			trackStatus = "⚠️ Notified (use /track to re-enable)"
		} else {
			trackStatus = "✅ Active"
		}
	}

	checkInfo := "⏰ No checks performed yet"
	if last, ok := s.checker.LastCheck(); ok {
		checkInfo = fmt.Sprintf("⏰ Last check: %s\n   (%s)",
			last.Format("2006-01-02 15:04:05"), humanizeAgo(time.Since(last)))
	}

	return fmt.Sprintf(`📊 *Your Status*

🔔 Tracking: %s
%s
🔄 Check interval: Every %s

Use /check to manually check now.`, trackStatus, checkInfo, humanizeInterval(s.checkInterval())), nil
}

func (s *Service) productURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product
}

func (s *Service) checkInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func recipientID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func humanizeAgo(d time.Duration) string {
	minutes := int(d.Minutes())
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%d minutes ago", minutes)
	default:
		return fmt.Sprintf("%d hour(s) ago", minutes/60)
	}
}

func humanizeInterval(d time.Duration) string {
	if d == time.Hour {
		return "hour"
	}
	return strings.TrimSuffix(d.String(), "0s")
}
