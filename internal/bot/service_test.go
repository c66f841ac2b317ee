package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"voucherbot/internal/inventory"
	"voucherbot/internal/tracker"
	"voucherbot/internal/transport/telegram/adapter"
	logx "voucherbot/pkg/logx"
)

type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]adapter.HandlerFunc
	sent     []string
	menu     []adapter.MenuCommand
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[string]adapter.HandlerFunc{}}
}

func (f *fakeTransport) HandleCommand(endpoint string, fn adapter.HandlerFunc) {
	f.handlers[endpoint] = fn
}

func (f *fakeTransport) SetMenuCommands(cmds []adapter.MenuCommand) { f.menu = cmds }

func (f *fakeTransport) SendText(ctx context.Context, recipientID string, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return nil
}

type fakeChecker struct {
	snap inventory.Snapshot
	last time.Time
}

func (f *fakeChecker) CheckNow(ctx context.Context) inventory.Snapshot { return f.snap }

func (f *fakeChecker) LastCheck() (time.Time, bool) { return f.last, !f.last.IsZero() }

func newTestService(t *testing.T) (*Service, *fakeTransport, *fakeChecker) {
	t.Helper()
	backend, err := tracker.Open(tracker.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "tracked_users.json"),
	}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	store := tracker.NewStore(backend, logx.Nop())
	checker := &fakeChecker{}
	tg := newFakeTransport()
	svc := New(Config{
		ProductURL:    "https://shop.example/p",
		CheckInterval: time.Hour,
	}, store, checker, tg, logx.Nop())
	svc.Register()
	return svc, tg, checker
}

func invoke(t *testing.T, tg *fakeTransport, endpoint string, chatID int64) string {
	t.Helper()
	fn, ok := tg.handlers[endpoint]
	if !ok {
		t.Fatalf("no handler registered for %s", endpoint)
	}
	reply, err := fn(context.Background(), adapter.Command{ChatID: chatID, Username: "tester"})
	if err != nil {
		t.Fatalf("%s: %v", endpoint, err)
	}
	return reply
}

func TestRegisterWiresAllCommands(t *testing.T) {
	_, tg, _ := newTestService(t)
	for _, cmd := range []string{"/start", "/help", "/track", "/untrack", "/check", "/status"} {
		if _, ok := tg.handlers[cmd]; !ok {
			t.Errorf("command %s not registered", cmd)
		}
	}
	if len(tg.menu) == 0 {
		t.Error("command menu not published")
	}
}

func TestStartAndHelpMentionProduct(t *testing.T) {
	_, tg, _ := newTestService(t)
	for _, cmd := range []string{"/start", "/help"} {
		reply := invoke(t, tg, cmd, 1)
		if !strings.Contains(reply, "https://shop.example/p") {
			t.Errorf("%s reply missing product link:\n%s", cmd, reply)
		}
		if !strings.Contains(reply, "/track") {
			t.Errorf("%s reply missing command list:\n%s", cmd, reply)
		}
	}
}

func TestTrackLifecycle(t *testing.T) {
	svc, tg, _ := newTestService(t)

	reply := invoke(t, tg, "/track", 10)
	if !strings.Contains(reply, "Tracking Started!") {
		t.Fatalf("first track: %s", reply)
	}
	reply = invoke(t, tg, "/track", 10)
	if !strings.Contains(reply, "already tracking") {
		t.Fatalf("second track: %s", reply)
	}

	if err := svc.store.MarkNotified(context.Background(), "10"); err != nil {
		t.Fatal(err)
	}
	reply = invoke(t, tg, "/track", 10)
	if !strings.Contains(reply, "Tracking Reset!") {
		t.Fatalf("track after notified: %s", reply)
	}
	rec, _, err := svc.store.Get(context.Background(), "10")
	if err != nil || rec.Notified {
		t.Fatalf("reset did not clear notified: %+v %v", rec, err)
	}

	reply = invoke(t, tg, "/untrack", 10)
	if !strings.Contains(reply, "Tracking Stopped") {
		t.Fatalf("untrack: %s", reply)
	}
	reply = invoke(t, tg, "/untrack", 10)
	if !strings.Contains(reply, "weren't tracking") {
		t.Fatalf("untrack when not tracking: %s", reply)
	}
}

func TestCheckSendsAckThenResult(t *testing.T) {
	_, tg, checker := newTestService(t)
	checker.snap = inventory.Snapshot{Available: true, Message: "🎉 *Vouchers Available!*"}

	reply := invoke(t, tg, "/check", 5)
	if reply != "🎉 *Vouchers Available!*" {
		t.Fatalf("check reply: %s", reply)
	}
	if len(tg.sent) != 1 || !strings.Contains(tg.sent[0], "Checking stock") {
		t.Fatalf("missing acknowledgement, sent=%v", tg.sent)
	}
}

func TestStatusVariants(t *testing.T) {
	svc, tg, checker := newTestService(t)

	reply := invoke(t, tg, "/status", 3)
	if !strings.Contains(reply, "Not tracking") || !strings.Contains(reply, "No checks performed yet") {
		t.Fatalf("untracked status: %s", reply)
	}

	invoke(t, tg, "/track", 3)
	checker.last = time.Now().Add(-5 * time.Minute)
	reply = invoke(t, tg, "/status", 3)
	if !strings.Contains(reply, "✅ Active") {
		t.Fatalf("active status: %s", reply)
	}
	if !strings.Contains(reply, "minutes ago") {
		t.Fatalf("status missing humanized time: %s", reply)
	}

	if err := svc.store.MarkNotified(context.Background(), "3"); err != nil {
		t.Fatal(err)
	}
	reply = invoke(t, tg, "/status", 3)
	if !strings.Contains(reply, "Notified (use /track to re-enable)") {
		t.Fatalf("notified status: %s", reply)
	}
}

func TestHumanizeAgo(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5 minutes ago"},
		{90 * time.Minute, "1 hour(s) ago"},
		{3 * time.Hour, "3 hour(s) ago"},
	}
	for _, tc := range cases {
		if got := humanizeAgo(tc.d); got != tc.want {
			t.Errorf("humanizeAgo(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
