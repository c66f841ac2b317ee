package tracker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"voucherbot/internal/config"
	logx "voucherbot/pkg/logx"
)

func newRedisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	backend, err := openRedis(Config{
		Driver: "redis",
		Redis:  config.RedisConfig{Addr: mr.Addr()},
	}, logx.Nop())
	if err != nil {
		t.Fatalf("openRedis: %v", err)
	}
	s := NewStore(backend, logx.Nop())
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	if ok, err := s.IsSubscribed(ctx, "9"); err != nil || ok {
		t.Fatalf("empty key should mean no subscription: %v %v", ok, err)
	}
	if err := s.Subscribe(ctx, "9", "erin"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := s.MarkNotified(ctx, "9"); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}

	rec, ok, err := s.Get(ctx, "9")
	if err != nil || !ok || !rec.Notified || rec.Username != "erin" {
		t.Fatalf("unexpected record %+v %v %v", rec, ok, err)
	}

	if !mr.Exists(trackedUsersKey) {
		t.Fatalf("expected document under key %q", trackedUsersKey)
	}
}

func TestRedisBackendCandidates(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t)

	if err := s.Subscribe(ctx, "a", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Subscribe(ctx, "b", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkNotified(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	cands, err := s.Candidates(ctx)
	if err != nil || len(cands) != 1 || cands[0] != "b" {
		t.Fatalf("expected [b], got %v %v", cands, err)
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := openRedis(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error without addr")
	}
}
