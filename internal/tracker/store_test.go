package tracker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"

	logx "voucherbot/pkg/logx"
)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracked_users.json")
	backend, err := openFile(Config{Driver: "file", Path: path})
	if err != nil {
		t.Fatalf("openFile: %v", err)
	}
	return NewStore(backend, logx.Nop()), path
}

func TestSubscribeUnsubscribe(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	if ok, err := s.IsSubscribed(ctx, "100"); err != nil || ok {
		t.Fatalf("fresh store should have no subscription: %v %v", ok, err)
	}
	if err := s.Subscribe(ctx, "100", "alice"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	rec, ok, err := s.Get(ctx, "100")
	if err != nil || !ok {
		t.Fatalf("Get after subscribe: %v %v", ok, err)
	}
	if rec.Username != "alice" || rec.Notified || rec.TrackedAt.IsZero() {
		t.Fatalf("unexpected record %+v", rec)
	}

	removed, err := s.Unsubscribe(ctx, "100")
	if err != nil || !removed {
		t.Fatalf("Unsubscribe: %v %v", removed, err)
	}
	removed, err = s.Unsubscribe(ctx, "100")
	if err != nil || removed {
		t.Fatalf("second Unsubscribe should be a no-op: %v %v", removed, err)
	}
}

func TestCandidatesAndMarkNotified(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	for _, id := range []string{"1", "2", "3"} {
		if err := s.Subscribe(ctx, id, ""); err != nil {
			t.Fatalf("Subscribe %s: %v", id, err)
		}
	}
	if err := s.MarkNotified(ctx, "2"); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}

	got, err := s.Candidates(ctx)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Fatalf("expected candidates [1 3], got %v", got)
	}

	// Absent recipient is a no-op, not an error.
	if err := s.MarkNotified(ctx, "999"); err != nil {
		t.Fatalf("MarkNotified absent: %v", err)
	}
}

func TestResubscribeResetsNotified(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	if err := s.Subscribe(ctx, "7", "bob"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkNotified(ctx, "7"); err != nil {
		t.Fatal(err)
	}
	rec, _, _ := s.Get(ctx, "7")
	if !rec.Notified {
		t.Fatalf("expected notified record, got %+v", rec)
	}

	if err := s.Subscribe(ctx, "7", "bob"); err != nil {
		t.Fatal(err)
	}
	rec, _, _ = s.Get(ctx, "7")
	if rec.Notified {
		t.Fatalf("re-subscribe must reset notified: %+v", rec)
	}

	cands, err := s.Candidates(ctx)
	if err != nil || len(cands) != 1 || cands[0] != "7" {
		t.Fatalf("re-subscribed recipient should be a candidate again: %v %v", cands, err)
	}
}

func TestConcurrentMutationsDoNotClobber(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)

	// Concurrent subscribes for distinct recipients: every record must
	// survive the load-modify-save cycles.
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Subscribe(ctx, strconv.Itoa(i), "u"+strconv.Itoa(i))
		}(i)
	}
	wg.Wait()

	users, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(users) != n {
		t.Fatalf("lost records under concurrent subscribe: got %d, want %d", len(users), n)
	}

	// Mixed mutations: unsubscribe the even half while marking the odd half
	// notified.
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := s.Unsubscribe(ctx, strconv.Itoa(i))
				errs <- err
			} else {
				errs <- s.MarkNotified(ctx, strconv.Itoa(i))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent mutation failed: %v", err)
		}
	}

	users, err = s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(users) != n/2 {
		t.Fatalf("expected %d records after unsubscribes, got %d", n/2, len(users))
	}
	for id, rec := range users {
		if !rec.Notified {
			t.Errorf("recipient %s lost its notified flag: %+v", id, rec)
		}
	}
}

func TestPersistenceAcrossStores(t *testing.T) {
	ctx := context.Background()
	s, path := newFileStore(t)

	if err := s.Subscribe(ctx, "42", "carol"); err != nil {
		t.Fatal(err)
	}

	// New store over the same file sees the same state.
	backend, err := openFile(Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	s2 := NewStore(backend, logx.Nop())
	rec, ok, err := s2.Get(ctx, "42")
	if err != nil || !ok || rec.Username != "carol" {
		t.Fatalf("state not persisted: %+v %v %v", rec, ok, err)
	}
}

func TestLoadSkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracked_users.json")

	doc := `{
  "1": {"username": "ok", "tracked_at": "2026-08-01T10:00:00Z", "notified": false},
  "2": "not an object",
  "3": {"username": "also ok", "tracked_at": "2026-08-01T11:00:00Z", "notified": true}
}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	backend, err := openFile(Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, logx.Nop())

	users, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected corrupt entry skipped, got %v", users)
	}
	if _, ok := users["2"]; ok {
		t.Fatal("corrupt entry must not survive load")
	}
}

func TestLoadUnreadableDocumentStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tracked_users.json")
	if err := os.WriteFile(path, []byte("{{{"), 0o600); err != nil {
		t.Fatal(err)
	}

	backend, err := openFile(Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(backend, logx.Nop())

	users, err := s.LoadAll(ctx)
	if err != nil || len(users) != 0 {
		t.Fatalf("unreadable document should load empty: %v %v", users, err)
	}
}

func TestSavedDocumentShape(t *testing.T) {
	ctx := context.Background()
	s, path := newFileStore(t)
	if err := s.Subscribe(ctx, "5", "dave"); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("document not valid JSON: %v", err)
	}
	entry := doc["5"]
	for _, k := range []string{"username", "tracked_at", "notified"} {
		if _, ok := entry[k]; !ok {
			t.Errorf("entry missing %q: %v", k, entry)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
