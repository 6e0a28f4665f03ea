package gate

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	var g Gate

	release, err := g.Acquire("backup")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if got := g.Holder(); got != "backup" {
		t.Fatalf("holder = %q, want backup", got)
	}

	release()
	if got := g.Holder(); got != "" {
		t.Fatalf("holder after release = %q, want empty", got)
	}

	if _, err := g.Acquire("restore"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestBusyNamesHolder(t *testing.T) {
	var g Gate

	release, err := g.Acquire("backup")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, err = g.Acquire("restore")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if !strings.Contains(err.Error(), "backup") {
		t.Fatalf("err %q does not name the holder", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	var g Gate

	release, err := g.Acquire("a")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	release2, err := g.Acquire("b")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}

	// A stale second release must not free b's hold.
	release()
	if _, err := g.Acquire("c"); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy (stale release freed the gate)", err)
	}
	release2()
}

func TestConcurrentSingleWinner(t *testing.T) {
	var g Gate
	const n = 32

	var wg sync.WaitGroup
	wins := make(chan Release, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, err := g.Acquire("op"); err == nil {
				wins <- release
			}
		}()
	}
	wg.Wait()
	close(wins)

	var releases []Release
	for r := range wins {
		releases = append(releases, r)
	}
	if len(releases) != 1 {
		t.Fatalf("winners = %d, want 1", len(releases))
	}
	releases[0]()
}
