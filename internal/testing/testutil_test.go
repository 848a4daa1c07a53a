package testing

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoroutineTest(t *testing.T) {
	gt := NewGoroutineTestWithTimeout(t, 5*time.Second)
	defer gt.Wait()

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		gt.Go(func() error {
			if count.Add(1) > 5 {
				return fmt.Errorf("too many goroutines")
			}
			return nil
		})
	}
}

func TestEventually(t *testing.T) {
	var ready atomic.Bool

	go func() {
		time.Sleep(20 * time.Millisecond)
		ready.Store(true)
	}()

	if err := Eventually(time.Second, 5*time.Millisecond, ready.Load); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := Eventually(10*time.Millisecond, 5*time.Millisecond, func() bool { return false }); err == nil {
		t.Error("expected timeout error")
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(time.Unix(100, 0))
	c.Advance(time.Second)
	if got := c.Now(); !got.Equal(time.Unix(101, 0)) {
		t.Errorf("expected 101s, got %v", got)
	}
	c.Set(time.Unix(5, 0))
	if got := c.Now(); !got.Equal(time.Unix(5, 0)) {
		t.Errorf("expected 5s, got %v", got)
	}
}

func TestSamples(t *testing.T) {
	s := Samples(4, 1000, 100, "a", "b")
	if len(s) != 4 || s[3].TimestampMs != 1300 || s[3].Value != 3 || s[2].Category != "a" {
		t.Errorf("unexpected samples: %+v", s)
	}
}
