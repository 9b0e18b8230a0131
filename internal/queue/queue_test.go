package queue

import (
	"sync"
	"testing"
	"time"
)

func TestPushPopFIFOOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for i := 0; i < 4; i++ {
		item, res := q.Pop()
		if res != OK {
			t.Fatalf("pop %d: want OK, got %v", i, res)
		}
		if item != i {
			t.Fatalf("pop order: want %d, got %d", i, item)
		}
	}
}

func TestCloseUnblocksWaitersAndDrainsResident(t *testing.T) {
	q := New[string](2)
	_ = q.Push("a")
	_ = q.Push("b")

	q.Close()

	if err := q.Push("c"); err != ErrClosed {
		t.Fatalf("push after close: want ErrClosed, got %v", err)
	}

	for _, want := range []string{"a", "b"} {
		item, res := q.Pop()
		if res != OK || item != want {
			t.Fatalf("pop after close: want (%q, OK), got (%q, %v)", want, item, res)
		}
	}

	item, res := q.Pop()
	if res != ShutdownEmpty {
		t.Fatalf("pop on drained closed queue: want ShutdownEmpty, got (%q, %v)", item, res)
	}
}

func TestCloseWakesBlockedPop(t *testing.T) {
	q := New[int](1)
	done := make(chan Result, 1)
	go func() {
		_, res := q.Pop()
		done <- res
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case res := <-done:
		if res != ShutdownEmpty {
			t.Fatalf("want ShutdownEmpty, got %v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up within bounded time after Close")
	}
}

func TestCloseWakesBlockedPush(t *testing.T) {
	q := New[int](1)
	_ = q.Push(1) // fill capacity

	errc := make(chan error, 1)
	go func() {
		errc <- q.Push(2)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errc:
		if err != ErrClosed {
			t.Fatalf("want ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not wake up within bounded time after Close")
	}
}

func TestConcurrentProducersConsumersNoDoubleDelivery(t *testing.T) {
	const n = 500
	q := New[int](16)
	seen := make([]int32, n)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = q.Push(i)
		}
	}()

	var mu sync.Mutex
	got := 0
	go func() {
		defer wg.Done()
		for got < n {
			item, res := q.Pop()
			if res != OK {
				continue
			}
			mu.Lock()
			seen[item]++
			got++
			mu.Unlock()
		}
	}()

	wg.Wait()
	for i, count := range seen {
		if count != 1 {
			t.Fatalf("item %d delivered %d times, want exactly 1", i, count)
		}
	}
}
