package queue

import (
	"sync"
	"testing"
)

type testRow struct {
	Frame int
	Key   string
}

func TestQueue_New(t *testing.T) {
	q := New[testRow]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
}

func TestQueue_PushKeepsOrder(t *testing.T) {
	q := New[testRow]()
	q.Push(testRow{Frame: 1, Key: "a"}, testRow{Frame: 2, Key: "b"})

	first := q.TakeBatch(1)
	if len(first) != 1 || first[0].Frame != 1 {
		t.Errorf("expected frame 1, got %+v", first)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_TakeBatch(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3, 4, 5)

	batch := q.TakeBatch(2)
	if len(batch) != 2 || batch[0] != 1 || batch[1] != 2 {
		t.Errorf("expected [1 2], got %v", batch)
	}

	rest := q.TakeBatch(0)
	if len(rest) != 3 || rest[2] != 5 {
		t.Errorf("expected [3 4 5], got %v", rest)
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if got := q.TakeBatch(10); len(got) != 0 {
		t.Errorf("expected empty batch, got %v", got)
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[int](3)
	q.Push(1, 2)
	q.Push(3, 4, 5)

	if q.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", q.Dropped())
	}
	items := q.TakeBatch(0)
	if items[0] != 3 || items[2] != 5 {
		t.Errorf("expected newest items kept, got %v", items)
	}
}

func TestQueue_RequeueGoesToFront(t *testing.T) {
	q := New[testRow]()
	q.Push(testRow{Frame: 1}, testRow{Frame: 2})

	batch := q.TakeBatch(0)
	q.Push(testRow{Frame: 3})
	q.Requeue(batch...)

	result := q.TakeBatch(0)
	if len(result) != 3 || result[0].Frame != 1 || result[2].Frame != 3 {
		t.Errorf("unexpected order: %+v", result)
	}
	if q.Dropped() != 0 {
		t.Errorf("expected nothing dropped, got %d", q.Dropped())
	}
}

func TestQueue_RequeueRespectsLimit(t *testing.T) {
	q := NewBounded[int](3)
	q.Push(1, 2)
	batch := q.TakeBatch(0)
	q.Push(3, 4)

	q.Requeue(batch...)

	items := q.TakeBatch(0)
	if len(items) != 3 || items[0] != 2 || items[2] != 4 {
		t.Errorf("expected [2 3 4], got %v", items)
	}
	if q.Dropped() != 1 {
		t.Errorf("expected 1 dropped, got %d", q.Dropped())
	}
}

func TestQueue_ConcurrentPushAndTake(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(n)
		}(i)
	}
	wg.Wait()

	results := make(chan []int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.TakeBatch(15)
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected total 100 items, got %d", total)
	}
}
