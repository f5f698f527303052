package sequencer

import (
	"sync"
	"testing"
	"time"
)

func TestSequencerRunsTasksInSubmitOrder(t *testing.T) {
	s := New(16)
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		i := i
		s.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}

	wg.Wait()
	for i, v := range order {
		if v != i {
			t.Fatalf("out of order at index %d: got %d", i, v)
		}
	}
}

func TestSequencerTaskCanSubmitAnotherTask(t *testing.T) {
	s := New(4)
	done := make(chan struct{})
	var ran bool

	s.Submit(func() {
		s.Submit(func() {
			ran = true
			close(done)
		})
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for nested submission")
	}
	if !ran {
		t.Fatal("nested task did not run")
	}
}
