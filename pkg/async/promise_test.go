package async

import (
	"testing"
	"time"
)

func TestPromise(t *testing.T) {
	expected := 42
	resultChan := Promise(func() int {
		time.Sleep(100 * time.Millisecond)
		return expected
	})

	select {
	case result := <-resultChan:
		if result != expected {
			t.Fatalf("Expected %d but got %d", expected, result)
		}
	case <-time.After(time.Second):
		t.Fatal("TestPromise timed out")
	}
}

func TestGather(t *testing.T) {
	results := <-Gather(
		Promise(func() int { time.Sleep(30 * time.Millisecond); return 1 }),
		Promise(func() int { return 2 }),
	)
	if len(results) != 2 || results[0] != 1 || results[1] != 2 {
		t.Fatalf("unexpected results %v", results)
	}
}
