package asyncvalue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsCurrentValue(t *testing.T) {
	v := New(42)
	got, _ := v.Get()
	assert.Equal(t, 42, got)
}

func TestPutWakesWaiter(t *testing.T) {
	v := New(0)
	_, wait := v.Get()

	done := make(chan struct{})
	go func() {
		<-wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("wait completed before Put")
	case <-time.After(20 * time.Millisecond):
	}

	v.Put(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not complete after Put")
	}
}

func TestPutWakesAllWaiters(t *testing.T) {
	v := New("a")
	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		_, wait := v.Get()
		go func(w func() <-chan struct{}) {
			defer wg.Done()
			<-w()
		}(wait)
	}

	v.Put("b")

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("not all waiters were woken")
	}
}

func TestGetAfterPutObservesNewValue(t *testing.T) {
	v := New(1)
	v.Put(2)
	got, _ := v.Get()
	assert.Equal(t, 2, got)
}

func TestWaitGenerationDoesNotFireEarly(t *testing.T) {
	v := New(0)
	v.Put(1) // generation 1 fires
	_, wait := v.Get()

	select {
	case <-wait():
		t.Fatal("new wait handle fired without a subsequent Put")
	case <-time.After(20 * time.Millisecond):
	}

	v.Put(2)
	require.Eventually(t, func() bool {
		select {
		case <-wait():
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
