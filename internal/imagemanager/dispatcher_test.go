package imagemanager

import (
	"sync"
	"testing"
)

func TestDispatcherRunsInSubmissionOrder(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var mu sync.Mutex
	var got []int

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		d.Submit(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("callback %d ran at position %d", v, i)
		}
	}
}

func TestDispatcherSurvivesPanics(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	ran := false
	d.Submit(func() { panic("callback failure") })
	d.Submit(func() { ran = true })
	d.Flush()

	if !ran {
		t.Error("callback after a panic did not run")
	}
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	d := NewDispatcher()

	count := 0
	for i := 0; i < 10; i++ {
		d.Submit(func() { count++ })
	}
	d.Close()

	if count != 10 {
		t.Errorf("ran %d callbacks before stopping, want 10", count)
	}
	if d.Submit(func() { count++ }) {
		t.Error("Submit accepted a callback after Close")
	}
	// Flush on a closed dispatcher returns immediately.
	d.Flush()
}

func TestErrorMessages(t *testing.T) {
	fe := &FetchError{RequestID: 42, Err: ErrNotFound}
	if fe.Error() != "request 42: asset not found" {
		t.Errorf("FetchError.Error() = %q", fe.Error())
	}
	ce := &CancelledError{RequestID: 7}
	if ce.Error() != "request 7 cancelled" {
		t.Errorf("CancelledError.Error() = %q", ce.Error())
	}
}

func TestParseModes(t *testing.T) {
	for _, mode := range []DeliveryMode{DeliveryOpportunistic, DeliveryHighQuality, DeliveryFastFormat} {
		got, err := ParseDeliveryMode(mode.String())
		if err != nil || got != mode {
			t.Errorf("ParseDeliveryMode(%q) = %v, %v", mode.String(), got, err)
		}
	}
	for _, mode := range []ResizeMode{ResizeNone, ResizeFast, ResizeExact} {
		got, err := ParseResizeMode(mode.String())
		if err != nil || got != mode {
			t.Errorf("ParseResizeMode(%q) = %v, %v", mode.String(), got, err)
		}
	}
	if _, err := ParseDeliveryMode("slow"); err == nil {
		t.Error("ParseDeliveryMode accepted an unknown mode")
	}
	if got, _ := ParseResizeMode(""); got != ResizeFast {
		t.Errorf("ParseResizeMode(\"\") = %v, want fast", got)
	}
	if s := (SourceLocal | SourceRemote).String(); s != "local|remote" {
		t.Errorf("Source.String() = %q", s)
	}
}
