package store

import (
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	// should start empty
	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()

	store.Update(HandleState{
		ID:        "01H",
		Identity:  "game.Player.Score",
		Label:     "Score",
		Kind:      "field",
		Text:      "Score: 42",
		Enabled:   true,
		Visible:   true,
		UpdatedAt: time.Now(),
	})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].Text != "Score: 42" {
		t.Errorf("GetAll()[0].Text = %v, want %v", all[0].Text, "Score: 42")
	}

	got, ok := store.Get("01H")
	if !ok || got.Label != "Score" {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
}

func TestMemoryStore_UpdateOverwrites(t *testing.T) {
	store := NewMemoryStore()

	store.Update(HandleState{ID: "a", Text: "Score: 1"})
	store.Update(HandleState{ID: "a", Text: "Score: 2"})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].Text != "Score: 2" {
		t.Errorf("GetAll()[0].Text = %v, want %v", all[0].Text, "Score: 2")
	}
}

func TestMemoryStore_GetAllOrder(t *testing.T) {
	store := NewMemoryStore()

	store.Update(HandleState{ID: "1", Group: "Player", Order: 2, Label: "Name"})
	store.Update(HandleState{ID: "2", Group: "Player", Order: 1, Label: "Score"})
	store.Update(HandleState{ID: "3", Group: "", Label: "Frame", Static: true})
	store.Update(HandleState{ID: "4", Group: "Enemy", Label: "Kind"})

	var got []string
	for _, s := range store.GetAll() {
		got = append(got, s.ID)
	}
	want := []string{"3", "4", "2", "1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetAll() order = %v, want %v", got, want)
		}
	}
}

func TestMemoryStore_Remove(t *testing.T) {
	store := NewMemoryStore()
	store.Update(HandleState{ID: "a"})
	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	store.Remove("a")
	store.Remove("missing")

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}

	select {
	case c := <-ch:
		if c.Type != ChangeRemoved || c.Handle.ID != "a" {
			t.Errorf("change = %+v, want removal of a", c)
		}
	case <-time.After(time.Second):
		t.Fatal("no removal change received")
	}

	select {
	case c := <-ch:
		t.Errorf("unexpected change %+v for unknown id", c)
	default:
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(HandleState{ID: "Test"})
	}()

	select {
	case c := <-ch:
		if c.Type != ChangeUpdated || c.Handle.ID != "Test" {
			t.Errorf("received %+v, want update of Test", c)
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	// update should fanout to all subscribers
	go func() {
		store.Update(HandleState{ID: "Test"})
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)
	store.Unsubscribe(ch)

	// channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// create a subscriber but don't read from it
	_ = store.Subscribe()

	done := make(chan bool)
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			store.Update(HandleState{ID: "Test"})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update(HandleState{ID: "h"})
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
