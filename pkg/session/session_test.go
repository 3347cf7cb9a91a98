// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestGetOrCreateGeneratesID(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	s, id := st.GetOrCreate(ctx, "alice", "")
	if id == "" {
		t.Fatal("expected a generated session id")
	}
	if s.UserID != "alice" || s.SessionID != id {
		t.Errorf("unexpected session identity: %+v", s)
	}

	// Same pair resolves to the same session.
	s2, id2 := st.GetOrCreate(ctx, "alice", id)
	if id2 != id {
		t.Errorf("session id changed: %s != %s", id2, id)
	}
	if s2 != s {
		t.Error("expected the same session instance")
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 session, got %d", st.Len())
	}
}

func TestAppendAndMessages(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	_, id := st.GetOrCreate(ctx, "bob", "s1")
	if err := st.Append(ctx, "bob", id, Message{Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := st.Append(ctx, "bob", id, Message{Role: "assistant", Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs := st.Messages(ctx, "bob", id)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi" {
		t.Errorf("unexpected order: %v", msgs)
	}
	if msgs[0].ID == "" || msgs[0].CreatedAt.IsZero() {
		t.Error("expected generated ID and timestamp")
	}

	// Returned slice is a copy.
	msgs[0].Content = "mutated"
	if st.Messages(ctx, "bob", id)[0].Content != "hello" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestRecent(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	_, id := st.GetOrCreate(ctx, "bob", "s2")
	for i := 0; i < 5; i++ {
		if err := st.Append(ctx, "bob", id, Message{Role: "user", Content: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recent := st.Recent(ctx, "bob", id, 2)
	if len(recent) != 2 || recent[0].Content != "m3" || recent[1].Content != "m4" {
		t.Errorf("unexpected recent window: %v", recent)
	}
	if got := st.Recent(ctx, "bob", id, 0); len(got) != 5 {
		t.Errorf("n<=0 should return full history, got %d", len(got))
	}
	if got := st.Recent(ctx, "bob", id, 10); len(got) != 5 {
		t.Errorf("n beyond history should return all, got %d", len(got))
	}
}

func TestAppendUnknownSession(t *testing.T) {
	st := NewStore()
	err := st.Append(context.Background(), "nobody", "none", Message{Role: "user", Content: "x"})
	if err == nil {
		t.Fatal("expected an error for unknown session")
	}
}

func TestDeleteAndList(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	st.GetOrCreate(ctx, "alice", "a")
	st.GetOrCreate(ctx, "bob", "b")

	keys := st.List()
	if len(keys) != 2 || keys[0] != "alice_a" || keys[1] != "bob_b" {
		t.Errorf("unexpected keys: %v", keys)
	}

	if !st.Delete(ctx, "alice", "a") {
		t.Error("expected delete to report true")
	}
	if st.Delete(ctx, "alice", "a") {
		t.Error("expected second delete to report false")
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 session, got %d", st.Len())
	}
}

func TestConcurrentAppend(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	_, id := st.GetOrCreate(ctx, "carol", "shared")

	const writers = 16
	const perWriter = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_ = st.Append(ctx, "carol", id, Message{
					Role:    "user",
					Content: fmt.Sprintf("w%d-%d", n, j),
				})
			}
		}(i)
	}
	wg.Wait()

	if got := len(st.Messages(ctx, "carol", id)); got != writers*perWriter {
		t.Errorf("expected %d messages, got %d", writers*perWriter, got)
	}
}
