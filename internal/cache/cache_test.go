// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package cache

import (
	"sync"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New[int](time.Minute, 0)
	defer c.Stop()

	c.Set("stats", 42)
	got, ok := c.Get("stats")
	if !ok || got != 42 {
		t.Fatalf("expected 42, got %v (%v)", got, ok)
	}
	if v, ok := c.Get("missing"); ok || v != 0 {
		t.Errorf("expected zero-value miss, got %v (%v)", v, ok)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Keys != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if rate := stats.HitRate(); rate != 50 {
		t.Errorf("expected 50%% hit rate, got %.1f", rate)
	}
	if (Stats{}).HitRate() != 0 {
		t.Error("expected 0 hit rate without lookups")
	}
}

func TestCache_Expiration(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[string](30*time.Second, 0)
	defer c.Stop()
	c.now = func() time.Time { return now }

	c.Set("stats", "fresh")
	now = now.Add(29 * time.Second)
	if _, ok := c.Get("stats"); !ok {
		t.Fatal("expected entry before expiry")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("stats"); ok {
		t.Fatal("expected entry to expire")
	}
	if s := c.Stats(); s.Evictions != 1 || s.Keys != 0 {
		t.Errorf("expected one eviction and no keys, got %+v", s)
	}
}

func TestCache_PurgeAndClear(t *testing.T) {
	now := time.Now()
	c := New[int](time.Second, 0)
	defer c.Stop()
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.SetWithTTL("b", 2, time.Hour)
	now = now.Add(2 * time.Second)
	c.purgeExpired()

	if s := c.Stats(); s.Keys != 1 || s.Evictions != 1 {
		t.Errorf("expected one key after purge, got %+v", s)
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("expected cache to be empty after Clear")
	}
	if c.Stats().Evictions != 2 {
		t.Errorf("expected Clear to count its eviction, got %d", c.Stats().Evictions)
	}

	c.Set("c", 3)
	c.Delete("c")
	c.Delete("c")
	if c.Stats().Evictions != 3 {
		t.Errorf("expected Delete of a missing key not to count, got %d", c.Stats().Evictions)
	}
}

func TestCache_JanitorAndStop(t *testing.T) {
	c := New[int](time.Millisecond, 5*time.Millisecond)
	c.Set("k", 1)

	deadline := time.Now().Add(time.Second)
	for c.Stats().Keys != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Stats().Keys != 0 {
		t.Error("expected janitor to purge the expired key")
	}
	c.Stop()
	c.Stop()
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](time.Minute, 0)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("k", i)
			c.Get("k")
		}(i)
	}
	wg.Wait()
}

func TestGenerateKey(t *testing.T) {
	a := GenerateKey("stats", map[string]string{"since": "24h"})
	b := GenerateKey("stats", map[string]string{"since": "24h"})
	c := GenerateKey("stats", map[string]string{"since": "7d"})
	if a != b {
		t.Error("expected identical params to produce the same key")
	}
	if a == c {
		t.Error("expected different params to produce different keys")
	}
}

func TestMatcher_FindFirst(t *testing.T) {
	m := NewMatcher([]string{"sqlmap", "curl/", "Go-http-client", ""})

	tests := []struct {
		text    string
		want    string
		matched bool
	}{
		{text: "sqlmap/1.7 (https://sqlmap.org)", want: "sqlmap", matched: true},
		{text: "CURL/8.4.0", want: "curl/", matched: true},
		{text: "go-http-client/2.0", want: "Go-http-client", matched: true},
		{text: "curl is not curl/", want: "curl/", matched: true},
		{text: "Mozilla/5.0 (X11; Linux x86_64)", matched: false},
		{text: "", matched: false},
	}

	for _, tt := range tests {
		got, ok := m.FindFirst(tt.text)
		if ok != tt.matched || got != tt.want {
			t.Errorf("FindFirst(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.matched)
		}
	}
	if m.Len() != 3 {
		t.Errorf("expected empty pattern to be ignored, got %d patterns", m.Len())
	}
}

func TestMatcher_FindAllOverlapping(t *testing.T) {
	m := NewMatcher([]string{"dirb", "dirbuster", "buster"})
	matches := m.FindAll("xDirBuster")

	found := make(map[string]int)
	for _, match := range matches {
		found[match.Pattern] = match.Position
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 overlapping matches, got %+v", matches)
	}
	if found["dirb"] != 1 || found["dirbuster"] != 1 || found["buster"] != 5 {
		t.Errorf("unexpected positions: %v", found)
	}
}

func TestMatcher_Empty(t *testing.T) {
	m := NewMatcher(nil)
	if m.Contains("anything") {
		t.Error("empty matcher should never match")
	}
	if m.FindAll("anything") != nil {
		t.Error("expected nil matches")
	}
}
