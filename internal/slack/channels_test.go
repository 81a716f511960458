package slack

import (
	"context"
	"sync"
	"testing"
)

func TestIsChannelID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"C01234567890", true},
		{"G0123456789", true},
		{"C0123", false},
		{"maintenance", false},
		{"#maintenance", false},
		{"c01234567890", false},
		{"C0123456789a", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isChannelID(tt.input); got != tt.want {
				t.Errorf("isChannelID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestChannelResolver_PassesThroughIDs(t *testing.T) {
	resolver := &ChannelResolver{cache: map[string]string{}}

	got, err := resolver.ResolveChannel(context.Background(), "C01234567890")
	if err != nil || got != "C01234567890" {
		t.Errorf("ResolveChannel() = %q, %v", got, err)
	}
	if _, err := resolver.ResolveChannel(context.Background(), ""); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestChannelResolver_CacheHit(t *testing.T) {
	resolver := &ChannelResolver{
		client: nil, // a cache hit never reaches the API
		cache:  map[string]string{"hostel-maintenance": "C01234567890"},
	}

	for _, name := range []string{"#hostel-maintenance", "hostel-maintenance"} {
		got, err := resolver.ResolveChannel(context.Background(), name)
		if err != nil || got != "C01234567890" {
			t.Errorf("ResolveChannel(%q) = %q, %v", name, got, err)
		}
	}

	resolver.ClearCache()
	if len(resolver.cache) != 0 {
		t.Errorf("cache should be empty after clear, got %d entries", len(resolver.cache))
	}
}

func TestChannelResolver_ConcurrentAccess(t *testing.T) {
	resolver := &ChannelResolver{cache: map[string]string{"ops": "C01234567890"}}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			resolver.ResolveChannel(context.Background(), "C09876543210")
		}()
		go func() {
			defer wg.Done()
			resolver.mu.RLock()
			_ = resolver.cache["ops"]
			resolver.mu.RUnlock()
		}()
	}
	wg.Wait()
}
