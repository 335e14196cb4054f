package slack

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/slack-go/slack"
)

// --- isChannelID tests ---

func TestIsChannelID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"standard channel ID", "C01234567890", true},
		{"short channel ID", "C01234567", true},
		{"mixed alphanumeric", "C0ABC123DEF", true},
		{"too long", "C012345678901234", false},
		{"too short", "C1234567", false},
		{"starts with D", "D01234567890", false},
		{"lowercase letters", "C01234abcdef", false},
		{"channel name", "#mel-alerts", false},
		{"has dashes", "C0123-4567890", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isChannelID(tt.input); got != tt.want {
				t.Errorf("isChannelID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// --- ChannelResolver tests ---

type fakeConversations struct {
	mu      sync.Mutex
	pages   map[string][][]slack.Channel // type -> pages
	errs    map[string]error
	calls   int
	cursors []string
}

func (f *fakeConversations) GetConversationsContext(_ context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cursors = append(f.cursors, params.Cursor)
	kind := params.Types[0]
	if err := f.errs[kind]; err != nil {
		return nil, "", err
	}
	pages := f.pages[kind]
	idx := 0
	if params.Cursor != "" {
		idx = int(params.Cursor[0] - '0')
	}
	if idx >= len(pages) {
		return nil, "", nil
	}
	next := ""
	if idx+1 < len(pages) {
		next = string(rune('0' + idx + 1))
	}
	return pages[idx], next, nil
}

func channel(id, name string) slack.Channel {
	var c slack.Channel
	c.ID = id
	c.Name = name
	return c
}

func TestChannelResolver_AlreadyChannelID(t *testing.T) {
	api := &fakeConversations{}
	resolver := NewChannelResolver(api, nil)

	got, err := resolver.ResolveChannel(context.Background(), "C01234567890")
	if err != nil || got != "C01234567890" {
		t.Errorf("got %q, %v", got, err)
	}
	if api.calls != 0 {
		t.Errorf("channel ids must not hit the API, got %d calls", api.calls)
	}
}

func TestChannelResolver_EmptyInput(t *testing.T) {
	resolver := NewChannelResolver(&fakeConversations{}, nil)
	if _, err := resolver.ResolveChannel(context.Background(), ""); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestChannelResolver_PagesAndCaches(t *testing.T) {
	api := &fakeConversations{pages: map[string][][]slack.Channel{
		"public_channel": {
			{channel("C0AAAAAAAA", "general")},
			{channel("C0BBBBBBBB", "mel-alerts")},
		},
	}}
	resolver := NewChannelResolver(api, nil)

	got, err := resolver.ResolveChannel(context.Background(), "#mel-alerts")
	if err != nil || got != "C0BBBBBBBB" {
		t.Fatalf("got %q, %v", got, err)
	}
	if api.calls != 2 {
		t.Errorf("expected two pages fetched, got %d", api.calls)
	}

	again, _ := resolver.ResolveChannel(context.Background(), "mel-alerts")
	if again != got || api.calls != 2 {
		t.Errorf("expected cache hit, calls=%d", api.calls)
	}

	resolver.ClearCache()
	_, _ = resolver.ResolveChannel(context.Background(), "mel-alerts")
	if api.calls != 4 {
		t.Errorf("expected lookup after ClearCache, calls=%d", api.calls)
	}
}

func TestChannelResolver_FallsBackToPrivate(t *testing.T) {
	api := &fakeConversations{pages: map[string][][]slack.Channel{
		"private_channel": {{channel("C0PRIVATE1", "uti-engclin")}},
	}}
	resolver := NewChannelResolver(api, nil)

	got, err := resolver.ResolveChannel(context.Background(), "uti-engclin")
	if err != nil || got != "C0PRIVATE1" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestChannelResolver_NotFound(t *testing.T) {
	api := &fakeConversations{errs: map[string]error{"private_channel": errors.New("missing_scope")}}
	resolver := NewChannelResolver(api, nil)

	if _, err := resolver.ResolveChannel(context.Background(), "nowhere"); err == nil {
		t.Error("expected not found error")
	}
}

func TestChannelResolver_PublicListFailure(t *testing.T) {
	api := &fakeConversations{errs: map[string]error{"public_channel": errors.New("invalid_auth")}}
	resolver := NewChannelResolver(api, nil)

	if _, err := resolver.ResolveChannel(context.Background(), "mel-alerts"); err == nil {
		t.Error("expected error when public listing fails")
	}
}

func TestChannelResolver_ConcurrentCacheRead(t *testing.T) {
	resolver := NewChannelResolver(&fakeConversations{}, nil)
	resolver.cache["mel-alerts"] = "C01234567890"

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := resolver.ResolveChannel(context.Background(), "#mel-alerts"); err != nil || got != "C01234567890" {
				t.Errorf("got %q, %v", got, err)
			}
		}()
	}
	wg.Wait()
}
