package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookRecorder struct {
	mu    sync.Mutex
	posts []string
}

func (w *webhookRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		assert.NoError(t, sonic.ConfigDefault.NewDecoder(r.Body).Decode(&body))
		w.mu.Lock()
		w.posts = append(w.posts, body["content"])
		w.mu.Unlock()
		rw.WriteHeader(http.StatusNoContent)
	}
}

func (w *webhookRecorder) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.posts...)
}

func TestDiscordBatchesLines(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	d := NewDiscord(srv.Client(), srv.URL, Option{})
	d.Notify("start")
	d.Notifyf("BUY %s quoteOrderQty=%d", "ETHUSDT", 100)
	d.Notify("")
	d.Flush(context.Background())
	d.Flush(context.Background())

	assert.Equal(t, []string{"start\nBUY ETHUSDT quoteOrderQty=100"}, rec.snapshot())
}

func TestDiscordRunFlushesOnShutdown(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	d := NewDiscord(srv.Client(), srv.URL, Option{FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Notify("bye")
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
	assert.Equal(t, []string{"bye"}, rec.snapshot())
}

func TestNilDiscordDropsMessages(t *testing.T) {
	d := NewDiscord(nil, "", Option{})
	assert.Nil(t, d)
	d.Notify("x")
	d.Flush(context.Background())
	d.Run(context.Background())
}

func TestPackRespectsCap(t *testing.T) {
	posts := pack([]string{"aaaa", "bbbb", "cc"}, 9)
	assert.Equal(t, []string{"aaaa\nbbbb", "cc"}, posts)

	long := strings.Repeat("x", 25)
	posts = pack([]string{long, "y"}, 10)
	require.Len(t, posts, 3)
	assert.Equal(t, strings.Repeat("x", 10), posts[0])
	assert.Equal(t, strings.Repeat("x", 10), posts[1])
	assert.Equal(t, "xxxxx\ny", posts[2])
	for _, p := range posts {
		assert.LessOrEqual(t, len([]rune(p)), 10)
	}
}

func TestPackCountsRunes(t *testing.T) {
	posts := pack([]string{"日本語", "日本"}, 6)
	assert.Equal(t, []string{"日本語\n日本"}, posts)
}
