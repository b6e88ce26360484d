// Package notify batches operator messages to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/time/rate"

	"spotengine/internal/bus"
)

const (
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxPostChars  = 2000
)

// Option tunes a Discord notifier.
type Option struct {
	FlushInterval time.Duration
	MaxPostChars  int
}

// Discord queues messages and posts them in batches. A nil *Discord drops
// everything.
type Discord struct {
	client   *http.Client
	webhook  string
	interval time.Duration
	maxChars int
	queue    *bus.Queue[string]
	limiter  *rate.Limiter
}

// NewDiscord returns nil when webhook is empty.
func NewDiscord(client *http.Client, webhook string, opt Option) *Discord {
	if webhook == "" {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	if opt.FlushInterval <= 0 {
		opt.FlushInterval = DefaultFlushInterval
	}
	if opt.MaxPostChars <= 0 || opt.MaxPostChars > DefaultMaxPostChars {
		opt.MaxPostChars = DefaultMaxPostChars
	}
	return &Discord{
		client:   client,
		webhook:  webhook,
		interval: opt.FlushInterval,
		maxChars: opt.MaxPostChars,
		queue:    bus.NewQueue[string](),
		limiter:  rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

// Notify queues one line.
func (d *Discord) Notify(msg string) {
	if d == nil || msg == "" {
		return
	}
	_ = d.queue.Publish(msg)
}

// Notifyf queues one formatted line.
func (d *Discord) Notifyf(format string, args ...any) {
	if d == nil {
		return
	}
	d.Notify(fmt.Sprintf(format, args...))
}

// Run flushes every interval until ctx is done, then flushes what is left.
func (d *Discord) Run(ctx context.Context) {
	if d == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			d.Flush(flushCtx)
			cancel()
			d.queue.Close()
			return
		case <-ticker.C:
			d.Flush(ctx)
		}
	}
}

// Flush posts every queued line, packed into as few posts as the size cap
// allows.
func (d *Discord) Flush(ctx context.Context) {
	if d == nil {
		return
	}
	lines := d.queue.Drain()
	if len(lines) == 0 {
		return
	}
	for _, post := range pack(lines, d.maxChars) {
		if err := d.post(ctx, post); err != nil {
			logs.Errorf("discord post, err: %+v", err)
			return
		}
	}
}

func (d *Discord) post(ctx context.Context, content string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := sonic.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send webhook")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// pack joins lines with newlines into posts of at most max runes. A line
// longer than max is split across posts.
func pack(lines []string, max int) []string {
	var (
		posts []string
		cur   strings.Builder
		n     int
	)
	emit := func() {
		if n > 0 {
			posts = append(posts, cur.String())
			cur.Reset()
			n = 0
		}
	}

	for _, line := range lines {
		for _, piece := range split(line, max) {
			size := utf8.RuneCountInString(piece)
			if n > 0 && n+1+size > max {
				emit()
			}
			if n > 0 {
				cur.WriteByte('\n')
				n++
			}
			cur.WriteString(piece)
			n += size
		}
	}
	emit()
	return posts
}

func split(line string, max int) []string {
	if utf8.RuneCountInString(line) <= max {
		return []string{line}
	}
	runes := []rune(line)
	out := make([]string, 0, len(runes)/max+1)
	for len(runes) > max {
		out = append(out, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
