// Package telegram implements the ingest.Transport contract on top of the
// MTProto client from gotd/td: user-session authentication, channel
// resolution, ascending history pagination, and media download.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/ethiomart/telepipe/internal/ingest"
)

// historyBatchSize is the page size for MessagesGetHistory requests.
const historyBatchSize = 100

// Config holds the MTProto credentials and session location.
type Config struct {
	APIID       int
	APIHash     string
	Phone       string
	SessionFile string
}

// Client wraps a gotd MTProto client and implements ingest.Transport.
type Client struct {
	client *telegram.Client
	cfg    Config
	logger *slog.Logger

	// Channel access hashes learned during resolution, needed to build
	// input peers for history and download requests.
	mu           sync.Mutex
	accessHashes map[int64]int64

	ready  chan struct{}
	cancel context.CancelFunc
}

// NewClient creates a Client from the given credentials. The session is
// persisted to cfg.SessionFile so reruns skip interactive authentication.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIID == 0 || cfg.APIHash == "" {
		return nil, errors.New("telegram api_id and api_hash are required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		cfg:          cfg,
		logger:       logger.With("component", "telegram"),
		accessHashes: make(map[int64]int64),
		ready:        make(chan struct{}),
	}
	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})
	return c, nil
}

// Run starts the client loop, authenticates if necessary, signals readiness,
// and blocks until ctx is cancelled. Intended to run in its own goroutine
// alongside the pipeline.
func (c *Client) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	err := c.client.Run(runCtx, func(ctx context.Context) error {
		flow := auth.NewFlow(termAuth{phone: c.cfg.Phone}, auth.SendCodeOptions{})
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		c.logger.Info("Telegram client authenticated and ready")
		close(c.ready)
		<-ctx.Done()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram client stopped: %w", err)
	}
	c.logger.Info("Telegram client stopped")
	return nil
}

// Ready returns a channel closed once the client is authenticated.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Close stops the client loop.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Resolve maps a channel reference (t.me URL, @handle, or bare username) to
// a channel handle, remembering the access hash for later requests.
func (c *Client) Resolve(ctx context.Context, ref string) (*ingest.ChannelHandle, error) {
	username := normalizeRef(ref)

	res, err := c.client.API().ContactsResolveUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve username %s: %w", username, err)
	}

	peer, ok := res.Peer.(*tg.PeerChannel)
	if !ok {
		return nil, fmt.Errorf("reference %s resolved to %T, want a channel", ref, res.Peer)
	}

	var channel *tg.Channel
	for _, chat := range res.Chats {
		if ch, ok := chat.(*tg.Channel); ok && ch.ID == peer.ChannelID {
			channel = ch
			break
		}
	}
	if channel == nil {
		return nil, fmt.Errorf("resolution for %s returned no channel object", ref)
	}

	c.mu.Lock()
	c.accessHashes[channel.ID] = channel.AccessHash
	c.mu.Unlock()

	return &ingest.ChannelHandle{ID: channel.ID, Title: channel.Title}, nil
}

// Messages returns an iterator over the channel's history, oldest first,
// yielding at most limit messages.
func (c *Client) Messages(ctx context.Context, handle *ingest.ChannelHandle, limit int) ingest.MessageIter {
	return &historyIter{
		client: c,
		handle: handle,
		limit:  limit,
		// OffsetID 1 with a negative AddOffset starts the walk at the
		// beginning of the history.
		offsetID: 1,
	}
}

// Download fetches the media bytes into dest using the location captured
// when the message was mapped.
func (c *Client) Download(ctx context.Context, media *ingest.Media, dest string) error {
	loc, ok := media.Ref.(tg.InputFileLocationClass)
	if !ok {
		return fmt.Errorf("media has no usable download location (got %T)", media.Ref)
	}
	if _, err := downloader.NewDownloader().Download(c.client.API(), loc).ToPath(ctx, dest); err != nil {
		return fmt.Errorf("download to %s failed: %w", dest, err)
	}
	return nil
}

func (c *Client) inputPeer(handle *ingest.ChannelHandle) (tg.InputPeerClass, error) {
	c.mu.Lock()
	hash, ok := c.accessHashes[handle.ID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("channel %d has not been resolved", handle.ID)
	}
	return &tg.InputPeerChannel{ChannelID: handle.ID, AccessHash: hash}, nil
}

// normalizeRef strips t.me URL prefixes and the leading @ from a channel
// reference.
func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(ref, prefix) {
			ref = strings.TrimPrefix(ref, prefix)
			break
		}
	}
	return strings.TrimPrefix(strings.TrimSuffix(ref, "/"), "@")
}

// historyIter pages through a channel's history in ascending message order.
type historyIter struct {
	client *Client
	handle *ingest.ChannelHandle
	limit  int

	offsetID int
	fetched  int
	buf      []ingest.Message
	idx      int
	cur      ingest.Message
	done     bool
	err      error
}

func (it *historyIter) Next(ctx context.Context) bool {
	for {
		if it.err != nil || it.done {
			return false
		}
		if it.idx < len(it.buf) {
			it.cur = it.buf[it.idx]
			it.idx++
			it.fetched++
			if it.fetched >= it.limit {
				it.done = true
			}
			return true
		}
		if err := it.fill(ctx); err != nil {
			it.err = err
			return false
		}
	}
}

func (it *historyIter) Message() ingest.Message { return it.cur }

func (it *historyIter) Err() error { return it.err }

// fill fetches the next page. Telegram returns pages newest-first; each page
// is reversed so the iterator yields ascending ids.
func (it *historyIter) fill(ctx context.Context) error {
	peer, err := it.client.inputPeer(it.handle)
	if err != nil {
		return err
	}

	batch := historyBatchSize
	if remaining := it.limit - it.fetched; remaining < batch {
		batch = remaining
	}
	if batch <= 0 {
		it.done = true
		return nil
	}

	res, err := it.client.client.API().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:      peer,
		OffsetID:  it.offsetID,
		AddOffset: -batch,
		Limit:     batch,
	})
	if err != nil {
		return fmt.Errorf("failed to get history for channel %d: %w", it.handle.ID, err)
	}

	var raw []tg.MessageClass
	switch msgs := res.(type) {
	case *tg.MessagesMessages:
		raw = msgs.Messages
	case *tg.MessagesChannelMessages:
		raw = msgs.Messages
	default:
		return fmt.Errorf("unexpected history result type %T", res)
	}

	if len(raw) == 0 {
		it.done = true
		return nil
	}

	it.buf, it.idx = it.buf[:0], 0
	maxID := it.offsetID - 1
	for i := len(raw) - 1; i >= 0; i-- {
		// Pages arrive newest-first; walk backwards for ascending ids.
		if id := messageID(raw[i]); id > maxID {
			maxID = id
		}
		msg, ok := raw[i].(*tg.Message)
		if !ok {
			// Service messages carry no text or media.
			continue
		}
		if msg.ID < it.offsetID {
			continue
		}
		it.buf = append(it.buf, mapMessage(msg))
	}
	it.offsetID = maxID + 1
	return nil
}

func messageID(msg tg.MessageClass) int {
	switch m := msg.(type) {
	case *tg.Message:
		return m.ID
	case *tg.MessageService:
		return m.ID
	case *tg.MessageEmpty:
		return m.ID
	default:
		return 0
	}
}
