// Package jsonbin stores the board document in a JSONBin v3 bin.
package jsonbin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"choreboard/internal/core"
	applog "choreboard/internal/log"
	"choreboard/internal/store"
)

const DefaultBaseURL = "https://api.jsonbin.io/v3"

// Config holds the bin location and the request budget.
type Config struct {
	BaseURL string
	BinID   string
	APIKey  string

	LoadTimeout time.Duration
	SaveTimeout time.Duration
	Retries     int
	RetryDelay  time.Duration

	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 10 * time.Second
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 15 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	return c
}

// DefaultConfig returns the production request budget: 2 retries one second
// apart.
func DefaultConfig(binID, apiKey string) Config {
	return Config{BinID: binID, APIKey: apiKey, Retries: 2}.withDefaults()
}

// Client is a store.Gateway backed by one bin. Partial saves are merged into
// the last document this client loaded or wrote.
type Client struct {
	cfg    Config
	logger *applog.Logger

	mu   sync.Mutex
	last *core.Board
}

// New returns a client. Missing bin id or key yields store.ErrNotConfigured.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BinID) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("jsonbin: %w", store.ErrNotConfigured)
	}
	return &Client{
		cfg:    cfg.withDefaults(),
		logger: applog.Wrap(logger, applog.ComponentJSONBin),
	}, nil
}

type envelope struct {
	Record   json.RawMessage `json:"record"`
	Metadata Metadata        `json:"metadata"`
}

// Metadata is the bin metadata returned by the API.
type Metadata struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Private   bool   `json:"private"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Load fetches the latest record. A brand-new bin holding an empty object is
// seeded with the default board. A record without the two arrays is treated
// as corrupt and replaced by an empty board.
func (c *Client) Load(ctx context.Context) (core.Board, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LoadTimeout)
	defer cancel()

	var env envelope
	if err := c.getJSON(ctx, c.binURL("/latest"), &env); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return core.Board{}, errors.New("jsonbin: timeout while loading data")
		}
		return core.Board{}, fmt.Errorf("jsonbin: load: %w", err)
	}

	raw := bytes.TrimSpace(env.Record)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return core.Board{}, errors.New("jsonbin: no record found in response")
	}

	if isEmptyObject(raw) {
		seed := core.DefaultBoard()
		c.logger.Info("Empty bin, writing default board")
		if err := c.Save(ctx, store.FullPatch(seed)); err != nil {
			return core.Board{}, err
		}
		return seed, nil
	}

	board := decodeRecord(raw, c.logger)
	c.remember(board)
	return board, nil
}

// Save merges the patch into the last known document and writes the whole
// document back, retrying failed attempts.
func (c *Client) Save(ctx context.Context, p store.Patch) error {
	base, err := c.base(ctx, p)
	if err != nil {
		return err
	}
	doc := p.Apply(base)

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("jsonbin: encode board: %w", err)
	}

	attempts := 0
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(c.cfg.Retries)),
		ctx,
	)
	op := func() error {
		attempts++
		err := c.put(ctx, body)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Save attempt failed, retrying",
			applog.FieldAttempt, attempts,
			applog.FieldError, err,
			"retry_in", wait)
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return fmt.Errorf("save failed after %d attempts: %w", attempts, err)
	}

	c.remember(doc)
	return nil
}

// Ping checks that the bin is reachable with the configured key. It reads
// only the metadata, so the cached document is left alone.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Metadata(ctx)
	return err
}

// Metadata returns the bin metadata.
func (c *Client) Metadata(ctx context.Context) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LoadTimeout)
	defer cancel()

	var env struct {
		Metadata Metadata `json:"metadata"`
	}
	if err := c.getJSON(ctx, c.binURL("/meta"), &env); err != nil {
		return Metadata{}, fmt.Errorf("jsonbin: metadata: %w", err)
	}
	return env.Metadata, nil
}

// base returns the document a partial patch is merged into. A full patch
// needs no base; otherwise the bin is read once if nothing is cached.
func (c *Client) base(ctx context.Context, p store.Patch) (core.Board, error) {
	if p.Children != nil && p.Categories != nil {
		return core.EmptyBoard(), nil
	}
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last != nil {
		return last.Clone(), nil
	}
	return c.Load(ctx)
}

func (c *Client) remember(b core.Board) {
	b = b.Clone()
	c.mu.Lock()
	c.last = &b
	c.mu.Unlock()
}

func (c *Client) put(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SaveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.binURL(""), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Master-Key", c.cfg.APIKey)
	req.Header.Set("X-Bin-Versioning", "false")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("timeout while saving data")
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Master-Key", c.cfg.APIKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) binURL(suffix string) string {
	return c.cfg.BaseURL + "/b/" + c.cfg.BinID + suffix
}

var (
	_ store.Gateway = (*Client)(nil)
	_ store.Pinger  = (*Client)(nil)
)
