package sharesync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/i5heu/sharesync/internal/diskcheck"
	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/pull"
	"github.com/i5heu/sharesync/pkg/push"
	"github.com/i5heu/sharesync/pkg/syncstore"
	"github.com/i5heu/sharesync/pkg/synctransport"
	"github.com/i5heu/sharesync/pkg/uploadloop"
)

// Config configures a Client. New rejects an empty Path.RepoName or
// DataDir; BaseURL is used as given, with no default, and the remaining
// fields are optional.
type Config struct {
	// BaseURL is the Share instance's base URL, e.g. "https://example.org".
	BaseURL string
	// Path identifies the remote repo/segments this Client synchronizes.
	Path synctransport.Path
	// DataDir is the local badger data directory backing the object store.
	DataDir string
	// MinimumFreeGB is a free-space threshold checked before opening the
	// store. Zero disables the check.
	MinimumFreeGB uint
	// BearerToken, if non-empty, is sent as "Authorization: Bearer <token>"
	// on every request.
	BearerToken string
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger
}

func defaultLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(h)
}

// Client is the main database handle: it owns the local store and the
// transport for the lifetime of a process and exposes the three sync
// entry points spec.md §4 names.
type Client struct {
	log    *slog.Logger
	config Config

	store     *syncstore.BadgerStore
	transport synctransport.Transport
}

// New opens (or creates) the local store at conf.DataDir and builds an
// HTTP transport against conf.BaseURL.
func New(conf Config) (*Client, error) {
	if conf.DataDir == "" {
		return nil, fmt.Errorf("sharesync: DataDir is required")
	}
	if conf.Path.RepoName == "" {
		return nil, fmt.Errorf("sharesync: Path.RepoName is required")
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}

	store, err := syncstore.Open(syncstore.Config{
		Path:          conf.DataDir,
		MinimumFreeGB: conf.MinimumFreeGB,
	}, diskcheck.Check)
	if err != nil {
		return nil, fmt.Errorf("sharesync: open store: %w", err)
	}

	header := http.Header{}
	if conf.BearerToken != "" {
		header.Set("Authorization", "Bearer "+conf.BearerToken)
	}
	transport := synctransport.NewHTTPTransport(conf.BaseURL, header)

	return &Client{
		log:       conf.Logger,
		config:    conf,
		store:     store,
		transport: transport,
	}, nil
}

// Close releases the local store.
func (c *Client) Close() error {
	return c.store.Close()
}

// CheckAndSetPush atomically replaces the remote head at the Client's
// path with local, uploading any transitively missing dependencies the
// server demands (spec.md §4.5).
func (c *Client) CheckAndSetPush(
	ctx context.Context,
	expectedHash *hash.Hash32,
	local hash.CausalHash,
	progress uploadloop.ProgressFunc,
) error {
	c.log.InfoContext(ctx, "check-and-set push starting", "path", c.config.Path, "local", local.String())
	err := push.CheckAndSet(ctx, c.store, c.transport, c.config.Path, expectedHash, local, progress)
	if err != nil {
		c.log.ErrorContext(ctx, "check-and-set push failed", "error", err)
		return err
	}
	c.log.InfoContext(ctx, "check-and-set push succeeded", "local", local.String())
	return nil
}

// FastForwardPush advances the remote head at the Client's path along
// the known causal chain up to local (spec.md §4.6).
func (c *Client) FastForwardPush(
	ctx context.Context,
	local hash.CausalHash,
	progress uploadloop.ProgressFunc,
) error {
	c.log.InfoContext(ctx, "fast-forward push starting", "path", c.config.Path, "local", local.String())
	err := push.FastForward(ctx, c.store, c.store, c.transport, c.config.Path, local, progress)
	if err != nil {
		c.log.ErrorContext(ctx, "fast-forward push failed", "error", err)
		return err
	}
	c.log.InfoContext(ctx, "fast-forward push succeeded", "local", local.String())
	return nil
}

// Pull downloads the Client's path's remote causal and every
// transitively required entity, returning the resolved causal hash
// (spec.md §4.7).
func (c *Client) Pull(ctx context.Context, cb pull.Callbacks) (hash.Hash32, error) {
	c.log.InfoContext(ctx, "pull starting", "path", c.config.Path)
	h, err := pull.Pull(ctx, c.store, c.transport, c.config.Path, c.config.Path.RepoName, cb)
	if err != nil {
		c.log.ErrorContext(ctx, "pull failed", "error", err)
		return hash.Hash32{}, err
	}
	c.log.InfoContext(ctx, "pull succeeded", "head", h.String())
	return h, nil
}
