// Package cache keeps a versioned copy of the app shell and static assets
// fetched from the chat server and its CDNs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kgellert/trimer-client/internal/lib/logger/sl"
	"github.com/kgellert/trimer-client/internal/messages"
	"github.com/kgellert/trimer-client/internal/metrics"
	"github.com/kgellert/trimer-client/internal/storage"
)

const installConcurrency = 4

// forwardedRequest lists the page request headers passed to the network.
var forwardedRequest = []string{
	"Accept",
	"Accept-Language",
	"Content-Type",
	"Range",
	"If-None-Match",
	"If-Modified-Since",
	"X-CSRFToken",
	"X-Requested-With",
}

// Request is a page request to be answered by the cache or the network.
// Body is only sent for methods other than GET and HEAD.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// Response is what Fetch hands back, from the store or from the network.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Cached bool
}

type Manager struct {
	log      *slog.Logger
	store    storage.Store
	client   *http.Client
	origin   *url.URL
	name     string
	precache []string

	now func() time.Time
}

// New returns a manager for the cache version name. Relative URLs resolve
// against origin, and only same-origin responses are stored at runtime.
func New(log *slog.Logger, store storage.Store, client *http.Client, origin, name string, precache []string) (*Manager, error) {
	const op = "cache.New"

	base, err := url.Parse(origin)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%s: %q: %w", op, origin, ErrInvalidURL)
	}

	return &Manager{
		log:      log,
		store:    store,
		client:   client,
		origin:   base,
		name:     name,
		precache: precache,
		now:      time.Now,
	}, nil
}

func (m *Manager) Name() string {
	return m.name
}

// Install fetches every precache URL and stores them together. A single
// failed request leaves the cache untouched.
func (m *Manager) Install(ctx context.Context) error {
	const op = "cache.Install"

	log := m.log.With(slog.String("op", op), slog.String("cache", m.name))

	entries := make([]storage.Entry, len(m.precache))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(installConcurrency)

	for i, raw := range m.precache {
		g.Go(func() error {
			u, err := m.resolve(raw)
			if err != nil {
				return err
			}

			resp, err := m.fetch(gctx, Request{Method: http.MethodGet}, u)
			if err != nil {
				return fmt.Errorf("%s: %w", u, err)
			}
			if resp.Status < 200 || resp.Status > 299 {
				return fmt.Errorf("%s: status %d: %w", u, resp.Status, ErrPrecacheFailed)
			}

			entries[i] = m.entry(u, resp)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, e := range entries {
		if err := m.store.Put(ctx, m.name, e); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("precache installed", slog.Int("entries", len(entries)))

	return nil
}

// Activate deletes every cache except the current version.
func (m *Manager) Activate(ctx context.Context) error {
	const op = "cache.Activate"

	names, err := m.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var stale []string
	for _, name := range names {
		if name != m.name {
			stale = append(stale, name)
		}
	}

	if len(stale) == 0 {
		return nil
	}

	if err := m.store.Delete(ctx, stale...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m.log.Info("stale caches deleted",
		slog.String("op", op),
		slog.Any("caches", stale),
	)

	return nil
}

// Fetch answers GET requests from the store when it can. On a miss the
// network response is returned and a copy is stored when it is a
// same-origin 200. Other methods go to the network with their body.
func (m *Manager) Fetch(ctx context.Context, req Request) (Response, error) {
	const op = "cache.Fetch"

	u, err := m.resolve(req.URL)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", op, err)
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	if req.Method != http.MethodGet {
		metrics.CacheResult(metrics.CacheBypass)
		resp, err := m.fetch(ctx, req, u)
		if err != nil {
			return Response{}, fmt.Errorf("%s: %w", op, err)
		}
		return resp, nil
	}

	e, err := m.store.Match(ctx, m.name, u.String())
	if err == nil {
		metrics.CacheResult(metrics.CacheHit)
		return Response{Status: e.Status, Header: e.Header, Body: e.Body, Cached: true}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		m.log.Warn("cache lookup failed", slog.String("op", op), sl.Err(err))
	}

	metrics.CacheResult(metrics.CacheMiss)

	resp, err := m.fetch(ctx, req, u)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", op, err)
	}

	if resp.Status == http.StatusOK && m.sameOrigin(u) {
		if err := m.store.Put(ctx, m.name, m.entry(u, resp)); err != nil {
			m.log.Warn("failed to store response",
				slog.String("op", op),
				slog.String("url", u.String()),
				sl.Err(err),
			)
		} else {
			metrics.CacheResult(metrics.CacheStored)
		}
	}

	return resp, nil
}

// fetch wraps network failures in messages.ErrTransport.
func (m *Manager) fetch(ctx context.Context, r Request, u *url.URL) (Response, error) {
	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return Response{}, err
	}
	for _, k := range forwardedRequest {
		if v := r.Header.Get(k); v != "" {
			req.Header.Set(k, v)
		}
	}

	res, err := m.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", messages.ErrTransport, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", messages.ErrTransport, err)
	}

	return Response{Status: res.StatusCode, Header: res.Header.Clone(), Body: data}, nil
}

func (m *Manager) entry(u *url.URL, resp Response) storage.Entry {
	return storage.Entry{
		URL:      u.String(),
		Status:   resp.Status,
		Header:   resp.Header,
		Body:     resp.Body,
		StoredAt: m.now(),
	}
}

func (m *Manager) resolve(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidURL
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidURL)
	}

	u := m.origin.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidURL)
	}

	return u, nil
}

func (m *Manager) sameOrigin(u *url.URL) bool {
	return u.Scheme == m.origin.Scheme && u.Host == m.origin.Host
}
