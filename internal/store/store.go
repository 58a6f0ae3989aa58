package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"copas-crm/internal/util"

	"go.uber.org/zap"
)

const requestTimeout = 15 * time.Second

// Store talks to the hosted Supabase data store through its PostgREST
// interface. Every operation is a single HTTP request; the store's
// schema constraints are the only consistency boundary.
type Store struct {
	baseURL    string
	serviceKey string
	http       *http.Client
	logger     *zap.Logger
}

// NewStore creates a store client for the given Supabase project.
func NewStore(baseURL, serviceKey string) *Store {
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: requestTimeout},
		logger:     util.GetLogger(),
	}
}

// tableURL builds a PostgREST collection URL, e.g.
// <base>/rest/v1/orders?status=eq.new&select=*.
func (s *Store) tableURL(table, query string) string {
	u := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, table)
	if query != "" {
		u += "?" + query
	}
	return u
}

func (s *Store) newRequest(ctx context.Context, method, url string, body any, prefer string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)
	return req, nil
}

// getRows performs a GET against a collection and decodes the row
// array into out.
func (s *Store) getRows(ctx context.Context, table, query string, out any) error {
	return s.do(ctx, http.MethodGet, table, query, nil, "return=representation", out)
}

// writeRows performs a POST or PATCH. When out is non-nil the
// returned representation is decoded into it.
func (s *Store) writeRows(ctx context.Context, method, table, query string, body, out any) error {
	return s.do(ctx, method, table, query, body, "return=representation", out)
}

func (s *Store) do(ctx context.Context, method, table, query string, body any, prefer string, out any) error {
	req, err := s.newRequest(ctx, method, s.tableURL(table, query), body, prefer)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	util.StoreRequestDuration.WithLabelValues(method, table).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read store response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("store returned %d for %s %s: %s", resp.StatusCode, method, table, strings.TrimSpace(string(raw)))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode store response: %w", err)
	}
	return nil
}

// countRows returns the exact row count for a filter using the
// Content-Range header ("0-24/57"). Failures degrade to zero.
func (s *Store) countRows(ctx context.Context, table, query string) int {
	req, err := s.newRequest(ctx, http.MethodGet, s.tableURL(table, query), nil, "count=exact")
	if err != nil {
		s.logger.Warn("count query failed", zap.String("table", table), zap.Error(err))
		return 0
	}

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn("count query failed", zap.String("table", table), zap.Error(err))
		return 0
	}
	defer resp.Body.Close()

	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if idx := strings.LastIndex(cr, "/"); idx >= 0 {
			if n, err := strconv.Atoi(cr[idx+1:]); err == nil {
				return n
			}
		}
	}

	// No usable Content-Range; fall back to counting returned rows.
	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return 0
	}
	return len(rows)
}
