package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"PenguinWatch.dashboard/internal/models"
)

// ErrSuperseded is returned by Search when a newer search started before
// this one finished. Its results were discarded.
var ErrSuperseded = errors.New("search superseded by a newer query")

// searchState sequences searches per client. Tickets come from one counter
// so a ticket is never reused, even after a client's entry is dropped.
type searchState struct {
	mu      sync.Mutex
	seq     uint64
	clients map[string]*searchTicket
}

type searchTicket struct {
	id     uint64
	cancel context.CancelFunc
}

// begin issues the next ticket for client and cancels the search it replaces.
func (s *searchState) begin(ctx context.Context, client string) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients == nil {
		s.clients = map[string]*searchTicket{}
	}
	if prev, ok := s.clients[client]; ok {
		prev.cancel()
	}
	s.seq++
	ctx, cancel := context.WithCancel(ctx)
	s.clients[client] = &searchTicket{id: s.seq, cancel: cancel}
	return ctx, s.seq
}

// currentLocked must be called with s.mu held.
func (s *searchState) currentLocked(client string, ticket uint64) bool {
	t, ok := s.clients[client]
	return ok && t.id == ticket
}

func (s *searchState) current(client string, ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(client, ticket)
}

// finish releases the context of ticket and forgets the client if the ticket
// is still its newest.
func (s *searchState) finish(client string, ticket uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentLocked(client, ticket) {
		s.clients[client].cancel()
		delete(s.clients, client)
	}
}

// Search looks up penguin ids containing q. Only the newest call applies its
// results; older calls still in flight are cancelled and get ErrSuperseded.
// An empty query clears the results.
func (d *Dashboard) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	return d.SearchFor(ctx, "", q)
}

// SearchFor is Search with sequencing scoped to client, so one client typing
// never cancels the search of another.
func (d *Dashboard) SearchFor(ctx context.Context, client, q string) ([]models.SearchResult, error) {
	ctx, ticket := d.search.begin(ctx, client)
	defer d.search.finish(client, ticket)

	if strings.TrimSpace(q) == "" {
		d.setSearchResults(client, ticket, nil)
		return nil, nil
	}

	results, err := d.fetch.Search(ctx, q)
	if !d.search.current(client, ticket) {
		return nil, ErrSuperseded
	}
	if err != nil {
		d.log.Error().Err(err).Str("query", q).Msg("search failed")
		return nil, err
	}
	if !d.setSearchResults(client, ticket, results) {
		return nil, ErrSuperseded
	}
	return results, nil
}

// setSearchResults applies results when ticket is still the newest of client.
func (d *Dashboard) setSearchResults(client string, ticket uint64, results []models.SearchResult) bool {
	d.search.mu.Lock()
	defer d.search.mu.Unlock()
	if !d.search.currentLocked(client, ticket) {
		return false
	}
	d.mu.Lock()
	d.view.SearchResults = append([]models.SearchResult(nil), results...)
	d.mu.Unlock()
	return true
}
