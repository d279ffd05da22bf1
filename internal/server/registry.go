// Package server keeps the set of admitted clients in a Registry that can be
// iterated by broadcasts while workers concurrently remove themselves.
package server

import (
	"sort"
	"sync"
)

// Entry is one admitted client and the nickname it registered with.
type Entry struct {
	Client *Client
	Nick   string
}

// Registry maps every admitted client to its nickname. A client is present
// if and only if it completed the handshake and has not been removed since.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]string
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[*Client]string),
	}
}

// Add admits client under nick and moves it to StateActive while the lock
// is held, so a concurrent Snapshot never sees a registered client that is
// still handshaking.
func (r *Registry) Add(client *Client, nick string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client.setState(StateActive)
	r.clients[client] = nick
}

// Remove deletes client from the registry and reports whether it was
// present. Removing an absent client is a no-op.
func (r *Registry) Remove(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client]; !ok {
		return false
	}
	delete(r.clients, client)
	return true
}

// Snapshot returns a copy of the current entries that is safe to traverse
// after the lock is released.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.clients))
	for client, nick := range r.clients {
		entries = append(entries, Entry{Client: client, Nick: nick})
	}
	return entries
}

// Nickname returns the nickname client registered with.
func (r *Registry) Nickname(client *Client) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nick, ok := r.clients[client]
	return nick, ok
}

// Nicknames returns the sorted nicknames of every registered client.
// Duplicates are kept because nicknames are not unique.
func (r *Registry) Nicknames() []string {
	r.mu.RLock()
	nicks := make([]string, 0, len(r.clients))
	for _, nick := range r.clients {
		nicks = append(nicks, nick)
	}
	r.mu.RUnlock()

	sort.Strings(nicks)
	return nicks
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
