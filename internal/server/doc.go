// Package server implements the GoChat TCP broadcast chat server.
//
// A Server accepts TCP connections (and, optionally, WebSocket connections on
// an HTTP gateway), caps how many connections one source host may hold,
// exchanges the NICK prompt for a nickname, and then runs one worker
// goroutine per client. Every chunk a client sends is broadcast as
// {"nick":...,"msg":...} to all registered clients, the sender included.
// Joins and departures are announced as plain-text system messages.
//
// The wire protocol is unframed: one read is one message. Handshake, idle
// and write timeouts exist in Config but are off by default.
package server
