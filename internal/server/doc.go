// Package server exposes the voice relay over HTTP. It upgrades clients to
// websockets, runs one orchestrated session per connection and shuts all of
// them down together.
package server
