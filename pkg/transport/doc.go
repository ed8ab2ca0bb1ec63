// Package transport provides HTTP clients that open streaming response
// bodies from upstream model backends. A Client speaks to one backend;
// a Router dispatches requests to a Client by provider name, so a single
// engine can fan out across heterogeneous backends.
package transport
