// Package flow implements a small state machine engine for multi-step
// conversational interfaces. A conversation is declared once as an immutable
// Definition (a graph of Steps connected by named actions), and every live
// traversal of that graph is a Session owned by a single user. The Dispatcher
// consumes interaction events from a host bot framework, serializes them per
// session, and produces render instructions the host translates into UI
// updates. The engine never inspects step payloads; rendering is entirely the
// host's concern.
package flow
