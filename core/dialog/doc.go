// Package dialog provides a stack-based conversation engine for chat bots.
// Flows are static state graphs; a session keeps a navigation stack of flow
// frames per user, and the engine applies at most one transition per
// dispatched event. It is intentionally transport-agnostic so it can be
// driven by any messaging adapter.
package dialog
