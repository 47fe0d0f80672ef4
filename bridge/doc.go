// Package bridge links the engine to a device agent over one websocket.
//
// The agent reports foreground transitions, screen signals and challenge outcomes. The
// [Hub] forwards transitions into a [foreground.Feed], screen signals and outcomes into
// the engine, and implements [goGuard.Presenter], [goGuard.Suspender], [goGuard.Resumer]
// and [goGuard.ChallengeProvider] by sending commands back to the agent. Only one agent
// is connected at a time; a new connection replaces the old one.
//
// Every call fails with [ErrNoAgent] while no agent is connected, which the engine treats
// as a missing capability.
package bridge
