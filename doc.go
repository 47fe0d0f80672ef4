// Package goGuard is an application-lock guard engine. It watches which application is in
// the foreground and interrupts protected applications with an authentication challenge
// unless they were unlocked within a grace period.
//
// # Architecture
//
// An [Engine] runs one serialized monitoring loop ([Engine.Run]). Every tick queries an
// [EventSource] for foreground transitions since the previous tick, deduplicates them and
// feeds each new application through the lock decision. A challenge starts an
// authentication session (see package session) that asks a [Presenter] to show the
// challenge affordance, a [Suspender] to push the target to the background and a
// [ChallengeProvider] to run the actual verification. The provider reports back through
// [Engine.Resolve] with the signed ticket it received.
//
// Provider outcomes, screen signals and session timers are all delivered as messages into
// the same loop, so monitor state and the session registry are never touched concurrently.
//
// # Persistence
//
// The locked-app registry and the grant table are read through on every decision. Use
// [Builder.WithStore] for any [storage.Store], or [Builder.WithRedis] / [Builder.WithBolt]
// for the bundled backends.
//
// # Failure semantics
//
// Every failure fails closed. A grant is written only after a provider reported success
// for a live session with a valid ticket.
package goGuard
