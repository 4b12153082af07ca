// ABOUTME: Package documentation for the inbound update pipeline
// ABOUTME: Describes stage ordering and the Continue/Halt/Drop contract

// Package pipeline runs every inbound chat update through a fixed list of
// stages before it reaches a business handler.
//
// The order is: stale filter, session load, duplicate filter, expiry
// monitor, auth rate limiter, identity, credential, message rate limiter,
// handler. Each stage returns a Decision. Continue moves on, Halt stops and
// persists the session, Drop stops without persisting it.
package pipeline
