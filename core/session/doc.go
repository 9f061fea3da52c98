// Package session keeps the per-sender dialog sessions of the bot.
// It is domain-agnostic: dialog kinds and states are opaque strings here.
package session
