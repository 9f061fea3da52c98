// Package dialog drives multi-step conversations ("wizards") on top of the
// session store. Each wizard is a transition table keyed by state; the engine
// adds the cross-cutting rules: cancel keywords, completion cleanup and the
// completion hook.
package dialog
