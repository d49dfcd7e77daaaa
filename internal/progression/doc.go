// Package progression is the state machine behind the operator buttons.
//
// An event is idle (nothing current, either not started or run out) or
// running (one run current). Advance, Revert, Reorder and EditEvent each
// run in a single transaction that also replans the event through the
// scheduler, and each returns a Transition describing the committed state
// for the overlay and notification layers to act on afterwards.
//
// The cursor used by NextSlot is the current run's index. With no current
// run it is the highest finished index, so an event that has run out stays
// run out instead of starting again from the top.
package progression
