// Package sound maps play requests from simulation objects onto a small
// number of hardware voices.
//
// Every emitter owns a Source. A Source holds a ring of pending commands and
// at most one backend voice; Update, called once per tick, drives the command
// at the tail of the ring through its state machine and keeps the voice fed
// ahead of underrun. A Subsystem owns the backend, the shared asset cache and
// the voice budget. A Process ticks every registered source.
package sound
