// Package ime is the keyboard's input controller: it turns key actions and
// gestures into engine calls and edits of the host text field.
//
// # Data Flow
//
//	┌────────────────┐
//	│  Touch / Key   │
//	└───────┬────────┘
//	        ↓
//	┌────────────────┐     ┌─────────────────────────────────────────┐
//	│ gesture        │     │ For each gesture:                       │
//	│ Resolver       │────→│ 1. Look the key up in the layout        │
//	└───────┬────────┘     │ 2. Classify tap, swipe or long press    │
//	        │              │ 3. Pick the bound action                │
//	        ↓              └─────────────────────────────────────────┘
//	┌────────────────┐
//	│ Controller     │──── direct edits ────→ TextProxy
//	│                │
//	│ • ASCII mode   │
//	│ • Shift state  │
//	│ • Short cmds   │
//	└───────┬────────┘
//	        ↓
//	┌────────────────┐     ┌────────────────┐
//	│ rime.Manager   │────→│ candidate      │
//	│ (engine calls) │     │ Pager          │
//	└───────┬────────┘     └───────┬────────┘
//	        ↓                      ↓
//	   committed text      broadcast.Value[State]
//	   → TextProxy         → keyboard view
//
// # Ordering
//
// Every entry point takes the controller lock, so actions apply in the
// order they arrive. Suggestions are replaced only by a page read against
// the same or a newer input generation.
//
// # ASCII Mode
//
// ASCII mode is local to the keyboard. Switching it on commits any open
// composition as typed, and later characters go straight to the document
// without reaching the engine.
package ime
