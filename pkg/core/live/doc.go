// Package live implements real-time bidirectional voice sessions for Murmur.
//
// A session streams microphone audio to a remote voice model and plays the
// model's audio replies as they arrive, full duplex, with transcription of
// both sides and spoken stop-command handling.
//
// # Architecture
//
// The package provides several core components:
//
//   - Manager: The session lifecycle orchestrator and state machine
//   - Scheduler: Gapless, interruptible playback of model audio segments
//   - Pipeline: Capture-side framing, s16le encoding and activity gating
//   - Aggregator: Per-turn accumulation of both transcript streams
//   - Detector: Spoken stop-phrase matching with a delayed shutdown timer
//   - WakeTrigger: Always-on wake-phrase recognition for hands-free mode
//
// # Data Flow
//
//	Mic Frames → Pipeline → Channel.Send          Channel.Receive → Manager
//	                 │                                   │
//	                 └── activity flips ── queue ──┬── audio → Scheduler → Sink
//	                                               ├── transcripts → Aggregator
//	                                               └── control → state machine
//
// # State Machine
//
// Externally the session is in exactly one of four states:
//
//	DISCONNECTED → CONNECTING → CONNECTED
//	      ↑             │           │
//	      └─────────── ERROR ←──────┘
//
// ERROR is transitional; every failure ends back at DISCONNECTED. A finer
// visual status (idle, waking, listening, speaking) is derived from the
// state plus live playback and capture activity, never stored.
//
// # Concurrency
//
// One goroutine owns all session state and consumes a single ordered queue.
// Device callbacks, channel receives and timers post messages to that queue;
// blocking work runs off it and reports back the same way.
package live
