// Package engine wires the streaming time-series engine together.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Source    │────▶│  Ingestion  │────▶│   Buffer    │
//	│ (synthetic/ │     │    tick     │     │ (ring arena)│
//	│ snmp/stream)│     └─────────────┘     └──────┬──────┘
//	└─────────────┘                                │ snapshot
//	              ┌───────────────┬────────────────┼───────────────┐
//	              ▼               ▼                ▼               ▼
//	       ┌────────────┐  ┌────────────┐   ┌────────────┐  ┌────────────┐
//	       │   Filter   │  │ Aggregate  │   │   Render   │  │  Virtual   │
//	       │            │  │  (on call) │   │    tick    │  │   window   │
//	       └────────────┘  └────────────┘   └─────┬──────┘  └────────────┘
//	                                              │ viewport → lod → coords
//	                                              ▼
//	                                       ┌────────────┐     ┌────────────┐
//	                                       │  Metrics   │────▶│  Adaptive  │
//	                                       │  sampler   │     │   detail   │
//	                                       └────────────┘     └────────────┘
//
// Three tickers drive the engine: ingestion (default 100ms), render (1s/fps)
// and the metrics snapshot (default 1s). Only the buffer snapshot and the
// sampler's frame ring cross tick boundaries, each with a single writer.
// Every query reads one immutable buffer snapshot, so results are never
// torn by a concurrent ingestion tick.
package engine
