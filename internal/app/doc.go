// Package app composes the agent's services into a running application.
// It is NOT a business logic layer - business logic belongs in
// internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── genome/         # Variant records, queries, analysis results
//	│   └── proof/          # Commitment proofs and verification outcomes
//	├── services/           # Business logic
//	│   ├── vaultcrypto/    # Wallet-derived keys, payload encryption
//	│   ├── analysis/       # Format detection, parsing, trait inference
//	│   ├── proofs/         # Commitment proof engine and aggregation
//	│   └── sessions/       # Query session orchestration and audit
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # ContentStore, AuditStore
//	│   ├── memory/         # In-memory implementation for testing
//	│   ├── badgerstore/    # Embedded content-addressed store
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/agent/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │
//	      └──► internal/app/storage/ (persistence)
//
// # Example: Adding a New Query Kind
//
//  1. Add the request type to internal/app/domain/genome/ and its marker
//     method on AnalysisRequest.
//  2. Handle it in analysis.Service.Analyze.
//  3. Map its result to a proof in sessions.Service.
package app
