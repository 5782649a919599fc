/*
Package ports defines the driven ports (interfaces) for the Director engine.

These interfaces decouple the decision logic from external implementations,
allowing the engine to work with various evidence sources, LLM services and
storage backends. Every collaborator is optional: the engine degrades to its
heuristic path when one is absent.

# Key Interfaces

  - EvidenceSource: Looks up encyclopedia summaries and search snippets.
  - Completer: A single-shot LLM completion service.
  - VerdictCache: Append-once storage of verification verdicts.
  - StateStore: Persists ConversationState snapshots per session.
  - DistributedLocker: Provides distributed locking for concurrent session access.
*/
package ports
