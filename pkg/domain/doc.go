/*
Package domain contains the core domain models of the Director engine.

It defines the per-session conversation state, the extracted claims and
entities, the verdicts produced by verification, and the Directive that the
engine emits once per turn. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Turn: A single utterance in the transcript (read only).
  - ConversationState: The per-session snapshot mutated once per Evaluate.
  - Claim / Entity: Verifiable units extracted from the latest utterance.
  - EvidenceCacheEntry: An append-once verdict for a verification subject.
  - Directive: The structured instruction for the next utterance.
*/
package domain
