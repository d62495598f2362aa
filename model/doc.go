// Package model defines core types shared across quizd.
//
// # Identity Types
//
//   - ChunkID: Stable identifier of an indexed content chunk
//   - DocumentID: Identifier of the document a chunk belongs to
//
// # Data Types
//
//   - ContentChunk: Immutable unit of indexed source text
//   - RetrievalResult: Ranked search hit with score and provenance
//   - Candidate: Generated question awaiting evaluation
//   - Verdict: Evaluation outcome for one candidate
//   - Quiz: Final ordered question set with aggregate metadata
package model
