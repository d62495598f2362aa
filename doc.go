// Package quizd is an embeddable quiz-generation engine built on hybrid
// retrieval.
//
// Content chunks are indexed twice: dense embeddings for semantic
// similarity and a BM25 lexical index for keyword matching. Queries run
// against both and the ranked lists are fused (weighted score fusion or
// reciprocal rank fusion). Quiz generation retrieves context for a
// topic, drives a concurrent generate/judge pipeline over the retrieved
// chunks, and assembles the verified candidates into a quiz that spans
// as many distinct source chunks as possible.
//
// The Service type is the entry point:
//
//	svc, err := quizd.New(client, client, client,
//		quizd.WithLogger(quizd.NewTextLogger(slog.LevelInfo)),
//	)
//	if err != nil { ... }
//
//	_ = svc.Ingest(ctx, chunks...)
//
//	resp, err := svc.GenerateQuiz(ctx, quizd.QuizRequest{
//		Query:        "cardiac cycle",
//		NumQuestions: 5,
//	})
//
// The llm subpackage defines the capability contracts (Embedder,
// Generator, Judge); llm/openai implements all three against the OpenAI
// API. Any implementation can be substituted, which is also how the
// pipeline's control logic is tested.
package quizd
