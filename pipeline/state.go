package pipeline

import (
	"sync"
	"time"

	"github.com/amanshresthaa/quizd/model"
)

// runState is the shared mutable state of one pipeline run. All
// transitions happen under one mutex; claim/accept decisions are
// check-and-set so two attempts can never claim the same chunk and the
// accepted set can never overshoot the target.
type runState struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue      []model.ContentChunk
	retries    map[model.ChunkID]int
	maxRetries int

	target    int
	inflight  int
	abandoned bool

	accepted []model.Candidate
	verdicts []model.Verdict

	evaluated int
	passed    int
	failed    int
	errors    int
	scoreSum  float64

	generation time.Duration
	evaluation time.Duration
}

func newRunState(chunks []model.ContentChunk, target, maxRetries int) *runState {
	s := &runState{
		queue:   append([]model.ContentChunk(nil), chunks...),
		retries: make(map[model.ChunkID]int, len(chunks)),
		target:  target,
	}
	s.cond = sync.NewCond(&s.mu)
	s.maxRetries = maxRetries
	return s
}

// claim pops the next unclaimed chunk. It blocks while the queue is
// empty but in-flight attempts may still requeue a chunk, and returns
// false when the run is over: target reached, no claimable chunk left,
// or the run abandoned on deadline.
func (s *runState) claim() (model.ContentChunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.abandoned || len(s.accepted) >= s.target {
			return model.ContentChunk{}, false
		}
		if len(s.queue) > 0 {
			chunk := s.queue[0]
			s.queue = s.queue[1:]
			s.inflight++
			return chunk, true
		}
		if s.inflight == 0 {
			return model.ContentChunk{}, false
		}
		s.cond.Wait()
	}
}

// complete records a judged attempt. Passing candidates are accepted
// unless the target is already reached (late finishers are discarded);
// failing chunks are requeued while retries remain.
func (s *runState) complete(chunk model.ContentChunk, candidate model.Candidate, verdict model.Verdict, gen, eval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight--
	defer s.cond.Broadcast()

	if s.abandoned {
		// Result discarded; the run already returned.
		return
	}

	s.generation += gen
	s.evaluation += eval
	s.evaluated++
	s.scoreSum += float64(verdict.Score)
	s.verdicts = append(s.verdicts, verdict)

	if verdict.Passed {
		s.passed++
		if len(s.accepted) < s.target {
			s.accepted = append(s.accepted, candidate)
		}
		return
	}

	s.failed++
	s.requeueLocked(chunk)
}

// completeError records an attempt that failed before producing a
// verdict. Sibling attempts are unaffected.
func (s *runState) completeError(chunk model.ContentChunk, gen, eval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight--
	defer s.cond.Broadcast()

	if s.abandoned {
		return
	}

	s.generation += gen
	s.evaluation += eval
	s.errors++
	s.requeueLocked(chunk)
}

func (s *runState) requeueLocked(chunk model.ContentChunk) {
	if s.retries[chunk.ID] >= s.maxRetries {
		return
	}
	s.retries[chunk.ID]++
	s.queue = append(s.queue, chunk)
}

// abandon stops the run on deadline: the dispatcher wakes up and
// in-flight results are discarded.
func (s *runState) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = true
	s.cond.Broadcast()
}

func (s *runState) snapshot() ([]model.Candidate, []model.Verdict, Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var avg float32
	if s.evaluated > 0 {
		avg = float32(s.scoreSum / float64(s.evaluated))
	}

	return s.accepted, s.verdicts, Stats{
		Evaluated:    s.evaluated,
		Passed:       s.passed,
		Failed:       s.failed,
		Errors:       s.errors,
		AverageScore: avg,
		Generation:   s.generation,
		Evaluation:   s.evaluation,
	}
}
