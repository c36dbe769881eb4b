// stats.go -- build statistics accumulator
//
// Grounded on the concurrency model's "statistics merging: one mutex
// lock per part, outside the pilot-search inner loop" requirement:
// each part computes its own counts locally and merges once into a
// shared accumulator, so the mutex is never touched inside the
// eviction loop.

package ptrhash

import "sync"

// BuildStats summarizes one Build call: how much eviction work the
// construction did and how the final pilot table is distributed.
// Useful for tuning Lambda/Alpha/BucketFn against a real key set.
type BuildStats struct {
	mu sync.Mutex

	Parts       int
	Evictions   int
	SeedRetries int
	MaxPilot    byte
	PilotHisto  [256]int
}

func newBuildStats() *BuildStats { return &BuildStats{} }

// mergePart folds one part's local counts into the shared totals. It
// is called once per part, after that part's pilot search loop has
// already finished.
func (s *BuildStats) mergePart(evictions int, pilots []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Parts++
	s.Evictions += evictions
	for _, p := range pilots {
		s.PilotHisto[p]++
		if p > s.MaxPilot {
			s.MaxPilot = p
		}
	}
}

func (s *BuildStats) noteSeedRetry() {
	s.mu.Lock()
	s.SeedRetries++
	s.mu.Unlock()
}
