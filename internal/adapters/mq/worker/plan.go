package worker

import "hash/fnv"

// Plan is one tick's work split across workers.
type Plan struct {
	Batches  [][]Item
	Deferred []Item
}

// Size returns the number of planned updates, deferred ones excluded.
func (p Plan) Size() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b)
	}
	return n
}

// BatchCount returns min(workers, ceil(pending/workers)), and at least one
// when anything is pending.
func BatchCount(pending, workers int) int {
	if pending <= 0 {
		return 0
	}
	workers = max(workers, 1)
	return max(1, min(workers, (pending+workers-1)/workers))
}

// PlanTick partitions pending updates, already in dispatch order, into
// batches. An update's partition key always routes to the same batch. The
// second and later updates touching a player or game-scoped key that was
// already planned this tick are deferred so a key is never mutated twice in
// one tick. Order is preserved inside each batch and in Deferred.
func PlanTick(pending []Item, workers int) Plan {
	n := BatchCount(len(pending), workers)
	if n == 0 {
		return Plan{}
	}

	plan := Plan{Batches: make([][]Item, n)}
	claimed := make(map[string]struct{}, len(pending))
	for _, u := range pending {
		key := u.PartitionKey()
		if _, taken := claimed[key]; taken {
			plan.Deferred = append(plan.Deferred, u)
			continue
		}
		claimed[key] = struct{}{}
		b := route(key, n)
		plan.Batches[b] = append(plan.Batches[b], u)
	}
	return plan
}

func route(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
