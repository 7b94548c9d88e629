package playback

import (
	"sort"

	"github.com/skychatorg/skyplayer/internal/models"
)

// fairOrder rebuilds a queue so no owner can monopolize consecutive playback
// slots while other owners still have pending entries. Entries are partitioned
// by owner preserving arrival order, owners are ranked by ascending last-play
// time (owners who have never played rank first), and the queue is rebuilt by
// taking one entry per owner, round-robin, until all sub-queues are empty.
func fairOrder(entries []models.QueueEntry, lastPlayed map[string]int64) []models.QueueEntry {
	if len(entries) < 2 {
		return entries
	}

	owners := make([]string, 0, len(entries))
	perOwner := make(map[string][]models.QueueEntry, len(entries))
	for _, e := range entries {
		if _, seen := perOwner[e.Owner]; !seen {
			owners = append(owners, e.Owner)
		}
		perOwner[e.Owner] = append(perOwner[e.Owner], e)
	}

	// Owners who played least recently go first; never-played owners have a
	// zero timestamp and therefore lead.
	sort.SliceStable(owners, func(i, j int) bool {
		return lastPlayed[owners[i]] < lastPlayed[owners[j]]
	})

	out := make([]models.QueueEntry, 0, len(entries))
	for len(out) < len(entries) {
		for _, owner := range owners {
			if sub := perOwner[owner]; len(sub) > 0 {
				out = append(out, sub[0])
				perOwner[owner] = sub[1:]
			}
		}
	}
	return out
}
