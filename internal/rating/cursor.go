package rating

// nextUnrated scans forward from start and returns the index of the first
// unrated item, or len(items) when every remaining item is rated.
func nextUnrated(items []Item, votes map[string]VoteValue, start int) int {
	idx := max(start, 0)
	for idx < len(items) && votes[items[idx].ID] != NoVote {
		idx++
	}
	return idx
}

// resumeCursor computes the starting cursor from the last-seen marker.
// A rated marker item resumes after itself, an unrated one resumes on itself,
// and an unknown marker starts from the top.
func resumeCursor(items []Item, votes map[string]VoteValue, lastSeen string) int {
	if lastSeen != "" {
		for k, it := range items {
			if it.ID != lastSeen {
				continue
			}
			if votes[it.ID] != NoVote {
				return nextUnrated(items, votes, k+1)
			}
			return nextUnrated(items, votes, k)
		}
	}
	return nextUnrated(items, votes, 0)
}

// unratedPosition is the 1-based rank of the cursor among unrated items.
func unratedPosition(items []Item, votes map[string]VoteValue, cursor int) int {
	if cursor >= len(items) {
		return 0
	}
	pos := 0
	for k := 0; k <= cursor; k++ {
		if votes[items[k].ID] == NoVote {
			pos++
		}
	}
	return pos
}

func ratedCount(items []Item, votes map[string]VoteValue) int {
	n := 0
	for _, it := range items {
		if votes[it.ID] != NoVote {
			n++
		}
	}
	return n
}
