package notes

// Merge reconciles a local and a remote note collection with last-writer-wins
// on UpdatedAt. Every local note seeds the result, tombstones included. A remote
// note is added when its id is unknown locally and replaces the local entry only
// when its UpdatedAt is strictly later, so ties keep the local version.
//
// The result holds exactly one note per id. Its order is local order followed by
// ids first seen remotely; callers that display notes sort them themselves.
func Merge(local, remote []Note) []Note {
	merged := make([]Note, 0, len(local)+len(remote))
	index := make(map[string]int, len(local)+len(remote))

	put := func(n Note) {
		i, ok := index[n.ID]
		if !ok {
			index[n.ID] = len(merged)
			merged = append(merged, n)
			return
		}
		if n.UpdatedAt.After(merged[i].UpdatedAt) {
			merged[i] = n
		}
	}

	for _, n := range local {
		put(n)
	}
	for _, n := range remote {
		put(n)
	}
	return merged
}
