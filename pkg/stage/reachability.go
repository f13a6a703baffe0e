package stage

// ComputeReachableSet returns every stage connected to one of the seeds
// through neighbor links. Lock state is ignored. Unknown seeds contribute
// nothing.
func (ss *Stages) ComputeReachableSet(seeds ...string) map[string]bool {
	visited := make(map[string]bool, len(ss.list))
	frontier := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := ss.byID[id]; ok && !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, n := range ss.byID[id].neighbors {
			if !visited[n] {
				visited[n] = true
				frontier = append(frontier, n)
			}
		}
	}
	return visited
}

// withinHops is a bounded ComputeReachableSet: stages at most hops links
// away from a source.
func (ss *Stages) withinHops(sources []string, hops int) map[string]bool {
	dist := make(map[string]int, len(ss.list))
	frontier := make([]string, 0, len(sources))
	for _, id := range sources {
		if _, seen := dist[id]; !seen {
			dist[id] = 0
			frontier = append(frontier, id)
		}
	}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if dist[id] >= hops {
			continue
		}
		for _, n := range ss.byID[id].neighbors {
			if _, seen := dist[n]; !seen {
				dist[n] = dist[id] + 1
				frontier = append(frontier, n)
			}
		}
	}
	out := make(map[string]bool, len(dist))
	for id := range dist {
		out[id] = true
	}
	return out
}

// UpdateReachability marks the component of startID as reachable, along
// with every path touching it, and returns that component.
func (ss *Stages) UpdateReachability(startID string) map[string]bool {
	reachable := ss.ComputeReachableSet(startID)
	for _, st := range ss.list {
		st.SetReachable(reachable[st.id])
	}
	ss.paths.SetReachable(reachable)
	return reachable
}

// StartCandidates returns the stages flagged as possible start stages, or
// every ordinary stage when none is flagged.
func (ss *Stages) StartCandidates() []*Stage {
	var flagged, ordinary []*Stage
	for _, st := range ss.list {
		if st.canBeStart {
			flagged = append(flagged, st)
		}
		if st.kind == KindStage {
			ordinary = append(ordinary, st)
		}
	}
	if len(flagged) > 0 {
		return flagged
	}
	return ordinary
}

// PickStart chooses one candidate with intn, which must return a value
// in [0, n). It returns nil for a map without candidates.
func (ss *Stages) PickStart(intn func(n int) int) *Stage {
	candidates := ss.StartCandidates()
	if len(candidates) == 0 {
		return nil
	}
	i := 0
	if intn != nil && len(candidates) > 1 {
		i = intn(len(candidates))
		if i < 0 || i >= len(candidates) {
			i = 0
		}
	}
	return candidates[i]
}
