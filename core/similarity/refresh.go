package similarity

// RefreshMode says how the index should absorb newly analyzed tracks.
type RefreshMode int

const (
	// RefreshNone: nothing changed, leave the index alone.
	RefreshNone RefreshMode = iota
	// RefreshExtend: append the new vectors in place.
	RefreshExtend
	// RefreshRebuild: repopulate from the record store.
	RefreshRebuild
)

func (m RefreshMode) String() string {
	switch m {
	case RefreshNone:
		return "none"
	case RefreshExtend:
		return "extend"
	case RefreshRebuild:
		return "rebuild"
	default:
		return "unknown"
	}
}

// DecideRefresh picks extend or rebuild from the added-record count, the
// current index size, and the rebuild threshold fraction. Incremental
// extension beyond the threshold degrades bookkeeping, so large deltas
// rebuild instead. Pure function; no index state involved.
func DecideRefresh(added, current int, threshold float64) RefreshMode {
	if added <= 0 {
		return RefreshNone
	}
	if current <= 0 {
		return RefreshRebuild
	}
	if float64(added)/float64(current) < threshold {
		return RefreshExtend
	}
	return RefreshRebuild
}
