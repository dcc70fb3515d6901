package orderbook

// bookSide is one half of the book: an ordered mapping from tick to
// level, with the best-first direction fixed by the side. Bids walk
// descending (highest tick first), asks ascending.
type bookSide struct {
	side Side
	tree *levelTree
}

func newBookSide(side Side) *bookSide {
	return &bookSide{side: side, tree: newLevelTree()}
}

// Best returns the best-priced level, or nil when the side is empty.
func (s *bookSide) Best() *Level {
	if s.side == Bid {
		return s.tree.max()
	}
	return s.tree.min()
}

// BestTick returns the best tick, reporting absence.
func (s *bookSide) BestTick() (uint64, bool) {
	lvl := s.Best()
	if lvl == nil {
		return 0, false
	}
	return lvl.Tick, true
}

// Level returns the level at tick, or nil.
func (s *bookSide) Level(tick uint64) *Level {
	return s.tree.find(tick)
}

// Upsert returns the level at tick, creating it if absent.
func (s *bookSide) Upsert(tick uint64) *Level {
	return s.tree.upsert(tick)
}

// Remove deletes the level at tick.
func (s *bookSide) Remove(tick uint64) bool {
	return s.tree.remove(tick)
}

// WalkBestFirst visits the levels from the best price outward until
// fn returns false.
func (s *bookSide) WalkBestFirst(fn func(*Level) bool) {
	if s.side == Bid {
		s.tree.walk(left, fn)
	} else {
		s.tree.walk(right, fn)
	}
}

// Levels returns the number of distinct price levels on this side.
func (s *bookSide) Levels() int {
	return s.tree.Size()
}

// Clear drops every level.
func (s *bookSide) Clear() {
	s.tree.Clear()
}

// crosses reports whether a resting level at restingTick is crossable
// by a limit taker on the opposite side with limitTick.
func crosses(takerSide Side, restingTick, limitTick uint64) bool {
	if takerSide == Bid {
		return restingTick <= limitTick
	}
	return restingTick >= limitTick
}
