package render

// ItemIDSet holds the IDs of non-spatial items.
type ItemIDSet struct {
	ids map[ItemID]struct{}
}

func NewItemIDSet() *ItemIDSet {
	return &ItemIDSet{ids: make(map[ItemID]struct{}, 64)}
}

func (s *ItemIDSet) Insert(id ItemID) { s.ids[id] = struct{}{} }
func (s *ItemIDSet) Erase(id ItemID)  { delete(s.ids, id) }

func (s *ItemIDSet) Contains(id ItemID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *ItemIDSet) Len() int { return len(s.ids) }

func (s *ItemIDSet) Each(fn func(ItemID)) {
	for id := range s.ids {
		fn(id)
	}
}
