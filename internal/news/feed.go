package news

// Feed is the day's outbound news list. It rejects a headline already
// published for the same symbol on the same day.
type Feed struct {
	day   int
	items []Item
	seen  map[string]struct{}
}

// NewFeed returns an empty feed positioned at day 0.
func NewFeed() *Feed {
	return &Feed{seen: make(map[string]struct{})}
}

// Reset clears the list and moves the feed to a new simulated day.
func (f *Feed) Reset(day int) {
	f.day = day
	f.items = nil
	f.seen = make(map[string]struct{})
}

// Day returns the simulated day the feed is collecting for.
func (f *Feed) Day() int {
	return f.day
}

// Publish appends an item stamped with the feed's day. It returns false and
// drops the item when the symbol already carries that headline today.
func (f *Feed) Publish(item Item) bool {
	key := item.Symbol + "\x00" + item.Headline
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	item.Day = f.day
	item.ID = ItemID(f.day, item.Symbol, item.Headline)
	f.items = append(f.items, item)
	return true
}

// Items returns a copy of today's items in publish order.
func (f *Feed) Items() []Item {
	out := make([]Item, len(f.items))
	copy(out, f.items)
	return out
}

// CountFor returns how many items were published for symbol today.
func (f *Feed) CountFor(symbol string) int {
	n := 0
	for _, it := range f.items {
		if it.Symbol == symbol {
			n++
		}
	}
	return n
}
