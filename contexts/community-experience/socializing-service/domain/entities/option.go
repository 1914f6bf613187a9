package entities

// Option is one candidate (date, time, location) triple.
type Option struct {
	OptionID string
	Date     string
	Time     string
	Location string
}

// Catalog is the immutable, ordered option set of one option_vote round.
// CatalogID changes on every rebuild so votes cast against an older catalog
// can be recognised even though option ids restart at opt-1.
type Catalog struct {
	CatalogID string
	Options   []Option
}

func (c Catalog) Empty() bool {
	return len(c.Options) == 0
}

func (c Catalog) Contains(optionID string) bool {
	return c.Position(optionID) >= 0
}

func (c Catalog) Option(optionID string) (Option, bool) {
	idx := c.Position(optionID)
	if idx < 0 {
		return Option{}, false
	}
	return c.Options[idx], true
}

// Position returns the build-order index of optionID, or -1.
func (c Catalog) Position(optionID string) int {
	for i, option := range c.Options {
		if option.OptionID == optionID {
			return i
		}
	}
	return -1
}

func (c Catalog) OptionIDs() []string {
	ids := make([]string, 0, len(c.Options))
	for _, option := range c.Options {
		ids = append(ids, option.OptionID)
	}
	return ids
}
