package entities

// OptionTally is the bucket of one catalog option.
type OptionTally struct {
	OptionID string
	Count    int
	VoterIDs []string
}

// Tally is derived from the ledger on every read and never persisted.
type Tally struct {
	CohortID             string
	CatalogID            string
	Options              []OptionTally
	CantAttendCount      int
	CantAttendVoterIDs   []string
	AttendingCount       int
	AttendingVoterIDs    []string
	NotAttendingCount    int
	NotAttendingVoterIDs []string
	TotalVoters          int
	TotalVoterIDs        []string
}

func (t Tally) Count(optionID string) int {
	for _, bucket := range t.Options {
		if bucket.OptionID == optionID {
			return bucket.Count
		}
	}
	return 0
}

// Winner is the option the resolver settled on.
type Winner struct {
	Option Option
	Count  int
	Pinned bool
}
