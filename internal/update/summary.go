package update

// RepoCounts tallies outcomes for one repository
type RepoCounts struct {
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Summary tallies a batch
type Summary struct {
	Total         int                       `json:"total"`
	Successful    int                       `json:"successful"`
	Skipped       int                       `json:"skipped"`
	Failed        int                       `json:"failed"`
	PerRepository map[Repository]RepoCounts `json:"-"`
	Repositories  []Repository              `json:"repositories"`
}

// Fold reduces results into a Summary. Repositories keep the order of
// their first result.
func Fold(results []OperationResult) Summary {
	s := Summary{PerRepository: make(map[Repository]RepoCounts)}

	for _, r := range results {
		repo := r.Repository
		counts, ok := s.PerRepository[repo]
		if !ok {
			s.Repositories = append(s.Repositories, repo)
		}

		s.Total++
		switch r.Outcome {
		case OutcomeSuccess:
			s.Successful++
			counts.Successful++
		case OutcomeSkipped:
			s.Skipped++
			counts.Skipped++
		case OutcomeFailed:
			s.Failed++
			counts.Failed++
		}
		s.PerRepository[repo] = counts
	}

	return s
}

// OK reports whether nothing failed
func (s Summary) OK() bool {
	return s.Failed == 0
}
