package app

import "github.com/aradsms/mock_provider/internal/mock_provider_service/domain"

// NumberSet is a set of destination numbers, compared by exact string match.
type NumberSet map[string]struct{}

func NewNumberSet(numbers ...string) NumberSet {
	set := make(NumberSet, len(numbers))
	for _, n := range numbers {
		set[n] = struct{}{}
	}
	return set
}

func (s NumberSet) Contains(number string) bool {
	_, ok := s[number]
	return ok
}

// Classify decides the simulated fate of a destination. Membership in the
// failure set wins over the registered set; numbers on neither list are
// OutcomeUnknown and stay queued forever.
func Classify(destination string, failure, registered NumberSet) domain.Outcome {
	if failure.Contains(destination) {
		return domain.OutcomeFail
	}
	if registered.Contains(destination) {
		return domain.OutcomeSucceed
	}
	return domain.OutcomeUnknown
}
