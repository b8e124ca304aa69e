package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

func TestClassify(t *testing.T) {
	registered := NewNumberSet("+15551234567", "+15550001111")
	failure := NewNumberSet("+15559999999", "+15550001111")

	tests := []struct {
		name        string
		destination string
		want        domain.Outcome
	}{
		{"registered succeeds", "+15551234567", domain.OutcomeSucceed},
		{"failure list fails", "+15559999999", domain.OutcomeFail},
		{"failure list wins over registered", "+15550001111", domain.OutcomeFail},
		{"unlisted is unknown", "+15557777777", domain.OutcomeUnknown},
		{"match is exact", "15551234567", domain.OutcomeUnknown},
		{"empty is unknown", "", domain.OutcomeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.destination, failure, registered))
		})
	}
}

func TestClassify_NilSets(t *testing.T) {
	assert.Equal(t, domain.OutcomeUnknown, Classify("+15551234567", nil, nil))
}
