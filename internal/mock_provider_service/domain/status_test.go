package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence(t *testing.T) {
	tests := []struct {
		name    string
		kind    ResourceKind
		outcome Outcome
		want    []Status
	}{
		{"message succeeds", ResourceKindMessage, OutcomeSucceed, []Status{StatusSent, StatusDelivered}},
		{"message fails", ResourceKindMessage, OutcomeFail, []Status{StatusFailed}},
		{"call succeeds", ResourceKindCall, OutcomeSucceed, []Status{StatusRinging, StatusInProgress, StatusCompleted}},
		{"call fails", ResourceKindCall, OutcomeFail, []Status{StatusFailed}},
		{"message unknown", ResourceKindMessage, OutcomeUnknown, nil},
		{"call unknown", ResourceKindCall, OutcomeUnknown, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sequence(tt.kind, tt.outcome))
		})
	}
}

func TestSequence_EndsTerminal(t *testing.T) {
	for _, kind := range []ResourceKind{ResourceKindMessage, ResourceKindCall} {
		for _, outcome := range []Outcome{OutcomeSucceed, OutcomeFail} {
			seq := Sequence(kind, outcome)
			require.NotEmpty(t, seq)
			for i, s := range seq {
				assert.Equal(t, i == len(seq)-1, s.IsTerminal(), "%s/%s position %d", kind, outcome, i)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	for status, name := range statusNames {
		got, err := ParseStatus(name)
		require.NoError(t, err)
		assert.Equal(t, status, got)
		assert.Equal(t, name, status.String())
	}

	_, err := ParseStatus("undelivered")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestParseResourceKind(t *testing.T) {
	kind, err := ParseResourceKind("Messages")
	require.NoError(t, err)
	assert.Equal(t, ResourceKindMessage, kind)

	kind, err = ParseResourceKind("call")
	require.NoError(t, err)
	assert.Equal(t, ResourceKindCall, kind)

	_, err = ParseResourceKind("faxes")
	assert.ErrorIs(t, err, ErrUnknownResourceKind)
}
