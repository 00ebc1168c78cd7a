package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionSources(t *testing.T) {
	assert.Equal(t, []InsightStatus{InsightStatusCompleted, InsightStatusFailed}, TransitionSources(InsightStatusPending))
	assert.Equal(t, []InsightStatus{InsightStatusPending}, TransitionSources(InsightStatusCompleted))
	assert.Equal(t, []InsightStatus{InsightStatusPending}, TransitionSources(InsightStatusFailed))
	assert.False(t, CanTransition(InsightStatusPending, InsightStatusPending))
}
