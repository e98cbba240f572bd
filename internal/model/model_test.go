package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMap_ChallengeFields(t *testing.T) {
	t.Parallel()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Challenge{
		ID:        "abc",
		LegacyID:  30054000,
		StartDate: start,
		Groups:    []string{"g1"},
	}

	doc, err := ToMap(c)
	require.NoError(t, err)
	assert.Equal(t, "abc", doc["id"])
	assert.InDelta(t, 30054000, doc["legacyId"], 0)
	assert.Equal(t, "2020-01-01T00:00:00Z", doc["startDate"])
	assert.Nil(t, doc["endDate"])
	assert.Nil(t, doc["projectId"])
	assert.Contains(t, doc, "numOfSubmissions")
}

func TestChallengeType_Document(t *testing.T) {
	t.Parallel()

	ct := &ChallengeType{
		ID:           "uuid-1",
		LegacyID:     7,
		Name:         "Code",
		Abbreviation: "CODE",
		Extra:        map[string]any{"description": "Code challenge", "name": "overridden"},
	}
	doc := ct.Document()
	assert.Equal(t, "uuid-1", doc["id"])
	assert.Equal(t, int64(7), doc["legacyId"])
	assert.Equal(t, "Code", doc["name"])
	assert.Equal(t, "Code challenge", doc["description"])
}

func TestWriteRecord(t *testing.T) {
	t.Parallel()

	r := NewWriteRecord(1, "id", false)
	assert.False(t, r.OK())
	assert.False(t, r.Failed())

	r.Primary = Step{Status: StepOK}
	r.Mirror = Step{Status: StepFailed, Err: errors.New("boom")}
	assert.False(t, r.OK())
	assert.True(t, r.Failed())

	r.Mirror = Step{Status: StepOK}
	assert.True(t, r.OK())
}
