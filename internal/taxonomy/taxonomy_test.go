package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLegacy_DataScienceTags(t *testing.T) {
	t.Parallel()

	got, ok := ToLegacy(TrackDataScience, TypeChallenge, []string{"Java", MarathonMatchTag})
	require.True(t, ok)
	assert.Equal(t, Legacy{Track: LegacyTrackDataScience, SubTrack: SubTrackMarathonMatch}, got)

	got, ok = ToLegacy(TrackDataScience, TypeChallenge, nil)
	require.True(t, ok)
	assert.Equal(t, Legacy{Track: LegacyTrackDevelop, SubTrack: SubTrackCode}, got)
}

func TestToLegacy_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		trackID string
		typeID  string
		want    Legacy
	}{
		{"design challenge", TrackDesign, TypeChallenge, Legacy{LegacyTrackDesign, SubTrackWebDesigns, false}},
		{"design task", TrackDesign, TypeTask, Legacy{LegacyTrackDesign, SubTrackDesignFirst2Finish, true}},
		{"design f2f", TrackDesign, TypeFirst2Finish, Legacy{LegacyTrackDesign, SubTrackDesignFirst2Finish, false}},
		{"development challenge", TrackDevelopment, TypeChallenge, Legacy{LegacyTrackDevelop, SubTrackCode, false}},
		{"development task", TrackDevelopment, TypeTask, Legacy{LegacyTrackDevelop, SubTrackFirst2Finish, true}},
		{"qa challenge", TrackQA, TypeChallenge, Legacy{LegacyTrackDevelop, SubTrackTestSuites, false}},
		{"qa f2f", TrackQA, TypeFirst2Finish, Legacy{LegacyTrackDevelop, SubTrackFirst2Finish, false}},
		{"data science task", TrackDataScience, TypeTask, Legacy{LegacyTrackDevelop, SubTrackFirst2Finish, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ToLegacy(tt.trackID, tt.typeID, nil)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToLegacy_Miss(t *testing.T) {
	t.Parallel()

	_, ok := ToLegacy("unknown-track", TypeChallenge, nil)
	assert.False(t, ok)
	_, ok = ToLegacy(TrackDesign, "unknown-type", nil)
	assert.False(t, ok)
}

func TestToNew_IsTaskFork(t *testing.T) {
	t.Parallel()

	got, ok := ToNew(LegacyTrackDevelop, SubTrackFirst2Finish, true)
	require.True(t, ok)
	assert.Equal(t, TypeTask, got.TypeID)
	assert.Equal(t, "Task", got.Type)
	assert.Equal(t, "Development", got.Track)

	got, ok = ToNew(LegacyTrackDevelop, SubTrackFirst2Finish, false)
	require.True(t, ok)
	assert.Equal(t, TypeFirst2Finish, got.TypeID)

	got, ok = ToNew(LegacyTrackDesign, SubTrackDesignFirst2Finish, true)
	require.True(t, ok)
	assert.Equal(t, TrackDesign, got.TrackID)
	assert.Equal(t, TypeTask, got.TypeID)
}

func TestToNew_MarathonTags(t *testing.T) {
	t.Parallel()

	for _, legacy := range []Legacy{
		{Track: LegacyTrackDataScience, SubTrack: SubTrackMarathonMatch},
		{Track: LegacyTrackDevelop, SubTrack: SubTrackDevelopMarathonMatch},
	} {
		got, ok := ToNew(legacy.Track, legacy.SubTrack, false)
		require.True(t, ok)
		assert.Equal(t, TrackDataScience, got.TrackID)
		assert.Equal(t, []string{MarathonMatchTag}, got.Tags)
	}

	got, ok := ToNew(LegacyTrackDevelop, SubTrackCode, false)
	require.True(t, ok)
	assert.Empty(t, got.Tags)
	assert.NotNil(t, got.Tags)
}

func TestToNew_Miss(t *testing.T) {
	t.Parallel()

	_, ok := ToNew("MARKETING", SubTrackCode, false)
	assert.False(t, ok)
	_, ok = ToNew(LegacyTrackDesign, SubTrackCode, false)
	assert.False(t, ok)
	_, ok = ToNew("", "", false)
	assert.False(t, ok)
}

func TestRoundTrip_AllLegacyCombinations(t *testing.T) {
	t.Parallel()

	combos := LegacyCombinations()
	require.Len(t, combos, 36)

	for _, combo := range combos {
		for _, isTask := range []bool{false, true} {
			forward, ok := ToNew(combo.Track, combo.SubTrack, isTask)
			require.True(t, ok, "%s/%s", combo.Track, combo.SubTrack)
			assert.NotEmpty(t, forward.Track)
			assert.NotEmpty(t, forward.Type)

			back, ok := ToLegacy(forward.TrackID, forward.TypeID, forward.Tags)
			require.True(t, ok, "%s/%s has no reverse entry", combo.Track, combo.SubTrack)
			assert.NotEmpty(t, back.Track)
			assert.NotEmpty(t, back.SubTrack)
			assert.Equal(t, forward.TypeID == TypeTask, back.IsTask)
		}
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	name, ok := TrackName(TrackQA)
	require.True(t, ok)
	assert.Equal(t, "Quality Assurance", name)

	name, ok = TypeName(TypeFirst2Finish)
	require.True(t, ok)
	assert.Equal(t, "First2Finish", name)

	assert.Equal(t, TrackDataScience, TrackIDByName["DATA SCIENCE"])
	assert.Equal(t, TypeTask, TypeIDByName["TASK"])
}
