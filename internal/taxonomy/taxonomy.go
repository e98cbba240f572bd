// Package taxonomy converts between the legacy track/sub-track classification
// and the new track/type classification. Lookups are static and return
// ok == false for combinations outside the enumerated tables.
package taxonomy

import (
	"cmp"
	"slices"
)

// New track ids
const (
	TrackDataScience = "c0f5d461-8219-4c14-878a-c3a3f356466d"
	TrackDesign      = "5fa04185-041f-49a6-bfd1-fe82533cd6c8"
	TrackDevelopment = "9b6fc876-f4d9-4ccb-9dfd-419247628825"
	TrackQA          = "36e6a8d0-7e1e-4608-a673-64279d99c115"
)

// New type ids
const (
	TypeChallenge    = "927abff4-7af9-4145-8ba1-577c16e64e2e"
	TypeTask         = "ecd58c69-238f-43a4-a4bb-d172719b9f31"
	TypeFirst2Finish = "dc876fa4-ef2d-4eee-b701-b555fcc6544c"
)

// Legacy tracks
const (
	LegacyTrackDevelop     = "DEVELOP"
	LegacyTrackDataScience = "DATA_SCIENCE"
	LegacyTrackDesign      = "DESIGN"
)

// Legacy sub-tracks
const (
	SubTrackMarathonMatch              = "MARATHON_MATCH"
	SubTrackDesignFirst2Finish         = "DESIGN_FIRST_2_FINISH"
	SubTrackApplicationFrontEndDesign  = "APPLICATION_FRONT_END_DESIGN"
	SubTrackWebDesigns                 = "WEB_DESIGNS"
	SubTrackIdeaGeneration             = "IDEA_GENERATION"
	SubTrackWidgetOrMobileScreenDesign = "WIDGET_OR_MOBILE_SCREEN_DESIGN"
	SubTrackWireframes                 = "WIREFRAMES"
	SubTrackPrintOrPresentation        = "PRINT_OR_PRESENTATION"
	SubTrackStudioOther                = "STUDIO_OTHER"
	SubTrackBannersOrIcons             = "BANNERS_OR_ICONS"
	SubTrackLogoDesign                 = "LOGO_DESIGN"
	SubTrackFrontEndFlash              = "FRONT_END_FLASH"
	SubTrackDevelopment                = "DEVELOPMENT"
	SubTrackFirst2Finish               = "FIRST_2_FINISH"
	SubTrackCode                       = "CODE"
	SubTrackCopilotPosting             = "COPILOT_POSTING"
	SubTrackBugHunt                    = "BUG_HUNT"
	SubTrackDevelopMarathonMatch       = "DEVELOP_MARATHON_MATCH"
	SubTrackTestSuites                 = "TEST_SUITES"
	SubTrackUIPrototypeCompetition     = "UI_PROTOTYPE_COMPETITION"
	SubTrackArchitecture               = "ARCHITECTURE"
	SubTrackAssemblyCompetition        = "ASSEMBLY_COMPETITION"
	SubTrackSpecification              = "SPECIFICATION"
	SubTrackTestScenarios              = "TEST_SCENARIOS"
	SubTrackConceptualization          = "CONCEPTUALIZATION"
	SubTrackContentCreation            = "CONTENT_CREATION"
	SubTrackDesign                     = "DESIGN"
	SubTrackRIABuildCompetition        = "RIA_BUILD_COMPETITION"
	SubTrackRIAComponentCompetition    = "RIA_COMPONENT_COMPETITION"
	SubTrackReporting                  = "REPORTING"
	SubTrackProcess                    = "PROCESS"
	SubTrackLegacy                     = "Legacy"
	SubTrackTestingCompetition         = "TESTING_COMPETITION"
	SubTrackDeployment                 = "DEPLOYMENT"
	SubTrackComponentProduction        = "COMPONENT_PRODUCTION"
	SubTrackSecurity                   = "SECURITY"
)

// MarathonMatchTag marks data science challenges that came from marathon matches.
const MarathonMatchTag = "Marathon Match"

var trackNames = map[string]string{
	TrackDataScience: "Data Science",
	TrackDesign:      "Design",
	TrackDevelopment: "Development",
	TrackQA:          "Quality Assurance",
}

var typeNames = map[string]string{
	TypeChallenge:    "Challenge",
	TypeTask:         "Task",
	TypeFirst2Finish: "First2Finish",
}

// TrackIDByName maps upper-case track names to new track ids.
var TrackIDByName = map[string]string{
	"DESIGN":            TrackDesign,
	"DEVELOPMENT":       TrackDevelopment,
	"DATA SCIENCE":      TrackDataScience,
	"QUALITY ASSURANCE": TrackQA,
}

// TypeIDByName maps upper-case type names to new type ids.
var TypeIDByName = map[string]string{
	"CHALLENGE":    TypeChallenge,
	"FIRST2FINISH": TypeFirst2Finish,
	"TASK":         TypeTask,
}

// Legacy is a classification in the legacy vocabulary.
type Legacy struct {
	Track    string
	SubTrack string
	IsTask   bool
}

// New is a classification in the new vocabulary.
type New struct {
	TrackID string
	TypeID  string
	Track   string
	Type    string
	Tags    []string
}

func newData(trackID, typeID string, tags ...string) New {
	if tags == nil {
		tags = []string{}
	}
	return New{
		TrackID: trackID,
		TypeID:  typeID,
		Track:   trackNames[trackID],
		Type:    typeNames[typeID],
		Tags:    tags,
	}
}

type toLegacyFunc func(tags []string) Legacy

func fixed(track, subTrack string, isTask bool) toLegacyFunc {
	return func([]string) Legacy {
		return Legacy{Track: track, SubTrack: subTrack, IsTask: isTask}
	}
}

// the three non data science tracks share First2Finish and Task handling
func developFirst2Finish() map[string]toLegacyFunc {
	return map[string]toLegacyFunc{
		TypeFirst2Finish: fixed(LegacyTrackDevelop, SubTrackFirst2Finish, false),
		TypeTask:         fixed(LegacyTrackDevelop, SubTrackFirst2Finish, true),
	}
}

var newToLegacy = func() map[string]map[string]toLegacyFunc {
	dataScience := developFirst2Finish()
	dataScience[TypeChallenge] = func(tags []string) Legacy {
		if slices.Contains(tags, MarathonMatchTag) {
			return Legacy{Track: LegacyTrackDataScience, SubTrack: SubTrackMarathonMatch}
		}
		return Legacy{Track: LegacyTrackDevelop, SubTrack: SubTrackCode}
	}

	development := developFirst2Finish()
	development[TypeChallenge] = fixed(LegacyTrackDevelop, SubTrackCode, false)

	qa := developFirst2Finish()
	qa[TypeChallenge] = fixed(LegacyTrackDevelop, SubTrackTestSuites, false)

	return map[string]map[string]toLegacyFunc{
		TrackDataScience: dataScience,
		TrackDesign: {
			TypeChallenge:    fixed(LegacyTrackDesign, SubTrackWebDesigns, false),
			TypeFirst2Finish: fixed(LegacyTrackDesign, SubTrackDesignFirst2Finish, false),
			TypeTask:         fixed(LegacyTrackDesign, SubTrackDesignFirst2Finish, true),
		},
		TrackDevelopment: development,
		TrackQA:          qa,
	}
}()

type toNewFunc func(isTask bool) New

func always(trackID, typeID string, tags ...string) toNewFunc {
	return func(bool) New { return newData(trackID, typeID, tags...) }
}

func taskOrFirst2Finish(trackID string) toNewFunc {
	return func(isTask bool) New {
		if isTask {
			return newData(trackID, TypeTask)
		}
		return newData(trackID, TypeFirst2Finish)
	}
}

var legacyToNew = map[string]map[string]toNewFunc{
	LegacyTrackDataScience: {
		SubTrackMarathonMatch: always(TrackDataScience, TypeChallenge, MarathonMatchTag),
	},
	LegacyTrackDesign: {
		SubTrackDesignFirst2Finish:         taskOrFirst2Finish(TrackDesign),
		SubTrackApplicationFrontEndDesign:  always(TrackDesign, TypeChallenge),
		SubTrackWebDesigns:                 always(TrackDesign, TypeChallenge),
		SubTrackIdeaGeneration:             always(TrackDesign, TypeChallenge),
		SubTrackWidgetOrMobileScreenDesign: always(TrackDesign, TypeChallenge),
		SubTrackWireframes:                 always(TrackDesign, TypeChallenge),
		SubTrackPrintOrPresentation:        always(TrackDesign, TypeChallenge),
		SubTrackStudioOther:                always(TrackDesign, TypeChallenge),
		SubTrackBannersOrIcons:             always(TrackDesign, TypeChallenge),
		SubTrackLogoDesign:                 always(TrackDesign, TypeChallenge),
		SubTrackFrontEndFlash:              always(TrackDesign, TypeChallenge),
	},
	LegacyTrackDevelop: {
		SubTrackDevelopment:             always(TrackDevelopment, TypeChallenge),
		SubTrackFirst2Finish:            taskOrFirst2Finish(TrackDevelopment),
		SubTrackCode:                    always(TrackDevelopment, TypeChallenge),
		SubTrackCopilotPosting:          always(TrackDevelopment, TypeChallenge),
		SubTrackBugHunt:                 always(TrackQA, TypeChallenge),
		SubTrackDevelopMarathonMatch:    always(TrackDataScience, TypeChallenge, MarathonMatchTag),
		SubTrackTestSuites:              always(TrackQA, TypeChallenge),
		SubTrackUIPrototypeCompetition:  always(TrackDevelopment, TypeChallenge),
		SubTrackArchitecture:            always(TrackDevelopment, TypeChallenge),
		SubTrackAssemblyCompetition:     always(TrackDevelopment, TypeChallenge),
		SubTrackSpecification:           always(TrackDevelopment, TypeChallenge),
		SubTrackTestScenarios:           always(TrackQA, TypeChallenge),
		SubTrackConceptualization:       always(TrackDevelopment, TypeChallenge),
		SubTrackContentCreation:         always(TrackDevelopment, TypeChallenge),
		SubTrackDesign:                  always(TrackDevelopment, TypeChallenge),
		SubTrackRIABuildCompetition:     always(TrackDevelopment, TypeChallenge),
		SubTrackRIAComponentCompetition: always(TrackDevelopment, TypeChallenge),
		SubTrackReporting:               always(TrackDevelopment, TypeChallenge),
		SubTrackProcess:                 always(TrackDevelopment, TypeChallenge),
		SubTrackLegacy:                  always(TrackDevelopment, TypeChallenge),
		SubTrackTestingCompetition:      always(TrackQA, TypeChallenge),
		SubTrackDeployment:              always(TrackDevelopment, TypeChallenge),
		SubTrackComponentProduction:     always(TrackDevelopment, TypeChallenge),
		SubTrackSecurity:                always(TrackDevelopment, TypeChallenge),
	},
}

// ToLegacy converts a new track/type pair to the legacy vocabulary. Tags
// only matter for data science challenges, where MarathonMatchTag selects
// the marathon match sub-track.
func ToLegacy(trackID, typeID string, tags []string) (Legacy, bool) {
	types, ok := newToLegacy[trackID]
	if !ok {
		return Legacy{}, false
	}
	fn, ok := types[typeID]
	if !ok {
		return Legacy{}, false
	}
	return fn(tags), true
}

// ToNew converts a legacy track/sub-track to the new vocabulary. isTask
// only matters for the First2Finish sub-tracks.
func ToNew(track, subTrack string, isTask bool) (New, bool) {
	subTracks, ok := legacyToNew[track]
	if !ok {
		return New{}, false
	}
	fn, ok := subTracks[subTrack]
	if !ok {
		return New{}, false
	}
	return fn(isTask), true
}

// TrackName returns the display name of a new track id.
func TrackName(trackID string) (string, bool) {
	name, ok := trackNames[trackID]
	return name, ok
}

// TypeName returns the display name of a new type id.
func TypeName(typeID string) (string, bool) {
	name, ok := typeNames[typeID]
	return name, ok
}

// LegacyCombinations lists every legacy track/sub-track pair ToNew knows.
func LegacyCombinations() []Legacy {
	var out []Legacy
	for track, subTracks := range legacyToNew {
		for subTrack := range subTracks {
			out = append(out, Legacy{Track: track, SubTrack: subTrack})
		}
	}
	slices.SortFunc(out, func(a, b Legacy) int {
		return cmp.Or(cmp.Compare(a.Track, b.Track), cmp.Compare(a.SubTrack, b.SubTrack))
	})
	return out
}
