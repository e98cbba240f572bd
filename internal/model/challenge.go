// Package model defines the documents written to the document store and the
// search index.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultDescriptionFormat is used for every migrated description.
const DefaultDescriptionFormat = "HTML"

// Challenge is a migrated challenge document.
type Challenge struct {
	ID                 string     `json:"id"`
	LegacyID           int64      `json:"legacyId"`
	Legacy             Legacy     `json:"legacy"`
	TypeID             string     `json:"typeId"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	DescriptionFormat  string     `json:"descriptionFormat"`
	ProjectID          *int64     `json:"projectId"`
	Status             string     `json:"status"`
	Created            time.Time  `json:"created"`
	CreatedBy          string     `json:"createdBy"`
	Updated            time.Time  `json:"updated"`
	UpdatedBy          string     `json:"updatedBy"`
	TimelineTemplateID string     `json:"timelineTemplateId"`
	Phases             []Phase    `json:"phases"`
	PrizeSets          []PrizeSet `json:"prizeSets"`
	Tags               []string   `json:"tags"`
	Groups             []string   `json:"groups"`
	Winners            []Winner   `json:"winners"`
	Metadata           []Metadata `json:"metadata"`
	Terms              []string   `json:"terms"`
	StartDate          time.Time  `json:"startDate"`
	EndDate            *time.Time `json:"endDate"`

	// Counters are indexed for search but not persisted in the document store
	NumOfSubmissions int `json:"numOfSubmissions"`
	NumOfRegistrants int `json:"numOfRegistrants"`
}

// Legacy keeps the fields needed to trace a document back to its source row.
type Legacy struct {
	Track               string `json:"track"`
	ForumID             int64  `json:"forumId"`
	ConfidentialityType string `json:"confidentialityType"`
	DirectProjectID     int64  `json:"directProjectId"`
	ReviewType          string `json:"reviewType"`

	// InformixModified is the source row's update time in epoch milliseconds
	InformixModified int64 `json:"informixModified"`
}

// Phase is one step of the challenge timeline. Duration is in seconds.
type Phase struct {
	ID                 string     `json:"id"`
	PhaseID            string     `json:"phaseId"`
	Name               string     `json:"name"`
	ScheduledStartDate time.Time  `json:"scheduledStartDate"`
	ScheduledEndDate   time.Time  `json:"scheduledEndDate"`
	ActualStartDate    *time.Time `json:"actualStartDate"`
	ActualEndDate      *time.Time `json:"actualEndDate"`
	Duration           int64      `json:"duration"`
	IsOpen             bool       `json:"isOpen"`
}

// PrizeSet groups prizes of one kind.
type PrizeSet struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Prizes      []Prize `json:"prizes"`
}

// Prize is a single placement prize.
type Prize struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Winner is a placed submitter.
type Winner struct {
	UserID    int64  `json:"userId"`
	Handle    string `json:"handle"`
	Placement int    `json:"placement"`
}

// Metadata is a typed key/value pair. Value holds JSON text.
type Metadata struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ChallengeType is a migrated challenge classification.
type ChallengeType struct {
	ID           string
	LegacyID     int64
	Name         string
	Abbreviation string

	// Extra carries the remaining source attributes verbatim
	Extra map[string]any
}

// Document flattens the challenge type into a single JSON object.
func (t *ChallengeType) Document() map[string]any {
	doc := make(map[string]any, len(t.Extra)+4)
	for k, v := range t.Extra {
		doc[k] = v
	}
	doc["id"] = t.ID
	doc["legacyId"] = t.LegacyID
	doc["name"] = t.Name
	doc["abbreviation"] = t.Abbreviation
	return doc
}

// ToMap converts v into a generic JSON object. Times become RFC 3339 strings.
func ToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return out, nil
}
