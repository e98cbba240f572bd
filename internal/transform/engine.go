// Package transform builds challenge documents from legacy rows.
//
// Transform is pure: all reference data is resolved beforehand and handed in
// through Resolved, so the engine can be tested with fixed inputs, a fixed
// clock and deterministic ids.
package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/legacy"
	"github.com/tphakala/challenge-migration/internal/model"
)

const (
	// NotAvailable is the sentinel for missing descriptions and timelines.
	NotAvailable = "N/A"

	// MarathonMatchTypeID is the legacy category of marathon matches.
	MarathonMatchTypeID = 37

	// RegistrationPhaseTypeID is the legacy registration phase type.
	RegistrationPhaseTypeID = 1

	DefaultReviewType = "COMMUNITY"
	ChallengePrize    = "Challenge Prize"
	openPhaseStatus   = "Open"
	designTrack       = "DESIGN"
)

// End date policies.
const (
	EndDateLastPhase       = "last-phase"
	EndDateMaxScheduledEnd = "max-scheduled-end"
)

// PhaseName is the target name and phase id of a legacy phase type.
type PhaseName struct {
	Name    string
	PhaseID string
}

// Resolved carries the reference data for one challenge. The maps are shared
// between the challenges of a page and must not be modified.
type Resolved struct {
	TypeIDs   map[int64]string  // legacy category id to new type id
	Timelines map[string]string // new type id to timeline template id
	TermIDs   map[int64]string  // legacy terms-of-use id to new terms id
	GroupIDs  map[int64]string  // legacy group id to new group id
	ProjectID *int64
}

// Config configures an Engine.
type Config struct {
	PhaseNames    map[int64]PhaseName
	EndDatePolicy string
	Now           func() time.Time
	NewID         func() string
}

// Engine converts legacy rows into challenge documents.
type Engine struct {
	phaseNames map[int64]PhaseName
	maxEnd     bool
	now        func() time.Time
	newID      func() string
}

// NewEngine creates an engine. Unset clock and id functions default to
// time.Now and random UUIDs.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		phaseNames: cfg.PhaseNames,
		maxEnd:     cfg.EndDatePolicy == EndDateMaxScheduledEnd,
		now:        cfg.Now,
		newID:      cfg.NewID,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Transform builds the document for row from the rows and reference data
// that belong to it.
func (e *Engine) Transform(row legacy.ChallengeRow, rows *legacy.SecondaryRows, ref Resolved) (*model.Challenge, error) {
	if rows == nil {
		rows = &legacy.SecondaryRows{}
	}

	track := strings.TrimSpace(row.Track)
	reviewType := strings.TrimSpace(deref(row.ReviewType))
	if reviewType == "" {
		reviewType = DefaultReviewType
	}

	typeID := ref.TypeIDs[row.TypeID]
	timeline := NotAvailable
	if t := ref.Timelines[typeID]; typeID != "" && t != "" {
		timeline = t
	}

	c := &model.Challenge{
		ID:       e.newID(),
		LegacyID: row.ID,
		Legacy: model.Legacy{
			Track:               track,
			ForumID:             parseInt(deref(row.ForumID)),
			ConfidentialityType: strings.TrimSpace(deref(row.ConfidentialityType)),
			DirectProjectID:     derefInt(row.DirectProjectID),
			ReviewType:          reviewType,
			InformixModified:    unixMilli(row.Updated),
		},
		TypeID:             typeID,
		Name:               row.Name,
		Description:        description(row, track),
		DescriptionFormat:  model.DefaultDescriptionFormat,
		ProjectID:          ref.ProjectID,
		Status:             strings.TrimSpace(row.Status),
		Created:            derefTime(row.Created),
		CreatedBy:          row.CreatedBy,
		Updated:            derefTime(row.Updated),
		UpdatedBy:          row.UpdatedBy,
		TimelineTemplateID: timeline,
		NumOfSubmissions:   len(rows.Submissions),
		NumOfRegistrants:   len(rows.Registrants),
	}

	phases, start, end, err := e.phases(row.ID, rows.Phases)
	if err != nil {
		return nil, err
	}
	c.Phases = phases
	c.StartDate = start
	c.EndDate = end

	c.PrizeSets = prizeSets(rows.Prizes)
	c.Tags = tags(rows.Technologies, rows.Platforms)
	c.Groups = groups(rows.Groups, ref.GroupIDs)
	c.Winners = winners(rows.Winners)
	c.Terms = terms(rows.Terms, ref.TermIDs)

	if c.Metadata, err = metadata(rows.Metadata); err != nil {
		return nil, errors.New(err).
			Component("transform").
			Category(errors.CategoryTransform).
			Context("legacy_id", row.ID).
			Build()
	}
	return c, nil
}

func description(row legacy.ChallengeRow, track string) string {
	var text string
	switch {
	case row.TypeID == MarathonMatchTypeID:
		text = deref(row.MarathonMatchDetail)
	case track == designTrack:
		text = deref(row.StudioDetail)
	default:
		text = deref(row.SoftwareDetail)
	}
	if text == "" {
		return NotAvailable
	}
	return text
}

// phases converts the phase rows in input order and derives the challenge
// start and end dates.
func (e *Engine) phases(legacyID int64, rows []legacy.PhaseRow) ([]model.Phase, time.Time, *time.Time, error) {
	var (
		start    time.Time
		startSet bool
		end      *time.Time
	)
	out := make([]model.Phase, 0, len(rows))

	for _, r := range rows {
		if r.ScheduledStartTime == nil {
			return nil, time.Time{}, nil, errors.Newf("phase %d has no scheduled start", r.ID).
				Component("transform").
				Category(errors.CategoryTransform).
				Context("legacy_id", legacyID).
				Context("phase_type_id", r.TypeID).
				Build()
		}

		scheduledStart := *r.ScheduledStartTime
		durationMs := int64(r.Duration)
		scheduledEnd := scheduledStart.Add(time.Duration(durationMs) * time.Millisecond)

		p := model.Phase{
			ID:                 e.newID(),
			ScheduledStartDate: scheduledStart,
			ScheduledEndDate:   scheduledEnd,
			ActualStartDate:    r.ActualStartTime,
			ActualEndDate:      r.ActualEndTime,
			Duration:           durationMs / 1000,
			IsOpen:             r.PhaseStatus == openPhaseStatus,
		}
		if pn, ok := e.phaseNames[r.TypeID]; ok {
			p.Name, p.PhaseID = pn.Name, pn.PhaseID
		} else {
			p.Name = deref(r.Name)
		}
		out = append(out, p)

		if r.TypeID == RegistrationPhaseTypeID && !startSet {
			start, startSet = scheduledStart, true
		}
		if end == nil || !e.maxEnd || scheduledEnd.After(*end) {
			end = &scheduledEnd
		}
	}

	if !startSet {
		start = e.now()
	}
	return out, start, end, nil
}

func prizeSets(rows []legacy.PrizeRow) []model.PrizeSet {
	prizes := make([]model.Prize, 0, len(rows))
	for _, r := range rows {
		prizes = append(prizes, model.Prize{Type: r.Type, Value: r.Value})
	}
	return []model.PrizeSet{{Type: ChallengePrize, Description: ChallengePrize, Prizes: prizes}}
}

func tags(technologies, platforms []legacy.NameRow) []string {
	out := make([]string, 0, len(technologies)+len(platforms))
	for _, r := range technologies {
		out = append(out, r.Name)
	}
	for _, r := range platforms {
		out = append(out, r.Name)
	}
	return out
}

func groups(rows []legacy.GroupRow, resolved map[int64]string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.GroupID == nil || *r.GroupID == 0 {
			continue
		}
		if id, ok := resolved[*r.GroupID]; ok {
			out = append(out, id)
		}
	}
	return out
}

func winners(rows []legacy.WinnerRow) []model.Winner {
	out := make([]model.Winner, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Winner{UserID: r.UserID, Handle: r.Handle, Placement: r.Placement})
	}
	return out
}

func terms(rows []legacy.TermRow, resolved map[int64]string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if id, ok := resolved[r.TermsOfUseID]; ok {
			out = append(out, id)
			continue
		}
		out = append(out, strconv.FormatInt(r.TermsOfUseID, 10))
	}
	return out
}

// metadata converts the first metadata row of the challenge. NULL columns
// are omitted.
func metadata(rows []legacy.MetadataRow) ([]model.Metadata, error) {
	if len(rows) == 0 {
		return []model.Metadata{}, nil
	}
	values := rows[0].Values()
	out := make([]model.Metadata, 0, len(values))
	for _, kv := range values {
		v := DecodeValue(kv.Key, kv.Value)
		if v.Kind == KindNull {
			continue
		}
		text, err := v.JSON()
		if err != nil {
			return nil, err
		}
		out = append(out, model.Metadata{Type: CamelCase(kv.Key), Value: text})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func unixMilli(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
