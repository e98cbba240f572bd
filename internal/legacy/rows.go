package legacy

import "time"

// ChallengeRow is one legacy project header row.
type ChallengeRow struct {
	ID                  int64      `gorm:"column:id"`
	Name                string     `gorm:"column:name"`
	SoftwareDetail      *string    `gorm:"column:software_detail_requirements"`
	StudioDetail        *string    `gorm:"column:studio_detail_requirements"`
	MarathonMatchDetail *string    `gorm:"column:marathonmatch_detail_requirements"`
	Created             *time.Time `gorm:"column:created"`
	CreatedBy           string     `gorm:"column:created_by"`
	Updated             *time.Time `gorm:"column:updated"`
	UpdatedBy           string     `gorm:"column:updated_by"`
	Status              string     `gorm:"column:status"`
	TypeID              int64      `gorm:"column:type_id"`
	Track               string     `gorm:"column:track"`
	ReviewType          *string    `gorm:"column:review_type"`
	ForumID             *string    `gorm:"column:forum_id"`
	ConfidentialityType *string    `gorm:"column:confidentiality_type"`
	DirectProjectID     *int64     `gorm:"column:project_id"`
}

// PrizeRow is one placement prize.
type PrizeRow struct {
	Type        string  `gorm:"column:type"`
	Value       float64 `gorm:"column:value"`
	ChallengeID int64   `gorm:"column:challenge_id"`
}

// NameRow is a technology or platform name.
type NameRow struct {
	Name        string `gorm:"column:name"`
	ChallengeID int64  `gorm:"column:challenge_id"`
}

// GroupRow links a challenge to a legacy group. GroupID is nil for
// challenges without eligibility groups.
type GroupRow struct {
	ChallengeID int64  `gorm:"column:challenge_id"`
	GroupID     *int64 `gorm:"column:group_id"`
}

// WinnerRow is one placed submission.
type WinnerRow struct {
	ChallengeID int64  `gorm:"column:challenge_id"`
	Handle      string `gorm:"column:handle"`
	Placement   int    `gorm:"column:placement"`
	UserID      int64  `gorm:"column:user_id"`
}

// PhaseRow is one legacy project phase. Duration is in milliseconds.
type PhaseRow struct {
	ID                 int64      `gorm:"column:id"`
	TypeID             int64      `gorm:"column:type_id"`
	Name               *string    `gorm:"column:name"`
	ActualStartTime    *time.Time `gorm:"column:actual_start_time"`
	ActualEndTime      *time.Time `gorm:"column:actual_end_time"`
	ScheduledStartTime *time.Time `gorm:"column:scheduled_start_time"`
	Duration           float64    `gorm:"column:duration"`
	ChallengeID        int64      `gorm:"column:challenge_id"`
	PhaseStatus        string     `gorm:"column:phase_status"`
}

// MetadataRow holds the loosely typed project_info values of a challenge.
type MetadataRow struct {
	ChallengeID         int64   `gorm:"column:challenge_id"`
	SubmissionLimit     *string `gorm:"column:submission_limit"`
	AllowStockArt       *string `gorm:"column:allow_stock_art"`
	SubmissionsViewable *string `gorm:"column:submissions_viewable"`
	FileTypes           *string `gorm:"column:filetypes"`
}

// Values returns the metadata columns keyed by column name, in select order.
func (m MetadataRow) Values() []KeyValue {
	return []KeyValue{
		{Key: "submission_limit", Value: m.SubmissionLimit},
		{Key: "allow_stock_art", Value: m.AllowStockArt},
		{Key: "submissions_viewable", Value: m.SubmissionsViewable},
		{Key: "filetypes", Value: m.FileTypes},
	}
}

// KeyValue is one metadata column. A nil Value is SQL NULL.
type KeyValue struct {
	Key   string
	Value *string
}

// TermRow links a challenge to a legacy terms-of-use id.
type TermRow struct {
	ChallengeID  int64 `gorm:"column:challenge_id"`
	TermsOfUseID int64 `gorm:"column:terms_of_use_id"`
}

// SubmissionRow is one active contest or checkpoint submission.
type SubmissionRow struct {
	ChallengeID      int64  `gorm:"column:challenge_id"`
	SubmissionID     int64  `gorm:"column:submission_id"`
	SubmissionTypeID int64  `gorm:"column:submission_type_id"`
	SubmitterID      int64  `gorm:"column:submitter_id"`
	Submitter        string `gorm:"column:submitter"`
	SubmissionStatus string `gorm:"column:submission_status"`
}

// RegistrantRow is one registered submitter.
type RegistrantRow struct {
	Handle           string     `gorm:"column:handle"`
	RegistrationDate *time.Time `gorm:"column:registration_date"`
	Reliability      *int64     `gorm:"column:reliability"`
	ChallengeID      int64      `gorm:"column:challenge_id"`
}

// SecondaryRows is the result of the secondary queries for one page.
type SecondaryRows struct {
	Prizes       []PrizeRow
	Technologies []NameRow
	Platforms    []NameRow
	Groups       []GroupRow
	Winners      []WinnerRow
	Phases       []PhaseRow
	Metadata     []MetadataRow
	Terms        []TermRow
	Submissions  []SubmissionRow
	Registrants  []RegistrantRow
}

// ForChallenge returns the rows owned by one challenge. Row order within
// each slice is preserved.
func (s *SecondaryRows) ForChallenge(id int64) *SecondaryRows {
	out := &SecondaryRows{}
	if s == nil {
		return out
	}
	out.Prizes = filter(s.Prizes, func(r PrizeRow) bool { return r.ChallengeID == id })
	out.Technologies = filter(s.Technologies, func(r NameRow) bool { return r.ChallengeID == id })
	out.Platforms = filter(s.Platforms, func(r NameRow) bool { return r.ChallengeID == id })
	out.Groups = filter(s.Groups, func(r GroupRow) bool { return r.ChallengeID == id })
	out.Winners = filter(s.Winners, func(r WinnerRow) bool { return r.ChallengeID == id })
	out.Phases = filter(s.Phases, func(r PhaseRow) bool { return r.ChallengeID == id })
	out.Metadata = filter(s.Metadata, func(r MetadataRow) bool { return r.ChallengeID == id })
	out.Terms = filter(s.Terms, func(r TermRow) bool { return r.ChallengeID == id })
	out.Submissions = filter(s.Submissions, func(r SubmissionRow) bool { return r.ChallengeID == id })
	out.Registrants = filter(s.Registrants, func(r RegistrantRow) bool { return r.ChallengeID == id })
	return out
}

func filter[T any](rows []T, keep func(T) bool) []T {
	var out []T
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
