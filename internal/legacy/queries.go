package legacy

import (
	"strings"
	"text/template"
)

// query is one legacy SELECT. Every statement ends in a WHERE clause that
// references the project id as p.project_id, so the id restriction and the
// created-after filter can be appended as "and ..." predicates.
type query struct {
	name  string
	tmpl  *template.Template
	order string
}

type queryData struct {
	D      Dialect
	Prefix string
}

func newQuery(name, text, order string) query {
	return query{
		name:  name,
		tmpl:  template.Must(template.New(name).Parse(text)),
		order: order,
	}
}

// render executes the template for the dialect. The templates are static and
// the data has no failing methods, so an error here is a programming error.
func (q query) render(d Dialect, prefix string) string {
	var sb strings.Builder
	if err := q.tmpl.Execute(&sb, queryData{D: d, Prefix: prefix}); err != nil {
		panic(err)
	}
	return sb.String()
}

var headerQuery = newQuery("header", `
SELECT {{.Prefix}}
  p.create_user AS created_by, p.create_date AS created, p.modify_user AS updated_by,
  p.modify_date AS updated, p.project_id AS id, pn.value AS name,
  CASE
    WHEN (ptl.description = 'Application') THEN 'DEVELOP'
    WHEN (ptl.description = 'Component') THEN 'DEVELOP'
    WHEN (ptl.description = 'Studio') THEN 'DESIGN'
    ELSE 'GENERIC'
  END AS track,
  pcl.project_category_id AS type_id,
  pstatus.name AS status,
  review_type_info.value AS review_type,
  forum_id_info.value AS forum_id,
  confidentiality_type.value AS confidentiality_type,
  p.tc_direct_project_id AS project_id,
  pspec.detailed_requirements_text AS software_detail_requirements,
  pss.contest_description AS studio_detail_requirements,
  pmm_spec.match_details AS marathonmatch_detail_requirements
FROM project p
  INNER JOIN project_status_lu pstatus ON pstatus.project_status_id = p.project_status_id
  INNER JOIN project_category_lu pcl ON pcl.project_category_id = p.project_category_id
  INNER JOIN project_type_lu ptl ON ptl.project_type_id = pcl.project_type_id
  INNER JOIN project_info pn ON pn.project_id = p.project_id AND pn.project_info_type_id = 6
  LEFT JOIN project_info forum_id_info ON forum_id_info.project_id = p.project_id
    AND forum_id_info.project_info_type_id = 4
  LEFT JOIN project_info confidentiality_type ON confidentiality_type.project_id = p.project_id
    AND confidentiality_type.project_info_type_id = 34
  LEFT JOIN project_info review_type_info ON review_type_info.project_id = p.project_id
    AND review_type_info.project_info_type_id = 79
  LEFT JOIN project_spec pspec ON pspec.project_id = p.project_id
    AND pspec.version = (SELECT MAX(ps.version) FROM project_spec ps WHERE ps.project_id = p.project_id)
  LEFT JOIN project_studio_specification pss ON pss.project_studio_spec_id = p.project_studio_spec_id
  LEFT JOIN project_mm_specification pmm_spec ON pmm_spec.project_mm_spec_id = p.project_mm_spec_id
WHERE 1=1`, "ORDER BY p.project_id")

var idsQuery = newQuery("ids", `
SELECT {{.Prefix}} p.project_id AS id FROM project p WHERE 1=1`, "ORDER BY p.project_id")

var prizeQuery = newQuery("prizes", `
SELECT
  CASE
    WHEN prize.place = 1 THEN 'First Placement'
    WHEN prize.place = 2 THEN 'Second Placement'
    WHEN prize.place = 3 THEN 'Third Placement'
    WHEN prize.place = 4 THEN 'Forth Placement'
    WHEN prize.place = 5 THEN 'Fifth Placement'
  END AS type,
  prize.prize_amount AS value,
  prize.project_id AS challenge_id
FROM prize prize
  INNER JOIN project p ON prize.project_id = p.project_id
WHERE prize.prize_type_id = 15`, "ORDER BY prize.place")

var phaseQuery = newQuery("phases", `
SELECT
  phase.project_phase_id AS id,
  phase.phase_type_id AS type_id,
  CASE
    WHEN phase.phase_type_id = 1 THEN 'Registration'
    WHEN phase.phase_type_id = 2 THEN 'Submission'
    WHEN phase.phase_type_id = 4 THEN 'Review'
    WHEN phase.phase_type_id = 5 THEN 'Appeals'
    WHEN phase.phase_type_id = 6 THEN 'Appeals Response'
    WHEN phase.phase_type_id = 15 THEN 'Checkpoint Submission'
  END AS name,
  phase.actual_end_time AS actual_end_time,
  phase.actual_start_time AS actual_start_time,
  phase.scheduled_start_time AS scheduled_start_time,
  phase.duration AS duration,
  phase.project_id AS challenge_id,
  s.description AS phase_status
FROM project_phase phase
  INNER JOIN project p ON phase.project_id = p.project_id
  INNER JOIN phase_status_lu s ON phase.phase_status_id = s.phase_status_id
WHERE phase.phase_type_id IN (1, 2, 4, 5, 6, 15)`, "")

var technologyQuery = newQuery("technologies", `
SELECT tt.technology_name AS name, p.project_id AS challenge_id
FROM comp_technology ct
  INNER JOIN technology_types tt ON ct.technology_type_id = tt.technology_type_id
  INNER JOIN project_info p ON {{.D.CastInt "p.value"}} = ct.comp_vers_id AND p.project_info_type_id = 1
WHERE 1=1`, "")

var platformQuery = newQuery("platforms", `
SELECT ppl.name AS name, p.project_id AS challenge_id
FROM project_platform_lu ppl
  INNER JOIN project_platform p ON ppl.project_platform_id = p.project_platform_id
WHERE 1=1`, "")

var groupQuery = newQuery("groups", `
SELECT DISTINCT
  p.project_id AS challenge_id,
  gce.group_id AS group_id
FROM project p
  INNER JOIN project_category_lu pcl ON pcl.project_category_id = p.project_category_id
  LEFT JOIN contest_eligibility ce ON ce.contest_id = p.project_id
  LEFT JOIN group_contest_eligibility gce ON gce.contest_eligibility_id = ce.contest_eligibility_id
WHERE pcl.project_category_id NOT IN (27, 37)`, "")

var winnerQuery = newQuery("winners", `
SELECT
  p.project_id AS challenge_id,
  usr.handle AS handle,
  s.placement AS placement,
  usr.user_id AS user_id
FROM upload p
  INNER JOIN submission s ON s.upload_id = p.upload_id
  INNER JOIN prize pr ON pr.prize_id = s.prize_id
  INNER JOIN {{.D.UserTable}} usr ON usr.user_id = s.create_user
WHERE s.submission_type_id = 1 AND pr.prize_type_id IN (15, 16)`, "ORDER BY s.placement")

var metadataQuery = newQuery("metadata", `
SELECT
  p.project_id AS challenge_id,
  pi51.value AS submission_limit,
  pi52.value AS allow_stock_art,
  (SELECT pi53.value FROM project_info pi53
    WHERE pi53.project_id = p.project_id AND pi53.project_info_type_id = 53) AS submissions_viewable,
  {{.D.FileTypes}} AS filetypes
FROM project p
  LEFT JOIN project_info pi51 ON pi51.project_id = p.project_id AND pi51.project_info_type_id = 51
  LEFT JOIN project_info pi52 ON pi52.project_id = p.project_id AND pi52.project_info_type_id = 52
WHERE 1=1`, "")

var termsQuery = newQuery("terms", `
SELECT DISTINCT
  p.project_id AS challenge_id,
  t.terms_of_use_id AS terms_of_use_id
FROM project p
  INNER JOIN project_role_terms_of_use_xref t ON t.project_id = p.project_id
WHERE 1=1`, "")

var submissionQuery = newQuery("submissions", `
SELECT
  u.project_id AS challenge_id,
  s.submission_id AS submission_id,
  s.submission_type_id AS submission_type_id,
  s.create_user AS submitter_id,
  usr.handle AS submitter,
  ssl.name AS submission_status
FROM upload u
  INNER JOIN project p ON u.project_id = p.project_id
  INNER JOIN submission s ON u.upload_id = s.upload_id
  INNER JOIN submission_status_lu ssl ON s.submission_status_id = ssl.submission_status_id
  INNER JOIN {{.D.UserTable}} usr ON s.create_user = usr.user_id
WHERE s.submission_status_id <> 5
  AND s.submission_type_id IN (1, 3)
  AND u.upload_type_id = 1
  AND u.upload_status_id = 1`, "")

var registrantQuery = newQuery("registrants", `
SELECT
  u.handle AS handle,
  rur.create_date AS registration_date,
  {{.D.CastInt "ri5.value"}} AS reliability,
  p.project_id AS challenge_id
FROM resource rur
  INNER JOIN project p ON p.project_id = rur.project_id
  INNER JOIN resource_info ri1 ON ri1.resource_id = rur.resource_id AND ri1.resource_info_type_id = 1
  INNER JOIN {{.D.UserTable}} u ON {{.D.CastInt "ri1.value"}} = u.user_id
  LEFT JOIN resource_info ri5 ON ri5.resource_id = rur.resource_id AND ri5.resource_info_type_id = 5
WHERE rur.resource_role_id = 1`, "")
