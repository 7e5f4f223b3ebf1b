package types

import (
	"fmt"
	"slices"
	"strings"
)

// Page count buckets accepted in ResumeReview.PageCount
const (
	PageCountOne      = "1"
	PageCountTwo      = "2"
	PageCountThreeUp  = "3+"
	StatusRequestEdit = "request_changes"
	StatusApproved    = "approved"
)

// PageCounts lists the allowed page_count values in schema order
var PageCounts = []string{PageCountOne, PageCountTwo, PageCountThreeUp}

// Statuses lists the allowed status values in schema order
var Statuses = []string{StatusRequestEdit, StatusApproved}

// Presentation covers layout, spelling and profile links
type Presentation struct {
	NoErrors              bool   `json:"no_errors"`
	LinksWorking          *bool  `json:"links_working"`
	LinksBlue             *bool  `json:"links_blue"`
	FullLines             bool   `json:"full_lines"`
	HasGithubLink         bool   `json:"has_github_link"`
	HasCodingPlatformLink bool   `json:"has_coding_platform_link"`
	HasLinkedinLink       bool   `json:"has_linkedin_link"`
	HasPortfolioLink      bool   `json:"has_portfolio_link"`
	SectionComment        string `json:"section_comment"`
}

// Summary covers the profile summary paragraph
type Summary struct {
	ConciseScore   *float64 `json:"concise_score"`
	ProblemOpenCP  bool     `json:"problem_open_cp"`
	SectionComment string   `json:"section_comment"`
}

// Education covers the education section
type Education struct {
	Highlighted    bool   `json:"highlighted"`
	DateFormat     bool   `json:"date_format"`
	SectionComment string `json:"section_comment"`
}

// Skills covers the skills section
type Skills struct {
	HasProgrammingLanguages bool   `json:"has_programming_languages"`
	HasSoftwarePackages     bool   `json:"has_software_packages"`
	HasProblemSolvingDS     bool   `json:"has_problem_solving_ds"`
	HasSoftSkills           bool   `json:"has_soft_skills"`
	NoBuzzwords             bool   `json:"no_buzzwords"`
	SectionComment          string `json:"section_comment"`
}

// ProjectCategories flags which kinds of projects appear
type ProjectCategories struct {
	Frontend  bool `json:"frontend"`
	Backend   bool `json:"backend"`
	Fullstack bool `json:"fullstack"`
	AIML      bool `json:"aiml"`
	IoT       bool `json:"iot"`
	Robotics  bool `json:"robotics"`
	Research  bool `json:"research"`
	Others    bool `json:"others"`
}

// Projects covers the projects section
type Projects struct {
	ProjectCount    *int              `json:"project_count"`
	Categories      ProjectCategories `json:"categories"`
	OthersDetails   string            `json:"others_details"`
	AIGenerated     *bool             `json:"ai_generated"`
	HasProjectNames bool              `json:"has_project_names"`
	SequenceScore   *float64          `json:"sequence_score"`
	HasLinks        bool              `json:"has_links"`
	StrongVerbs     bool              `json:"strong_verbs"`
	SectionComment  string            `json:"section_comment"`
}

// Experience covers work experience and internships
type Experience struct {
	HasBasicDetails  bool     `json:"has_basic_details"`
	HasLearnings     bool     `json:"has_learnings"`
	HasOutcomes      bool     `json:"has_outcomes"`
	HasSoftSkills    bool     `json:"has_soft_skills"`
	StrongVerbs      bool     `json:"strong_verbs"`
	DescriptionScore *float64 `json:"description_score"`
	SectionComment   string   `json:"section_comment"`
}

// Achievements covers achievements and extracurriculars
type Achievements struct {
	MentionsCP           bool     `json:"mentions_cp"`
	MentionsOpensource   bool     `json:"mentions_opensource"`
	MentionsCompetitions bool     `json:"mentions_competitions"`
	MentionsVolunteering bool     `json:"mentions_volunteering"`
	MentionsOther        bool     `json:"mentions_other"`
	OverallScore         *float64 `json:"overall_score"`
	SectionComment       string   `json:"section_comment"`
}

// Certs covers certificates
type Certs struct {
	HasBasicInfo   bool   `json:"has_basic_info"`
	LinksWork      *bool  `json:"links_work"`
	SectionComment string `json:"section_comment"`
}

// ResumeReview is the structured review returned for an uploaded resume.
// Pointer fields are nullable: the reviewer sets them to null when the
// resume text cannot answer the question. Ratings may be fractional.
type ResumeReview struct {
	StudentName  string       `json:"student_name"`
	StudentEmail string       `json:"student_email"`
	PageCount    string       `json:"page_count"`
	Presentation Presentation `json:"presentation"`
	Summary      Summary      `json:"summary"`
	Education    Education    `json:"education"`
	Skills       Skills       `json:"skills"`
	Projects     Projects     `json:"projects"`
	Experience   Experience   `json:"experience"`
	Achievements Achievements `json:"achievements"`
	Certs        Certs        `json:"certs"`
	Overall      *float64     `json:"overall"`
	Status       string       `json:"status"`
	Comments     string       `json:"comments"`
}

// Validate checks enum membership and score bounds. The completion service is
// asked for this shape but its output is not trusted.
func (r *ResumeReview) Validate() error {
	var problems []string

	if !slices.Contains(PageCounts, r.PageCount) {
		problems = append(problems, fmt.Sprintf("page_count %q is not one of %v", r.PageCount, PageCounts))
	}
	if !slices.Contains(Statuses, r.Status) {
		problems = append(problems, fmt.Sprintf("status %q is not one of %v", r.Status, Statuses))
	}

	scores := []struct {
		field    string
		value    *float64
		min, max float64
	}{
		{"summary.concise_score", r.Summary.ConciseScore, 1, 5},
		{"projects.sequence_score", r.Projects.SequenceScore, 1, 5},
		{"experience.description_score", r.Experience.DescriptionScore, 1, 5},
		{"achievements.overall_score", r.Achievements.OverallScore, 1, 5},
		{"overall", r.Overall, 1, 10},
	}
	for _, s := range scores {
		if s.value != nil && (*s.value < s.min || *s.value > s.max) {
			problems = append(problems, fmt.Sprintf("%s %g is outside %g-%g", s.field, *s.value, s.min, s.max))
		}
	}

	if r.Projects.ProjectCount != nil && *r.Projects.ProjectCount < 0 {
		problems = append(problems, fmt.Sprintf("projects.project_count %d is negative", *r.Projects.ProjectCount))
	}

	if len(problems) > 0 {
		return fmt.Errorf("review does not match schema: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Backfill fills the student's name and email from the submitted form when
// the reviewer left them empty. Non-empty reviewer values always win.
func (r *ResumeReview) Backfill(name, email string) {
	if r.StudentName == "" && name != "" {
		r.StudentName = name
	}
	if r.StudentEmail == "" && email != "" {
		r.StudentEmail = email
	}
}
