package formatters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"resumegate/internal/spreadsheet"
	"resumegate/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "ResumeReview", &ReviewTextFormatter{})
	registry.RegisterFormatter("markdown", "ResumeReview", &ReviewMarkdownFormatter{})
	registry.RegisterFormatter("text", "AppendResult", &AppendTextFormatter{})
	registry.RegisterFormatter("markdown", "AppendResult", &AppendMarkdownFormatter{})

	return registry
}

// GlobalRegistry is the registry used by the CLI output handler
var GlobalRegistry = NewFormatterRegistry()

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats in sorted order
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.ResumeReview, *types.ResumeReview:
		return "ResumeReview"
	case spreadsheet.AppendResult, *spreadsheet.AppendResult:
		return "AppendResult"
	default:
		return "any"
	}
}

func asReview(data any) (types.ResumeReview, error) {
	switch v := data.(type) {
	case types.ResumeReview:
		return v, nil
	case *types.ResumeReview:
		if v != nil {
			return *v, nil
		}
	}
	return types.ResumeReview{}, fmt.Errorf("expected ResumeReview, got %T", data)
}

func asAppendResult(data any) (spreadsheet.AppendResult, error) {
	switch v := data.(type) {
	case spreadsheet.AppendResult:
		return v, nil
	case *spreadsheet.AppendResult:
		if v != nil {
			return *v, nil
		}
	}
	return spreadsheet.AppendResult{}, fmt.Errorf("expected AppendResult, got %T", data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// reviewLine is one checklist answer in a review section
type reviewLine struct {
	label string
	value string
}

// reviewSection groups the answers shown under one heading
type reviewSection struct {
	title   string
	lines   []reviewLine
	comment string
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func optBool(b *bool) string {
	if b == nil {
		return "n/a"
	}
	return yesNo(*b)
}

func optScore(v *float64, outOf int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%s/%d", strconv.FormatFloat(*v, 'f', -1, 64), outOf)
}

func optCount(v *int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *v)
}

func projectCategories(c types.ProjectCategories) string {
	var names []string
	for _, cat := range []struct {
		name string
		on   bool
	}{
		{"frontend", c.Frontend},
		{"backend", c.Backend},
		{"fullstack", c.Fullstack},
		{"ai/ml", c.AIML},
		{"iot", c.IoT},
		{"robotics", c.Robotics},
		{"research", c.Research},
		{"others", c.Others},
	} {
		if cat.on {
			names = append(names, cat.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// reviewSections lays out a review in display order
func reviewSections(r types.ResumeReview) []reviewSection {
	p := r.Presentation
	return []reviewSection{
		{
			title: "Presentation",
			lines: []reviewLine{
				{"No spelling or grammar errors", yesNo(p.NoErrors)},
				{"Links working", optBool(p.LinksWorking)},
				{"Links styled blue", optBool(p.LinksBlue)},
				{"Lines use the full width", yesNo(p.FullLines)},
				{"GitHub link", yesNo(p.HasGithubLink)},
				{"Coding platform link", yesNo(p.HasCodingPlatformLink)},
				{"LinkedIn link", yesNo(p.HasLinkedinLink)},
				{"Portfolio link", yesNo(p.HasPortfolioLink)},
			},
			comment: p.SectionComment,
		},
		{
			title: "Summary",
			lines: []reviewLine{
				{"Conciseness", optScore(r.Summary.ConciseScore, 5)},
				{"Mentions problem solving, open source or CP", yesNo(r.Summary.ProblemOpenCP)},
			},
			comment: r.Summary.SectionComment,
		},
		{
			title: "Education",
			lines: []reviewLine{
				{"Highlighted", yesNo(r.Education.Highlighted)},
				{"Consistent date format", yesNo(r.Education.DateFormat)},
			},
			comment: r.Education.SectionComment,
		},
		{
			title: "Skills",
			lines: []reviewLine{
				{"Programming languages", yesNo(r.Skills.HasProgrammingLanguages)},
				{"Software packages", yesNo(r.Skills.HasSoftwarePackages)},
				{"Problem solving / DS", yesNo(r.Skills.HasProblemSolvingDS)},
				{"Soft skills", yesNo(r.Skills.HasSoftSkills)},
				{"No buzzwords", yesNo(r.Skills.NoBuzzwords)},
			},
			comment: r.Skills.SectionComment,
		},
		{
			title: "Projects",
			lines: []reviewLine{
				{"Project count", optCount(r.Projects.ProjectCount)},
				{"Categories", projectCategories(r.Projects.Categories)},
				{"Other categories", r.Projects.OthersDetails},
				{"Looks AI generated", optBool(r.Projects.AIGenerated)},
				{"Project names", yesNo(r.Projects.HasProjectNames)},
				{"Ordering", optScore(r.Projects.SequenceScore, 5)},
				{"Links", yesNo(r.Projects.HasLinks)},
				{"Strong action verbs", yesNo(r.Projects.StrongVerbs)},
			},
			comment: r.Projects.SectionComment,
		},
		{
			title: "Experience",
			lines: []reviewLine{
				{"Basic details", yesNo(r.Experience.HasBasicDetails)},
				{"Learnings", yesNo(r.Experience.HasLearnings)},
				{"Outcomes", yesNo(r.Experience.HasOutcomes)},
				{"Soft skills", yesNo(r.Experience.HasSoftSkills)},
				{"Strong action verbs", yesNo(r.Experience.StrongVerbs)},
				{"Descriptions", optScore(r.Experience.DescriptionScore, 5)},
			},
			comment: r.Experience.SectionComment,
		},
		{
			title: "Achievements",
			lines: []reviewLine{
				{"Competitive programming", yesNo(r.Achievements.MentionsCP)},
				{"Open source", yesNo(r.Achievements.MentionsOpensource)},
				{"Competitions", yesNo(r.Achievements.MentionsCompetitions)},
				{"Volunteering", yesNo(r.Achievements.MentionsVolunteering)},
				{"Other", yesNo(r.Achievements.MentionsOther)},
				{"Overall", optScore(r.Achievements.OverallScore, 5)},
			},
			comment: r.Achievements.SectionComment,
		},
		{
			title: "Certificates",
			lines: []reviewLine{
				{"Basic information", yesNo(r.Certs.HasBasicInfo)},
				{"Links working", optBool(r.Certs.LinksWork)},
			},
			comment: r.Certs.SectionComment,
		},
	}
}

// ReviewTextFormatter handles text formatting for resume reviews
type ReviewTextFormatter struct{}

func (rtf *ReviewTextFormatter) Format(data any) (string, error) {
	review, err := asReview(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== RESUME REVIEW ===\n\n")
	fmt.Fprintf(&output, "Student: %s <%s>\n", review.StudentName, review.StudentEmail)
	fmt.Fprintf(&output, "Pages: %s\n", review.PageCount)
	fmt.Fprintf(&output, "Overall: %s\n", optScore(review.Overall, 10))
	fmt.Fprintf(&output, "Status: %s\n\n", review.Status)

	for _, section := range reviewSections(review) {
		fmt.Fprintf(&output, "=== %s ===\n", strings.ToUpper(section.title))
		for _, line := range section.lines {
			if line.value == "" {
				continue
			}
			fmt.Fprintf(&output, "%s: %s\n", line.label, line.value)
		}
		if section.comment != "" {
			fmt.Fprintf(&output, "Comment: %s\n", section.comment)
		}
		output.WriteString("\n")
	}

	output.WriteString("=== COMMENTS ===\n")
	output.WriteString(review.Comments)
	output.WriteString("\n")

	return output.String(), nil
}

func (rtf *ReviewTextFormatter) SupportedType() string {
	return "ResumeReview"
}

// ReviewMarkdownFormatter handles markdown formatting for resume reviews
type ReviewMarkdownFormatter struct{}

func (rmf *ReviewMarkdownFormatter) Format(data any) (string, error) {
	review, err := asReview(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Resume Review\n\n")
	fmt.Fprintf(&output, "**Student:** %s (%s)\n\n", review.StudentName, review.StudentEmail)
	fmt.Fprintf(&output, "| Pages | Overall | Status |\n|---|---|---|\n| %s | %s | %s |\n\n",
		review.PageCount, optScore(review.Overall, 10), review.Status)

	for _, section := range reviewSections(review) {
		fmt.Fprintf(&output, "## %s\n\n", section.title)
		for _, line := range section.lines {
			if line.value == "" {
				continue
			}
			fmt.Fprintf(&output, "- **%s:** %s\n", line.label, line.value)
		}
		if section.comment != "" {
			fmt.Fprintf(&output, "\n> %s\n", section.comment)
		}
		output.WriteString("\n")
	}

	output.WriteString("## Comments\n\n")
	output.WriteString(review.Comments)
	output.WriteString("\n")

	return output.String(), nil
}

func (rmf *ReviewMarkdownFormatter) SupportedType() string {
	return "ResumeReview"
}

// AppendTextFormatter handles text formatting for sheet appends
type AppendTextFormatter struct{}

func (atf *AppendTextFormatter) Format(data any) (string, error) {
	result, err := asAppendResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	fmt.Fprintf(&output, "Appended 1 row to %s (%d columns)\n", result.Sheet, len(result.Header))
	if len(result.AddedColumns) > 0 {
		fmt.Fprintf(&output, "New columns: %s\n", strings.Join(result.AddedColumns, ", "))
	}
	for i, h := range result.Header {
		if i < len(result.Row) {
			fmt.Fprintf(&output, "  %s = %v\n", h, result.Row[i])
		}
	}

	return output.String(), nil
}

func (atf *AppendTextFormatter) SupportedType() string {
	return "AppendResult"
}

// AppendMarkdownFormatter handles markdown formatting for sheet appends
type AppendMarkdownFormatter struct{}

func (amf *AppendMarkdownFormatter) Format(data any) (string, error) {
	result, err := asAppendResult(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	fmt.Fprintf(&output, "# Row appended to `%s`\n\n", result.Sheet)
	if len(result.AddedColumns) > 0 {
		fmt.Fprintf(&output, "New columns: `%s`\n\n", strings.Join(result.AddedColumns, "`, `"))
	}
	output.WriteString("| Column | Value |\n|---|---|\n")
	for i, h := range result.Header {
		if i < len(result.Row) {
			fmt.Fprintf(&output, "| %s | %v |\n", h, result.Row[i])
		}
	}

	return output.String(), nil
}

func (amf *AppendMarkdownFormatter) SupportedType() string {
	return "AppendResult"
}
