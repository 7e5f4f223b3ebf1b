package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"resumegate/internal/types"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

type property struct {
	name   string
	schema *genai.Schema
}

func field(name string, schema *genai.Schema) property {
	return property{name: name, schema: schema}
}

// object builds an object schema whose properties are all required and kept in declaration order
func object(props ...property) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(props)),
	}
	for _, p := range props {
		s.Properties[p.name] = p.schema
		s.Required = append(s.Required, p.name)
		s.PropertyOrdering = append(s.PropertyOrdering, p.name)
	}
	return s
}

func stringSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString}
}

func enumSchema(values []string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Format: "enum", Enum: values}
}

func boolSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeBoolean}
}

func nullableBool() *genai.Schema {
	return &genai.Schema{Type: genai.TypeBoolean, Nullable: ptr(true)}
}

func nullableInt() *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Nullable: ptr(true)}
}

func rating(minimum, maximum float64) *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeNumber,
		Nullable: ptr(true),
		Minimum:  ptr(minimum),
		Maximum:  ptr(maximum),
	}
}

func ptr[T any](v T) *T { return &v }

// ReviewSchema describes types.ResumeReview for structured generation
func ReviewSchema() *genai.Schema {
	return object(
		field("student_name", stringSchema()),
		field("student_email", stringSchema()),
		field("page_count", enumSchema(types.PageCounts)),
		field("presentation", object(
			field("no_errors", boolSchema()),
			field("links_working", nullableBool()),
			field("links_blue", nullableBool()),
			field("full_lines", boolSchema()),
			field("has_github_link", boolSchema()),
			field("has_coding_platform_link", boolSchema()),
			field("has_linkedin_link", boolSchema()),
			field("has_portfolio_link", boolSchema()),
			field("section_comment", stringSchema()),
		)),
		field("summary", object(
			field("concise_score", rating(1, 5)),
			field("problem_open_cp", boolSchema()),
			field("section_comment", stringSchema()),
		)),
		field("education", object(
			field("highlighted", boolSchema()),
			field("date_format", boolSchema()),
			field("section_comment", stringSchema()),
		)),
		field("skills", object(
			field("has_programming_languages", boolSchema()),
			field("has_software_packages", boolSchema()),
			field("has_problem_solving_ds", boolSchema()),
			field("has_soft_skills", boolSchema()),
			field("no_buzzwords", boolSchema()),
			field("section_comment", stringSchema()),
		)),
		field("projects", object(
			field("project_count", nullableInt()),
			field("categories", object(
				field("frontend", boolSchema()),
				field("backend", boolSchema()),
				field("fullstack", boolSchema()),
				field("aiml", boolSchema()),
				field("iot", boolSchema()),
				field("robotics", boolSchema()),
				field("research", boolSchema()),
				field("others", boolSchema()),
			)),
			field("others_details", stringSchema()),
			field("ai_generated", nullableBool()),
			field("has_project_names", boolSchema()),
			field("sequence_score", rating(1, 5)),
			field("has_links", boolSchema()),
			field("strong_verbs", boolSchema()),
			field("section_comment", stringSchema()),
		)),
		field("experience", object(
			field("has_basic_details", boolSchema()),
			field("has_learnings", boolSchema()),
			field("has_outcomes", boolSchema()),
			field("has_soft_skills", boolSchema()),
			field("strong_verbs", boolSchema()),
			field("description_score", rating(1, 5)),
			field("section_comment", stringSchema()),
		)),
		field("achievements", object(
			field("mentions_cp", boolSchema()),
			field("mentions_opensource", boolSchema()),
			field("mentions_competitions", boolSchema()),
			field("mentions_volunteering", boolSchema()),
			field("mentions_other", boolSchema()),
			field("overall_score", rating(1, 5)),
			field("section_comment", stringSchema()),
		)),
		field("certs", object(
			field("has_basic_info", boolSchema()),
			field("links_work", nullableBool()),
			field("section_comment", stringSchema()),
		)),
		field("overall", rating(1, 10)),
		field("status", enumSchema(types.Statuses)),
		field("comments", stringSchema()),
	)
}

// DecodeReview parses a model response and rejects anything that does not
// conform to schema: missing keys, nulls in non-nullable fields, unknown keys,
// wrong types, out-of-range ratings and unknown enum values.
func DecodeReview(raw string, schema *genai.Schema) (types.ResumeReview, error) {
	var review types.ResumeReview

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return review, fmt.Errorf("empty response")
	}
	if !gjson.Valid(raw) {
		return review, fmt.Errorf("response is not valid JSON")
	}

	if violations := schemaViolations(gjson.Parse(raw), schema, ""); len(violations) > 0 {
		return review, fmt.Errorf("response does not match schema: %s", strings.Join(violations, "; "))
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&review); err != nil {
		return types.ResumeReview{}, fmt.Errorf("failed to decode review: %w", err)
	}

	if err := review.Validate(); err != nil {
		return types.ResumeReview{}, err
	}
	return review, nil
}

func schemaViolations(value gjson.Result, schema *genai.Schema, path string) []string {
	if schema == nil || schema.Type != genai.TypeObject {
		return nil
	}
	if !value.IsObject() {
		return []string{displayPath(path) + " is not an object"}
	}

	var violations []string
	for _, name := range schema.Required {
		full := name
		if path != "" {
			full = path + "." + name
		}

		child := schema.Properties[name]
		got := value.Get(name)
		switch {
		case !got.Exists():
			violations = append(violations, full+" is missing")
		case got.Type == gjson.Null:
			if child == nil || child.Nullable == nil || !*child.Nullable {
				violations = append(violations, full+" must not be null")
			}
		default:
			violations = append(violations, schemaViolations(got, child, full)...)
		}
	}
	return violations
}

func displayPath(path string) string {
	if path == "" {
		return "response"
	}
	return path
}
