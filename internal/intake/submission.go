// Package intake validates uploaded resumes and turns them into structured reviews.
package intake

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// Form field names accepted by the upload form
const (
	FieldPasskey      = "passkey"
	FieldStudentName  = "student_name"
	FieldStudentEmail = "student_email"
)

// maxFieldSize bounds a single non-file form value
const maxFieldSize = 64 * 1024

// Submission is what the parser could recover from an upload request
type Submission struct {
	Fields   map[string]string
	Filename string
	// File holds at most the configured limit plus one byte so oversize
	// uploads are detectable without buffering them whole.
	File []byte
}

// Field returns a trimmed form value, or "" when absent
func (s *Submission) Field(name string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	return s.Fields[name]
}

// HasFile reports whether a named file part with content was received
func (s *Submission) HasFile() bool {
	return s != nil && s.Filename != "" && len(s.File) > 0
}

// ParseSubmission reads a multipart upload. Parsing is lenient: a missing
// boundary or a malformed part ends parsing and whatever was read before the
// problem is returned. Only the first file part is kept, truncated to
// maxFileSize+1 bytes.
func ParseSubmission(r *http.Request, maxFileSize int64) *Submission {
	sub := &Submission{Fields: make(map[string]string)}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return sub
	}

	reader := multipart.NewReader(r.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err != nil {
			return sub
		}

		name := part.FormName()
		filename := part.FileName()

		switch {
		case name == "":
			// not form-data; skip
		case filename != "":
			if sub.Filename != "" {
				break
			}
			data, err := readLimited(part, maxFileSize+1)
			if err != nil {
				_ = part.Close()
				return sub
			}
			sub.Filename = filename
			sub.File = data
		default:
			data, err := readLimited(part, maxFieldSize)
			if err != nil {
				_ = part.Close()
				return sub
			}
			sub.Fields[name] = strings.TrimSpace(string(data))
		}

		_ = part.Close()
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	_, err := io.Copy(&buf, io.LimitReader(r, limit))
	return buf.Bytes(), err
}
