package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"casetrack/internal/api"
)

const (
	uploadFieldName       = "investigation"
	deletedFilesFieldName = "deletedFiles"
)

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.cases.ListCases(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	c, err := s.cases.GetCase(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var input CreateCaseInput
	var uploads []Upload

	if isMultipart(r) {
		form, err := s.parseMultipart(w, r)
		if err != nil {
			s.writeErrorReq(w, r, httpStatusFromError(err), err)
			return
		}
		input = CreateCaseInput{
			PatientName:      form.value("patient_name"),
			Gender:           form.value("gender"),
			EntryDate:        form.value("entry_date"),
			History:          form.value("history"),
			ProgressionNotes: form.value("progression_notes"),
		}
		input.Age, err = form.intValue("age")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		uploads = form.uploads()
	} else {
		var req struct {
			PatientName      string `json:"patient_name"`
			Age              *int   `json:"age"`
			Gender           string `json:"gender"`
			EntryDate        string `json:"entry_date"`
			History          string `json:"history"`
			ProgressionNotes string `json:"progression_notes"`
		}
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
		input = CreateCaseInput{
			PatientName:      req.PatientName,
			Age:              req.Age,
			Gender:           req.Gender,
			EntryDate:        req.EntryDate,
			History:          req.History,
			ProgressionNotes: req.ProgressionNotes,
		}
	}

	created, err := s.cases.CreateCase(r.Context(), input, uploads, identity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	var patch CasePatch
	var removeKeys []string
	var uploads []Upload

	if isMultipart(r) {
		form, err := s.parseMultipart(w, r)
		if err != nil {
			s.writeErrorReq(w, r, httpStatusFromError(err), err)
			return
		}
		patch = CasePatch{
			PatientName:      form.optionalValue("patient_name"),
			Gender:           form.optionalValue("gender"),
			EntryDate:        form.optionalValue("entry_date"),
			History:          form.optionalValue("history"),
			ProgressionNotes: form.optionalValue("progression_notes"),
		}
		patch.Age, err = form.intValue("age")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		removeKeys = form.deletedFiles()
		uploads = form.uploads()
	} else {
		var req struct {
			PatientName      *string  `json:"patient_name"`
			Age              *int     `json:"age"`
			Gender           *string  `json:"gender"`
			EntryDate        *string  `json:"entry_date"`
			History          *string  `json:"history"`
			ProgressionNotes *string  `json:"progression_notes"`
			DeletedFiles     []string `json:"deletedFiles"`
		}
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
		patch = CasePatch{
			PatientName:      req.PatientName,
			Age:              req.Age,
			Gender:           req.Gender,
			EntryDate:        req.EntryDate,
			History:          req.History,
			ProgressionNotes: req.ProgressionNotes,
		}
		removeKeys = req.DeletedFiles
	}

	updated, warnings, err := s.cases.UpdateCase(r.Context(), id, patch, removeKeys, uploads)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	for _, warning := range warnings {
		w.Header().Add("Warning", fmt.Sprintf("199 - %q", warning))
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	warnings, err := s.cases.DeleteCase(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteCaseResponse{OK: true, Warnings: warnings})
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("attachment key is required"), ErrCodeInvalidArgument))
		return
	}

	att, rc, err := s.cases.OpenAttachment(r.Context(), id, key)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	mediaType := att.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mediaType)
	if att.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(att.SizeBytes, 10))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.OriginalName}))
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Error("stream attachment", "case", id, "key", key, "error", err)
	}
}

type multipartForm struct {
	form *multipart.Form
}

// parseMultipart reads the request's multipart body with the configured
// per-request cap. The caller must check the upload count and per-file
// size limits; only the aggregate request size is enforced here.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipartForm, error) {
	maxRequest := s.uploadLimits.MaxFileBytes*int64(s.uploadLimits.MaxFiles) + defaultJSONMaxBody
	r.Body = http.MaxBytesReader(w, r.Body, maxRequest)

	if err := r.ParseMultipartForm(s.multipartMaxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, makeAPIError(http.StatusRequestEntityTooLarge, "request_too_large", ErrCodeRequestTooLarge,
				fmt.Errorf("request body too large"))
		}
		return nil, badRequestCode(fmt.Errorf("parse multipart form: %w", err), ErrCodeInvalidArgument)
	}
	return &multipartForm{form: r.MultipartForm}, nil
}

func (f *multipartForm) value(name string) string {
	values := f.form.Value[name]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// optionalValue distinguishes an absent field from one set to the empty
// string.
func (f *multipartForm) optionalValue(name string) *string {
	values, ok := f.form.Value[name]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

func (f *multipartForm) intValue(name string) (*int, error) {
	raw := f.optionalValue(name)
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		return nil, badRequestCode(fmt.Errorf("%s must be an integer", name), ErrCodeInvalidArgument)
	}
	return &n, nil
}

// deletedFiles accepts either repeated form values or a single JSON
// array.
func (f *multipartForm) deletedFiles() []string {
	values := f.form.Value[deletedFilesFieldName]
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var parsed []string
		if err := json.Unmarshal([]byte(values[0]), &parsed); err == nil {
			return parsed
		}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (f *multipartForm) uploads() []Upload {
	headers := f.form.File[uploadFieldName]
	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, Upload{
			OriginalName: fh.Filename,
			MediaType:    fh.Header.Get("Content-Type"),
			SizeBytes:    fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

func isMultipart(r *http.Request) bool {
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return contentType == "multipart/form-data"
}
