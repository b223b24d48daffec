package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataqa/internal/identify"
	"github.com/sells-group/dataqa/internal/ingest"
	"github.com/sells-group/dataqa/internal/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCheck runs the full quality pipeline over the uploaded payloads.
// Every file part of the form counts as one payload regardless of its
// field name. Optional form fields id_column, id_candidates and keys
// override the server defaults for this request only.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseForm(w, r)
	if !ok {
		return
	}

	sess := session.New(s.requestStrategy(r), s.requestKeys(r))

	n := 0
	for _, headers := range form.File {
		for _, fh := range headers {
			data, err := readPart(fh)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			sess.AddResult(ingest.Payload(partName(fh), data))
			n++
		}
	}
	if n == 0 {
		s.writeError(w, http.StatusBadRequest, "no payloads submitted")
		return
	}

	s.runAndRespond(w, sess, n)
}

// handleDrift compares the "current" file parts against the "previous"
// file parts. Both sets are required.
func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	if len(form.File["current"]) == 0 || len(form.File["previous"]) == 0 {
		s.writeError(w, http.StatusBadRequest, "both current and previous payloads are required")
		return
	}

	sess := session.New(s.requestStrategy(r), s.requestKeys(r))

	n := 0
	for _, fh := range form.File["current"] {
		data, err := readPart(fh)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess.AddResult(ingest.Payload(partName(fh), data))
		n++
	}
	for _, fh := range form.File["previous"] {
		data, err := readPart(fh)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess.AddPrevious(ingest.Payload(partName(fh), data))
		n++
	}

	s.runAndRespond(w, sess, n)
}

func (s *Server) runAndRespond(w http.ResponseWriter, sess *session.Session, payloads int) {
	report, err := sess.Run()
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.log.Info("run complete",
		zap.String("run_id", report.RunID),
		zap.Int("payloads", payloads),
		zap.Int("tables", len(report.Tables)),
	)
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "request too large or not multipart")
		return nil, false
	}
	return r.MultipartForm, true
}

// requestStrategy builds the identifier strategy for one request,
// preferring id_column over id_candidates over the server defaults.
func (s *Server) requestStrategy(r *http.Request) identify.Strategy {
	if col := strings.TrimSpace(r.FormValue("id_column")); col != "" {
		return identify.NamedColumn(col)
	}
	if cands := splitList(r.FormValue("id_candidates")); len(cands) > 0 {
		return identify.FixedCandidates(cands...)
	}
	return s.opts.Strategy
}

func (s *Server) requestKeys(r *http.Request) []string {
	if keys := splitList(r.FormValue("keys")); len(keys) > 0 {
		return keys
	}
	return s.opts.Keys
}

// splitList parses a comma-separated form value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "server: open part %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, eris.Wrapf(err, "server: read part %s", fh.Filename)
	}
	return data, nil
}

func partName(fh *multipart.FileHeader) string {
	if fh.Filename != "" {
		return fh.Filename
	}
	return "payload"
}
