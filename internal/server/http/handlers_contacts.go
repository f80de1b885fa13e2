package httpserver

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/and161185/authentic-caller/internal/convert"
)

const uploadField = "contactcsv"

var csvContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
}

type spamReport struct {
	SpamCount int64 `json:"spamCount"`
}

// callerID returns the authenticated id; RequireAuth guarantees it on /global routes.
func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "no auth")
	}
	return id, ok
}

// pathParam returns the decoded URL parameter. chi matches on RawPath when the
// client escaped characters such as ',' or '/', leaving the segment encoded.
func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	query, err := pathParam(r, "searchStr")
	if err != nil {
		writeFail(w, http.StatusBadRequest, "bad search string")
		return
	}
	views, err := s.contacts.Search(r.Context(), query, uid)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Data: convert.ToPublicViews(views)})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeFail(w, http.StatusBadRequest, "bad id")
		return
	}
	v, err := s.contacts.GetByID(r.Context(), id, uid)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Data: convert.ToPublicView(v)})
}

func (s *Server) handleReportSpam(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	var req reportSpamRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.contacts.ReportSpam(r.Context(), req.UserID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Data: spamReport{SpamCount: n}, Message: "User reported successfully."})
}

func (s *Server) handleUploadContacts(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	// headroom for multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+64<<10)
	file, hdr, err := r.FormFile(uploadField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeFail(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeFail(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if hdr.Size > s.opts.MaxUploadBytes {
		writeFail(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	mt, _, err := mime.ParseMediaType(hdr.Header.Get("Content-Type"))
	if err != nil || !csvContentTypes[mt] {
		writeFail(w, http.StatusBadRequest, "only csv files are allowed")
		return
	}

	stored, err := s.contacts.UploadContacts(r.Context(), uid, file)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Data: convert.ToContacts(stored)})
}
