package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/daftar-erp/daftar/internal/metrics"
	"github.com/daftar-erp/daftar/internal/notify"
)

var errNoJobs = apiError{http.StatusServiceUnavailable, "not_configured", "التحليل غير المتزامن غير متاح", "asynchronous analysis is not available"}

type sendEmailRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (s *Server) sendEmail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var in sendEmailRequest
	if err := decodeJSON(r, &in); err != nil {
		metrics.RecordFunction("send-email", time.Since(start), err)
		s.writeError(w, r, err)
		return
	}
	messageID, err := s.app.Notify.SendEmail(r.Context(), notify.Email{To: in.To, Subject: in.Subject, HTML: in.HTML})
	metrics.RecordFunction("send-email", time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "email.send", messageID, "", strings.Join(in.To, ","))
	writeJSON(w, http.StatusOK, map[string]string{"id": messageID})
}

type analyzeRequest struct {
	Text  string `json:"text"`
	Async bool   `json:"async"`
}

func (s *Server) analyzeInvoice(w http.ResponseWriter, r *http.Request) {
	var in analyzeRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.Async {
		if s.jobs == nil {
			s.respond(w, r, errNoJobs, "")
			return
		}
		if strings.TrimSpace(in.Text) == "" {
			s.respond(w, r, apiError{http.StatusBadRequest, "invalid", "لا يوجد نص للتحليل", "no text to analyze"}, "")
			return
		}
		writeJSON(w, http.StatusAccepted, s.jobs.Submit(in.Text))
		return
	}

	start := time.Now()
	inv, err := s.analyzer.Analyze(r.Context(), in.Text, nil)
	metrics.RecordFunction("analyze-invoice", time.Since(start), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) analysisJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.respond(w, r, errNoJobs, "")
		return
	}
	job, ok := s.jobs.Get(mux.Vars(r)["id"])
	if !ok {
		s.respond(w, r, apiError{http.StatusNotFound, "not_found", "المهمة غير موجودة", "job not found"}, "")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
