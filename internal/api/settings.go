package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/daftar-erp/daftar/internal/backup"
	"github.com/daftar-erp/daftar/internal/model"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.Notify.List(r.Context(), queryBool(r, "unread"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.Notify.MarkRead(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.Notify.MarkAllRead(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Notify.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) notificationSettings(w http.ResponseWriter, r *http.Request) {
	set, err := s.app.Notify.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) updateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	var in model.NotificationSettings
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	set, err := s.app.Notify.UpdateSettings(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "notifications.settings", set.ID, "", "")
	writeJSON(w, http.StatusOK, set)
}

type backupSettingsResponse struct {
	model.BackupSettings
	NextRun string `json:"next_run,omitempty"`
}

func (s *Server) withNextRun(set model.BackupSettings) backupSettingsResponse {
	out := backupSettingsResponse{BackupSettings: set}
	if s.sched != nil {
		if next := s.sched.NextBackup(); !next.IsZero() {
			out.NextRun = next.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	return out
}

func (s *Server) backupSettings(w http.ResponseWriter, r *http.Request) {
	set, err := s.app.Backup.Settings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.withNextRun(set))
}

// backupSettingsRequest leaves out the run bookkeeping a client cannot set.
type backupSettingsRequest struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
	Retain   int    `json:"retain"`
}

func (s *Server) updateBackupSettings(w http.ResponseWriter, r *http.Request) {
	var in backupSettingsRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	set, err := s.app.Backup.UpdateSettings(r.Context(), model.BackupSettings{
		Enabled:  in.Enabled,
		Schedule: in.Schedule,
		Retain:   in.Retain,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.sched != nil {
		if err := s.sched.Reschedule(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.audit(r, "backup.settings", set.ID, "", set.Schedule)
	writeJSON(w, http.StatusOK, s.withNextRun(set))
}

func (s *Server) runBackup(w http.ResponseWriter, r *http.Request) {
	var (
		res backup.Result
		err error
	)
	if s.sched != nil {
		res, err = s.sched.RunBackup(r.Context())
	} else {
		res, err = s.app.Backup.Run(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "backup.run", "", "", res.Path)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) backupFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.app.Backup.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, files)
}
