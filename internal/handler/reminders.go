package handler

import (
	"net/http"
)

// CheckReminders выполняет пробный проход сканера напоминаний и возвращает сводку.
// Письма не отправляются, флаги reminderSent не меняются.
func (h *Handler) CheckReminders(w http.ResponseWriter, r *http.Request) {
	summary, err := h.checker.Scan(r.Context(), true)
	if err != nil {
		h.writeError(w, err, "check reminders")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
