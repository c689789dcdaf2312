package httpadapter

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

type historyResponse struct {
	Records  []domain.HistoryRecord `json:"records"`
	Summary  domain.HistorySummary  `json:"summary"`
	Degraded bool                   `json:"degraded"`
}

type trendResponse struct {
	Series  domain.TrendSeries    `json:"series"`
	Summary domain.HistorySummary `json:"summary"`
}

func (rt *Router) getHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var load domain.HistoryLoad
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		load = rt.history.Recent(r.Context(), limit)
	} else {
		window, err := parseWindow(r)
		if err != nil {
			writeError(w, r, rt.logger, err)
			return
		}
		load = rt.history.Window(r.Context(), window)
	}

	records := load.Records
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Records:  records,
		Summary:  domain.SummarizeHistory(load),
		Degraded: load.Degraded(),
	})
}

func (rt *Router) exportHistory(w http.ResponseWriter, r *http.Request) {
	data, err := rt.history.ExportWorkbook(r.Context())
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	filename := fmt.Sprintf("pollen_history_%s.xlsx", time.Now().Format("20060102_150405"))
	writeAttachment(w, xlsxContentType, filename, data)
}

func (rt *Router) getTrends(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	series, summary := rt.history.Series(r.Context(), window)
	writeJSON(w, http.StatusOK, trendResponse{Series: series, Summary: summary})
}

func (rt *Router) compareGroups(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}

	control := domain.ClassWT
	if raw := strings.TrimSpace(r.URL.Query().Get("control")); raw != "" {
		control, err = domain.ParseClassName(raw)
		if err != nil {
			writeError(w, r, rt.logger, err)
			return
		}
	}

	cmp, err := rt.history.Compare(r.Context(), window, control)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (rt *Router) createBackup(w http.ResponseWriter, r *http.Request) {
	key, err := rt.backup.Backup(r.Context())
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// parseWindow reads period, days and since. An explicit days value replaces
// the period preset; since narrows either of them.
func parseWindow(r *http.Request) (domain.Window, error) {
	q := r.URL.Query()

	window, err := domain.PresetWindow(strings.TrimSpace(q.Get("period")))
	if err != nil {
		return domain.Window{}, err
	}

	if raw := strings.TrimSpace(q.Get("days")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return domain.Window{}, domain.WrapError(domain.ErrInvalidInput, "parse window", fmt.Errorf("invalid days %q", raw))
		}
		window.Days = &days
	}

	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			return domain.Window{}, err
		}
		window.Since = &since
	}
	return window, nil
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, time.Local); err == nil {
		return t, nil
	}
	return domain.ParseTimestamp(raw)
}
