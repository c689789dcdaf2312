package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

type publishCaseRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Methods     string   `json:"methods"`
	Results     string   `json:"results"`
	Conclusions string   `json:"conclusions"`
	Tags        []string `json:"tags"`
}

func (rt *Router) listCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.CaseFilter{Sort: domain.CaseSort(strings.TrimSpace(q.Get("sort")))}

	for _, raw := range q["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Tags = append(filter.Tags, tag)
			}
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	list, err := rt.cases.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	if list == nil {
		list = []domain.CaseStudy{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": list})
}

func (rt *Router) publishCase(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())

	var req publishCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	created, err := rt.cases.Publish(r.Context(), identity, domain.CaseStudy{
		Title:       req.Title,
		Description: req.Description,
		Methods:     req.Methods,
		Results:     req.Results,
		Conclusions: req.Conclusions,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (rt *Router) attachCaseImage(w http.ResponseWriter, r *http.Request) {
	caseID, ok := rt.caseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.cases.AttachImage(r.Context(), caseID, req.Path); err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) likeCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := rt.caseID(w, r)
	if !ok {
		return
	}
	if err := rt.cases.Like(r.Context(), caseID); err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listComments(w http.ResponseWriter, r *http.Request) {
	caseID, ok := rt.caseID(w, r)
	if !ok {
		return
	}
	comments, err := rt.cases.Comments(r.Context(), caseID)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	if comments == nil {
		comments = []domain.CaseComment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (rt *Router) addComment(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	caseID, ok := rt.caseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	comment, err := rt.cases.Comment(r.Context(), identity, caseID, req.Content)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (rt *Router) caseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "case id must be a positive integer"})
		return 0, false
	}
	return id, true
}
