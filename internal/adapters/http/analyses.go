package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, rt.requestBodyLimit(1))

	file, header, err := r.FormFile("image")
	if err != nil {
		rt.writeUploadError(w, r, err, "multipart field 'image' is required")
		return
	}
	defer file.Close()

	threshold, err := parseThreshold(r.FormValue("threshold"))
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}

	result, err := rt.analyzer.Analyze(r.Context(), ports.AnalyzeRequest{
		Identity:  identity,
		Filename:  header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		Body:      file,
		Threshold: threshold,
	})
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := rt.analyzer.GetAnalysis(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) getAnnotated(w http.ResponseWriter, r *http.Request) {
	rc, err := rt.analyzer.OpenAnnotated(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		rt.logger.Warn("stream annotated image", "id", r.PathValue("id"), "error", err)
	}
}

func (rt *Router) getAnalysisReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch reportFormat(r) {
	case "xlsx":
		data, err := rt.reports.AnalysisWorkbook(r.Context(), id)
		if err != nil {
			writeError(w, r, rt.logger, err)
			return
		}
		writeAttachment(w, xlsxContentType, fmt.Sprintf("pollen_report_%s.xlsx", id), data)
	case "json":
		doc, err := rt.reports.AnalysisReport(r.Context(), id)
		if err != nil {
			writeError(w, r, rt.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be json or xlsx"})
	}
}

func (rt *Router) submitBatch(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, rt.requestBodyLimit(maxBatchFiles))

	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		rt.writeUploadError(w, r, err, "multipart form with 'images' is required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'images' is required"})
		return
	}
	if len(headers) > maxBatchFiles {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("at most %d images per batch", maxBatchFiles)})
		return
	}

	threshold, err := parseThreshold(r.FormValue("threshold"))
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}

	files := make([]ports.UploadFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			writeError(w, r, rt.logger, fmt.Errorf("open upload %s: %w", h.Filename, err))
			return
		}
		defer f.Close()
		files = append(files, ports.UploadFile{Filename: h.Filename, Body: f})
	}

	job, err := rt.batches.Submit(r.Context(), identity, threshold, files)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getBatch(w http.ResponseWriter, r *http.Request) {
	job, err := rt.batches.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) getBatchReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch reportFormat(r) {
	case "xlsx":
		data, err := rt.reports.BatchWorkbook(r.Context(), id)
		if err != nil {
			writeError(w, r, rt.logger, err)
			return
		}
		writeAttachment(w, xlsxContentType, fmt.Sprintf("pollen_batch_%s.xlsx", id), data)
	case "json":
		report, err := rt.reports.BatchReport(r.Context(), id)
		if err != nil {
			writeError(w, r, rt.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be json or xlsx"})
	}
}

// requestBodyLimit leaves room for multipart framing around files uploads.
func (rt *Router) requestBodyLimit(files int) int64 {
	limit := rt.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	return int64(files)*limit + 1<<20
}

func (rt *Router) writeUploadError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": fallback})
}

func parseThreshold(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse threshold", err)
	}
	return &v, nil
}

func reportFormat(r *http.Request) string {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		return "json"
	}
	return format
}
