package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ieltsprep/mockcenter/internal/handler/views"
	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/results"
	"github.com/ieltsprep/mockcenter/internal/scoring"
)

type testSummary struct {
	ID        string         `json:"id"`
	Kind      model.TestKind `json:"kind"`
	Title     string         `json:"title"`
	Questions int            `json:"questions"`
}

func (h *Handler) handleListTests(w http.ResponseWriter, r *http.Request) {
	kind := model.TestKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}
	tests, err := h.store.ListTests(kind)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	// Answer keys are only shown to staff.
	if canSeeAll(model.UserFromContext(r.Context())) {
		if tests == nil {
			tests = []model.Test{}
		}
		writeJSON(w, http.StatusOK, tests)
		return
	}
	out := make([]testSummary, 0, len(tests))
	for _, t := range tests {
		n := len(t.Answers) + len(t.ListeningAnswers) + len(t.ReadingAnswers)
		out = append(out, testSummary{ID: t.ID, Kind: t.Kind, Title: t.Title, Questions: n})
	}
	writeJSON(w, http.StatusOK, out)
}

func sectionParam(w http.ResponseWriter, r *http.Request) (scoring.Section, bool) {
	section, err := scoring.ParseSection(chi.URLParam(r, "section"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown section")
		return "", false
	}
	return section, true
}

func (h *Handler) handleSubmitSection(w http.ResponseWriter, r *http.Request) {
	section, ok := sectionParam(w, r)
	if !ok {
		return
	}
	var sub results.SectionSubmission
	if !decodeBody(w, r, &sub) {
		return
	}
	if sub.TestID == "" {
		writeError(w, http.StatusBadRequest, "test_id required")
		return
	}
	v, err := h.results.SubmitSection(section, model.UserFromContext(r.Context()), sub)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// ownerFilter returns the user whose results may be listed: the caller for
// students, or the optional "user" query parameter for staff.
func ownerFilter(r *http.Request) string {
	u := model.UserFromContext(r.Context())
	if canSeeAll(u) {
		return r.URL.Query().Get("user")
	}
	return u.ID
}

func (h *Handler) handleListSection(w http.ResponseWriter, r *http.Request) {
	section, ok := sectionParam(w, r)
	if !ok {
		return
	}
	list, err := h.results.ListSection(section, ownerFilter(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) loadSection(w http.ResponseWriter, r *http.Request) (model.SectionView, bool) {
	section, ok := sectionParam(w, r)
	if !ok {
		return model.SectionView{}, false
	}
	v, err := h.results.SectionView(section, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return v, false
	}
	if !canView(model.UserFromContext(r.Context()), v.Result.UserID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return v, false
	}
	return v, true
}

func (h *Handler) handleGetSection(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.loadSection(w, r); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) handleSectionPage(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.loadSection(w, r); ok {
		renderHTML(w, r, views.SectionResultPage(v))
	}
}

func (h *Handler) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	section, ok := sectionParam(w, r)
	if !ok {
		return
	}
	if err := h.results.DeleteSection(section, chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmitFullMock(w http.ResponseWriter, r *http.Request) {
	var sub results.FullMockSubmission
	if !decodeBody(w, r, &sub) {
		return
	}
	if sub.TestID == "" {
		writeError(w, http.StatusBadRequest, "test_id required")
		return
	}
	v, err := h.results.SubmitFullMock(model.UserFromContext(r.Context()), sub)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleListFullMocks(w http.ResponseWriter, r *http.Request) {
	list, err := h.results.ListFullMocks(ownerFilter(r), r.URL.Query().Get("test"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) loadFullMock(w http.ResponseWriter, r *http.Request) (model.FullMockView, bool) {
	v, err := h.results.FullMockView(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return v, false
	}
	if !canView(model.UserFromContext(r.Context()), v.Result.UserID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return v, false
	}
	return v, true
}

func (h *Handler) handleGetFullMock(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.loadFullMock(w, r); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) handleFullMockPage(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.loadFullMock(w, r); ok {
		renderHTML(w, r, views.FullMockResultPage(v))
	}
}

func (h *Handler) handleDeleteFullMock(w http.ResponseWriter, r *http.Request) {
	if err := h.results.DeleteFullMock(chi.URLParam(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignWritingRequest struct {
	Band     *scoring.Band `json:"band"`
	Feedback string        `json:"feedback"`
}

func (h *Handler) handleAssignWriting(w http.ResponseWriter, r *http.Request) {
	var req assignWritingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Band == nil {
		writeError(w, http.StatusBadRequest, "band required")
		return
	}
	v, err := h.results.AssignWriting(chi.URLParam(r, "id"), *req.Band, req.Feedback, model.UserFromContext(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleSuggestWriting(w http.ResponseWriter, r *http.Request) {
	a, err := h.results.SuggestWriting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) converter(mode string) (scoring.Converter, error) {
	if mode == "" {
		return scoring.NewConverter(h.results.Mode()), nil
	}
	m, err := scoring.ParseMode(mode)
	if err != nil {
		return scoring.Converter{}, err
	}
	return scoring.NewConverter(m), nil
}

// totalOrDefault treats an omitted total as a full 40-question section.
func totalOrDefault(total *int) int {
	if total == nil {
		return scoring.DefaultSectionTotal
	}
	return *total
}

type bandRequest struct {
	Section string `json:"section"`
	Score   int    `json:"score"`
	Total   *int   `json:"total"`
	Mode    string `json:"mode"`
}

type bandResponse struct {
	Section scoring.Section `json:"section"`
	Mode    scoring.Mode    `json:"mode"`
	Band    scoring.Band    `json:"band"`
	Tier    string          `json:"tier"`
}

func (h *Handler) handleScoreBand(w http.ResponseWriter, r *http.Request) {
	var req bandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	section, err := scoring.ParseSection(req.Section)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	conv, err := h.converter(req.Mode)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	band, err := conv.BandFor(section, req.Score, totalOrDefault(req.Total))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bandResponse{Section: section, Mode: conv.Mode, Band: band, Tier: band.Tier()})
}

type aggregateRequest struct {
	ListeningScore int           `json:"listening_score"`
	ListeningTotal *int          `json:"listening_total"`
	ReadingScore   int           `json:"reading_score"`
	ReadingTotal   *int          `json:"reading_total"`
	WritingBand    *scoring.Band `json:"writing_band"`
	Mode           string        `json:"mode"`
}

func (h *Handler) handleScoreAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WritingBand == nil {
		writeError(w, http.StatusBadRequest, "writing_band required")
		return
	}
	conv, err := h.converter(req.Mode)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	comp, err := conv.Aggregate(req.ListeningScore, totalOrDefault(req.ListeningTotal),
		req.ReadingScore, totalOrDefault(req.ReadingTotal), *req.WritingBand)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}
