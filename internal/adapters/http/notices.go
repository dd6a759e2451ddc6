package httpadapter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

func (rt *Router) submitNotice(w http.ResponseWriter, r *http.Request) {
	var doc domain.Document
	if err := decodeJSON(w, r, &doc); err != nil {
		writeFailure(w, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}

	queued, err := rt.submitter.Submit(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, queued)
}

func (rt *Router) getNotice(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("notice_id"))
	if id == "" {
		writeFailure(w, http.StatusBadRequest, domain.KindInvalidInput, "notice id is required")
		return
	}

	docs, err := rt.docs.BatchGet(r.Context(), []string{id})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(docs) != 1 || docs[0] == nil {
		writeError(w, domain.WrapError(domain.ErrDocumentNotFound, "get notice", errors.New("id="+id)))
		return
	}
	writeJSON(w, http.StatusOK, docs[0])
}
