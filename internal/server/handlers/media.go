package handlers

import "net/http"

func (h *Handlers) uploadURL(w http.ResponseWriter, r *http.Request) {
	key, url, err := h.media.GetUploadURL(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "presigning upload url failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, "", map[string]string{"key": key, "url": url})
}

func (h *Handlers) downloadURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	url, err := h.media.GetDownloadURL(r.Context(), key)
	if err != nil {
		h.logger.Error(r.Context(), "presigning download url failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, "", map[string]string{"url": url})
}
