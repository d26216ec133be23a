package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/orgball2608/fary-stories/internal/stories"
)

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	viewer, _ := IdentityFrom(r.Context())
	groups, err := s.stories.Feed(r.Context(), viewer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) listBySubject(w http.ResponseWriter, r *http.Request) {
	items, err := s.stories.ListLive(r.Context(), chi.URLParam(r, "subjectKey"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// publish takes a multipart form with a "media" file and an optional
// "metadata" JSON part.
func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Stories.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, stories.ErrMediaTooLarge)
			return
		}
		badRequest(w, "invalid_form", "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("media")
	if err != nil {
		badRequest(w, "missing_media", "media file is required")
		return
	}
	defer file.Close()

	var meta publishMetadata
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			badRequest(w, "invalid_metadata", "metadata must be a JSON object")
			return
		}
	}

	item, err := s.stories.Publish(r.Context(), stories.PublishRequest{
		Author:          id,
		Media:           file,
		Size:            header.Size,
		ContentType:     header.Header.Get("Content-Type"),
		MediaDurationMs: meta.durationMs(),
		Display:         meta.attrs(),
		Tags:            meta.Tags,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_body", "invalid request body")
		return
	}
	if req.Query == "" && req.Filters == nil {
		badRequest(w, "invalid_search", "search query or filters are required")
		return
	}

	items, err := s.stories.Search(r.Context(), req.toQuery())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// getStory includes the view count, and the viewer list when the author asks.
func (s *Server) getStory(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "id")
	item, err := s.stories.Get(r.Context(), storyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := storyResponse{StoryItem: item}
	if count, err := s.stories.CountViews(r.Context(), storyID); err == nil {
		resp.ViewCount = &count
	} else {
		s.logger.Warn("Failed to count views", "story_id", storyID, "error", err)
	}

	if id, ok := IdentityFrom(r.Context()); ok && item.IsAuthoredBy(id.SubjectKey()) {
		viewers, err := s.stories.ListViewers(r.Context(), storyID, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Viewers = viewers
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) updateStory(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var body displayPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid_body", "invalid request body")
		return
	}

	item, err := s.stories.UpdateDisplay(r.Context(), chi.URLParam(r, "id"), id, body.attrs())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteStory(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := s.stories.Delete(r.Context(), chi.URLParam(r, "id"), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// recordView uses the signed-in viewer when there is one, otherwise the
// viewer key or fid from the body.
func (s *Server) recordView(w http.ResponseWriter, r *http.Request) {
	var req recordViewRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid_body", "invalid request body")
			return
		}
	}
	s.writeRecordView(w, r, chi.URLParam(r, "id"), viewerKeyFor(r, req))
}

// recordViewLegacy serves the older ?storyId=&fid= form.
func (s *Server) recordViewLegacy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fid, _ := strconv.ParseInt(q.Get("fid"), 10, 64)
	s.writeRecordView(w, r, q.Get("storyId"), viewerKeyFor(r, recordViewRequest{FID: fid}))
}

func (s *Server) writeRecordView(w http.ResponseWriter, r *http.Request, storyID, viewerKey string) {
	if err := s.stories.RecordView(r.Context(), storyID, viewerKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func viewerKeyFor(r *http.Request, req recordViewRequest) string {
	if id, ok := IdentityFrom(r.Context()); ok {
		return id.ViewerKey()
	}
	if req.FID > 0 {
		return strconv.FormatInt(req.FID, 10)
	}
	return req.ViewerKey
}

func (s *Server) listViewers(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	viewers, err := s.stories.ListViewers(r.Context(), chi.URLParam(r, "id"), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewers)
}
