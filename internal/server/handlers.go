package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/lineage/pkg/backend"
	"github.com/matzehuels/lineage/pkg/buildinfo"
	lerrors "github.com/matzehuels/lineage/pkg/errors"
	"github.com/matzehuels/lineage/pkg/graph"
	"github.com/matzehuels/lineage/pkg/lineage"
	"github.com/matzehuels/lineage/pkg/render"
	"github.com/matzehuels/lineage/pkg/render/raster"
	"github.com/matzehuels/lineage/pkg/render/svg"
	"github.com/matzehuels/lineage/pkg/search"
)

const (
	maxTicks     = 1000
	maxFrameSide = 4096
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	ID   string     `json:"id"`
	View graph.View `json:"view"`
}

// TickResponse reports whether the simulation is still moving.
type TickResponse struct {
	Active bool `json:"active"`
}

// ErasResponse lists navigable eras.
type ErasResponse struct {
	Eras []EraInfo `json:"eras"`
}

// EraInfo is one navigable era.
type EraInfo struct {
	Era   int    `json:"era"`
	Label string `json:"label"`
}

// ----- Health -----

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: buildinfo.Current()})
}

// ----- Backend passthrough -----

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("name")
	if err := lerrors.ValidateSearchTerm(term); err != nil {
		writeError(w, err)
		return
	}
	results := search.Lookup(r.Context(), s.backend, term, s.logger)
	if results == nil {
		results = []lineage.Entry{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.backend.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ----- Sessions -----

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	v, err := s.sessions.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{ID: v.ID(), View: v.Export()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewerFrom(r.Context()).Export())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(viewerFrom(r.Context()).ID()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) trace(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context())
	if err := v.Select(r.Context(), chi.URLParam(r, "node")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Export())
}

func (s *Server) clearSelection(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context())
	v.Clear()
	writeJSON(w, http.StatusOK, v.Export())
}

func (s *Server) eras(w http.ResponseWriter, r *http.Request) {
	eras := viewerFrom(r.Context()).Eras()
	resp := ErasResponse{Eras: make([]EraInfo, 0, len(eras))}
	for _, era := range eras {
		resp.Eras = append(resp.Eras, EraInfo{Era: era, Label: render.Roman(era)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) flyToEra(w http.ResponseWriter, r *http.Request) {
	era, err := strconv.Atoi(chi.URLParam(r, "era"))
	if err != nil {
		writeError(w, lerrors.New(lerrors.ErrCodeInvalidInput, "era must be an integer"))
		return
	}
	v := viewerFrom(r.Context())
	if err := v.FlyToEra(era); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Export())
}

func (s *Server) tick(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", 1)
	if err != nil {
		writeError(w, err)
		return
	}
	if n < 1 || n > maxTicks {
		writeError(w, lerrors.New(lerrors.ErrCodeInvalidInput, "n must be in [1, %d]", maxTicks))
		return
	}
	writeJSON(w, http.StatusOK, TickResponse{Active: viewerFrom(r.Context()).Tick(n)})
}

func (s *Server) zoom(w http.ResponseWriter, r *http.Request) {
	k, err := strconv.ParseFloat(r.URL.Query().Get("k"), 64)
	if err != nil {
		writeError(w, lerrors.New(lerrors.ErrCodeInvalidInput, "k must be a number"))
		return
	}
	v := viewerFrom(r.Context())
	if err := v.SetZoom(k); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Export())
}

func (s *Server) frame(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r.Context())
	width, err := intParam(r, "w", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	height, err := intParam(r, "h", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	if width != 0 || height != 0 {
		if err := lerrors.ValidateFrameSize(width, height); err != nil {
			writeError(w, err)
			return
		}
		if width > maxFrameSide || height > maxFrameSide {
			writeError(w, lerrors.New(lerrors.ErrCodeInvalidInput, "frame exceeds %d pixels", maxFrameSide))
			return
		}
		v.Resize(float64(width), float64(height))
	} else {
		fw, fh := v.Size()
		width, height = int(fw), int(fh)
	}

	switch format := chi.URLParam(r, "format"); format {
	case "png":
		c := raster.New(width, height)
		v.Render(c)
		data, err := c.PNG()
		if err != nil {
			writeError(w, lerrors.Wrap(lerrors.ErrCodeInternal, err, "encode png"))
			return
		}
		writeBytes(w, "image/png", data)
	case "svg":
		c := svg.New(float64(width), float64(height))
		v.Render(c)
		writeBytes(w, "image/svg+xml", c.Bytes())
	default:
		writeError(w, lerrors.New(lerrors.ErrCodeUnsupported, "unsupported frame format %q", format))
	}
}

// ----- Helpers -----

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, lerrors.New(lerrors.ErrCodeInvalidInput, "%s must be an integer", name)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	writeJSON(w, status, body)
}

// errorBody maps err to a status and its JSON body. Coded errors keep
// their code; backend failures are classified by sentinel.
func errorBody(err error) (int, ErrorResponse) {
	code := lerrors.GetCode(err)
	if code == "" {
		switch {
		case backend.IsNotFound(err):
			code = lerrors.ErrCodeNotFound
		case errors.Is(err, backend.ErrRateLimited):
			code = lerrors.ErrCodeRateLimited
		case errors.Is(err, context.DeadlineExceeded):
			code = lerrors.ErrCodeTimeout
		case errors.Is(err, backend.ErrNetwork):
			code = lerrors.ErrCodeNetwork
		default:
			code = lerrors.ErrCodeInternal
		}
	}
	return lerrors.StatusOf(code), ErrorResponse{Code: string(code), Message: lerrors.UserMessage(err)}
}
