package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/bher20/avoidedcost/internal/batch"
	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/engine"
	"github.com/bher20/avoidedcost/internal/report"
	"github.com/bher20/avoidedcost/pkg/utilities"
)

// ProjectsRequest is the JSON body of POST /api/v1/results. A bare array of
// projects is accepted too.
type ProjectsRequest struct {
	Projects []calc.Project `json:"projects"`
}

func readBatch(w http.ResponseWriter, r *http.Request) (*batch.Batch, error) {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		return batch.ReadCSV(body)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	var req ProjectsRequest
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(raw, &req.Projects)
	} else {
		err = json.Unmarshal(raw, &req)
	}
	if err != nil {
		return nil, err
	}
	return batch.FromProjects(req.Projects)
}

// splitErrors lists the members of a joined error.
func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func (s *Server) createResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := readBatch(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid projects", splitErrors(err)...)
		return
	}
	if len(b.Projects) == 0 {
		writeError(w, http.StatusBadRequest, "no projects")
		return
	}

	shapes, err := engine.LoadShapeTableFrom(ctx, s.st)
	if err != nil {
		slog.Error("api: load shapes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	res, err := engine.New(engine.StorageSource{Storage: s.st}, shapes, s.opts).Run(ctx, b.Projects)
	if err != nil {
		var de *calc.DataError
		if errors.As(err, &de) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.Error("api: run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	snap := report.NewSnapshot("api", engine.Portfolio(b, res), res)
	if err := report.SaveSnapshot(ctx, s.st, snap); err != nil {
		slog.Error("api: save run failed", "id", snap.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("api: run stored", "id", snap.ID, "projects", len(b.Projects), "failures", len(snap.Failures))
	w.Header().Set("Location", "/api/v1/results/"+snap.ID)
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := report.LoadSnapshot(r.Context(), s.st, id)
	if err != nil {
		slog.Error("api: load run failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.st.ListRunResults(r.Context(), limit)
	if err != nil {
		slog.Error("api: list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) listLoadShapes(w http.ResponseWriter, r *http.Request) {
	names, err := s.st.LoadShapeNames(r.Context())
	if err != nil {
		slog.Error("api: list load shapes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		LoadShapes []string `json:"load_shapes"`
	}{names})
}

func (s *Server) listUtilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Utilities []utilities.Utility `json:"utilities"`
	}{utilities.All()})
}
