// internal/api/handler.go
//
// Provisioning HTTP surface.
//
// Context
// -------
// One POST endpoint drives the whole provisioning flow.  The status code
// separates validation problems (400) from operational failures (500);
// the success body carries the per-stage trail and the cloner's
// per-table report so callers can see exactly what happened.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/subsite/internal/provision"
	"github.com/yanizio/subsite/internal/site"
	"github.com/yanizio/subsite/internal/tenant"
)

// Handler owns the provisioning routes.
type Handler struct {
	db   *sqlx.DB
	prov *provision.Provisioner
	log  *zap.SugaredLogger
}

// New returns a Handler backed by the given provisioner and the
// control-plane pool.
func New(db *sqlx.DB, prov *provision.Provisioner, log *zap.SugaredLogger) *Handler {
	return &Handler{db: db, prov: prov, log: log}
}

// Routes mounts the provisioning endpoints on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/create-subsite", h.createSubsite)
	r.Get("/sites/{id}/config", h.siteConfig)
	r.Get("/whoami", h.whoami)
	r.Get("/healthz", h.healthz)
	return r
}

type successBody struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message"`
	SiteID    uint64                  `json:"site_id"`
	Subdomain string                  `json:"subdomain"`
	SiteURL   string                  `json:"site_url"`
	Database  string                  `json:"database"`
	Admin     provision.AdminInfo     `json:"admin"`
	Clone     interface{}             `json:"clone,omitempty"`
	Stages    []provision.StageResult `json:"stages"`
}

type failureBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) createSubsite(w http.ResponseWriter, r *http.Request) {
	var req provision.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	res, perr := h.prov.Create(r.Context(), req)
	if perr != nil {
		h.writeError(w, perr)
		return
	}

	writeJSON(w, http.StatusOK, successBody{
		Success:   true,
		Message:   "Subsite created successfully",
		SiteID:    res.SiteID,
		Subdomain: res.Subdomain,
		SiteURL:   res.SiteURL,
		Database:  res.Database,
		Admin:     res.Admin,
		Clone:     res.Clone,
		Stages:    res.Stages,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// siteConfig returns the key-value settings recorded for one site, such
// as the theme and plugin defaults applied at provisioning time.
func (h *Handler) siteConfig(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid site id"})
		return
	}

	cfg, err := site.ConfigBySite(r.Context(), h.db, id)
	if err != nil {
		h.log.Errorw("site config read failed", "site_id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError,
			failureBody{Success: false, Message: "site config unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// whoami reports which database the resolver bound for this request,
// handy when verifying a fresh hostname mapping.
func (h *Handler) whoami(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"host": r.Host}
	if ten := tenant.FromContext(r.Context()); ten != nil {
		body["database"] = ten.DBName
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError maps the provisioning error kind onto the wire contract:
// validation failures are 400 with an `error` key, everything else is a
// 500 with `success:false`.
func (h *Handler) writeError(w http.ResponseWriter, perr *provision.Error) {
	if perr.Kind == provision.KindMissingField {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": perr.Msg})
		return
	}

	msg := perr.Msg
	if perr.Err != nil {
		msg += ": " + perr.Err.Error()
	}
	h.log.Errorw("provisioning request failed",
		"kind", perr.Kind, "step", perr.Step, "err", perr.Err)
	writeJSON(w, http.StatusInternalServerError, failureBody{Success: false, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
