package intervention

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oxycare/oxycare/internal/domain/settings"
	"github.com/oxycare/oxycare/internal/platform/apperror"
	"github.com/oxycare/oxycare/internal/platform/auth"
	"github.com/oxycare/oxycare/internal/platform/envelope"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/interventions", auth.RequireRole(auth.RoleTechnician))

	g.GET("", h.List)
	g.GET("/statistiques", h.Stats)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/statut", h.ChangeStatus)
	g.PUT("/:id/reglages", h.UpsertSettings)
	g.DELETE("/:id/reglages", h.ClearSettings)
	g.POST("/:id/photos", h.AddPhotos)
	g.POST("/:id/signature", h.SetSignature)
}

func (h *Handler) List(c echo.Context) error {
	f, err := FilterFromQuery(c)
	if err != nil {
		return err
	}
	page, err := h.svc.List(c.Request().Context(), f, pagination.FromContext(c))
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, page, "")
}

func (h *Handler) Stats(c echo.Context) error {
	f, err := FilterFromQuery(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, st, "")
}

func (h *Handler) Get(c echo.Context) error {
	id, err := PathID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, d, "")
}

func (h *Handler) Create(c echo.Context) error {
	var in Payload
	if err := bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusCreated, d, "intervention created")
}

func (h *Handler) Update(c echo.Context) error {
	id, err := PathID(c)
	if err != nil {
		return err
	}
	var in Payload
	if err := bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, d, "intervention updated")
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := PathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return envelope.Message(c, http.StatusOK, "intervention deleted")
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := PathID(c)
	if err != nil {
		return err
	}
	var in StatusPayload
	if err := bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.ChangeStatus(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, d, "status updated")
}

func (h *Handler) UpsertSettings(c echo.Context) error {
	id, err := PathID(c)
	if err != nil {
		return err
	}
	var in settings.Params
	if err := bind(c, &in); err != nil {
		return err
	}
	rec, err := h.svc.UpsertSettings(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, rec, "settings saved")
}

func (h *Handler) ClearSettings(c echo.Context) error {
	id, err := PathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ClearSettings(c.Request().Context(), id); err != nil {
		return err
	}
	return envelope.Message(c, http.StatusOK, "settings deleted")
}

func (h *Handler) AddPhotos(c echo.Context) error {
	id, err := PathID(c)
	if err != nil {
		return err
	}
	var in struct {
		Photos []string `json:"photos"`
	}
	if err := bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.AddPhotos(c.Request().Context(), id, in.Photos)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, d, "photos added")
}

func (h *Handler) SetSignature(c echo.Context) error {
	id, err := PathID(c)
	if err != nil {
		return err
	}
	var in struct {
		Signature string `json:"technician_signature"`
	}
	if err := bind(c, &in); err != nil {
		return err
	}
	d, err := h.svc.SetSignature(c.Request().Context(), id, in.Signature)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, d, "signature recorded")
}

// PathID parses the :id path parameter.
func PathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Malformed("invalid intervention id", err)
	}
	return id, nil
}

// bind decodes the request body. Decoding failures are malformed input.
func bind(c echo.Context, dst interface{}) error {
	err := c.Bind(dst)
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code != http.StatusBadRequest {
		return err
	}
	return apperror.Malformed("invalid request body", err)
}

// FilterFromQuery reads the list and statistics query parameters.
func FilterFromQuery(c echo.Context) (Filter, error) {
	f := Filter{Search: c.QueryParam("recherche")}

	ids := []struct {
		param string
		dst   **uuid.UUID
	}{
		{"technicien_id", &f.TechnicianID},
		{"patient_id", &f.PatientID},
		{"dispositif_id", &f.DeviceID},
	}
	for _, q := range ids {
		v := c.QueryParam(q.param)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return Filter{}, apperror.Malformed(fmt.Sprintf("invalid %s", q.param), err)
		}
		*q.dst = &id
	}

	if v := c.QueryParam("statut"); v != "" {
		st, ok := ParseStatus(v)
		if !ok {
			return Filter{}, apperror.Malformed(fmt.Sprintf("invalid statut %q", v), nil)
		}
		f.Status = &st
	}
	if v := c.QueryParam("type"); v != "" {
		t, ok := ParseInterventionType(v)
		if !ok {
			return Filter{}, apperror.Malformed(fmt.Sprintf("invalid type %q", v), nil)
		}
		f.Type = &t
	}
	if v := c.QueryParam("traitement"); v != "" {
		t, ok := ParseTreatment(v)
		if !ok {
			return Filter{}, apperror.Malformed(fmt.Sprintf("invalid traitement %q", v), nil)
		}
		f.Treatment = &t
	}

	dates := []struct {
		param    string
		dst      **time.Time
		endOfDay bool
	}{
		{"date_debut", &f.From, false},
		{"date_fin", &f.To, true},
	}
	for _, q := range dates {
		v := c.QueryParam(q.param)
		if v == "" {
			continue
		}
		t, err := ParseQueryTime(v)
		if err != nil {
			return Filter{}, apperror.Malformed(fmt.Sprintf("invalid %s", q.param), err)
		}
		// A bare end date covers the whole day.
		if q.endOfDay && len(strings.TrimSpace(v)) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*q.dst = &t
	}
	return f, nil
}
