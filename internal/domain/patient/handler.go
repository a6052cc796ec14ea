package patient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmalife/blister/internal/domain/schedule"
	"github.com/pharmalife/blister/internal/platform/auth"
	"github.com/pharmalife/blister/internal/platform/spreadsheet"
	"github.com/pharmalife/blister/internal/platform/validate"
	"github.com/pharmalife/blister/pkg/pagination"
)

type Handler struct {
	svc    *Service
	access auth.AppAccessChecker
	appKey string
}

func NewHandler(svc *Service, access auth.AppAccessChecker, appKey string) *Handler {
	return &Handler{svc: svc, access: access, appKey: appKey}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Patient records – any signed-in user
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)

	// Scheduler – users assigned to the scheduler app, and admins
	sched := api.Group("", auth.RequireApp(h.access, h.appKey))
	sched.POST("/patients/:id/cycle", h.CyclePatient)
	sched.GET("/patients/:id/history", h.ListPatientHistory)
	sched.GET("/schedule/due", h.ListDue)
	sched.GET("/schedule/upcoming", h.ListUpcoming)
	sched.GET("/schedule/dashboard", h.Dashboard)
	sched.GET("/schedule/calendar", h.Calendar)
	sched.GET("/history", h.ListHistory)
	sched.GET("/history/export", h.ExportHistory)
}

type patientRequest struct {
	Name            string        `json:"name" validate:"required,max=200"`
	Delivery        *string       `json:"delivery" validate:"omitempty,max=200"`
	Insurance       *string       `json:"insurance" validate:"omitempty,max=200"`
	Cost            *float64      `json:"cost" validate:"omitempty,gte=0,lte=99999999.99"`
	BlisterSchedule string        `json:"blister_schedule" validate:"max=50"`
	BillingDate     schedule.Date `json:"billing_date" validate:"required"`
}

func (r *patientRequest) apply(p *Patient) {
	p.Name = r.Name
	p.Delivery = r.Delivery
	p.Insurance = r.Insurance
	p.Cost = r.Cost
	p.Cadence = schedule.Cadence(r.BlisterSchedule)
	p.BillingDate = r.BillingDate
}

type cycleRequest struct {
	BillingDate         *schedule.Date `json:"billing_date"`
	ExpectedBillingDate *schedule.Date `json:"expected_billing_date"`
}

type cycleResponse struct {
	Patient *Patient     `json:"patient"`
	Record  *CycleRecord `json:"record"`
}

// httpError maps service errors onto HTTP responses. Storage failures are
// logged and hidden behind a generic message.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, schedule.ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("patient request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// dateQuery reads an optional YYYY-MM-DD query parameter.
func dateQuery(c echo.Context, name string) (schedule.Date, error) {
	v := c.QueryParam(name)
	if v == "" {
		return schedule.Date{}, nil
	}
	d, err := schedule.ParseDate(v)
	if err != nil {
		return schedule.Date{}, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("invalid %s: %q (want YYYY-MM-DD)", name, v))
	}
	return d, nil
}

// -- Patient records --

func (h *Handler) CreatePatient(c echo.Context) error {
	var req patientRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	var p Patient
	req.apply(&p)
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req patientRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return httpError(c, err)
	}
	req.apply(p)
	if err := h.svc.UpdatePatient(ctx, p); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Name:    c.QueryParam("q"),
		Cadence: schedule.Cadence(c.QueryParam("blister_schedule")),
	}
	items, total, err := h.svc.ListPatients(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(nonNil(items), total, pg.Limit, pg.Offset))
}

// -- Scheduler --

func (h *Handler) CyclePatient(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req cycleRequest
	if err := validate.BindAndValidate(c, &req); err != nil {
		return err
	}
	p, rec, err := h.svc.CyclePatient(c.Request().Context(), id, CycleOptions{
		Override:            req.BillingDate,
		ExpectedBillingDate: req.ExpectedBillingDate,
	})
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, cycleResponse{Patient: p, Record: rec})
}

func (h *Handler) ListDue(c echo.Context) error {
	today, err := dateQuery(c, "today")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDue(c.Request().Context(), today, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(nonNil(items), total, pg.Limit, pg.Offset))
}

func (h *Handler) ListUpcoming(c echo.Context) error {
	today, err := dateQuery(c, "today")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUpcoming(c.Request().Context(), today, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(nonNil(items), total, pg.Limit, pg.Offset))
}

func (h *Handler) Dashboard(c echo.Context) error {
	today, err := dateQuery(c, "today")
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard(c.Request().Context(), today)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Calendar defaults to the current month when year or month is omitted.
func (h *Handler) Calendar(c echo.Context) error {
	today := h.svc.Today()
	year, month := today.Year(), int(today.Month())

	if v := c.QueryParam("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid year")
		}
		year = n
	}
	if v := c.QueryParam("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid month")
		}
		month = n
	}

	cal, err := h.svc.Calendar(c.Request().Context(), year, time.Month(month))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, cal)
}

// -- History --

func (h *Handler) ListHistory(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListHistory(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(nonNil(items), total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) ListPatientHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatientHistory(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(nonNil(items), total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) ExportHistory(c echo.Context) error {
	var patientID *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = &id
	}
	data, err := h.svc.ExportHistory(c.Request().Context(), patientID)
	if err != nil {
		return httpError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", ExportFilename(h.svc.now())))
	return c.Blob(http.StatusOK, spreadsheet.ContentType, data)
}

// nonNil keeps empty pages encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
