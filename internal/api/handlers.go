package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"farmviz/internal/engine"
	"farmviz/internal/export"
	"farmviz/internal/models"
)

// Handler serves the engine over HTTP. It is live before the dataset is:
// session routes answer 503 until SetData is called.
type Handler struct {
	mu       sync.RWMutex
	data     *engine.Dataset
	sessions map[uuid.UUID]*engine.Session
}

func NewHandler(data *engine.Dataset) *Handler {
	return &Handler{data: data, sessions: make(map[uuid.UUID]*engine.Session)}
}

// SetData installs a freshly loaded dataset. Existing sessions are dropped
// since their predicates refer to the old one.
func (h *Handler) SetData(data *engine.Dataset) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = data
	h.sessions = make(map[uuid.UUID]*engine.Session)
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/health", h.GetHealth)
	api.GET("/countries", h.GetCountries)

	api.POST("/sessions", h.CreateSession)
	s := api.Group("/sessions/:id")
	s.GET("", h.GetDashboard)
	s.DELETE("", h.DeleteSession)
	s.GET("/farms", h.GetFilteredFarms)
	s.GET("/export.xlsx", h.ExportWorkbook)
	s.POST("/area-buckets/:bucket/toggle", h.ToggleAreaBucket)
	s.POST("/user-counts/:count/toggle", h.ToggleUserCount)
	s.PUT("/selected-farms/:farm_id", h.SelectFarm)
	s.DELETE("/selected-farms/:farm_id", h.DeselectFarm)
	s.PUT("/drill", h.SetDrill)
	s.DELETE("/drill", h.ClearDrill)
}

// --- HELPERS ---

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) dataset() *engine.Dataset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data
}

var (
	errLoading      = echo.NewHTTPError(http.StatusServiceUnavailable, "dataset is loading")
	errBadSessionID = echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	errNoSession    = echo.NewHTTPError(http.StatusNotFound, "session not found")
	errFarmNotFound = echo.NewHTTPError(http.StatusNotFound, "farm not found")
	errBadBucket    = echo.NewHTTPError(http.StatusBadRequest, "bucket must be a number")
	errBadUserCount = echo.NewHTTPError(http.StatusBadRequest, "count must be an integer")
	errBadDrillBody = echo.NewHTTPError(http.StatusBadRequest, "bad json")
	errExportFailed = echo.NewHTTPError(http.StatusInternalServerError, "export failed")
)

func (h *Handler) sessionID(c echo.Context) (uuid.UUID, error) {
	if h.dataset() == nil {
		return uuid.Nil, errLoading
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errBadSessionID
	}
	return id, nil
}

// session resolves the :id path parameter.
func (h *Handler) session(c echo.Context) (*engine.Session, error) {
	id, err := h.sessionID(c)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, errNoSession
	}
	return s, nil
}

type mutationResponse struct {
	Filters       models.FilterState `json:"filters"`
	FilteredFarms int                `json:"filtered_farms"`
}

func mutated(c echo.Context, s *engine.Session) error {
	return c.JSON(http.StatusOK, mutationResponse{
		Filters:       s.Filters(),
		FilteredFarms: len(s.FilteredFarms()),
	})
}

// --- HANDLERS ---

func (h *Handler) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"loaded": h.dataset() != nil,
	})
}

func (h *Handler) GetCountries(c echo.Context) error {
	ds := h.dataset()
	if ds == nil {
		return errLoading
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   ds.Countries(),
		"legend": engine.ChoroplethLegend(ds.ChoroplethDomain()),
	})
}

func (h *Handler) CreateSession(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.data == nil {
		return errLoading
	}
	id := uuid.New()
	h.sessions[id] = engine.NewSession(h.data)
	slog.Debug("session created", "session_id", id)
	return c.JSON(http.StatusCreated, map[string]string{"id": id.String()})
}

func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := h.sessionID(c)
	if err != nil {
		return err
	}
	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return errNoSession
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Dashboard())
}

func (h *Handler) GetFilteredFarms(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	farms := s.FilteredFarms()
	total := len(farms)
	limit, offset := getPaginationParams(c, total)

	if offset >= total {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"data":   []models.FarmWithArea{},
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}

	end := total
	if limit < total-offset {
		end = offset + limit
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   farms[offset:end],
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) ToggleAreaBucket(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	bucket, err := strconv.ParseFloat(c.Param("bucket"), 64)
	if err != nil {
		return errBadBucket
	}
	s.ToggleAreaBucket(bucket)
	return mutated(c, s)
}

func (h *Handler) ToggleUserCount(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil {
		return errBadUserCount
	}
	s.ToggleUserCount(count)
	return mutated(c, s)
}

func (h *Handler) SelectFarm(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	id := models.ID(c.Param("farm_id"))
	if _, found := s.Dataset().Store().Farm(id); !found {
		return errFarmNotFound
	}
	s.SelectFarm(id)
	return mutated(c, s)
}

func (h *Handler) DeselectFarm(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	s.DeselectFarm(models.ID(c.Param("farm_id")))
	return mutated(c, s)
}

type drillRequest struct {
	Certification string `json:"certification"`
	Certifier     string `json:"certifier"`
}

func (h *Handler) SetDrill(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req drillRequest
	if err := c.Bind(&req); err != nil {
		return errBadDrillBody
	}
	s.SetCertificationDrill(engine.Drill{Certification: req.Certification, Certifier: req.Certifier})
	return mutated(c, s)
}

func (h *Handler) ClearDrill(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	s.SetCertificationDrill(engine.Drill{})
	return mutated(c, s)
}

func (h *Handler) ExportWorkbook(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	f, err := export.Workbook(s.Dashboard())
	if err != nil {
		slog.Error("export workbook", "error", err)
		return errExportFailed
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="farm-dashboard.xlsx"`)
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response())
}
