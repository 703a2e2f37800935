package api

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
	"PhantomEx/internal/usecase"
	xhttp "PhantomEx/pkg/http"
	xlogger "PhantomEx/pkg/logger"
)

// Handler exposes the agent, market, and session archive API over echo.
type Handler struct {
	logger   *xlogger.Logger
	registry *usecase.Registry
	feed     *usecase.MarketFeed
	archiver *usecase.SessionArchiver
	store    drepo.Store
}

func NewHandler(logger *xlogger.Logger, registry *usecase.Registry, feed *usecase.MarketFeed, archiver *usecase.SessionArchiver, store drepo.Store) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		feed:     feed,
		archiver: archiver,
		store:    store,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/agents", h.CreateAgent)
	g.GET("/agents", h.ListAgents)
	g.DELETE("/agents/:id", h.DeleteAgent)
	g.POST("/agents/:id/trade", h.TriggerTrade)
	g.PATCH("/agents/:id/mode", h.SetMode)
	g.PATCH("/agents/:id/risk", h.SetRisk)
	g.PATCH("/agents/:id/duration", h.SetDuration)
	g.POST("/agents/:id/deposit", h.Deposit)
	g.POST("/agents/:id/approve", h.Approve)
	g.POST("/agents/:id/reject", h.Reject)
	g.GET("/agents/:id/equity", h.Equity)
	g.POST("/agents/:id/save_session", h.SaveSession)
	g.POST("/agents/:id/recover_session", h.RecoverSession)

	g.GET("/market/prices", h.Prices)
	g.GET("/market/symbols", h.Symbols)
	g.GET("/market/history/:symbol", h.History)
	g.GET("/trades", h.Trades)

	g.GET("/sessions", h.Sessions)
	g.GET("/sessions/:id", h.Session)
	g.DELETE("/sessions/:id", h.DeleteSession)
	g.POST("/sessions/:id/recapture", h.RecaptureSession)
}

func (h *Handler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]any{
		"status": "ok",
		"agents": len(h.registry.All()),
	})
}

func (h *Handler) CreateAgent(c echo.Context) error {
	req := &CreateAgentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	agent, err := h.registry.Create(c.Request().Context(), usecase.CreateAgentParams{
		Name:            req.Name,
		Model:           req.Model,
		Mode:            models.AgentMode(req.Mode),
		Allowance:       req.Allowance,
		Goal:            req.Goal,
		TradeInterval:   secs(req.TradeInterval),
		RiskProfile:     models.RiskProfile(req.RiskProfile),
		MaxDuration:     secs(req.MaxDuration),
		InitialHoldings: req.InitialHoldings,
	}, h.feed.Prices())
	if err != nil {
		h.logger.Error("create agent", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, agent.State(h.feed.Prices()))
}

func (h *Handler) ListAgents(c echo.Context) error {
	prices := h.feed.Prices()
	agents := h.registry.All()
	states := make([]*models.AgentState, 0, len(agents))
	for _, a := range agents {
		states = append(states, a.State(prices))
	}
	return xhttp.SuccessResponse(c, states)
}

func (h *Handler) DeleteAgent(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	if err := h.registry.Remove(c.Request().Context(), agent.ID()); err != nil {
		h.logger.Error("remove agent", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{"ok": true})
}

// TriggerTrade kicks one decision cycle for an agent without waiting for the
// next feed tick. The cycle still honors the trade interval throttle.
func (h *Handler) TriggerTrade(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	prices := h.feed.Prices()
	if len(prices) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_NO_MARKET_DATA", "", "no market data yet", 503))
	}
	// Detached from the request context: the cycle outlives the response.
	go agent.RunCycle(context.Background(), prices)
	return xhttp.SuccessResponse(c, map[string]any{"ok": true, "message": "decision cycle triggered"})
}

func (h *Handler) SetMode(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	req := &SetModeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := agent.SetMode(c.Request().Context(), models.AgentMode(req.Mode)); err != nil {
		h.logger.Error("set mode", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, agent.State(h.feed.Prices()))
}

func (h *Handler) SetRisk(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	req := &SetRiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := agent.SetRisk(c.Request().Context(), models.RiskProfile(req.RiskProfile)); err != nil {
		h.logger.Error("set risk", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, agent.State(h.feed.Prices()))
}

func (h *Handler) SetDuration(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	req := &SetDurationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := agent.SetMaxDuration(c.Request().Context(), secs(req.MaxDuration)); err != nil {
		h.logger.Error("set duration", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, agent.State(h.feed.Prices()))
}

func (h *Handler) Deposit(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	req := &DepositRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := agent.Deposit(c.Request().Context(), req.Amount); err != nil {
		if errors.Is(err, usecase.ErrInvalidAmount) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("amount must be positive"))
		}
		h.logger.Error("deposit", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{"ok": true, "new_cash": agent.Ledger().Cash()})
}

func (h *Handler) Approve(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	agent.ApprovePending(c.Request().Context(), h.feed.Prices())
	return xhttp.SuccessResponse(c, map[string]any{"ok": true})
}

func (h *Handler) Reject(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	agent.RejectPending()
	return xhttp.SuccessResponse(c, map[string]any{"ok": true})
}

func (h *Handler) Equity(c echo.Context) error {
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 500)
	points, err := h.store.EquityCurve(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.Error("equity query", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, points)
}

func (h *Handler) SaveSession(c echo.Context) error {
	agent := h.registry.Get(c.Param("id"))
	if agent == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	}
	req := &SaveSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id, err := h.archiver.Archive(c.Request().Context(), agent, h.feed.Prices(), req.Notes)
	if err != nil {
		h.logger.Error("save session", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	sess, err := h.store.Session(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("load saved session", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, sess)
}

// RecoverSession archives a session for any persisted agent, including ones
// already removed from the registry, from its stored history.
func (h *Handler) RecoverSession(c echo.Context) error {
	req := &SaveSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id, err := h.archiver.Recover(c.Request().Context(), c.Param("id"), h.feed.Prices(), req.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
		}
		h.logger.Error("recover session", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	sess, err := h.store.Session(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("load recovered session", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, sess)
}

// RecaptureSession rebuilds an archived session from the agent's complete
// stored history, for sessions saved before the agent finished.
func (h *Handler) RecaptureSession(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid session id"))
	}
	sess, err := h.archiver.Recapture(c.Request().Context(), id, h.feed.Prices())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("session or agent not found"))
		}
		h.logger.Error("recapture session", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sess)
}

func (h *Handler) Prices(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.feed.Prices())
}

// History serves OHLC candles for the charting frontend.
func (h *Handler) History(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	days := xhttp.ParseIntDefault(c.QueryParam("days"), 30)
	candles, err := h.feed.History(c.Request().Context(), symbol, days)
	if err != nil {
		h.logger.Error("market history", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_MARKET_HISTORY", "", "historical data unavailable", 502))
	}
	return xhttp.SuccessResponse(c, map[string]any{"symbol": symbol, "data": candles})
}

func (h *Handler) Symbols(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.feed.Symbols())
}

func (h *Handler) Trades(c echo.Context) error {
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 1000)
	trades, err := h.store.Trades(c.Request().Context(), c.QueryParam("agent_id"), limit)
	if err != nil {
		h.logger.Error("trades query", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, trades)
}

func (h *Handler) Sessions(c echo.Context) error {
	sessions, err := h.store.Sessions(c.Request().Context())
	if err != nil {
		h.logger.Error("sessions query", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sessions)
}

func (h *Handler) Session(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid session id"))
	}
	sess, err := h.store.Session(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("session not found"))
		}
		h.logger.Error("session query", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sess)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid session id"))
	}
	if err := h.store.DeleteSession(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("session not found"))
		}
		h.logger.Error("delete session", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{"ok": true})
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
