package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VeritasFi/aegis/internal/model"
	"github.com/VeritasFi/aegis/internal/pkg/apperrors"
	"github.com/VeritasFi/aegis/internal/service"
)

type StrategyHandler struct {
	protocol *service.Protocol
}

func NewStrategyHandler(protocol *service.Protocol) *StrategyHandler {
	return &StrategyHandler{protocol: protocol}
}

// checkID guards the single-strategy deployment: unknown ids are 404 rather
// than silently acting on the wrong position.
func (h *StrategyHandler) checkID(c *gin.Context) bool {
	if c.Param("id") != h.protocol.Strategy.ID() {
		_ = c.Error(apperrors.New(apperrors.ErrNotFound, "strategy not found", nil))
		return false
	}
	return true
}

func (h *StrategyHandler) SupplyCollateral(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	var req model.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.protocol.StrategyVault.SupplyCollateral(c.Request.Context(), req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	h.metrics(c)
}

func (h *StrategyHandler) Borrow(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	var req model.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.protocol.StrategyKeeper.BorrowStablecoin(c.Request.Context(), req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	h.metrics(c)
}

func (h *StrategyHandler) Deploy(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	var req model.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.protocol.StrategyKeeper.DeployToRWA(c.Request.Context(), req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	h.metrics(c)
}

func (h *StrategyHandler) Harvest(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	yield, err := h.protocol.StrategyKeeper.HarvestYield(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"yield": yield})
}

func (h *StrategyHandler) Repay(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	var req model.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.protocol.StrategyKeeper.RepayDebt(c.Request.Context(), req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	h.metrics(c)
}

func (h *StrategyHandler) Deleverage(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	var req model.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.protocol.StrategyKeeper.EmergencyDeleverage(c.Request.Context(), req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	h.metrics(c)
}

func (h *StrategyHandler) SetPaused(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	var req model.SetPausedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.protocol.StrategyKeeper.SetPaused(req.Paused)
	c.JSON(http.StatusOK, gin.H{"paused": req.Paused})
}

func (h *StrategyHandler) RefreshHealth(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	hf, err := h.protocol.StrategyKeeper.RefreshHealthFactor(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"health_factor": hf})
}

func (h *StrategyHandler) Metrics(c *gin.Context) {
	if !h.checkID(c) {
		return
	}
	h.metrics(c)
}

func (h *StrategyHandler) metrics(c *gin.Context) {
	m, err := h.protocol.Strategy.Metrics()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}
