package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/VeritasFi/aegis/internal/ledger/synthetic"
	"github.com/VeritasFi/aegis/internal/model"
	"github.com/VeritasFi/aegis/internal/service"
)

type PoolHandler struct {
	protocol *service.Protocol
}

func NewPoolHandler(protocol *service.Protocol) *PoolHandler {
	return &PoolHandler{protocol: protocol}
}

func (h *PoolHandler) InitializePool(c *gin.Context) {
	var req model.InitializePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.protocol.AssetIssuer.InitializePool(
		req.ID, req.FaceValue, req.NumberOfInvoices, req.WeightedMaturityDays, req.ExpectedYieldBps)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *PoolHandler) UpdateNAV(c *gin.Context) {
	var req model.UpdateNAVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	if err := h.protocol.AssetOracle.UpdateNAV(poolID, req.NAVPerToken); err != nil {
		_ = c.Error(err)
		return
	}
	h.poolInfo(c, poolID)
}

func (h *PoolHandler) RecordCashFlow(c *gin.Context) {
	var req model.RecordCashFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	if err := h.protocol.AssetOracle.RecordCashFlow(poolID, req.Amount, req.InvoicesPaid); err != nil {
		_ = c.Error(err)
		return
	}
	h.poolInfo(c, poolID)
}

func (h *PoolHandler) RecordDefault(c *gin.Context) {
	var req model.RecordDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	if err := h.protocol.AssetOracle.RecordDefault(poolID, req.Amount, req.InvoiceID); err != nil {
		_ = c.Error(err)
		return
	}
	h.poolInfo(c, poolID)
}

func (h *PoolHandler) Mint(c *gin.Context) {
	var req model.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	to := common.HexToAddress(req.To)
	if err := h.protocol.AssetIssuer.Mint(poolID, to, req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pool":    poolID,
		"to":      to.Hex(),
		"balance": h.protocol.Assets.BalanceOf(poolID, to),
	})
}

func (h *PoolHandler) Burn(c *gin.Context) {
	var req model.BurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	from := common.HexToAddress(req.From)
	if err := h.protocol.AssetIssuer.Burn(poolID, from, req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pool":    poolID,
		"from":    from.Hex(),
		"balance": h.protocol.Assets.BalanceOf(poolID, from),
	})
}

func (h *PoolHandler) Transfer(c *gin.Context) {
	var req model.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	if err := h.protocol.Assets.Transfer(poolID, common.HexToAddress(req.From), common.HexToAddress(req.To), req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": poolID, "status": "ok"})
}

func (h *PoolHandler) Approve(c *gin.Context) {
	var req model.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	owner := common.HexToAddress(req.Owner)
	spender := common.HexToAddress(req.Spender)
	if err := h.protocol.Assets.Approve(poolID, owner, spender, req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pool":      poolID,
		"owner":     owner.Hex(),
		"spender":   spender.Hex(),
		"allowance": h.protocol.Assets.Allowance(poolID, owner, spender),
	})
}

func (h *PoolHandler) TransferFrom(c *gin.Context) {
	var req model.TransferFromRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	err := h.protocol.Assets.TransferFrom(poolID,
		common.HexToAddress(req.Spender),
		common.HexToAddress(req.From),
		common.HexToAddress(req.To),
		req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": poolID, "status": "ok"})
}

func (h *PoolHandler) SetWhitelist(c *gin.Context) {
	var req model.SetWhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poolID := c.Param("id")
	account := common.HexToAddress(req.Address)
	if err := h.protocol.AssetAdmin.SetWhitelist(poolID, account, req.Allowed); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pool":        poolID,
		"address":     account.Hex(),
		"whitelisted": h.protocol.Assets.Whitelisted(poolID, account),
	})
}

func (h *PoolHandler) GetPool(c *gin.Context) {
	h.poolInfo(c, c.Param("id"))
}

func (h *PoolHandler) ListPools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pools": h.protocol.Assets.Pools()})
}

func (h *PoolHandler) GetBalance(c *gin.Context) {
	poolID := c.Param("id")
	account := common.HexToAddress(c.Param("addr"))
	c.JSON(http.StatusOK, gin.H{
		"pool":    poolID,
		"address": account.Hex(),
		"balance": h.protocol.Assets.BalanceOf(poolID, account),
	})
}

func (h *PoolHandler) poolInfo(c *gin.Context, poolID string) {
	info, ok := h.protocol.Assets.Info(poolID)
	if !ok {
		_ = c.Error(synthetic.ErrPoolNotFound)
		return
	}
	c.JSON(http.StatusOK, info)
}
