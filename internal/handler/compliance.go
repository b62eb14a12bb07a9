package handler

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/VeritasFi/aegis/internal/ledger/compliance"
	"github.com/VeritasFi/aegis/internal/model"
	"github.com/VeritasFi/aegis/internal/service"
)

type ComplianceHandler struct {
	protocol *service.Protocol
}

func NewComplianceHandler(protocol *service.Protocol) *ComplianceHandler {
	return &ComplianceHandler{protocol: protocol}
}

func (h *ComplianceHandler) IssueProfile(c *gin.Context) {
	var req model.IssueProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tier := compliance.ParseTier(req.Tier)

	profile, err := h.protocol.ComplianceIssuer.Issue(
		common.HexToAddress(req.Investor),
		tier,
		req.ValidityDays,
		req.Jurisdiction,
		common.HexToHash(req.IdentityHash),
	)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *ComplianceHandler) UpgradeTier(c *gin.Context) {
	var req model.UpgradeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	investor := common.HexToAddress(c.Param("addr"))
	if err := h.protocol.ComplianceIssuer.UpgradeTier(investor, compliance.ParseTier(req.Tier)); err != nil {
		_ = c.Error(err)
		return
	}
	profile, _ := h.protocol.Registry.Profile(investor)
	c.JSON(http.StatusOK, profile)
}

func (h *ComplianceHandler) Revoke(c *gin.Context) {
	var req model.RevokeProfileRequest
	_ = c.ShouldBindJSON(&req)

	investor := common.HexToAddress(c.Param("addr"))
	if err := h.protocol.ComplianceIssuer.Revoke(investor, req.Reason); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investor": investor.Hex(), "revoked": true})
}

func (h *ComplianceHandler) RecordInvestment(c *gin.Context) {
	var req model.RecordInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	investor := common.HexToAddress(c.Param("addr"))
	if err := h.protocol.ComplianceVault.RecordInvestment(investor, req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"investor":           investor.Hex(),
		"remaining_capacity": h.protocol.Registry.RemainingCapacity(investor),
	})
}

func (h *ComplianceHandler) GetProfile(c *gin.Context) {
	investor := common.HexToAddress(c.Param("addr"))
	profile, ok := h.protocol.Registry.Profile(investor)
	if !ok {
		_ = c.Error(compliance.ErrNoProfile)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ComplianceHandler) CanInvest(c *gin.Context) {
	amount, err := strconv.ParseUint(c.Query("amount"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount query parameter is required"})
		return
	}

	investor := common.HexToAddress(c.Param("addr"))
	allowed, reason := h.protocol.Registry.CanInvest(investor, amount)
	c.JSON(http.StatusOK, gin.H{
		"investor": investor.Hex(),
		"amount":   amount,
		"allowed":  allowed,
		"reason":   reason,
	})
}
