// Package handler exposes a Zone's operations over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/glogos/zone/internal/attestation"
	"github.com/glogos/zone/internal/ledger"
	"github.com/glogos/zone/internal/zone"
)

// ZoneHandler exposes the Zone's attestation and verification endpoints.
type ZoneHandler struct {
	svc    *zone.Service
	logger *zap.Logger
}

// NewZoneHandler creates a new ZoneHandler.
func NewZoneHandler(svc *zone.Service, logger *zap.Logger) *ZoneHandler {
	return &ZoneHandler{svc: svc, logger: logger}
}

// Register mounts the Zone routes on the given router group.
func (h *ZoneHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/zone/info", h.ZoneInfo)
	rg.GET("/attestation/:id", h.GetAttestation)
	rg.GET("/merkle/root", h.MerkleRoot)
	rg.POST("/verify", h.Submit)
	rg.POST("/citation/verify", h.VerifyCitation)
}

// ZoneInfo handles GET /zone/info — the Zone's public metadata document.
func (h *ZoneHandler) ZoneInfo(c *gin.Context) {
	info, err := h.svc.Info(c.Request.Context())
	if err != nil {
		h.logger.Error("zone info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load zone info"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetAttestation handles GET /attestation/:id — returns the attestation,
// its inclusion proof, and the anchor covering the proof's root if one
// has been recorded.
func (h *ZoneHandler) GetAttestation(c *gin.Context) {
	id := c.Param("id")

	att, proof, anc, err := h.svc.GetAttestation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "attestation not found"})
			return
		}
		h.logger.Error("get attestation", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load attestation"})
		return
	}

	resp := gin.H{
		"attestation": att,
		"proof":       proof,
	}
	if anc != nil {
		resp["anchor"] = anc
	}
	c.JSON(http.StatusOK, resp)
}

// MerkleRoot handles GET /merkle/root — the currently-valid root, leaf
// count, and most recent anchor.
func (h *ZoneHandler) MerkleRoot(c *gin.Context) {
	info, err := h.svc.CurrentRoot(c.Request.Context())
	if err != nil {
		h.logger.Error("merkle root", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load merkle root"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Submit handles POST /verify — builds, signs, and appends an attestation
// for the submitted claim.
func (h *ZoneHandler) Submit(c *gin.Context) {
	var req zone.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	receipt, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, attestation.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrDuplicateAttestation):
			c.JSON(http.StatusConflict, gin.H{"error": "attestation already recorded"})
		default:
			h.logger.Error("submit attestation", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record attestation"})
		}
		return
	}

	RecordAttestation()
	c.JSON(http.StatusCreated, receipt)
}

type citationVerifyRequest struct {
	CitingID string `json:"citing_attestation_id" binding:"required"`
	CitedID  string `json:"cited_attestation_id" binding:"required"`
	Endpoint string `json:"cited_zone_endpoint" binding:"required"`
}

// VerifyCitation handles POST /citation/verify — checks a citation held by
// a local attestation against the cited Zone.
func (h *ZoneHandler) VerifyCitation(c *gin.Context) {
	var req citationVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := h.svc.VerifyCitation(c.Request.Context(), req.CitingID, req.CitedID, req.Endpoint)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "citing attestation not found"})
		case errors.Is(err, attestation.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("verify citation", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "citation verification failed"})
		}
		return
	}

	RecordCitationCheck(string(res.Status))
	c.JSON(http.StatusOK, res)
}
