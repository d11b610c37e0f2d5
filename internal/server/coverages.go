package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	coveragedomain "github.com/smallbiznis/coverdesk/internal/coverage/domain"
)

func (s *Server) ListCoverages(c *gin.Context) {
	policyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	coverages, err := s.coverageSvc.ListByPolicy(c.Request.Context(), policyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": coverages})
}

func (s *Server) AddCoverage(c *gin.Context) {
	policyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req coveragedomain.CreateCoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	coverage, err := s.coverageSvc.Add(c.Request.Context(), mustActor(c), policyID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": coverage})
}

func (s *Server) GetCoverage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	coverage, err := s.coverageSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": coverage})
}

func (s *Server) UpdateCoverage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req coveragedomain.UpdateCoverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	coverage, err := s.coverageSvc.Update(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": coverage})
}

// QuoteDeductible answers GET /coverages/:id/deductible?loss=1234.56.
func (s *Server) QuoteDeductible(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	loss, err := parseDecimalQuery(c.Query("loss"), "loss")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	deductible, err := s.coverageSvc.Quote(c.Request.Context(), id, loss)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"coverage_id": id.String(),
		"loss":        loss,
		"deductible":  deductible,
	}})
}
