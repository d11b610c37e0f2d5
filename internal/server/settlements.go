package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	settlementdomain "github.com/smallbiznis/coverdesk/internal/settlement/domain"
)

func (s *Server) ListSettlements(c *gin.Context) {
	settlements, err := s.settlementSvc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlements})
}

func (s *Server) CreateSettlement(c *gin.Context) {
	var req settlementdomain.CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settlement, err := s.settlementSvc.Create(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": settlement})
}

func (s *Server) GetSettlement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	settlement, err := s.settlementSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlement})
}

func (s *Server) GetClaimSettlement(c *gin.Context) {
	claimID, ok := pathID(c, "id")
	if !ok {
		return
	}

	settlement, err := s.settlementSvc.GetByClaim(c.Request.Context(), claimID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlement})
}

func (s *Server) AdjustSettlement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req settlementdomain.AdjustSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settlement, err := s.settlementSvc.Adjust(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlement})
}

func (s *Server) SubmitSettlement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	settlement, err := s.settlementSvc.Submit(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlement})
}

func (s *Server) ApproveSettlement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	settlement, err := s.settlementSvc.Approve(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlement})
}

func (s *Server) RejectSettlement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}

	settlement, err := s.settlementSvc.Reject(c.Request.Context(), mustActor(c), id, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlement})
}

// SignSettlement signs and, when the claim is settled, pays the claim in the
// same transaction.
func (s *Server) SignSettlement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	settlement, err := s.settlementSvc.SignAndCascade(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlement})
}

func (s *Server) PaySettlement(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req settlementdomain.MarkPaidRequest
	if !bindJSON(c, &req) {
		return
	}

	settlement, err := s.settlementSvc.MarkPaid(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settlement})
}
