package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) ListPolicies(c *gin.Context) {
	var req policydomain.ListPolicyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	policies, err := s.policySvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policies})
}

func (s *Server) CreatePolicy(c *gin.Context) {
	var req policydomain.CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	policy, err := s.policySvc.Create(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": policy})
}

func (s *Server) GetPolicy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	policy, err := s.policySvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policy})
}

func (s *Server) UpdatePolicy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req policydomain.UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	policy, err := s.policySvc.Update(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policy})
}

func (s *Server) DeletePolicy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.policySvc.Delete(c.Request.Context(), mustActor(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) RenewPolicy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req policydomain.RenewPolicyRequest
	if !bindJSON(c, &req) {
		return
	}

	renewed, successor, err := s.policySvc.Renew(c.Request.Context(), mustActor(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"renewed":   renewed,
		"successor": successor,
	}})
}

func (s *Server) CancelPolicy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}

	policy, err := s.policySvc.Cancel(c.Request.Context(), mustActor(c), id, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policy})
}

func (s *Server) ExpirePolicy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	policy, err := s.policySvc.MarkExpired(c.Request.Context(), mustActor(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policy})
}

func (s *Server) AttachRetention(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req companydomain.AttachRetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PolicyID = id

	retention, err := s.companySvc.AttachRetention(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": retention})
}
