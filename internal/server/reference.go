package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	brokerdomain "github.com/smallbiznis/coverdesk/internal/broker/domain"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
)

func (s *Server) ListInsurers(c *gin.Context) {
	companies, err := s.companySvc.ListCompanies(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": companies})
}

func (s *Server) CreateInsurer(c *gin.Context) {
	var req companydomain.CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	company, err := s.companySvc.CreateCompany(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": company})
}

func (s *Server) GetInsurer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	company, err := s.companySvc.GetCompany(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": company})
}

func (s *Server) ListBrokers(c *gin.Context) {
	brokers, err := s.brokerSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": brokers})
}

func (s *Server) CreateBroker(c *gin.Context) {
	var req brokerdomain.CreateBrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	broker, err := s.brokerSvc.Create(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": broker})
}

func (s *Server) GetBroker(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	broker, err := s.brokerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": broker})
}

func (s *Server) ListEmissionRights(c *gin.Context) {
	tiers, err := s.companySvc.ListEmissionRights(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tiers})
}

func (s *Server) CreateEmissionRight(c *gin.Context) {
	var req companydomain.CreateEmissionRightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tier, err := s.companySvc.CreateEmissionRight(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tier})
}

func (s *Server) ListRetentionTypes(c *gin.Context) {
	types, err := s.companySvc.ListRetentionTypes(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": types})
}

func (s *Server) CreateRetentionType(c *gin.Context) {
	var req companydomain.CreateRetentionTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	retentionType, err := s.companySvc.CreateRetentionType(c.Request.Context(), mustActor(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": retentionType})
}
