package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/ragstack/creditledger/internal/payment/domain"
)

const webhookSignatureHeader = "X-Razorpay-Signature"

type createOrderRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	order, err := s.paymentSvc.CreateOrder(c.Request.Context(), userID(c), req.PlanID, userEmail(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type completePaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (s *Server) CompletePayment(c *gin.Context) {
	var req completePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	result, err := s.paymentSvc.CompletePayment(c.Request.Context(), paymentdomain.CompleteRequest{
		UserID:    userID(c),
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListPayments(c *gin.Context) {
	payments, err := s.paymentSvc.History(c.Request.Context(), userID(c),
		intQuery(c, "limit", 50), intQuery(c, "offset", 0))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// PaymentWebhook authenticates with the raw-body HMAC, not the user header;
// the gateway is the caller here.
func (s *Server) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	signature := strings.TrimSpace(c.GetHeader(webhookSignatureHeader))
	if !s.paymentSvc.VerifyWebhookSignature(body, signature) {
		AbortWithError(c, paymentdomain.ErrInvalidSignature)
		return
	}
	if err := s.paymentSvc.ProcessWebhook(c.Request.Context(), body); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
