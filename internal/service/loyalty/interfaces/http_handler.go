// internal/service/loyalty/interfaces/http_handler.go
package interfaces

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"rewardledger/internal/service/loyalty/application"
	"rewardledger/internal/service/loyalty/domain"
)

// LoyaltyHandler 封装了积分服务的 HTTP 处理器
type LoyaltyHandler struct {
	purchases *application.PurchaseService
	policies  *application.PolicyService
	customers *application.CustomerService
	tracer    trace.Tracer
}

// NewLoyaltyHandler 创建一个新的 HTTP 处理器实例
func NewLoyaltyHandler(purchases *application.PurchaseService, policies *application.PolicyService, customers *application.CustomerService, tracer trace.Tracer) *LoyaltyHandler {
	return &LoyaltyHandler{purchases: purchases, policies: policies, customers: customers, tracer: tracer}
}

// RegisterRoutes 在 ServeMux 上挂载运维接口，业务 API 交给 gin
func (h *LoyaltyHandler) RegisterRoutes(mux *http.ServeMux, metricsHandler http.Handler) {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", metricsHandler)
	mux.Handle("/api/", h.Router())
}

// Router 构建业务 API 的 gin 路由
func (h *LoyaltyHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), tracingMiddleware(h.tracer))

	api := r.Group("/api", principalMiddleware())

	admin := api.Group("", requireRole(domain.RoleAdmin))
	admin.PUT("/policy", h.upsertPolicy)
	admin.GET("/policy", h.getPolicy)
	admin.DELETE("/policy", h.deletePolicy)
	admin.PUT("/policy/expiry", h.setExpiry)
	admin.POST("/policy/category", h.upsertCategory)
	admin.POST("/policy/threshold", h.upsertThreshold)
	admin.POST("/policy/tier", h.upsertTier)
	admin.GET("/policy/tier", h.listTiers)
	admin.GET("/policy/summary", h.policySummary)
	admin.POST("/customers", h.registerCustomer)
	admin.GET("/customers", h.listCustomers)
	admin.GET("/customers/top", h.leaderboard)
	admin.GET("/customers/expiring", h.expiring)
	admin.PUT("/customers/:id/tier", h.updateTier)
	admin.GET("/customers/:id/history", h.customerHistory)

	customer := api.Group("", requireRole(domain.RoleCustomer))
	customer.POST("/transactions", h.purchase)
	customer.GET("/transactions/history", h.history)
	customer.GET("/me", h.profile)
	customer.GET("/me/tier", h.tierInfo)

	return r
}

// ---- 管理员：策略 ----

func (h *LoyaltyHandler) upsertPolicy(c *gin.Context) {
	var body domain.PolicySnapshot
	if !bindJSON(c, &body) {
		return
	}
	p, err := h.policies.UpsertPolicy(c.Request.Context(), principalFrom(c).ID, body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *LoyaltyHandler) getPolicy(c *gin.Context) {
	p, err := h.policies.GetPolicy(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *LoyaltyHandler) deletePolicy(c *gin.Context) {
	if err := h.policies.DeletePolicy(c.Request.Context(), principalFrom(c).ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type expiryRequest struct {
	PointsExpiryDays *int `json:"pointsExpiryDays"`
}

func (h *LoyaltyHandler) setExpiry(c *gin.Context) {
	var body expiryRequest
	if !bindJSON(c, &body) {
		return
	}
	if body.PointsExpiryDays == nil {
		writeError(c, domain.Validationf("pointsExpiryDays is required"))
		return
	}
	p, err := h.policies.SetExpiryDays(c.Request.Context(), principalFrom(c).ID, *body.PointsExpiryDays)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *LoyaltyHandler) upsertCategory(c *gin.Context) {
	var body domain.CategoryRule
	if !bindJSON(c, &body) {
		return
	}
	p, err := h.policies.UpsertCategoryRule(c.Request.Context(), principalFrom(c).ID, body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *LoyaltyHandler) upsertThreshold(c *gin.Context) {
	var body domain.SpendThreshold
	if !bindJSON(c, &body) {
		return
	}
	p, err := h.policies.UpsertThreshold(c.Request.Context(), principalFrom(c).ID, body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *LoyaltyHandler) upsertTier(c *gin.Context) {
	var body domain.TierRule
	if !bindJSON(c, &body) {
		return
	}
	p, err := h.policies.UpsertTierRule(c.Request.Context(), principalFrom(c).ID, body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *LoyaltyHandler) listTiers(c *gin.Context) {
	rules, err := h.policies.ListTierRules(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tierRules": rules})
}

func (h *LoyaltyHandler) policySummary(c *gin.Context) {
	s, err := h.policies.Summary(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ---- 管理员：客户 ----

func (h *LoyaltyHandler) registerCustomer(c *gin.Context) {
	var body application.RegisterCustomerRequest
	if !bindJSON(c, &body) {
		return
	}
	p, err := h.customers.RegisterCustomer(c.Request.Context(), principalFrom(c).ID, body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *LoyaltyHandler) listCustomers(c *gin.Context) {
	list, err := h.customers.ListCustomers(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *LoyaltyHandler) leaderboard(c *gin.Context) {
	list, err := h.customers.Leaderboard(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *LoyaltyHandler) expiring(c *gin.Context) {
	list, err := h.customers.Expiring(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type tierRequest struct {
	Tier string `json:"tier"`
}

func (h *LoyaltyHandler) updateTier(c *gin.Context) {
	var body tierRequest
	if !bindJSON(c, &body) {
		return
	}
	tier, err := domain.ParseTier(body.Tier)
	if err != nil {
		writeError(c, err)
		return
	}
	p, err := h.customers.UpdateTier(c.Request.Context(), principalFrom(c).ID, c.Param("id"), tier)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *LoyaltyHandler) customerHistory(c *gin.Context) {
	hist, err := h.customers.CustomerHistory(c.Request.Context(), principalFrom(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

// ---- 客户 ----

type purchaseBody struct {
	AdminID      string  `json:"adminId"`
	Amount       float64 `json:"amount"`
	Category     string  `json:"category"`
	RedeemPoints int64   `json:"redeemPoints"`
	PaymentRef   string  `json:"paymentRef"`
}

func (h *LoyaltyHandler) purchase(c *gin.Context) {
	var body purchaseBody
	if !bindJSON(c, &body) {
		return
	}
	res, err := h.purchases.ProcessPurchase(c.Request.Context(), &application.PurchaseRequest{
		CustomerID:   principalFrom(c).ID,
		AdminID:      body.AdminID,
		Amount:       body.Amount,
		Category:     body.Category,
		RedeemPoints: body.RedeemPoints,
		PaymentRef:   body.PaymentRef,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *LoyaltyHandler) history(c *gin.Context) {
	hist, err := h.customers.History(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

func (h *LoyaltyHandler) profile(c *gin.Context) {
	p, err := h.customers.Profile(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *LoyaltyHandler) tierInfo(c *gin.Context) {
	info, err := h.customers.TierInfo(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
