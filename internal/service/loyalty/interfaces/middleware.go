package interfaces

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"rewardledger/internal/pkg/logger"
	"rewardledger/internal/pkg/tracing"
	"rewardledger/internal/service/loyalty/domain"
)

// 网关在鉴权之后注入的身份头
const (
	HeaderPrincipalID   = "X-Principal-Id"
	HeaderPrincipalRole = "X-Principal-Role"

	principalKey = "principal"
)

// tracingMiddleware 从请求头恢复上游的追踪上下文，为每个请求开一个 server span
func tracingMiddleware(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "http "+c.Request.Method+" "+c.FullPath(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ctx = logger.WithTraceID(ctx, tracing.GetTraceIDFromContext(ctx))
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// principalMiddleware 读取身份头，缺失或角色未知时返回 401
func principalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := domain.Principal{
			ID:   c.GetHeader(HeaderPrincipalID),
			Role: domain.Role(c.GetHeader(HeaderPrincipalRole)),
		}
		if p.ID == "" || (!p.IsAdmin() && !p.IsCustomer()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid principal"})
			return
		}
		trace.SpanFromContext(c.Request.Context()).SetAttributes(
			attribute.String("principal.id", p.ID),
			attribute.String("principal.role", string(p.Role)),
		)
		c.Set(principalKey, p)
		c.Next()
	}
}

// requireRole 限定路由组只能由指定角色访问
func requireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c).Role != role {
			writeError(c, domain.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) domain.Principal {
	v, _ := c.Get(principalKey)
	p, _ := v.(domain.Principal)
	return p
}
