package rest

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
	"github.com/Gunvolt24/goodsfeed/pkg/httpx"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// retryAfterSeconds - подсказка клиенту при недоступном хранилище.
const retryAfterSeconds = "5"

// Handler - HTTP-обработчики поверх FeedService.
type Handler struct {
	service ports.FeedService
	log     ports.Logger
	timeout time.Duration // таймаут на обработку запроса; 0 - без таймаута
}

func NewHandler(service ports.FeedService, log ports.Logger, timeout time.Duration) *Handler {
	return &Handler{service: service, log: log, timeout: timeout}
}

// NewRouter - gin-роутер со служебными, публичными и админскими маршрутами.
// otelServiceName пустой - трейсинг запросов не подключается.
func NewRouter(h *Handler, staticDir, otelServiceName string) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	if otelServiceName != "" {
		r.Use(otelgin.Middleware(otelServiceName))
	}
	r.Use(httpx.RequestIDMiddleware())
	r.Use(httpx.RequestLogger(h.log))

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	goods := r.Group("/goods")
	goods.GET("", h.listAllActive)
	goods.GET("/category/:id", h.listByCategory)
	goods.GET("/owner/:id", h.listByOwner)
	goods.GET("/owner/:id/offline", h.listOwnerOffline)
	goods.GET("/:id/collect", h.collectCount)

	r.GET("/users", h.listUsers)
	r.GET("/users/:id/favorites", h.listFavorites)

	admin := r.Group("/admin")
	admin.POST("/goods/:id/collect/sync", h.forceSync)
	admin.POST("/collect/reconcile", h.reconcile)
	admin.POST("/partitions/:partition/rebuild", h.rebuildPartition)

	if staticDir != "" {
		r.Static("/static", staticDir)
		r.StaticFile("/", filepath.Join(staticDir, "index.html"))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		if allow := allowedMethods(r.Routes(), c.Request.URL.Path); allow != "" {
			c.Header("Allow", allow)
		}
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	return r
}

func (h *Handler) listAllActive(c *gin.Context) {
	h.goodsPage(c, domain.AllActivePartition())
}

func (h *Handler) listByCategory(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.goodsPage(c, domain.CategoryPartition(id))
}

func (h *Handler) listByOwner(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.goodsPage(c, domain.OwnerPartition(id))
}

func (h *Handler) listOwnerOffline(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.goodsPage(c, domain.OwnerOfflinePartition(id))
}

func (h *Handler) listFavorites(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.goodsPage(c, domain.UserFavoritePartition(id))
}

func (h *Handler) goodsPage(c *gin.Context, p domain.Partition) {
	cursor, size, err := httpx.ParseCursorSize(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	page, err := h.service.GoodsPage(ctx, p, cursor, size)
	if err != nil {
		h.fail(c, "GoodsPage "+p.String(), err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) listUsers(c *gin.Context) {
	cursor, size, err := httpx.ParseCursorSize(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	page, err := h.service.UsersPage(ctx, cursor, size)
	if err != nil {
		h.fail(c, "UsersPage", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) collectCount(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	n, err := h.service.CollectCount(ctx, id)
	if err != nil {
		h.fail(c, "CollectCount", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goods_id": id, "collect_num": n})
}

func (h *Handler) forceSync(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.service.ForceSyncCounter(ctx, id)
	if err != nil {
		h.fail(c, "ForceSyncCounter", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goods_id": id, "outcome": outcome})
}

func (h *Handler) reconcile(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	report, err := h.service.TriggerScheduledReconciliation(ctx)
	if err != nil {
		h.fail(c, "TriggerScheduledReconciliation", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) rebuildPartition(c *gin.Context) {
	p, err := domain.ParsePartition(c.Param("partition"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.service.RebuildPartition(ctx, p); err != nil {
		h.fail(c, "RebuildPartition "+p.String(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partition": p.String(), "rebuilt": true})
}

// pathID - положительный id из пути; при ошибке сразу отвечает 400.
func (h *Handler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := httpx.ParseID(c, name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return id, true
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return c.Request.Context(), func() {}
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// fail - отображение ошибок сервиса в HTTP-статусы.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, domain.ErrInvalidPartition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.log.Warnf(ctx, "%s: store unavailable: %v", op, err)
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		h.log.Errorf(ctx, "%s failed: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// allowedMethods - методы маршрутов, чей шаблон совпадает с путём (для заголовка Allow).
func allowedMethods(routes gin.RoutesInfo, path string) string {
	var methods []string
	seen := make(map[string]bool)
	for _, rt := range routes {
		if seen[rt.Method] || !matchPattern(rt.Path, path) {
			continue
		}
		seen[rt.Method] = true
		methods = append(methods, rt.Method)
	}
	return strings.Join(methods, ", ")
}

func matchPattern(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}
