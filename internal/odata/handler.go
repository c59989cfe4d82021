package odata

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/ordcatalog/internal/catalog"
	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/jsontree"
	"github.com/vyrodovalexey/ordcatalog/internal/middleware"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// Route labels recorded for request metrics.
const (
	RouteServiceDocument = "service"
	RouteMetadata        = "$metadata"
	RouteUnknown         = "unknown"
)

const metadataSegment = "$metadata"

// Catalog is the read access the handler needs from the store.
type Catalog interface {
	List(ctx context.Context, tenant, set string, q *catalog.Query) (*catalog.Result, error)
	Get(ctx context.Context, tenant, set, key string, q *catalog.Query) (*catalog.Record, error)
}

// Handler serves the catalog routes.
type Handler struct {
	store        Catalog
	tenantHeader string
	logger       observability.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTenantHeader sets the request header carrying the tenant.
func WithTenantHeader(name string) HandlerOption {
	return func(h *Handler) {
		if name != "" {
			h.tenantHeader = name
		}
	}
}

// WithHandlerLogger sets the logger for store failures.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler reading from store.
func NewHandler(store Catalog, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:        store,
		tenantHeader: config.DefaultTenantHeader,
		logger:       observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds the catalog routes to r, which is normally a group at
// the service base path.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/", h.serviceDocument)
	r.GET("/:resource", h.resource)
}

func (h *Handler) serviceDocument(c *gin.Context) {
	observability.SetRoute(c.Request.Context(), RouteServiceDocument)
	writeJSON(c, ServiceDocument())
}

func (h *Handler) resource(c *gin.Context) {
	ctx := c.Request.Context()
	segment := c.Param("resource")

	if segment == metadataSegment {
		observability.SetRoute(ctx, RouteMetadata)
		writeJSON(c, Metadata())
		return
	}

	name, key, hasKey, err := parseSegment(segment)
	if err != nil {
		observability.SetRoute(ctx, RouteUnknown)
		h.writeError(c, err)
		return
	}
	set, err := catalog.LookupEntitySet(name)
	if err != nil {
		observability.SetRoute(ctx, RouteUnknown)
		h.writeError(c, unknownEntitySet(name))
		return
	}
	if hasKey {
		observability.SetRoute(ctx, set.Name+"/$entity")
	} else {
		observability.SetRoute(ctx, set.Name)
	}

	tenant := strings.TrimSpace(c.GetHeader(h.tenantHeader))
	if tenant == "" {
		h.writeError(c, &Error{
			Status:  http.StatusBadRequest,
			Message: "missing " + h.tenantHeader + " header",
			Err:     ErrTenantRequired,
		})
		return
	}

	values, err := url.ParseQuery(c.Request.URL.RawQuery)
	if err != nil {
		h.writeError(c, badRequest("malformed query string: %v", err))
		return
	}
	q, err := ParseQuery(values)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if !hasKey {
		result, err := h.store.List(ctx, tenant, set.Name, q)
		if err != nil {
			h.writeError(c, err)
			return
		}
		writeJSON(c, RenderCollection(set.Name, result, q.Select))
		return
	}

	if q.Filter != nil || len(q.OrderBy) > 0 || q.Top != nil || q.Skip > 0 || q.Count {
		h.writeError(c, badRequest("only $select and $expand apply to a single entity"))
		return
	}
	record, err := h.store.Get(ctx, tenant, set.Name, key, q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	writeJSON(c, RenderEntity(set.Name, record, q.Select))
}

// parseSegment splits "apis('a1')" or "apis(a1)" into name and key.
func parseSegment(segment string) (name, key string, hasKey bool, err error) {
	open := strings.IndexByte(segment, '(')
	if open < 0 {
		return segment, "", false, nil
	}
	if !strings.HasSuffix(segment, ")") {
		return "", "", false, badRequest("invalid resource path %q", segment)
	}

	name = segment[:open]
	key = segment[open+1 : len(segment)-1]
	if len(key) >= 2 && key[0] == '\'' && key[len(key)-1] == '\'' {
		key = strings.ReplaceAll(key[1:len(key)-1], "''", "'")
	}
	if key == "" {
		return "", "", false, badRequest("empty key in resource path %q", segment)
	}
	return name, key, true, nil
}

func (h *Handler) writeError(c *gin.Context, err error) {
	e := toError(err)
	if e.Status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Error("catalog request failed",
			observability.String("path", c.Request.URL.Path),
			observability.Error(err),
		)
	}
	middleware.WriteError(c.Writer, e.Status, e.Message)
	c.Abort()
}

func writeJSON(c *gin.Context, doc *jsontree.Node) {
	body := doc.Marshal()
	h := c.Writer.Header()
	h.Set(middleware.HeaderContentType, middleware.ContentTypeODataJSON)
	h.Set(middleware.HeaderContentLength, strconv.Itoa(len(body)))
	c.Status(http.StatusOK)
	_, _ = c.Writer.Write(body)
}
