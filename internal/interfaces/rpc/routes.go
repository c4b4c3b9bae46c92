// Package rpc exposes the goods receipt use-cases as named RPC patterns on
// the Redis request/reply transport.
package rpc

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pharmaerp/receiving/internal/application/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/infrastructure/messaging"
	"github.com/pharmaerp/receiving/internal/infrastructure/telemetry"
	"github.com/pharmaerp/receiving/internal/interfaces/validate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Routed patterns
const (
	PatternCreate     = "goods_receipt.create"
	PatternTransition = "goods_receipt.transition"
	PatternGet        = "goods_receipt.get"
	PatternList       = "goods_receipt.list"
	PatternDelete     = "goods_receipt.delete"
)

// HandlerFunc serves one pattern
type HandlerFunc func(ctx context.Context, data jsoniter.RawMessage) (any, error)

// GoodsReceiptService is what the routes need from the application layer
type GoodsReceiptService interface {
	Create(ctx context.Context, input receiving.CreateGoodsReceiptInput) (*receiving.GoodsReceiptResponse, error)
	Transition(ctx context.Context, input receiving.TransitionGoodsReceiptInput) (*receiving.GoodsReceiptSummary, error)
	GetByID(ctx context.Context, id uuid.UUID) (*receiving.GoodsReceiptResponse, error)
	List(ctx context.Context, input receiving.ListGoodsReceiptsInput) (*receiving.ListGoodsReceiptsResult, error)
	Delete(ctx context.Context, id uuid.UUID) (*receiving.DeleteGoodsReceiptResult, error)
}

var _ GoodsReceiptService = (*receiving.GoodsReceiptService)(nil)

// Router is an explicit routing table from pattern to handler
type Router struct {
	routes   map[string]HandlerFunc
	validate *validator.Validate
}

var _ messaging.Dispatcher = (*Router)(nil)

// NewRouter creates an empty routing table
func NewRouter() *Router {
	return &Router{
		routes:   make(map[string]HandlerFunc),
		validate: validate.New(),
	}
}

// Handle registers h for pattern, replacing any previous handler
func (r *Router) Handle(pattern string, h HandlerFunc) {
	r.routes[pattern] = h
}

// Patterns returns the registered patterns
func (r *Router) Patterns() []string {
	patterns := make([]string, 0, len(r.routes))
	for p := range r.routes {
		patterns = append(patterns, p)
	}
	return patterns
}

// Dispatch implements messaging.Dispatcher
func (r *Router) Dispatch(ctx context.Context, pattern string, data jsoniter.RawMessage) (any, error) {
	h, ok := r.routes[pattern]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "unknown pattern").WithDetail("pattern", pattern)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(telemetry.SpanAttrRPCPattern, pattern))
	return h(ctx, data)
}

// decode unmarshals data into dst and validates its binding tags
func (r *Router) decode(data jsoniter.RawMessage, dst any) error {
	if len(data) == 0 {
		data = jsoniter.RawMessage("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return shared.NewValidationError("malformed payload: %v", err)
	}
	return validate.Struct(r.validate, dst)
}

// NewGoodsReceiptRoutes registers every goods receipt pattern
func NewGoodsReceiptRoutes(service GoodsReceiptService) *Router {
	r := NewRouter()

	r.Handle(PatternCreate, func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
		var in receiving.CreateGoodsReceiptInput
		if err := r.decode(data, &in); err != nil {
			return nil, err
		}
		return service.Create(ctx, in)
	})

	r.Handle(PatternTransition, func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
		var in receiving.TransitionGoodsReceiptInput
		if err := r.decode(data, &in); err != nil {
			return nil, err
		}
		return service.Transition(ctx, in)
	})

	r.Handle(PatternGet, func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
		var in receiving.GoodsReceiptIDInput
		if err := r.decode(data, &in); err != nil {
			return nil, err
		}
		return service.GetByID(ctx, in.ID)
	})

	r.Handle(PatternList, func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
		var in receiving.ListGoodsReceiptsInput
		if err := r.decode(data, &in); err != nil {
			return nil, err
		}
		return service.List(ctx, in)
	})

	r.Handle(PatternDelete, func(ctx context.Context, data jsoniter.RawMessage) (any, error) {
		var in receiving.GoodsReceiptIDInput
		if err := r.decode(data, &in); err != nil {
			return nil, err
		}
		return service.Delete(ctx, in.ID)
	})

	return r
}
