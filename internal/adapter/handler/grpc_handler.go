package handler

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/core/service"
)

const orderServiceName = "bookorder.v1.OrderService"

// OrderServiceServer is the server side of bookorder.v1.OrderService.
// Requests and responses are google.protobuf.Struct documents with the
// same field names as the HTTP API.
type OrderServiceServer interface {
	CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ConfirmOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeliverOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type orderCall func(srv OrderServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call orderCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: unaryHandler("CreateOrder", OrderServiceServer.CreateOrder)},
		{MethodName: "ConfirmOrder", Handler: unaryHandler("ConfirmOrder", OrderServiceServer.ConfirmOrder)},
		{MethodName: "CancelOrder", Handler: unaryHandler("CancelOrder", OrderServiceServer.CancelOrder)},
		{MethodName: "DeliverOrder", Handler: unaryHandler("DeliverOrder", OrderServiceServer.DeliverOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler("GetOrder", OrderServiceServer.GetOrder)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookorder/v1/order_service.proto",
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

type GRPCHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewGRPCHandler(orders *service.OrderService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orders: orders, logger: logger.Named("grpc")}
}

// CreateOrder expects {"customer_name": "...", "items": [{"product_id": "...", "quantity": 1}]}.
func (h *GRPCHandler) CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	customer := in.GetFields()["customer_name"].GetStringValue()

	var items []service.OrderItem
	for _, v := range in.GetFields()["items"].GetListValue().GetValues() {
		fields := v.GetStructValue().GetFields()
		quantity, err := wholeNumber(fields["quantity"].GetNumberValue(), "quantity")
		if err != nil {
			return h.reply("CreateOrder", nil, err)
		}
		items = append(items, service.OrderItem{
			ProductID: fields["product_id"].GetStringValue(),
			Quantity:  quantity,
		})
	}

	order, err := retryOnConflict(ctx, func(ctx context.Context) (*domain.Order, error) {
		return h.orders.CreateOrder(ctx, customer, items)
	})
	return h.reply("CreateOrder", order, err)
}

// wholeNumber converts a Struct number to an int, rejecting fractions and
// values outside the int32 range instead of truncating them.
func wholeNumber(f float64, field string) (int, error) {
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, &domain.ValidationError{Entity: domain.EntityOrderLine, Field: field, Message: field + " must be a whole number"}
	}
	return int(f), nil
}

func (h *GRPCHandler) ConfirmOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.transition(ctx, "ConfirmOrder", in, h.orders.ConfirmOrder)
}

func (h *GRPCHandler) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.transition(ctx, "CancelOrder", in, h.orders.CancelOrder)
}

func (h *GRPCHandler) DeliverOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return h.transition(ctx, "DeliverOrder", in, h.orders.DeliverOrder)
}

func (h *GRPCHandler) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["order_id"].GetStringValue()
	order, err := h.orders.FindOrderByID(ctx, id)
	if err == nil && order == nil {
		err = domain.NewOrderNotFound(id)
	}
	return h.reply("GetOrder", order, err)
}

func (h *GRPCHandler) transition(ctx context.Context, method string, in *structpb.Struct, op func(ctx context.Context, orderID string) (*domain.Order, error)) (*structpb.Struct, error) {
	id := in.GetFields()["order_id"].GetStringValue()
	order, err := retryOnConflict(ctx, func(ctx context.Context) (*domain.Order, error) {
		return op(ctx, id)
	})
	return h.reply(method, order, err)
}

func (h *GRPCHandler) reply(method string, order *domain.Order, err error) (*structpb.Struct, error) {
	if err != nil {
		st := grpcError(err)
		if status.Code(st) == codes.Internal {
			h.logger.Error("rpc failed", zap.String("method", method), zap.Error(err))
		}
		return nil, st
	}

	out, err := orderStruct(order)
	if err != nil {
		h.logger.Error("encode response", zap.String("method", method), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func orderStruct(o *domain.Order) (*structpb.Struct, error) {
	lines := make([]any, 0, len(o.Lines()))
	for _, l := range o.Lines() {
		lines = append(lines, map[string]any{
			"product_id": l.ProductID(),
			"quantity":   l.Quantity(),
			"unit_price": l.UnitPrice().StringFixed(2),
			"subtotal":   l.Subtotal().StringFixed(2),
		})
	}

	s, err := structpb.NewStruct(map[string]any{
		"id":            o.ID(),
		"customer_name": o.CustomerName(),
		"status":        string(o.Status()),
		"lines":         lines,
		"total":         o.Total().StringFixed(2),
		"version":       o.Version(),
	})
	if err != nil {
		return nil, fmt.Errorf("order %s to struct: %w", o.ID(), err)
	}
	return s, nil
}

// OrderServiceClient calls bookorder.v1.OrderService.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+orderServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.call(ctx, "CreateOrder", in)
}

func (c *OrderServiceClient) ConfirmOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.call(ctx, "ConfirmOrder", in)
}

func (c *OrderServiceClient) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.call(ctx, "CancelOrder", in)
}

func (c *OrderServiceClient) DeliverOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.call(ctx, "DeliverOrder", in)
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return c.call(ctx, "GetOrder", in)
}
