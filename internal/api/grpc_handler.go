package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"solar-store-service/internal/domain"
	"solar-store-service/internal/service"
)

// StoreServiceName is the fully qualified gRPC service name.
const StoreServiceName = "solarstore.v1.StoreService"

// StoreServiceServer is the internal RPC surface used by fulfilment tooling.
// Messages are protobuf well-known types so no generated code is needed.
type StoreServiceServer interface {
	GetProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func getProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreServiceServer).GetProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + StoreServiceName + "/GetProduct"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(StoreServiceServer).GetProduct(ctx, req.(*wrapperspb.Int64Value))
	})
}

func checkAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreServiceServer).CheckAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + StoreServiceName + "/CheckAvailability"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(StoreServiceServer).CheckAvailability(ctx, req.(*structpb.Struct))
	})
}

func updateOrderStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreServiceServer).UpdateOrderStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + StoreServiceName + "/UpdateOrderStatus"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(StoreServiceServer).UpdateOrderStatus(ctx, req.(*structpb.Struct))
	})
}

// StoreServiceDesc describes StoreService for grpc.Server.RegisterService.
// The service is declared in Go over well-known message types and has no
// registered .proto file, so Metadata is empty and server reflection lists
// the service name without a descriptor for it.
var StoreServiceDesc = grpc.ServiceDesc{
	ServiceName: StoreServiceName,
	HandlerType: (*StoreServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProduct", Handler: getProductHandler},
		{MethodName: "CheckAvailability", Handler: checkAvailabilityHandler},
		{MethodName: "UpdateOrderStatus", Handler: updateOrderStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "",
}

// RegisterStoreServiceServer registers srv on s.
func RegisterStoreServiceServer(s grpc.ServiceRegistrar, srv StoreServiceServer) {
	s.RegisterService(&StoreServiceDesc, srv)
}

// ProductCatalog is the catalog side used over gRPC.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CheckAvailability(ctx context.Context, lines []service.AvailabilityLine) ([]service.Shortage, error)
}

// OrderStatusUpdater moves orders through their lifecycle.
type OrderStatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID int64, next domain.OrderStatus) (*domain.Order, error)
}

// GRPCHandler implements StoreServiceServer.
type GRPCHandler struct {
	catalog ProductCatalog
	orders  OrderStatusUpdater
	logger  zerolog.Logger
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(catalog ProductCatalog, orders OrderStatusUpdater, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		catalog: catalog,
		orders:  orders,
		logger:  logger.With().Str("component", "grpc").Logger(),
	}
}

var _ StoreServiceServer = (*GRPCHandler)(nil)

// --- Helper: Error Mapping ---

var codeForKind = map[domain.ErrorKind]codes.Code{
	domain.KindNotFound:          codes.NotFound,
	domain.KindValidation:        codes.InvalidArgument,
	domain.KindConflict:          codes.FailedPrecondition,
	domain.KindOutOfStock:        codes.FailedPrecondition,
	domain.KindInsufficientStock: codes.FailedPrecondition,
	domain.KindStockUnavailable:  codes.FailedPrecondition,
	domain.KindUnauthorized:      codes.PermissionDenied,
	domain.KindUnauthenticated:   codes.Unauthenticated,
	domain.KindDuplicateReview:   codes.AlreadyExists,
}

func (s *GRPCHandler) toStatus(err error, method string) error {
	var de *domain.Error
	if errors.As(err, &de) {
		code, ok := codeForKind[de.Kind]
		if !ok {
			code = codes.InvalidArgument
		}
		return status.Error(code, de.Message)
	}
	s.logger.Error().Err(err).Str("method", method).Msg("rpc failed")
	return status.Errorf(codes.Internal, "%s failed", method)
}

// toStruct converts v through its JSON form, so decimals arrive as strings.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func positiveInt(v *structpb.Value) (int64, bool) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue <= 0 || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue >= 1<<53 {
		return 0, false
	}
	return int64(n.NumberValue), true
}

// --- StoreService Methods ---

func (s *GRPCHandler) GetProduct(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	id := req.GetValue()
	if id <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Product ID must be a positive integer")
	}
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, "GetProduct")
	}
	out, err := toStruct(product)
	if err != nil {
		return nil, s.toStatus(err, "GetProduct")
	}
	return out, nil
}

func (s *GRPCHandler) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	items := req.GetFields()["items"].GetListValue().GetValues()
	if len(items) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "items must not be empty")
	}
	lines := make([]service.AvailabilityLine, 0, len(items))
	for i, item := range items {
		fields := item.GetStructValue().GetFields()
		productID, ok := positiveInt(fields["product_id"])
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].product_id must be a positive integer", i)
		}
		quantity, ok := positiveInt(fields["quantity"])
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].quantity must be a positive integer", i)
		}
		lines = append(lines, service.AvailabilityLine{ProductID: productID, Quantity: int(quantity)})
	}

	shortages, err := s.catalog.CheckAvailability(ctx, lines)
	if err != nil {
		return nil, s.toStatus(err, "CheckAvailability")
	}
	out, err := toStruct(map[string]any{
		"available": len(shortages) == 0,
		"shortages": shortages,
	})
	if err != nil {
		return nil, s.toStatus(err, "CheckAvailability")
	}
	return out, nil
}

func (s *GRPCHandler) UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	orderID, ok := positiveInt(fields["order_id"])
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "order_id must be a positive integer")
	}
	next := domain.OrderStatus(fields["status"].GetStringValue())
	if !next.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown order status %q", next)
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, next)
	if err != nil {
		return nil, s.toStatus(err, "UpdateOrderStatus")
	}
	out, err := toStruct(order)
	if err != nil {
		return nil, s.toStatus(err, "UpdateOrderStatus")
	}
	return out, nil
}

// UnaryLoggingInterceptor logs every unary call with its status code.
func UnaryLoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		event := logger.Info()
		if code == codes.Internal || code == codes.Unknown {
			event = logger.Error().Err(err)
		}
		event.Str("method", info.FullMethod).Str("code", code.String()).Dur("duration", time.Since(start)).Msg("grpc request")
		return resp, err
	}
}
