package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type unaryMethod func(service ReservationService, ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReservationService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodCreateReservation, Handler: unaryHandler(methodCreateReservation, ReservationService.CreateReservation)},
		{MethodName: methodCancelReservation, Handler: unaryHandler(methodCancelReservation, ReservationService.CancelReservation)},
		{MethodName: methodSubmitFeedback, Handler: unaryHandler(methodSubmitFeedback, ReservationService.SubmitFeedback)},
		{MethodName: methodGetBalance, Handler: unaryHandler(methodGetBalance, ReservationService.GetBalance)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "restaurant/v1/reservation.proto",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		request := new(structpb.Struct)
		if err := decode(request); err != nil {
			return nil, err
		}
		service := server.(ReservationService)
		if interceptor == nil {
			return call(service, ctx, request)
		}
		info := &grpc.UnaryServerInfo{Server: server, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, request any) (any, error) {
			return call(service, ctx, request.(*structpb.Struct))
		}
		return interceptor(ctx, request, info, handler)
	}
}

// Client calls ReservationService over a client connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (client *Client) invoke(ctx context.Context, method string, request map[string]any, options ...grpc.CallOption) (*structpb.Struct, error) {
	message, err := structpb.NewStruct(request)
	if err != nil {
		return nil, err
	}
	response := new(structpb.Struct)
	if err := client.conn.Invoke(ctx, fullMethod(method), message, response, options...); err != nil {
		return nil, err
	}
	return response, nil
}

func (client *Client) CreateReservation(ctx context.Context, request map[string]any, options ...grpc.CallOption) (*structpb.Struct, error) {
	return client.invoke(ctx, methodCreateReservation, request, options...)
}

func (client *Client) CancelReservation(ctx context.Context, request map[string]any, options ...grpc.CallOption) (*structpb.Struct, error) {
	return client.invoke(ctx, methodCancelReservation, request, options...)
}

func (client *Client) SubmitFeedback(ctx context.Context, request map[string]any, options ...grpc.CallOption) (*structpb.Struct, error) {
	return client.invoke(ctx, methodSubmitFeedback, request, options...)
}

func (client *Client) GetBalance(ctx context.Context, request map[string]any, options ...grpc.CallOption) (*structpb.Struct, error) {
	return client.invoke(ctx, methodGetBalance, request, options...)
}
