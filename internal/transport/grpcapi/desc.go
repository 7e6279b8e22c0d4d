package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DeliveryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "UpdateDriverLocation", Handler: updateDriverLocationHandler},
		{MethodName: "UpdateStatus", Handler: updateStatusHandler},
		{MethodName: "TrackOrder", Handler: trackOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "foodtrack/v1/delivery.proto",
}

func updateDriverLocationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateDriverLocationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeliveryServer).UpdateDriverLocation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodUpdateDriverLocation}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DeliveryServer).UpdateDriverLocation(ctx, req.(*UpdateDriverLocationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func updateStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpdateStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeliveryServer).UpdateStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodUpdateStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DeliveryServer).UpdateStatus(ctx, req.(*UpdateStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func trackOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TrackOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeliveryServer).TrackOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodTrackOrder}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DeliveryServer).TrackOrder(ctx, req.(*TrackOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client вызывает DeliveryService через JSON-codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient создаёт клиента поверх соединения.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// UpdateDriverLocation вызывает одноимённый метод.
func (c *Client) UpdateDriverLocation(ctx context.Context, in *UpdateDriverLocationRequest, opts ...grpc.CallOption) (*UpdateDriverLocationResponse, error) {
	out := new(UpdateDriverLocationResponse)
	if err := c.invoke(ctx, MethodUpdateDriverLocation, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus вызывает одноимённый метод.
func (c *Client) UpdateStatus(ctx context.Context, in *UpdateStatusRequest, opts ...grpc.CallOption) (*UpdateStatusResponse, error) {
	out := new(UpdateStatusResponse)
	if err := c.invoke(ctx, MethodUpdateStatus, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// TrackOrder вызывает одноимённый метод.
func (c *Client) TrackOrder(ctx context.Context, in *TrackOrderRequest, opts ...grpc.CallOption) (*TrackOrderResponse, error) {
	out := new(TrackOrderResponse)
	if err := c.invoke(ctx, MethodTrackOrder, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}
