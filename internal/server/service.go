package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "docscan.v1.DocumentService"

const (
	methodIngestBatch = "/" + ServiceName + "/IngestBatch"
	methodAsk         = "/" + ServiceName + "/Ask"
	methodGetExport   = "/" + ServiceName + "/GetExport"
)

// DocumentServiceServer is the server API for docscan.v1.DocumentService.
// Messages are protobuf well-known types so no generated code is needed.
type DocumentServiceServer interface {
	IngestBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ask(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	GetExport(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

func RegisterDocumentServiceServer(s grpc.ServiceRegistrar, srv DocumentServiceServer) {
	s.RegisterService(&DocumentServiceDesc, srv)
}

var DocumentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IngestBatch", Handler: ingestBatchHandler},
		{MethodName: "Ask", Handler: askHandler},
		{MethodName: "GetExport", Handler: getExportHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "",
}

func ingestBatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).IngestBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodIngestBatch}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DocumentServiceServer).IngestBatch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func askHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).Ask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAsk}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DocumentServiceServer).Ask(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getExportHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).GetExport(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetExport}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DocumentServiceServer).GetExport(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// DocumentServiceClient calls docscan.v1.DocumentService.
type DocumentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentServiceClient(cc grpc.ClientConnInterface) *DocumentServiceClient {
	return &DocumentServiceClient{cc: cc}
}

func (c *DocumentServiceClient) IngestBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodIngestBatch, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DocumentServiceClient) Ask(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodAsk, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DocumentServiceClient) GetExport(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodGetExport, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// DefaultMaxMsgBytes fits a base64 encoded document at ingest.DefaultMaxBytes.
const DefaultMaxMsgBytes = 96 << 20

// ServerOptions raises the gRPC message limits to maxMsgBytes.
func ServerOptions(maxMsgBytes int) []grpc.ServerOption {
	if maxMsgBytes <= 0 {
		maxMsgBytes = DefaultMaxMsgBytes
	}
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMsgBytes),
		grpc.MaxSendMsgSize(maxMsgBytes),
	}
}

// CallOptions are the client side counterpart of ServerOptions, so uploads
// and GetExport downloads get the same limit.
func CallOptions(maxMsgBytes int) grpc.DialOption {
	if maxMsgBytes <= 0 {
		maxMsgBytes = DefaultMaxMsgBytes
	}
	return grpc.WithDefaultCallOptions(
		grpc.MaxCallSendMsgSize(maxMsgBytes),
		grpc.MaxCallRecvMsgSize(maxMsgBytes),
	)
}
