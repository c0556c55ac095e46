package grpcx

import (
	"context"
	"errors"
	"io"

	"github.com/cwrk-planet/ijara-chat/internal/transport/dto"

	"google.golang.org/grpc"
)

const ServiceName = "ijara.chat.v1.ChatService"

const (
	methodCheckAccess      = "/" + ServiceName + "/CheckAccess"
	methodSendMessage      = "/" + ServiceName + "/SendMessage"
	methodGetUserChats     = "/" + ServiceName + "/GetUserChats"
	methodListenToMessages = "/" + ServiceName + "/ListenToMessages"
)

type ChatServiceServer interface {
	CheckAccess(context.Context, *CheckAccessRequest) (*dto.AccessResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*dto.ChatMessageItem, error)
	GetUserChats(context.Context, *GetUserChatsRequest) (*dto.InboxResponse, error)
	ListenToMessages(*ListenToMessagesRequest, grpc.ServerStreamingServer[MessagesSnapshot]) error
}

// ServiceDesc описан руками: сообщения - обычные go-структуры поверх jsonCodec, без protoc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckAccess",
			Handler: unaryHandler(methodCheckAccess, func(s ChatServiceServer, ctx context.Context, in *CheckAccessRequest) (any, error) {
				return s.CheckAccess(ctx, in)
			}),
		},
		{
			MethodName: "SendMessage",
			Handler: unaryHandler(methodSendMessage, func(s ChatServiceServer, ctx context.Context, in *SendMessageRequest) (any, error) {
				return s.SendMessage(ctx, in)
			}),
		},
		{
			MethodName: "GetUserChats",
			Handler: unaryHandler(methodGetUserChats, func(s ChatServiceServer, ctx context.Context, in *GetUserChatsRequest) (any, error) {
				return s.GetUserChats(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ListenToMessages",
			Handler:       listenToMessagesHandler,
			ServerStreams: true,
		},
	},
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler[Req any](fullMethod string, call func(ChatServiceServer, context.Context, *Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChatServiceServer), ctx, req.(*Req))
		})
	}
}

func listenToMessagesHandler(srv any, stream grpc.ServerStream) error {
	in := new(ListenToMessagesRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServiceServer).ListenToMessages(in, &grpc.GenericServerStream[ListenToMessagesRequest, MessagesSnapshot]{ServerStream: stream})
}

// Client - клиент ChatService для соседних сервисов. Все вызовы идут с CodecName.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CheckAccess(ctx context.Context, in *CheckAccessRequest, opts ...grpc.CallOption) (*dto.AccessResponse, error) {
	out := new(dto.AccessResponse)
	if err := c.cc.Invoke(ctx, methodCheckAccess, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*dto.ChatMessageItem, error) {
	out := new(dto.ChatMessageItem)
	if err := c.cc.Invoke(ctx, methodSendMessage, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUserChats(ctx context.Context, in *GetUserChatsRequest, opts ...grpc.CallOption) (*dto.InboxResponse, error) {
	out := new(dto.InboxResponse)
	if err := c.cc.Invoke(ctx, methodGetUserChats, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListenToMessages(ctx context.Context, in *ListenToMessagesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[MessagesSnapshot], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodListenToMessages, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[ListenToMessagesRequest, MessagesSnapshot]{ClientStream: stream}
	// io.EOF - сервер уже закрыл стрим, настоящий статус отдаст Recv
	if err := x.ClientStream.SendMsg(in); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
