package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client talks to an inspection server over plaintext gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the inspection server at target ("host:port").
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ListClasses returns the qualified names of every class on the server.
func (c *Client) ListClasses(ctx context.Context) ([]string, error) {
	resp := &structpb.ListValue{}
	if err := c.conn.Invoke(ctx, ListClassesProcedure, &emptypb.Empty{}, resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		names = append(names, v.GetStructValue().GetFields()["name"].GetStringValue())
	}
	return names, nil
}

// GetClass returns the description of one class as a plain map.
func (c *Client) GetClass(ctx context.Context, name string) (map[string]any, error) {
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, GetClassProcedure, wrapperspb.String(name), resp); err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}

// Send dispatches method on receiver and returns the inspected result.
func (c *Client) Send(ctx context.Context, receiver, method string, args ...any) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"receiver": receiver,
		"method":   method,
		"args":     args,
	})
	if err != nil {
		return "", err
	}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, SendProcedure, req, resp); err != nil {
		return "", err
	}
	return resp.GetFields()["result"].GetStringValue(), nil
}

// Snapshot fetches the server's current image bytes.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	resp := &wrapperspb.BytesValue{}
	if err := c.conn.Invoke(ctx, SnapshotProcedure, &emptypb.Empty{}, resp); err != nil {
		return nil, err
	}
	return resp.GetValue(), nil
}
