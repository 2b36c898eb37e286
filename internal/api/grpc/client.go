package grpcapi

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

// Client calls TranscriberControl.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target without TLS.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) StartRecording(ctx context.Context) (models.State, error) {
	return c.stateCall(ctx, methodStartRecording)
}

func (c *Client) StopRecording(ctx context.Context) (models.State, error) {
	return c.stateCall(ctx, methodStopRecording)
}

func (c *Client) ClearTranscript(ctx context.Context) (models.State, error) {
	return c.stateCall(ctx, methodClearTranscript)
}

func (c *Client) GetState(ctx context.Context) (models.State, error) {
	return c.stateCall(ctx, methodGetState)
}

func (c *Client) PushFragment(ctx context.Context, f models.Fragment) error {
	in, err := toStruct(struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	}{f.Speaker, f.Text})
	if err != nil {
		return err
	}
	return c.conn.Invoke(ctx, methodPushFragment, in, new(emptypb.Empty))
}

// Watch calls fn for every notification until ctx is cancelled, the server
// ends the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(models.Notification) error) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], methodWatch)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var n models.Notification
		if err := fromStruct(msg, &n); err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
}

func (c *Client) stateCall(ctx context.Context, method string) (models.State, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, &emptypb.Empty{}, out); err != nil {
		return models.State{}, err
	}
	var s models.State
	if err := fromStruct(out, &s); err != nil {
		return models.State{}, err
	}
	return s, nil
}
