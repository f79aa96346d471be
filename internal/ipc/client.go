package ipc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"vodwatch/internal/recording"
)

// Client provides RPC access to a running monitor.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Status retrieves the monitor status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sessions lists active recordings.
func (c *Client) Sessions() ([]Session, error) {
	var resp SessionsResponse
	if err := c.call("Sessions", SessionsRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Record asks the monitor to admit channel. Refusals come back as errors that
// match the recording package sentinels.
func (c *Client) Record(channel string) (Session, error) {
	var resp RecordResponse
	if err := c.call("Record", RecordRequest{Channel: channel}, &resp); err != nil {
		return Session{}, err
	}
	if !resp.Admitted {
		return Session{}, codeError(resp.Code, resp.Message)
	}
	return resp.Session, nil
}

// StopRecording stops channel's recording.
func (c *Client) StopRecording(channel string) error {
	var resp StopRecordingResponse
	if err := c.call("StopRecording", StopRecordingRequest{Channel: channel}, &resp); err != nil {
		return err
	}
	if !resp.Stopped {
		return codeError(resp.Code, resp.Message)
	}
	return nil
}

// StopAll stops every active recording and returns how many were asked to stop.
func (c *Client) StopAll() (int, error) {
	var resp StopAllResponse
	if err := c.call("StopAll", StopAllRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.Requested, nil
}

// Events fetches events published after req.Since.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.call("Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func codeError(code, message string) error {
	var marker error
	switch code {
	case CodeAlreadyActive:
		marker = recording.ErrAlreadyActive
	case CodeAtCapacity:
		marker = recording.ErrAtCapacity
	case CodeNotFound:
		marker = recording.ErrNotFound
	}
	if marker == nil {
		if message == "" {
			message = "request failed"
		}
		return errors.New(message)
	}
	if message == "" || message == marker.Error() {
		return marker
	}
	return fmt.Errorf("%w: %s", marker, message)
}
