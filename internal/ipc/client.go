package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
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

// CheckCurrent asks the daemon to check the post in tabID, or the active tab.
func (c *Client) CheckCurrent(tabID string) (*CheckCurrentResponse, error) {
	var resp CheckCurrentResponse
	if err := c.client.Call(ServiceName+".CheckCurrent", CheckCurrentRequest{TabID: tabID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LastAnalysis returns the cached analysis.
func (c *Client) LastAnalysis() (*LastAnalysisResponse, error) {
	var resp LastAnalysisResponse
	if err := c.client.Call(ServiceName+".LastAnalysis", LastAnalysisRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(ServiceName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
