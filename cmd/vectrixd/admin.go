package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// adminClient is a small HTTP client for a running node's admin surface.
// The teacher's cmd talks to a manager over gRPC via pkg/client; this
// node speaks plain JSON over HTTP (spec.md §6), so the CLI carries its
// own minimal client instead of a generated stub.
type adminClient struct {
	baseURL string
	http    *http.Client
}

func newAdminClient(baseURL string) *adminClient {
	return &adminClient{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *adminClient) post(path string, body interface{}, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (c *adminClient) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

type envelope struct {
	RetCode int             `json:"retCode"`
	Msg     string          `json:"msg"`
	Nodes   json.RawMessage `json:"nodes"`
	Node    json.RawMessage `json:"node"`
}

func requestAddFollower(leaderHTTPAddr, nodeID, raftEndpoint string) error {
	c := newAdminClient(leaderHTTPAddr)
	var resp envelope
	body := map[string]string{"nodeId": nodeID, "endpoint": raftEndpoint}
	if err := c.post("/admin/addFollower", body, &resp); err != nil {
		return err
	}
	if resp.RetCode != 0 {
		return fmt.Errorf("leader rejected addFollower: %s", resp.Msg)
	}
	return nil
}
