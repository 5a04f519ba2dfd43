package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client represents a Hive node API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Hive client against the public API node
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.hive.blog",
	}
}

// NewClientWithHTTP creates a Hive client with custom HTTP client and node URL
func NewClientWithHTTP(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs a JSON-RPC request against the node. Transport and node
// failures are wrapped as ErrTransientRPC.
func call(ctx context.Context, httpClient *http.Client, url, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransientRPC, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status code %d", ErrTransientRPC, method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: %s: decoding response: %w", ErrTransientRPC, method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransientRPC, method, rpcResp.Error)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: %s: decoding result: %w", ErrTransientRPC, method, err)
		}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	return call(ctx, c.httpClient, c.baseURL, method, params, result)
}

// GetAccount retrieves a single account profile. A missing account
// returns (nil, nil).
func (c *Client) GetAccount(ctx context.Context, name string) (*Account, error) {
	var accounts []Account
	if err := c.call(ctx, "condenser_api.get_accounts", [][]string{{name}}, &accounts); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// GetDynamicGlobalProperties retrieves the current chain-wide state.
func (c *Client) GetDynamicGlobalProperties(ctx context.Context) (*DynamicGlobalProperties, error) {
	var props DynamicGlobalProperties
	if err := c.call(ctx, "condenser_api.get_dynamic_global_properties", []any{}, &props); err != nil {
		return nil, err
	}
	return &props, nil
}

// GetMutedAccounts lists the accounts the owner has muted (the "ignore"
// entries of its follow list).
func (c *Client) GetMutedAccounts(ctx context.Context, owner string) ([]string, error) {
	var entries []struct {
		Following string `json:"following"`
	}
	params := []any{owner, "", "ignore", 200}
	if err := c.call(ctx, "condenser_api.get_following", params, &entries); err != nil {
		return nil, err
	}
	muted := make([]string, len(entries))
	for i, e := range entries {
		muted[i] = e.Following
	}
	return muted, nil
}

// GetRCAccount retrieves the resource-credit manabar of one account.
// A missing account returns (nil, nil).
func (c *Client) GetRCAccount(ctx context.Context, name string) (*RCAccount, error) {
	var result struct {
		RCAccounts []RCAccount `json:"rc_accounts"`
	}
	params := map[string]any{"accounts": []string{name}}
	if err := c.call(ctx, "rc_api.find_rc_accounts", params, &result); err != nil {
		return nil, err
	}
	if len(result.RCAccounts) == 0 {
		return nil, nil
	}
	return &result.RCAccounts[0], nil
}

// GetResourceParams retrieves the per-resource-type pricing parameters.
func (c *Client) GetResourceParams(ctx context.Context) (map[string]ResourceParams, error) {
	var result struct {
		ResourceParams map[string]ResourceParams `json:"resource_params"`
	}
	if err := c.call(ctx, "rc_api.get_resource_params", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result.ResourceParams, nil
}

// GetResourcePools retrieves the current per-resource-type pool occupancy.
func (c *Client) GetResourcePools(ctx context.Context) (map[string]ResourcePool, error) {
	var result struct {
		ResourcePool map[string]ResourcePool `json:"resource_pool"`
	}
	if err := c.call(ctx, "rc_api.get_resource_pool", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result.ResourcePool, nil
}

// GetVestingDelegations lists the outstanding delegations made by the
// delegator.
func (c *Client) GetVestingDelegations(ctx context.Context, delegator string) ([]VestingDelegation, error) {
	var delegations []VestingDelegation
	params := []any{delegator, "", 1000}
	if err := c.call(ctx, "condenser_api.get_vesting_delegations", params, &delegations); err != nil {
		return nil, err
	}
	return delegations, nil
}
