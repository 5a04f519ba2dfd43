package hive

import (
	"context"
	"encoding/json"
	"time"
)

// OpKind is the closed set of operation kinds the manager reacts to.
// Everything else on the chain is discarded at the decode boundary.
type OpKind int

const (
	// KindAccountCreated covers account_create and create_claimed_account.
	KindAccountCreated OpKind = iota + 1
	// KindComment, KindVote, KindTransfer and KindCustomJSON are the
	// activity operations that can trigger a delegation grant.
	KindComment
	KindVote
	KindTransfer
	KindCustomJSON
)

// Operation is one decoded chain operation.
type Operation struct {
	Kind      OpKind
	Account   string // performer, or the new account name for creations
	Metadata  string // raw json_metadata for account creations
	Timestamp time.Time
}

// rawOperation is the condenser get_ops_in_block wire format: the op field
// is a [name, payload] pair.
type rawOperation struct {
	Timestamp string            `json:"timestamp"`
	Op        []json.RawMessage `json:"op"`
}

type createPayload struct {
	NewAccountName string `json:"new_account_name"`
	JSONMetadata   string `json:"json_metadata"`
}

type activityPayload struct {
	Author               string   `json:"author"`
	Voter                string   `json:"voter"`
	From                 string   `json:"from"`
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
}

// decodeOperation turns a wire operation into the closed variant type.
// Unknown kinds and operations without an identifiable performer return
// ok=false.
func decodeOperation(raw rawOperation) (Operation, bool) {
	if len(raw.Op) != 2 {
		return Operation{}, false
	}
	var name string
	if err := json.Unmarshal(raw.Op[0], &name); err != nil {
		return Operation{}, false
	}

	ts, err := ParseTime(raw.Timestamp)
	if err != nil {
		return Operation{}, false
	}

	switch name {
	case "account_create", "create_claimed_account":
		var p createPayload
		if err := json.Unmarshal(raw.Op[1], &p); err != nil {
			return Operation{}, false
		}
		return Operation{Kind: KindAccountCreated, Account: p.NewAccountName, Metadata: p.JSONMetadata, Timestamp: ts}, true
	case "comment", "vote", "transfer", "custom_json":
		var p activityPayload
		if err := json.Unmarshal(raw.Op[1], &p); err != nil {
			return Operation{}, false
		}
		op := Operation{Timestamp: ts}
		switch name {
		case "comment":
			op.Kind, op.Account = KindComment, p.Author
		case "vote":
			op.Kind, op.Account = KindVote, p.Voter
		case "transfer":
			op.Kind, op.Account = KindTransfer, p.From
		case "custom_json":
			op.Kind = KindCustomJSON
			if len(p.RequiredAuths) > 0 {
				op.Account = p.RequiredAuths[0]
			} else if len(p.RequiredPostingAuths) > 0 {
				op.Account = p.RequiredPostingAuths[0]
			}
		}
		if op.Account == "" {
			return Operation{}, false
		}
		return op, true
	}
	return Operation{}, false
}

// getOpsInBlock fetches and decodes the operations of one block.
func (c *Client) getOpsInBlock(ctx context.Context, block int64) ([]Operation, error) {
	var raws []rawOperation
	if err := c.call(ctx, "condenser_api.get_ops_in_block", []any{block, false}, &raws); err != nil {
		return nil, err
	}
	ops := make([]Operation, 0, len(raws))
	for _, raw := range raws {
		if op, ok := decodeOperation(raw); ok {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// StreamOperations follows the chain head and invokes the handler once per
// decoded operation, in block order. Each operation is dispatched
// synchronously before the next is read. Transient node failures pause the
// stream for one block interval and resume from the same position. Returns
// the context error on cancellation.
func (c *Client) StreamOperations(ctx context.Context, handler func(Operation)) error {
	var lastBlock int64

	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(BlockIntervalSeconds * time.Second):
			return nil
		}
	}

	for {
		props, err := c.GetDynamicGlobalProperties(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		if lastBlock == 0 {
			lastBlock = props.HeadBlockNumber - 1
		}

		for block := lastBlock + 1; block <= props.HeadBlockNumber; block++ {
			ops, err := c.getOpsInBlock(ctx, block)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				break // retry the same block after the next wait
			}
			for _, op := range ops {
				handler(op)
			}
			lastBlock = block
		}

		if err := wait(); err != nil {
			return err
		}
	}
}
