package ledgerrpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/logger"
)

// DefaultCallTimeout bounds every RPC round trip so a stalled ledger node
// degrades one round instead of wedging the driver.
const DefaultCallTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	// CallTimeout overrides DefaultCallTimeout when positive.
	CallTimeout time.Duration
	// ProxyURL routes HTTP traffic through a SOCKS5 proxy when non-empty.
	ProxyURL string
	// Logger defaults to a NopLogger.
	Logger logger.Logger
}

// Client is a JSON-RPC ledger client.
type Client struct {
	rpc     *jrpc2.Client
	timeout time.Duration
	log     logger.Logger
}

// NewClient connects to the ledger's JSON-RPC endpoint at rpcURL. The
// returned client is safe for concurrent use.
func NewClient(rpcURL string, opts *Options) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("ledgerrpc: empty rpc url")
	}
	if opts == nil {
		opts = &Options{}
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	httpc, err := newHTTPClient(opts.ProxyURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("ledgerrpc: %w", err)
	}
	ch := jhttp.NewChannel(rpcURL, &jhttp.ChannelOptions{Client: httpc})
	return &Client{
		rpc:     jrpc2.NewClient(ch, nil),
		timeout: timeout,
		log:     l,
	}, nil
}

// Close shuts down the underlying RPC client.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.rpc.CallResult(ctx, method, params, result); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

type accountInfoResult struct {
	Value *struct {
		Data  string `json:"data"`
		Owner string `json:"owner,omitempty"`
	} `json:"value"`
}

// fetchAccountData reads the raw bytes of the account at addr.
// cranklib.ErrAccountNotFound when the address holds no account.
func (c *Client) fetchAccountData(ctx context.Context, addr cranklib.Address) ([]byte, error) {
	var res accountInfoResult
	params := []any{addr.String(), map[string]string{"encoding": "base64"}}
	if err := c.call(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, fmt.Errorf("account %s: %w", addr.Short(), cranklib.ErrAccountNotFound)
	}
	data, err := base64.StdEncoding.DecodeString(res.Value.Data)
	if err != nil {
		return nil, fmt.Errorf("account %s: decoding data: %w", addr.Short(), err)
	}
	return data, nil
}

// FetchAutomation implements cranklib.AccountFetcher.
func (c *Client) FetchAutomation(ctx context.Context, addr cranklib.Address) (*cranklib.Automation, error) {
	data, err := c.fetchAccountData(ctx, addr)
	if err != nil {
		return nil, err
	}
	return cranklib.DecodeAutomation(data)
}

func (c *Client) FetchPool(ctx context.Context, addr cranklib.Address) (*cranklib.Pool, error) {
	data, err := c.fetchAccountData(ctx, addr)
	if err != nil {
		return nil, err
	}
	return cranklib.DecodePool(data)
}

func (c *Client) FetchRegistry(ctx context.Context, addr cranklib.Address) (*cranklib.Registry, error) {
	data, err := c.fetchAccountData(ctx, addr)
	if err != nil {
		return nil, err
	}
	return cranklib.DecodeRegistry(data)
}

func (c *Client) FetchSnapshot(ctx context.Context, addr cranklib.Address) (*cranklib.Snapshot, error) {
	data, err := c.fetchAccountData(ctx, addr)
	if err != nil {
		return nil, err
	}
	return cranklib.DecodeSnapshot(data)
}

func (c *Client) FetchSnapshotFrame(ctx context.Context, addr cranklib.Address) (*cranklib.SnapshotFrame, error) {
	data, err := c.fetchAccountData(ctx, addr)
	if err != nil {
		return nil, err
	}
	return cranklib.DecodeSnapshotFrame(data)
}

// FetchWorker reads a registered worker account.
func (c *Client) FetchWorker(ctx context.Context, addr cranklib.Address) (*cranklib.Worker, error) {
	data, err := c.fetchAccountData(ctx, addr)
	if err != nil {
		return nil, err
	}
	return cranklib.DecodeWorker(data)
}

// AccountData exposes raw account bytes for callers that hash or diff data
// ranges without decoding, such as account-trigger evaluation.
func (c *Client) AccountData(ctx context.Context, addr cranklib.Address) ([]byte, error) {
	return c.fetchAccountData(ctx, addr)
}

type signatureStatusesResult struct {
	Value []*struct {
		Slot uint64  `json:"slot"`
		Err  *string `json:"err"`
	} `json:"value"`
}

// SignatureStatus implements cranklib.StatusChecker. The tri-state contract
// maps directly onto the RPC response: a null entry means not yet landed.
func (c *Client) SignatureStatus(ctx context.Context, sig cranklib.Signature) (*cranklib.SignatureStatus, error) {
	var res signatureStatusesResult
	if err := c.call(ctx, "getSignatureStatuses", []any{[]string{sig.String()}}, &res); err != nil {
		return nil, err
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return nil, nil
	}
	status := &cranklib.SignatureStatus{Slot: res.Value[0].Slot}
	if e := res.Value[0].Err; e != nil {
		status.Err = errors.New(*e)
	}
	return status, nil
}

// SubmitBatch implements cranklib.BatchSubmitter. The serialized
// transactions go out as one pipelined JSON-RPC batch; a transport failure
// on any spec fails the whole handoff, per-transaction landing is left to
// the retry processor.
func (c *Client) SubmitBatch(ctx context.Context, txs [][]byte) error {
	if len(txs) == 0 {
		return nil
	}
	specs := make([]jrpc2.Spec, len(txs))
	for i, tx := range txs {
		specs[i] = jrpc2.Spec{
			Method: "sendTransaction",
			Params: []any{base64.StdEncoding.EncodeToString(tx), map[string]string{"encoding": "base64"}},
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rsps, err := c.rpc.Batch(ctx, specs)
	if err != nil {
		return fmt.Errorf("sendTransaction batch: %w", err)
	}
	for _, rsp := range rsps {
		if rerr := rsp.Error(); rerr != nil {
			return fmt.Errorf("sendTransaction batch: %w", rerr)
		}
	}
	return nil
}

// Slot returns the ledger's current slot.
func (c *Client) Slot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// BlockTime returns the wall-clock time the cluster recorded for slot.
func (c *Client) BlockTime(ctx context.Context, slot uint64) (time.Time, error) {
	var unix int64
	if err := c.call(ctx, "getBlockTime", []any{slot}, &unix); err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0).UTC(), nil
}

type blockhashResult struct {
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

// LatestBlockhash implements cranklib.BlockhashSource.
func (c *Client) LatestBlockhash(ctx context.Context) (cranklib.Hash, error) {
	var res blockhashResult
	if err := c.call(ctx, "getLatestBlockhash", nil, &res); err != nil {
		return cranklib.Hash{}, err
	}
	raw, err := cranklib.ParseAddress(res.Value.Blockhash)
	if err != nil {
		return cranklib.Hash{}, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	return cranklib.Hash(raw), nil
}

// ProgramAccount is one account owned by a program, as returned by a
// program-accounts scan.
type ProgramAccount struct {
	Address cranklib.Address
	Data    []byte
}

type programAccountsResult []struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data string `json:"data"`
	} `json:"account"`
}

// ProgramAccounts lists every account owned by programID. The observer uses
// it at startup to discover the automations assigned to this executor.
func (c *Client) ProgramAccounts(ctx context.Context, programID cranklib.Address) ([]ProgramAccount, error) {
	var res programAccountsResult
	params := []any{programID.String(), map[string]string{"encoding": "base64"}}
	if err := c.call(ctx, "getProgramAccounts", params, &res); err != nil {
		return nil, err
	}
	accounts := make([]ProgramAccount, 0, len(res))
	for _, entry := range res {
		addr, err := cranklib.ParseAddress(entry.Pubkey)
		if err != nil {
			c.log.Warning("skipping program account with bad address %q: %v", entry.Pubkey, err)
			continue
		}
		data, err := base64.StdEncoding.DecodeString(entry.Account.Data)
		if err != nil {
			c.log.Warning("skipping program account %s with bad data: %v", addr.Short(), err)
			continue
		}
		accounts = append(accounts, ProgramAccount{Address: addr, Data: data})
	}
	return accounts, nil
}

var (
	_ cranklib.AccountFetcher  = (*Client)(nil)
	_ cranklib.StatusChecker   = (*Client)(nil)
	_ cranklib.BatchSubmitter  = (*Client)(nil)
	_ cranklib.BlockhashSource = (*Client)(nil)
)
