package giftcard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/sendly/sendly-rosetta/client"
)

var (
	testChainID  = big.NewInt(84532)
	giftCardAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	usdcAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	usdtAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a2")

	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")

	errProvider = errors.New("upstream connect error")
)

type fakeCard struct {
	owner common.Address
	info  CardInfo
}

// fakeChain is an in-memory gift card contract and two stablecoins behind
// the client.Client interface.
type fakeChain struct {
	mu sync.Mutex

	head      uint64
	nextID    int64
	cards     map[string]*fakeCard
	order     []string
	balances  map[common.Address]map[common.Address]*big.Int
	allowance map[common.Address]map[common.Address]*big.Int
	logs      []types.Log
	receipts  map[common.Hash]*types.Receipt
	sent      []*types.Transaction

	calls        map[string]int
	failInfo     map[string]error
	failMethod   map[string]error
	infoDelay    map[string]time.Duration
	failLogs     error
	omitCreated  bool
	omitMint     bool
	revertWrites bool
	dropReceipts bool
	sendFaults   []sendFault
}

// sendFault is the outcome of one eth_sendRawTransaction. An applied fault
// executes the transaction and still answers with err, like a reply lost
// on the way back.
type sendFault struct {
	applied bool
	err     error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		head:       10_000,
		nextID:     1,
		cards:      map[string]*fakeCard{},
		balances:   map[common.Address]map[common.Address]*big.Int{},
		allowance:  map[common.Address]map[common.Address]*big.Int{},
		receipts:   map[common.Hash]*types.Receipt{},
		calls:      map[string]int{},
		failInfo:   map[string]error{},
		failMethod: map[string]error{},
		infoDelay:  map[string]time.Duration{},
	}
}

// issue mints a card to sender and hands it to recipient, the way
// createGiftCard does, with both Transfer logs at block.
func (f *fakeChain) issue(sender, recipient common.Address, amount int64, token common.Address, message string, block uint64) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := f.issueLocked(sender, recipient, big.NewInt(amount), token, message, block, common.Hash{})
	return id
}

func (f *fakeChain) issueLocked(
	sender common.Address,
	recipient common.Address,
	amount *big.Int,
	token common.Address,
	message string,
	block uint64,
	txHash common.Hash,
) (*big.Int, []types.Log) {
	id := big.NewInt(f.nextID)
	f.nextID++
	f.cards[id.String()] = &fakeCard{
		owner: recipient,
		info:  CardInfo{Amount: amount, Token: token, Message: message},
	}
	f.order = append(f.order, id.String())
	logs := []types.Log{
		transferLog(common.Address{}, sender, id, block, txHash),
		transferLog(sender, recipient, id, block, txHash),
	}
	f.logs = append(f.logs, logs...)
	return id, logs
}

// transfer moves a card and records the Transfer log at block.
func (f *fakeChain) transfer(id *big.Int, to common.Address, block uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card := f.cards[id.String()]
	f.logs = append(f.logs, transferLog(card.owner, to, id, block, common.Hash{}))
	card.owner = to
}

func (f *fakeChain) markRedeemed(id *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards[id.String()].info.Redeemed = true
}

func (f *fakeChain) setBalance(token, account common.Address, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[token] == nil {
		f.balances[token] = map[common.Address]*big.Int{}
	}
	f.balances[token][account] = big.NewInt(amount)
}

func (f *fakeChain) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeChain) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeChain) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func transferLog(from, to common.Address, id *big.Int, block uint64, txHash common.Hash) types.Log {
	return types.Log{
		Address: giftCardAddr,
		Topics: []common.Hash{
			transferEvent.ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(id),
		},
		BlockNumber: block,
		TxHash:      txHash,
	}
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return testChainID, nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["eth_blockNumber"]++
	return f.head, nil
}

func (f *fakeChain) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["eth_getBlockByNumber"]++
	height := f.head
	if number != nil {
		height = number.Uint64()
	}
	return &types.Header{Number: new(big.Int).SetUint64(height), Time: 1_700_000_000 + height*2}, nil
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	contractABI := client.ERC20ABI
	if *msg.To == giftCardAddr {
		contractABI = client.GiftCardABI
	}
	method, err := contractABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls[method.Name]++
	var delay time.Duration
	if method.Name == "getGiftCardInfo" {
		delay = f.infoDelay[args[0].(*big.Int).String()]
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failMethod[method.Name]; err != nil {
		return nil, err
	}

	var out []interface{}
	switch {
	case method.Name == "tokenOfOwnerByIndex":
		owner, index := args[0].(common.Address), args[1].(*big.Int).Int64()
		owned := f.ownedLocked(owner)
		if index >= int64(len(owned)) {
			return nil, revertError("index out of bounds")
		}
		out = []interface{}{owned[index]}
	case *msg.To == giftCardAddr && method.Name == "balanceOf":
		out = []interface{}{big.NewInt(int64(len(f.ownedLocked(args[0].(common.Address)))))}
	case method.Name == "ownerOf":
		card, ok := f.cards[args[0].(*big.Int).String()]
		if !ok {
			return nil, revertError("invalid token id")
		}
		out = []interface{}{card.owner}
	case method.Name == "getGiftCardInfo":
		id := args[0].(*big.Int).String()
		if err := f.failInfo[id]; err != nil {
			return nil, err
		}
		card, ok := f.cards[id]
		if !ok {
			return nil, revertError("invalid token id")
		}
		out = []interface{}{card.info.Amount, card.info.Token, card.info.Redeemed, card.info.Message}
	case method.Name == "balanceOf":
		out = []interface{}{f.balanceLocked(*msg.To, args[0].(common.Address))}
	case method.Name == "allowance":
		out = []interface{}{f.allowanceLocked(*msg.To, args[0].(common.Address))}
	default:
		return nil, fmt.Errorf("unsupported call %s", method.Name)
	}
	return method.Outputs.Pack(out...)
}

func (f *fakeChain) ownedLocked(owner common.Address) []*big.Int {
	var owned []*big.Int
	for _, id := range f.order {
		if f.cards[id].owner == owner {
			n, _ := new(big.Int).SetString(id, 10)
			owned = append(owned, n)
		}
	}
	return owned
}

func (f *fakeChain) balanceLocked(token, account common.Address) *big.Int {
	if b, ok := f.balances[token][account]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (f *fakeChain) allowanceLocked(token, owner common.Address) *big.Int {
	if a, ok := f.allowance[token][owner]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

func (f *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["eth_getLogs"]++

	if f.failLogs != nil {
		return nil, f.failLogs
	}

	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber < q.FromBlock.Uint64() || log.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if matchTopics(log.Topics, q.Topics) {
			out = append(out, log)
		}
	}
	return out, nil
}

func matchTopics(topics []common.Hash, filter [][]common.Hash) bool {
	if len(filter) > len(topics) {
		return false
	}
	for i, rule := range filter {
		if len(rule) == 0 {
			continue
		}
		found := false
		for _, h := range rule {
			if h == topics[i] {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["eth_getTransactionCount"]++
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["eth_gasPrice"]++
	return big.NewInt(1_000_000), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["eth_estimateGas"]++
	return 200_000, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	sender, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["eth_sendRawTransaction"]++

	var fault *sendFault
	if len(f.sendFaults) > 0 {
		fault, f.sendFaults = &f.sendFaults[0], f.sendFaults[1:]
		if !fault.applied {
			return fault.err
		}
	}
	f.sent = append(f.sent, tx)
	f.head++

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.head),
	}
	if f.revertWrites {
		receipt.Status = types.ReceiptStatusFailed
		f.receipts[tx.Hash()] = receipt
		return nil
	}

	contractABI := client.ERC20ABI
	if *tx.To() == giftCardAddr {
		contractABI = client.GiftCardABI
	}
	method, err := contractABI.MethodById(tx.Data()[:4])
	if err != nil {
		return err
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return err
	}

	switch method.Name {
	case "approve":
		if f.allowance[*tx.To()] == nil {
			f.allowance[*tx.To()] = map[common.Address]*big.Int{}
		}
		f.allowance[*tx.To()][sender] = args[1].(*big.Int)
	case "createGiftCard":
		recipient, amount, token := args[0].(common.Address), args[1].(*big.Int), args[2].(common.Address)
		message := args[4].(string)
		f.balances[token][sender] = new(big.Int).Sub(f.balances[token][sender], amount)
		id, transfers := f.issueLocked(sender, recipient, amount, token, message, f.head, tx.Hash())

		// the stablecoin transferFrom, an ERC-20 Transfer with the value in data
		receipt.Logs = append(receipt.Logs, &types.Log{
			Address: token,
			Topics: []common.Hash{
				transferEvent.ID,
				common.BytesToHash(sender.Bytes()),
				common.BytesToHash(giftCardAddr.Bytes()),
			},
			Data: common.BigToHash(amount).Bytes(),
		})
		if !f.omitMint {
			receipt.Logs = append(receipt.Logs, &transfers[0], &transfers[1])
		}
		if !f.omitCreated {
			data, err := giftCardCreatedEvent.Inputs.NonIndexed().Pack(amount, token, message)
			if err != nil {
				return err
			}
			receipt.Logs = append(receipt.Logs, &types.Log{
				Address: giftCardAddr,
				Topics: []common.Hash{
					giftCardCreatedEvent.ID,
					common.BigToHash(id),
					common.BytesToHash(sender.Bytes()),
					common.BytesToHash(recipient.Bytes()),
				},
				Data: data,
			})
		}
	case "redeemGiftCard":
		card := f.cards[args[0].(*big.Int).String()]
		card.info.Redeemed = true
	}

	if !f.dropReceipts {
		f.receipts[tx.Hash()] = receipt
	}
	if fault != nil {
		return fault.err
	}
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["eth_getTransactionReceipt"]++
	receipt, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeChain) Close() {}

// revertError mimics the JSON-RPC error of a reverted eth_call.
type revertError string

func (e revertError) Error() string  { return "execution reverted: " + string(e) }
func (e revertError) ErrorCode() int { return 3 }

// serverError mimics a -32000 JSON-RPC error.
type serverError string

func (e serverError) Error() string  { return string(e) }
func (e serverError) ErrorCode() int { return -32000 }

func newTestBackend(t *testing.T, chain *fakeChain, opts ...client.ExecutorOption) *Backend {
	return newTestBackendFor(t, chain, opts...)
}

// newTestBackendFor builds a backend over a single endpoint served by c.
func newTestBackendFor(t *testing.T, c client.Client, opts ...client.ExecutorOption) *Backend {
	pool, err := client.NewPool([]string{"fake"}, func(context.Context, string) (client.Client, error) {
		return c, nil
	})
	require.NoError(t, err)

	exec := client.NewExecutor(pool, append([]client.ExecutorOption{
		client.WithMaxRetries(0),
		client.WithSleep(func(context.Context, time.Duration) error { return nil }),
	}, opts...)...)
	return NewBackend(&Config{
		ChainID:             testChainID,
		GiftCardContract:    giftCardAddr,
		USDCContract:        usdcAddr,
		USDTContract:        usdtAddr,
		ReceiptPollInterval: time.Millisecond,
		ConfirmationTimeout: time.Second,
	}, exec)
}

// heldReplyClient answers the first call to method, then holds the answer
// until release is closed.
type heldReplyClient struct {
	*fakeChain
	method  string
	once    sync.Once
	replied chan struct{}
	release chan struct{}
}

func holdReply(chain *fakeChain, method string) *heldReplyClient {
	return &heldReplyClient{
		fakeChain: chain,
		method:    method,
		replied:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (h *heldReplyClient) CallContract(ctx context.Context, msg ethereum.CallMsg, number *big.Int) ([]byte, error) {
	out, err := h.fakeChain.CallContract(ctx, msg, number)
	if *msg.To != giftCardAddr || !bytes.HasPrefix(msg.Data, client.GiftCardABI.Methods[h.method].ID) {
		return out, err
	}
	h.once.Do(func() {
		close(h.replied)
		<-h.release
	})
	return out, err
}

func newTestSession(t *testing.T) *Session {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, testChainID)
	require.NoError(t, err)
	return &Session{From: opts.From, Signer: opts.Signer}
}

// decodeCall returns the contract method a transaction calls.
func decodeCall(t *testing.T, contractABI abi.ABI, tx *types.Transaction) string {
	method, err := contractABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	return method.Name
}
