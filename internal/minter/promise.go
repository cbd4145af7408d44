package minter

import "encoding/json"

// Gas is a computation budget attached to a call.
type Gas uint64

// TGas is 10^12 gas.
const TGas Gas = 1_000_000_000_000

// Budgets and method names used by the mint flow.
const (
	MintGas     = 100 * TGas
	CallbackGas = 50 * TGas

	MethodBatchMint = "nft_batch_mint"
	MethodCbMint    = "cb_mint"
)

// Call is one function call scheduled against a receiver account.
type Call struct {
	Receiver AccountID       `json:"receiver_id"`
	Method   string          `json:"method_name"`
	Args     json.RawMessage `json:"args"`
	Deposit  uint64          `json:"deposit"`
	Gas      Gas             `json:"gas"`
}

// Promise is a scheduled, not yet executed, chain of calls. The calls of a
// stage run independently; the results of a stage are attached, in order,
// to every call of the following stage.
type Promise struct {
	Calls []Call
	Next  *Promise
}

// NewPromise schedules a single call.
func NewPromise(c Call) *Promise {
	return &Promise{Calls: []Call{c}}
}

// And joins other's first stage into p's first stage. Both promises must be
// unchained.
func (p *Promise) And(other *Promise) *Promise {
	joined := &Promise{Calls: make([]Call, 0, len(p.Calls)+len(other.Calls))}
	joined.Calls = append(joined.Calls, p.Calls...)
	joined.Calls = append(joined.Calls, other.Calls...)
	return joined
}

// Then chains next after the last stage of p.
func (p *Promise) Then(next *Promise) *Promise {
	head := &Promise{Calls: p.Calls}
	tail := head
	for cur := p.Next; cur != nil; cur = cur.Next {
		tail.Next = &Promise{Calls: cur.Calls}
		tail = tail.Next
	}
	tail.Next = next
	return head
}

// Stages returns the promise flattened into execution order.
func (p *Promise) Stages() [][]Call {
	var stages [][]Call
	for cur := p; cur != nil; cur = cur.Next {
		stages = append(stages, cur.Calls)
	}
	return stages
}

// ResultStatus is the settled outcome of a call.
type ResultStatus string

const (
	ResultSuccessful ResultStatus = "successful"
	ResultFailed     ResultStatus = "failed"
)

// PromiseResult is one settled call as observed by a continuation.
type PromiseResult struct {
	Status ResultStatus    `json:"status"`
	Value  json.RawMessage `json:"value,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Succeeded reports whether the call completed successfully.
func (r PromiseResult) Succeeded() bool {
	return r.Status == ResultSuccessful
}
