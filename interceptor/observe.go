package interceptor

import (
	"iter"

	"github.com/bjaus/facade"
)

// lazy reports whether the result value of inv is a sequence evaluated after
// the chain returns.
func lazy(inv *facade.Invocation) bool {
	return inv.Operation == facade.OpAggregate || inv.Operation == facade.OpAggregateAsync
}

// settle calls done with the final error of a result call: right away for
// eager results, and when the sequence ends for lazy ones.
func settle(inv *facade.Invocation, v any, err error, done func(error)) any {
	if err == nil && lazy(inv) {
		if seq, ok := v.(iter.Seq2[any, error]); ok {
			return facade.OnDone(seq, done)
		}
	}
	done(err)
	return v
}

// singleRecipient reports whether inv runs one handler eagerly.
func singleRecipient(inv *facade.Invocation) bool {
	switch inv.Operation {
	case facade.OpSend, facade.OpSendAsync:
		return true
	case facade.OpPublish, facade.OpPublishAsync:
		return !inv.Aggregated
	default:
		return false
	}
}
