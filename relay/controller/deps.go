// Package controller wires middleware, resolver, dedup gate, failover
// executor, and streaming/unary processors into the twelve-step request
// pipeline from spec.md §2. Grounded on the teacher's
// relay/controller/claude_messages.go ("validate -> resolve -> translate ->
// call -> translate -> persist") and relay/controller/response_io.go's
// capture-while-forwarding writer, generalized here across all three client
// dialects instead of one handler per provider family.
package controller

import (
	"github.com/laiskygw/llm-gateway/relay/dedup"
	"github.com/laiskygw/llm-gateway/relay/failover"
	"github.com/laiskygw/llm-gateway/relay/ratelimit"
)

// Deps bundles the collaborators every relay handler needs,
// built once at startup in cmd/gateway and shared across all routes.
type Deps struct {
	Gate           *dedup.Gate
	Executor       *failover.Executor
	PerKeyLimiter  *ratelimit.PerKeyLimiter
	ModelBucket    *ratelimit.ModelBucketLimiter
}
