package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grapl-security/grapl-core/internal/errors"
	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/identity"
	"github.com/grapl-security/grapl-core/internal/mutation"
	"github.com/grapl-security/grapl-core/internal/queue"
	"github.com/grapl-security/grapl-core/internal/schema"
	"github.com/grapl-security/grapl-core/internal/uid"
)

func newTestOrchestrator(t *testing.T, gen GeneratorPlugin) (*Orchestrator, *FakeStream, *mutation.FakeStore, *queue.FakeQueue) {
	t.Helper()

	var nextUid uid.Uid
	allocate := func(context.Context) (uid.Uid, error) {
		nextUid++
		return nextUid, nil
	}

	sessionStore := identity.NewFakeSessionStore()
	staticStore := identity.NewFakeStaticStore()
	resolver := identity.NewResolver("tenant-a", sessionStore, staticStore, identity.NoopAssetResolver{}, identity.NoopRetryCache{}, allocate, 5)

	store := mutation.NewFakeStore()
	schemas := schema.NewFakeManager()
	mutator := mutation.NewService("tenant-a", store, store, schemas, mutation.DefaultMaxFanOut)

	stream := NewFakeStream()
	q := queue.NewFakeQueue()

	registry := StaticGeneratorRegistry{"process-collector": gen}
	orch := NewOrchestrator(registry, resolver, mutator, stream, q, nil)
	return orch, stream, store, q
}

func singleProcessGraph() *graphdesc.GraphDescription {
	g := graphdesc.NewGraphDescription()
	node := graphdesc.NewProcessNode(100, "explorer.exe", 1000, 2000)
	g.AddNode(graphdesc.NodeKey("proc-1"), node)
	return g
}

func TestOrchestrator_ProcessEnvelope_HappyPath(t *testing.T) {
	gen := &EchoGenerator{Graph: singleProcessGraph()}
	orch, stream, _, _ := newTestOrchestrator(t, gen)

	env := Envelope{
		TenantID:      "tenant-a",
		EventSourceID: "process-collector",
		ExecutionKey:  "key-1",
		Payload:       RawLog{Bytes: []byte("irrelevant, EchoGenerator ignores bytes")},
	}

	result, err := orch.ProcessEnvelope(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOk, result.Outcome)
	assert.Equal(t, 1, result.NodesWritten)
	require.Len(t, stream.Published, 1)
	assert.Equal(t, 1, stream.Published[0].NodeCount())
}

func TestOrchestrator_UnknownEventSourceIsPersistentErr(t *testing.T) {
	gen := &EchoGenerator{Graph: singleProcessGraph()}
	orch, _, _, _ := newTestOrchestrator(t, gen)

	env := Envelope{
		TenantID:      "tenant-a",
		EventSourceID: "no-such-collector",
		Payload:       RawLog{Bytes: []byte("x")},
	}

	result, err := orch.ProcessEnvelope(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomePersistentErr, result.Outcome)
	require.Len(t, result.PartialErrors, 1)
}

func TestOrchestrator_TransientGeneratorFailureReenqueues(t *testing.T) {
	gen := &FailingGenerator{Err: errors.Transientf("generator plugin unavailable")}
	orch, _, _, q := newTestOrchestrator(t, gen)

	ctx := context.Background()
	key, err := q.Put(ctx, "tenant-a", "process-collector", "trace-1", "process-collector", []byte("x"))
	require.NoError(t, err)

	env := Envelope{
		TenantID:      "tenant-a",
		EventSourceID: "process-collector",
		ExecutionKey:  key,
		Payload:       RawLog{Bytes: []byte("x")},
	}

	result, err := orch.ProcessEnvelope(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransientErr, result.Outcome)

	// AckFailure hides the re-enqueued message for Backoff(try_count).
	time.Sleep(queue.Backoff(0))

	msg, ok, err := q.Get(ctx, "tenant-a", "process-collector")
	require.NoError(t, err)
	require.True(t, ok, "transient failure must re-enqueue the envelope for retry")
	assert.Equal(t, key, msg.ExecutionKey)
}

func TestOrchestrator_PersistentGeneratorFailureTerminates(t *testing.T) {
	gen := &FailingGenerator{Err: errors.Persistentf("malformed raw log")}
	orch, stream, _, _ := newTestOrchestrator(t, gen)

	env := Envelope{
		TenantID:      "tenant-a",
		EventSourceID: "process-collector",
		Payload:       RawLog{Bytes: []byte("garbage")},
	}

	result, err := orch.ProcessEnvelope(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, OutcomePersistentErr, result.Outcome)
	assert.Empty(t, stream.Published)
}
