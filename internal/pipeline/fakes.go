package pipeline

import (
	"context"
	"sync"

	"github.com/grapl-security/grapl-core/internal/graphdesc"
	"github.com/grapl-security/grapl-core/internal/identified"
)

// EchoGenerator is a GeneratorPlugin test double that decodes RawLog.Bytes
// as a pre-built graphdesc.GraphDescription, bypassing any real wire
// format — useful for exercising the orchestrator without a plugin process.
type EchoGenerator struct {
	Graph *graphdesc.GraphDescription
	Err   error
}

func (g *EchoGenerator) RunGenerator(_ context.Context, _ RawLog) (GeneratedGraph, error) {
	if g.Err != nil {
		return GeneratedGraph{}, g.Err
	}
	return GeneratedGraph{GraphDescription: g.Graph}, nil
}

// FailingGenerator always returns a fixed error, for exercising the
// orchestrator's transient/persistent reduction paths.
type FailingGenerator struct {
	Err error
}

func (g *FailingGenerator) RunGenerator(_ context.Context, _ RawLog) (GeneratedGraph, error) {
	return GeneratedGraph{}, g.Err
}

// NoopAnalyzer is an AnalyzerPlugin test double that never matches.
type NoopAnalyzer struct{}

func (NoopAnalyzer) RunAnalyzer(_ context.Context, _ Update) (ExecutionResult, error) {
	return ExecutionResult{}, nil
}

// FakeStream is an in-memory AnalyzerStream capturing every published graph.
type FakeStream struct {
	mu        sync.Mutex
	Published []*identified.IdentifiedGraph
}

func NewFakeStream() *FakeStream { return &FakeStream{} }

func (s *FakeStream) Publish(_ context.Context, _ string, g *identified.IdentifiedGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Published = append(s.Published, g)
	return nil
}
