package testhelpers

import (
	"context"
	"strings"
	"sync"

	"github.com/ekaya-inc/ekaya-ingest/pkg/executor"
)

// FakeResponse is a canned result for commands whose joined argv starts with Match.
type FakeResponse struct {
	Match    string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// FakeExecutor records every command and answers from Responses.
// The first matching response wins; unmatched commands succeed with no output.
type FakeExecutor struct {
	mu        sync.Mutex
	Calls     [][]string
	Responses []FakeResponse
	// Err, when set, is returned for every command (e.g. a missing container).
	Err    error
	Closed bool
}

var _ executor.Executor = (*FakeExecutor)(nil)

// NewFakeExecutor creates a FakeExecutor with the given responses.
func NewFakeExecutor(responses ...FakeResponse) *FakeExecutor {
	return &FakeExecutor{Responses: responses}
}

// Exec records cmd and returns the matching canned response.
func (f *FakeExecutor) Exec(ctx context.Context, cmd []string) (*executor.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, append([]string(nil), cmd...))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}

	joined := strings.Join(cmd, " ")
	for _, r := range f.Responses {
		if strings.HasPrefix(joined, r.Match) {
			if r.Err != nil {
				return nil, r.Err
			}
			return &executor.Result{
				Cmd:      cmd,
				Stdout:   []byte(r.Stdout),
				Stderr:   []byte(r.Stderr),
				ExitCode: r.ExitCode,
			}, nil
		}
	}

	return &executor.Result{Cmd: cmd}, nil
}

// Close marks the executor closed.
func (f *FakeExecutor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// CallCount returns the number of commands executed.
func (f *FakeExecutor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Programs returns the first argv element of every call, in order.
func (f *FakeExecutor) Programs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		if len(c) > 0 {
			out[i] = c[0]
		}
	}
	return out
}

// CallsTo returns the calls whose joined argv starts with prefix.
func (f *FakeExecutor) CallsTo(prefix string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.Calls {
		if strings.HasPrefix(strings.Join(c, " "), prefix) {
			out = append(out, c)
		}
	}
	return out
}
