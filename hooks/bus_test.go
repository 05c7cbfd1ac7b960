package hooks_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-agent-inspector/inspector/hooks"
)

func TestEmitFanOutInRegistrationOrder(t *testing.T) {
	bus := hooks.NewBus(nil)
	var order []int
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		i := i
		bus.Register(hooks.ToolCallBefore, hooks.SubscriberFunc(func(_ context.Context, _ hooks.Name, _ hooks.Payload) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}

	bus.Emit(context.Background(), hooks.ToolCallBefore, hooks.Payload{"tool-name": "search"})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestEmitUnknownNameIsNoop(t *testing.T) {
	bus := hooks.NewBus(nil)
	assert.NotPanics(t, func() {
		bus.Emit(context.Background(), hooks.Name("totally-unregistered"), hooks.Payload{})
	})
}

func TestEmitSwallowsSubscriberErrorsAndContinues(t *testing.T) {
	bus := hooks.NewBus(nil)
	var called []string
	bus.Register(hooks.AgentCallAfter, hooks.SubscriberFunc(func(context.Context, hooks.Name, hooks.Payload) error {
		called = append(called, "first")
		return errors.New("boom")
	}))
	bus.Register(hooks.AgentCallAfter, hooks.SubscriberFunc(func(context.Context, hooks.Name, hooks.Payload) error {
		called = append(called, "second")
		return nil
	}))

	var reportedErr error
	var reportedName hooks.Name
	bus2 := hooks.NewBus(func(name hooks.Name, err error) {
		reportedName = name
		reportedErr = err
	})
	bus2.Register(hooks.AgentCallAfter, hooks.SubscriberFunc(func(context.Context, hooks.Name, hooks.Payload) error {
		return errors.New("boom")
	}))

	bus.Emit(context.Background(), hooks.AgentCallAfter, hooks.Payload{})
	assert.Equal(t, []string{"first", "second"}, called)

	bus2.Emit(context.Background(), hooks.AgentCallAfter, hooks.Payload{})
	require.Error(t, reportedErr)
	assert.Equal(t, hooks.AgentCallAfter, reportedName)
}

func TestUnregisterRestoresPriorList(t *testing.T) {
	bus := hooks.NewBus(nil)
	var got []string

	reg1 := bus.Register(hooks.ProgressUpdate, hooks.SubscriberFunc(func(context.Context, hooks.Name, hooks.Payload) error {
		got = append(got, "a")
		return nil
	}))
	bus.Register(hooks.ProgressUpdate, hooks.SubscriberFunc(func(context.Context, hooks.Name, hooks.Payload) error {
		got = append(got, "b")
		return nil
	}))

	reg1.Close()
	reg1.Close() // idempotent

	bus.Emit(context.Background(), hooks.ProgressUpdate, hooks.Payload{})
	assert.Equal(t, []string{"b"}, got)
}

func TestConcurrentRegisterEmitUnregisterNoTornReads(t *testing.T) {
	bus := hooks.NewBus(nil)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				bus.Emit(context.Background(), hooks.LLMGenerateBefore, hooks.Payload{"llm": "x"})
			}
		}
	}()

	for i := 0; i < 100; i++ {
		reg := bus.Register(hooks.LLMGenerateBefore, hooks.SubscriberFunc(func(context.Context, hooks.Name, hooks.Payload) error {
			return nil
		}))
		reg.Close()
	}
	close(stop)
	wg.Wait()
}
