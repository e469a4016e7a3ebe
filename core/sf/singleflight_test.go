package sf

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleflight_CollapsesConcurrentCalls(t *testing.T) {
	s := New[*int]()

	var (
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
		results = make(chan *int, 10)
	)

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := s.Do("k", func() (*int, error) {
				calls.Add(1)
				<-release
				n := 42
				return &n, nil
			})
			if err != nil {
				t.Error(err)
			}
			results <- v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	require.Equal(t, int32(1), calls.Load())
	var first *int
	for v := range results {
		if first == nil {
			first = v
		}
		require.Same(t, first, v)
	}
}

func TestSingleflight_ErrorNotShared_AfterCompletion(t *testing.T) {
	s := New[string]()
	boom := errors.New("boom")

	_, _, err := s.Do("k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	v, _, err := s.Do("k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestSingleflight_NilInterfaceResult(t *testing.T) {
	s := New[error]()
	v, _, err := s.Do("k", func() (error, error) { return nil, nil })
	require.NoError(t, err)
	require.Nil(t, v)
}
