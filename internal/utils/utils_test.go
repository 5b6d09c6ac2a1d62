package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecuteWithMutex(t *testing.T) {
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ExecuteWithMutex(func() { counter++ })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}
