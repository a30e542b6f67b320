package main

import (
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
)

func TestSameRetryPolicy(t *testing.T) {
	a := &pubsub.RetryPolicy{MinimumBackoff: 10 * time.Second, MaximumBackoff: 600 * time.Second}
	b := &pubsub.RetryPolicy{MinimumBackoff: 10 * time.Second, MaximumBackoff: 600 * time.Second}
	c := &pubsub.RetryPolicy{MinimumBackoff: time.Second, MaximumBackoff: 600 * time.Second}

	assert.True(t, sameRetryPolicy(a, b))
	assert.False(t, sameRetryPolicy(a, c))
	assert.False(t, sameRetryPolicy(a, nil))
	assert.True(t, sameRetryPolicy(nil, nil))
}
