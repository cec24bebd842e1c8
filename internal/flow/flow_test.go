package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reasonchip/reasonchip/internal/pipeline"
)

func taskNamed(name string) *pipeline.Task {
	return &pipeline.Task{Kind: pipeline.KindComment, Name: name}
}

func TestTakeOrder(t *testing.T) {
	q := New([]*pipeline.Task{taskNamed("a"), taskNamed("b"), taskNamed("c")})
	assert.Equal(t, "a", q.Take().Name)
	assert.Equal(t, "b", q.Take().Name)
	assert.Equal(t, "c", q.Take().Name)
	assert.True(t, q.Empty())
}

func TestPushFrontSplicesAhead(t *testing.T) {
	q := New([]*pipeline.Task{taskNamed("outer-1"), taskNamed("outer-2")})
	q.PushFront([]*pipeline.Task{taskNamed("inner-1"), taskNamed("inner-2")})
	var order []string
	for !q.Empty() {
		order = append(order, q.Take().Name)
	}
	assert.Equal(t, []string{"inner-1", "inner-2", "outer-1", "outer-2"}, order)
}

func TestClearDiscardsRemainder(t *testing.T) {
	q := New([]*pipeline.Task{taskNamed("a"), taskNamed("b")})
	q.Clear()
	assert.True(t, q.Empty())
	q.PushFront([]*pipeline.Task{taskNamed("branch-task")})
	assert.Equal(t, 1, q.Len())
}
