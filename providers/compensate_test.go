package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestCompensatorRunsAllActions(t *testing.T) {
	comp := newCompensator(logrus.New())

	var ran []string
	comp.Add("a", func(ctx context.Context) error {
		ran = append(ran, "a")
		return nil
	})
	comp.Add("b", func(ctx context.Context) error {
		ran = append(ran, "b")
		return errors.New("delete failed")
	})
	comp.Add("c", func(ctx context.Context) error {
		ran = append(ran, "c")
		return nil
	})

	assert.Equal(t, 3, comp.Len())
	comp.Run(context.Background())

	// a failing action never stops the rest
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	assert.Equal(t, 0, comp.Len())
}

func TestCompensatorRunTwiceIsNoop(t *testing.T) {
	comp := newCompensator(logrus.New())

	calls := 0
	comp.Add("once", func(ctx context.Context) error {
		calls++
		return nil
	})

	comp.Run(context.Background())
	comp.Run(context.Background())
	assert.Equal(t, 1, calls)
}
