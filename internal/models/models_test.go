package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]string{
		{OrderStatusDraft, OrderStatusPending},
		{OrderStatusDraft, OrderStatusCancelled},
		{OrderStatusPending, OrderStatusProcessing},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusProcessing, OrderStatusShipped},
		{OrderStatusProcessing, OrderStatusCancelled},
		{OrderStatusShipped, OrderStatusCompleted},
	}
	for _, pair := range legal {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	illegal := [][2]string{
		{OrderStatusDraft, OrderStatusProcessing},
		{OrderStatusDraft, OrderStatusShipped},
		{OrderStatusPending, OrderStatusShipped},
		{OrderStatusPending, OrderStatusDraft},
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusCompleted, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusDraft},
		{OrderStatusDraft, OrderStatusDraft},
		{"", OrderStatusPending},
	}
	for _, pair := range illegal {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	assert.Empty(t, AllowedTransitions[OrderStatusCompleted])
	assert.Empty(t, AllowedTransitions[OrderStatusCancelled])
}

func TestIsValidStatus(t *testing.T) {
	for status := range AllowedTransitions {
		assert.True(t, IsValidStatus(status))
	}
	assert.False(t, IsValidStatus("created"))
	assert.False(t, IsValidStatus(""))
}

func TestMutable(t *testing.T) {
	assert.True(t, (&Order{Status: OrderStatusDraft}).Mutable())
	for _, status := range []string{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled} {
		assert.False(t, (&Order{Status: status}).Mutable(), status)
	}
}

func TestComputeTotal(t *testing.T) {
	item := OrderItem{
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(10),
		Tax:       decimal.NewFromInt(1),
		Discount:  decimal.Zero,
	}
	assert.True(t, item.ComputeTotal().Equal(decimal.NewFromInt(21)))

	item.Discount = decimal.NewFromFloat(1.5)
	assert.True(t, item.ComputeTotal().Equal(decimal.NewFromFloat(19.5)))
}
