package messaging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelivery_Empty(t *testing.T) {
	assert.True(t, Delivery{}.Empty())
	assert.True(t, Delivery{Body: []byte("ignored")}.Empty())
	assert.False(t, Delivery{Tag: 1}.Empty())
}

func TestDelivery_Text(t *testing.T) {
	assert.Equal(t, "héllo", Delivery{Tag: 1, Body: []byte("héllo")}.Text())
	assert.Equal(t, "", Delivery{}.Text())
}

func TestResult_Received(t *testing.T) {
	assert.False(t, Result{}.Received())
	assert.True(t, Result{Delivery: Delivery{Tag: 3}, Err: errors.New("failed")}.Received())
}

func TestBinding_String(t *testing.T) {
	b := Binding{Queue: "q", Exchange: "ex", RoutingKey: "rk"}
	assert.Equal(t, "ex -[rk]-> q", b.String())
}

func TestTextHandler(t *testing.T) {
	handlerErr := errors.New("rejected")

	var received string
	h := TextHandler(func(_ context.Context, message string) error {
		received = message
		return handlerErr
	})

	err := h(context.Background(), Delivery{Tag: 1, Body: []byte("héllo")})
	assert.ErrorIs(t, err, handlerErr)
	assert.Equal(t, "héllo", received)
}

func TestErrors(t *testing.T) {
	tt := []struct {
		Name     string
		Err      error
		Expected func(t *testing.T, err error)
	}{
		{
			Name: "MissingField",
			Err:  fmt.Errorf("loading: %w", &MissingFieldError{Field: "Host"}),
			Expected: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMissingField)
				assert.ErrorContains(t, err, "missing required field: Host")
			},
		},
		{
			Name: "InvalidField",
			Err:  &InvalidFieldError{Field: "Port", Reason: "70000 is not a valid port"},
			Expected: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidField)
				assert.EqualError(t, err, "messaging: invalid field: Port: 70000 is not a valid port")
			},
		},
		{
			Name: "HandlerError",
			Err:  &HandlerError{Tag: 4, Err: context.DeadlineExceeded},
			Expected: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.DeadlineExceeded)

				var hErr *HandlerError
				require.ErrorAs(t, err, &hErr)
				assert.Equal(t, uint64(4), hErr.Tag)
				assert.ErrorContains(t, err, "delivery 4")
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			tc.Expected(t, tc.Err)
		})
	}
}
