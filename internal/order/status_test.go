package order_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/order"
)

var transitionTable = map[order.StatusName]map[string]order.StatusName{
	order.StatusAutoDraft: {
		order.TriggerUpdateCheckout: order.StatusDraft,
		order.TriggerFinalizedOrder: order.StatusPendingPayment,
		order.TriggerOrderPlaced:    order.StatusPendingPayment,
	},
	order.StatusDraft: {
		order.TriggerUpdateCheckout: order.StatusDraft,
		order.TriggerOrderPlaced:    order.StatusPendingPayment,
	},
	order.StatusPendingPayment: {
		order.TriggerProcessOrder:  order.StatusProcessing,
		order.TriggerProcessing:    order.StatusProcessing,
		order.TriggerHoldOrder:     order.StatusOnHold,
		order.TriggerHoldPayment:   order.StatusOnHold,
		order.TriggerPaymentFailed: order.StatusPaymentFailed,
		order.TriggerCancelPayment: order.StatusCancelled,
	},
	order.StatusOnHold: {
		order.TriggerPaymentConfirm: order.StatusPaymentConfirmed,
		order.TriggerPaymentFail:    order.StatusPaymentFailed,
		order.TriggerPendingPayment: order.StatusPendingPayment,
		order.TriggerCancel:         order.StatusCancelled,
	},
	order.StatusPaymentConfirmed: {
		order.TriggerStartProcessing: order.StatusProcessing,
		order.TriggerCancel:          order.StatusCancelled,
	},
	order.StatusPaymentFailed: {
		order.TriggerConfirmPayment: order.StatusPaymentConfirmed,
		order.TriggerCancelPayment:  order.StatusCancelled,
	},
	order.StatusProcessing: {
		order.TriggerCompleted:      order.StatusCompleted,
		order.TriggerPaymentConfirm: order.StatusPaymentConfirmed,
		order.TriggerPaymentFail:    order.StatusPaymentFailed,
		order.TriggerCancel:         order.StatusCancelled,
	},
	order.StatusCompleted: {},
	order.StatusCancelled: {},
	order.StatusRefunded:  {},
	order.StatusTrash: {
		order.TriggerRestore: order.StatusDraft,
	},
}

func allTriggers() []string {
	seen := map[string]bool{"": true, "refund": true, "ship": true}
	out := []string{"", "refund", "ship"}
	for _, row := range transitionTable {
		for trigger := range row {
			if !seen[trigger] {
				seen[trigger] = true
				out = append(out, trigger)
			}
		}
	}
	return out
}

func TestStatusMachineClosure(t *testing.T) {
	require.Len(t, order.AllStatuses(), len(transitionTable))

	for _, name := range order.AllStatuses() {
		row, ok := transitionTable[name]
		require.True(t, ok, "status %s missing from table", name)

		for _, trigger := range allTriggers() {
			o := &order.Order{Status: name}
			oc, err := order.NewContext(o)
			require.NoError(t, err)

			err = oc.Proceed(trigger)
			want, allowed := row[trigger]
			if !allowed {
				require.ErrorIs(t, err, order.ErrInvalidTrigger, "%s + %q", name, trigger)
				var invalid *order.InvalidTriggerError
				require.True(t, errors.As(err, &invalid))
				require.Equal(t, trigger, invalid.Trigger)
				require.Equal(t, name, invalid.Status)
				require.Equal(t, name, o.Status, "failed trigger must not move the order")
				continue
			}
			require.NoError(t, err, "%s + %q", name, trigger)
			require.Equal(t, want, oc.Status().Status())
			require.Equal(t, want, o.Status)
		}
	}
}

func TestPossibleTriggersMatchTable(t *testing.T) {
	for _, name := range order.AllStatuses() {
		st, err := order.Lookup(name)
		require.NoError(t, err)
		require.Equal(t, name, st.Status())
		require.NotEmpty(t, st.Title())

		triggers := st.PossibleTriggers()
		require.Len(t, triggers, len(transitionTable[name]))
		for _, trigger := range triggers {
			require.Contains(t, transitionTable[name], trigger)
		}
		for _, next := range st.PossibleNextStatuses() {
			found := false
			for _, target := range transitionTable[name] {
				found = found || target == next
			}
			require.True(t, found, "%s lists unexpected next status %s", name, next)
		}
	}
}

func TestTerminalStatusesRejectEverything(t *testing.T) {
	for _, name := range []order.StatusName{order.StatusCompleted, order.StatusRefunded, order.StatusCancelled} {
		st, err := order.Lookup(name)
		require.NoError(t, err)
		require.Empty(t, st.PossibleTriggers())
		for _, trigger := range allTriggers() {
			oc, err := order.NewContext(&order.Order{Status: name})
			require.NoError(t, err)
			require.ErrorIs(t, oc.Proceed(trigger), order.ErrInvalidTrigger)
		}
	}
}

func TestTrashRestoresToDraft(t *testing.T) {
	o := &order.Order{Status: order.StatusTrash}
	oc, err := order.NewContext(o)
	require.NoError(t, err)
	require.NoError(t, oc.Proceed(order.TriggerRestore))
	require.Equal(t, order.StatusDraft, o.Status)

	require.NoError(t, oc.Proceed(order.TriggerOrderPlaced))
	require.Equal(t, order.StatusPendingPayment, o.Status)
}

func TestLookupUnknownStatus(t *testing.T) {
	_, err := order.Lookup("shipped")
	require.ErrorIs(t, err, order.ErrUnknownStatus)

	_, err = order.NewContext(&order.Order{Status: "shipped"})
	require.ErrorIs(t, err, order.ErrUnknownStatus)
}

func TestHappyPathToCompleted(t *testing.T) {
	o := &order.Order{Status: order.StatusAutoDraft}
	oc, err := order.NewContext(o)
	require.NoError(t, err)
	for _, trigger := range []string{
		order.TriggerUpdateCheckout,
		order.TriggerOrderPlaced,
		order.TriggerHoldPayment,
		order.TriggerPaymentConfirm,
		order.TriggerStartProcessing,
		order.TriggerCompleted,
	} {
		require.NoError(t, oc.Proceed(trigger), trigger)
	}
	require.Equal(t, order.StatusCompleted, o.Status)
}
