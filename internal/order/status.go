package order

// StatusName is the persisted value of an order status.
type StatusName string

// Order statuses.
const (
	StatusAutoDraft        StatusName = "auto-draft"
	StatusDraft            StatusName = "draft"
	StatusPendingPayment   StatusName = "pending_payment"
	StatusPaymentConfirmed StatusName = "payment_confirmed"
	StatusPaymentFailed    StatusName = "payment_failed"
	StatusProcessing       StatusName = "processing"
	StatusOnHold           StatusName = "on_hold"
	StatusCompleted        StatusName = "completed"
	StatusCancelled        StatusName = "cancelled"
	StatusRefunded         StatusName = "refunded"
	StatusTrash            StatusName = "trash"
)

// Triggers accepted by the order statuses.
const (
	TriggerUpdateCheckout  = "update_checkout"
	TriggerFinalizedOrder  = "finalized_order"
	TriggerOrderPlaced     = "order_placed"
	TriggerProcessOrder    = "process_order"
	TriggerProcessing      = "processing"
	TriggerHoldOrder       = "hold_order"
	TriggerHoldPayment     = "hold_payment"
	TriggerPaymentFailed   = "payment_failed"
	TriggerCancelPayment   = "cancel_payment"
	TriggerPaymentConfirm  = "payment_confirm"
	TriggerPaymentFail     = "payment_fail"
	TriggerPendingPayment  = "pending_payment"
	TriggerCancel          = "cancel"
	TriggerStartProcessing = "start_processing"
	TriggerConfirmPayment  = "confirm_payment"
	TriggerCompleted       = "completed"
	TriggerRestore         = "restore"
)

// Status is the behaviour of one order status. Implementations are stateless;
// a status moves the order on by calling Context.SetOrderStatus.
type Status interface {
	Status() StatusName
	Title() string
	PossibleNextStatuses() []StatusName
	PossibleTriggers() []string
	ProceedToNextStatus(c *Context, trigger string) error
}

type transition struct {
	trigger string
	next    StatusName
}

type state struct {
	name        StatusName
	title       string
	transitions []transition
}

func (s state) Status() StatusName { return s.name }
func (s state) Title() string      { return s.title }

func (s state) PossibleNextStatuses() []StatusName {
	out := make([]StatusName, 0, len(s.transitions))
	for _, t := range s.transitions {
		if !containsStatus(out, t.next) {
			out = append(out, t.next)
		}
	}
	return out
}

func (s state) PossibleTriggers() []string {
	out := make([]string, 0, len(s.transitions))
	for _, t := range s.transitions {
		out = append(out, t.trigger)
	}
	return out
}

func (s state) ProceedToNextStatus(c *Context, trigger string) error {
	for _, t := range s.transitions {
		if t.trigger == trigger {
			c.SetOrderStatus(states[t.next])
			return nil
		}
	}
	return &InvalidTriggerError{Trigger: trigger, Status: s.name}
}

var states map[StatusName]Status

func init() {
	states = map[StatusName]Status{
		StatusAutoDraft: state{name: StatusAutoDraft, title: "Auto Draft", transitions: []transition{
			{TriggerUpdateCheckout, StatusDraft},
			{TriggerFinalizedOrder, StatusPendingPayment},
			{TriggerOrderPlaced, StatusPendingPayment},
		}},
		StatusDraft: state{name: StatusDraft, title: "Draft", transitions: []transition{
			{TriggerUpdateCheckout, StatusDraft},
			{TriggerOrderPlaced, StatusPendingPayment},
		}},
		StatusPendingPayment: state{name: StatusPendingPayment, title: "Pending Payment", transitions: []transition{
			{TriggerProcessOrder, StatusProcessing},
			{TriggerProcessing, StatusProcessing},
			{TriggerHoldOrder, StatusOnHold},
			{TriggerHoldPayment, StatusOnHold},
			{TriggerPaymentFailed, StatusPaymentFailed},
			{TriggerCancelPayment, StatusCancelled},
		}},
		StatusOnHold: state{name: StatusOnHold, title: "On Hold", transitions: []transition{
			{TriggerPaymentConfirm, StatusPaymentConfirmed},
			{TriggerPaymentFail, StatusPaymentFailed},
			{TriggerPendingPayment, StatusPendingPayment},
			{TriggerCancel, StatusCancelled},
		}},
		StatusPaymentConfirmed: state{name: StatusPaymentConfirmed, title: "Payment Confirmed", transitions: []transition{
			{TriggerStartProcessing, StatusProcessing},
			{TriggerCancel, StatusCancelled},
		}},
		StatusPaymentFailed: state{name: StatusPaymentFailed, title: "Payment Failed", transitions: []transition{
			{TriggerConfirmPayment, StatusPaymentConfirmed},
			{TriggerCancelPayment, StatusCancelled},
		}},
		StatusProcessing: state{name: StatusProcessing, title: "Processing", transitions: []transition{
			{TriggerCompleted, StatusCompleted},
			{TriggerPaymentConfirm, StatusPaymentConfirmed},
			{TriggerPaymentFail, StatusPaymentFailed},
			{TriggerCancel, StatusCancelled},
		}},
		StatusCompleted: state{name: StatusCompleted, title: "Completed"},
		StatusCancelled: state{name: StatusCancelled, title: "Cancelled"},
		StatusRefunded:  state{name: StatusRefunded, title: "Refunded"},
		StatusTrash: state{name: StatusTrash, title: "Trash", transitions: []transition{
			{TriggerRestore, StatusDraft},
		}},
	}
}

// Lookup returns the status behaviour for name.
func Lookup(name StatusName) (Status, error) {
	s, ok := states[name]
	if !ok {
		return nil, &UnknownStatusError{Status: name}
	}
	return s, nil
}

// AllStatuses returns every known status name.
func AllStatuses() []StatusName {
	return []StatusName{
		StatusAutoDraft, StatusDraft, StatusPendingPayment, StatusPaymentConfirmed,
		StatusPaymentFailed, StatusProcessing, StatusOnHold, StatusCompleted,
		StatusCancelled, StatusRefunded, StatusTrash,
	}
}

func containsStatus(list []StatusName, s StatusName) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
