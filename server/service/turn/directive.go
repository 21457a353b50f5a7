package turn

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/smartchat/plugin/dialog"
	"github.com/hrygo/smartchat/plugin/erp"
	errs "github.com/hrygo/smartchat/server/internal/errors"
	"github.com/hrygo/smartchat/server/internal/observability"
)

// Directive is a backend workflow the dialog engine requests via api.RUN.
type Directive int

const (
	DirectiveNone Directive = iota
	DirectiveLPA
	DirectiveCRM
	DirectiveBBNMS
)

// ParseDirective maps the wire value to a Directive. Unrecognized values
// map to DirectiveNone so an unknown directive passes through without error.
func ParseDirective(s string) Directive {
	switch s {
	case "LPA":
		return DirectiveLPA
	case "CRM":
		return DirectiveCRM
	case "BBNMS":
		return DirectiveBBNMS
	default:
		return DirectiveNone
	}
}

func (d Directive) String() string {
	switch d {
	case DirectiveLPA:
		return "LPA"
	case DirectiveCRM:
		return "CRM"
	case DirectiveBBNMS:
		return "BBNMS"
	default:
		return "NONE"
	}
}

const (
	lpaAccepted = "Accepted"
	lpaRejected = "Rejected. Within guidelines."

	crmDefaultOldBill = "$55"
	crmDefaultNewBill = "$48"
)

// Dispatcher executes the directive a dialog response carries. Each
// workflow mutates the response context, clears the directive, and runs a
// second dialog turn so the engine can phrase the result. Responses without
// a directive pass through untouched.
type Dispatcher struct {
	dialog  dialog.Service
	erp     erp.Service
	metrics *observability.Metrics
}

func NewDispatcher(dialogService dialog.Service, erpService erp.Service, metrics *observability.Metrics) *Dispatcher {
	if metrics == nil {
		metrics = observability.GlobalMetrics()
	}
	return &Dispatcher{dialog: dialogService, erp: erpService, metrics: metrics}
}

// Dispatch runs the workflow named by the response's api.RUN, if any.
// Action transport failures abort the turn; business rejections become
// context fields and the conversation continues.
func (d *Dispatcher) Dispatch(ctx context.Context, resp *dialog.MessageResponse) (*dialog.MessageResponse, error) {
	if resp.Context == nil || resp.Context.API == nil {
		return resp, nil
	}

	directive := ParseDirective(resp.Context.API.Run)
	if directive == DirectiveNone {
		return resp, nil
	}
	d.metrics.RecordDispatch(directive.String())
	start := time.Now()
	defer func() {
		d.metrics.RecordDuration(directive.String(), time.Since(start))
	}()
	if turnCtx, ok := observability.FromContext(ctx); ok {
		turnCtx.Debug("dispatching directive", slog.String(observability.LogFieldDirective, directive.String()))
	}

	switch directive {
	case DirectiveLPA:
		return d.runLPA(ctx, resp)
	case DirectiveCRM:
		return d.runCRM(ctx, resp)
	case DirectiveBBNMS:
		return d.runBBNMS(ctx, resp)
	default:
		return resp, nil
	}
}

// runLPA qualifies the customer's loop and recommends a service profile.
func (d *Dispatcher) runLPA(ctx context.Context, resp *dialog.MessageResponse) (*dialog.MessageResponse, error) {
	api := resp.Context.API
	api.LPAError = ""
	ban := resp.Context.Confirmed["BAN"]

	customer, err := d.erp.CustomerInfo(ctx, ban)
	if err != nil {
		return nil, errs.ActionTransport("customer lookup", err)
	}
	api.CRM = customerFields(customer)

	loop, err := d.erp.LoopLength(ctx, ban)
	if err != nil {
		return nil, errs.ActionTransport("loop-length lookup", err)
	}
	if loop.Err != "" {
		// The loop lookup rejected the account. Tell the user and stop,
		// there is nothing to recommend against.
		api.LPAError = loop.Err
		api.Run = ""
		d.metrics.RecordSoftError(DirectiveLPA.String())
		return d.secondTurn(ctx, resp)
	}
	api.Loop = loop.Length

	rec, err := d.erp.RecommendProfile(ctx, api.Loop)
	if err != nil {
		return nil, errs.ActionTransport("profile recommendation", err)
	}
	if rec.Err != "" {
		api.Error = rec.Err
		d.metrics.RecordSoftError(DirectiveLPA.String())
	} else {
		api.Profile = rec.Profile
		api.NewProfileName = rec.Name
		api.NewProfileID = rec.ID
		api.NewMRC = rec.MRC
	}

	decideTechChange(api)

	api.Run = ""
	return d.secondTurn(ctx, resp)
}

// decideTechChange sets TECHCHANGE/LPARESULT from the current service
// profile and the recommended one. DSL plants always need a tech visit, so
// the change is accepted outright. Otherwise the speed tokens at the tail
// of the profile ids are compared as strings: an equal-or-higher new speed
// is rejected as already within guidelines.
//
// The string comparison is a numeric proxy inherited from the upstream
// profile naming scheme ("-50" vs "-100" compares as text). Known to be
// fragile; kept until the profile catalog grows a real speed field.
func decideTechChange(api *dialog.APIState) {
	if api.CRM == nil {
		return
	}
	currSP := api.CRM["SERVICEPROFILE"]
	if strings.Contains(currSP, "dsl") {
		api.TechChange = "YES"
		api.LPAResult = lpaAccepted
		return
	}
	if speedToken(api.NewProfileID) >= speedToken(currSP) {
		api.LPAResult = lpaRejected
	} else {
		api.LPAResult = lpaAccepted
	}
}

// speedToken returns the profile id's tail starting at the last "-", or
// the last character when the id has no dash.
func speedToken(s string) string {
	if i := strings.LastIndex(s, "-"); i >= 0 {
		return s[i:]
	}
	if s == "" {
		return ""
	}
	return s[len(s)-1:]
}

// customerFields flattens a customer lookup into the crm context block.
func customerFields(c *erp.Customer) map[string]string {
	if c.Err != "" {
		return map[string]string{"ERROR": c.Err}
	}
	return map[string]string{
		"NAME":           c.Name,
		"ADDRESS":        c.Address,
		"SERVICEPROFILE": c.ServiceProfile,
		"SERVICEOTC":     c.ServiceOTC,
		"SERVICEMRC":     c.ServiceMRC,
		"EQUIPOTC":       c.EquipOTC,
		"EQUIPMRC":       c.EquipMRC,
	}
}

// runCRM refreshes the old/new billing amounts from the charge backend.
func (d *Dispatcher) runCRM(ctx context.Context, resp *dialog.MessageResponse) (*dialog.MessageResponse, error) {
	api := resp.Context.API

	// Demo defaults, overwritten by whatever the lookup reports.
	api.OldBillAmt = crmDefaultOldBill
	api.NewBillAmt = crmDefaultNewBill

	charge, err := d.erp.CurrentCharge(ctx, resp.Context.Confirmed["BAN"])
	if err != nil {
		return nil, errs.ActionTransport("current-charge lookup", err)
	}
	if charge.Err != "" {
		api.Error = charge.Err
		d.metrics.RecordSoftError(DirectiveCRM.String())
	} else {
		api.CurMRC = charge.Current
		if charge.New != "" {
			api.NewMRC = charge.New
		}
	}
	api.OldBillAmt = api.CurMRC
	api.NewBillAmt = api.NewMRC

	api.Run = ""
	return d.secondTurn(ctx, resp)
}

// runBBNMS submits a service order for the recommended profile.
func (d *Dispatcher) runBBNMS(ctx context.Context, resp *dialog.MessageResponse) (*dialog.MessageResponse, error) {
	api := resp.Context.API

	order, err := d.erp.SubmitOrder(ctx, resp.Context.Confirmed["BAN"], api.NewProfileName)
	if err != nil {
		return nil, errs.ActionTransport("order submission", err)
	}
	if order.Err != "" {
		api.Error = order.Err
		d.metrics.RecordSoftError(DirectiveBBNMS.String())
	} else {
		api.OrderNumber = order.Number
	}

	api.Run = ""
	return d.secondTurn(ctx, resp)
}

// secondTurn re-invokes the dialog engine with the original input and the
// mutated context. This is turn 2 of the same user turn, not a new message.
func (d *Dispatcher) secondTurn(ctx context.Context, resp *dialog.MessageResponse) (*dialog.MessageResponse, error) {
	next, err := d.dialog.Send(ctx, &dialog.Message{
		Input:   resp.Input,
		Context: resp.Context,
	})
	if err != nil {
		return nil, errs.EngineUnavailable(err)
	}
	return next, nil
}
