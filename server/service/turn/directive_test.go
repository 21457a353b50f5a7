package turn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/smartchat/plugin/dialog"
	"github.com/hrygo/smartchat/plugin/erp"
	errs "github.com/hrygo/smartchat/server/internal/errors"
	"github.com/hrygo/smartchat/server/internal/observability"
)

func newTestDispatcher(d *fakeDialog, e *fakeERP) *Dispatcher {
	return NewDispatcher(d, e, observability.NewMetrics(10))
}

func directiveResponse(run string) *dialog.MessageResponse {
	return &dialog.MessageResponse{
		Input: dialog.Input{Text: "change my speed"},
		Context: &dialog.Context{
			Confirmed: map[string]string{"BAN": "000000001"},
			API:       &dialog.APIState{Run: run},
		},
	}
}

func TestParseDirective(t *testing.T) {
	assert.Equal(t, DirectiveLPA, ParseDirective("LPA"))
	assert.Equal(t, DirectiveCRM, ParseDirective("CRM"))
	assert.Equal(t, DirectiveBBNMS, ParseDirective("BBNMS"))
	assert.Equal(t, DirectiveNone, ParseDirective(""))
	assert.Equal(t, DirectiveNone, ParseDirective("lpa"))
	assert.Equal(t, DirectiveNone, ParseDirective("FUTURE"))
}

func TestDispatchNoDirective(t *testing.T) {
	d := &fakeDialog{}
	e := &fakeERP{}
	resp := &dialog.MessageResponse{Context: &dialog.Context{}}

	out, err := newTestDispatcher(d, e).Dispatch(context.Background(), resp)
	require.NoError(t, err)
	assert.Same(t, resp, out)
	assert.Empty(t, e.called)
	assert.Zero(t, d.sendCount())
}

func TestDispatchLPASuccess(t *testing.T) {
	d := &fakeDialog{}
	e := &fakeERP{
		customer: &erp.Customer{Name: "John Smith", ServiceProfile: "fttn-25", ServiceMRC: "$55"},
		loop:     &erp.Loop{Length: "3400"},
		rec:      &erp.Recommendation{Profile: "50/10", Name: "Internet 50", ID: "fttn-50", MRC: "$60"},
	}
	resp := directiveResponse("LPA")

	out, err := newTestDispatcher(d, e).Dispatch(context.Background(), resp)
	require.NoError(t, err)

	api := out.Context.API
	assert.Empty(t, api.Run)
	assert.Equal(t, "3400", api.Loop)
	assert.Equal(t, "50/10", api.Profile)
	assert.Equal(t, "Internet 50", api.NewProfileName)
	assert.Equal(t, "fttn-50", api.NewProfileID)
	assert.Equal(t, "$60", api.NewMRC)
	assert.Equal(t, "fttn-25", api.CRM["SERVICEPROFILE"])
	assert.Equal(t, []string{"customer", "loop", "recommend"}, e.called)
	// Second dialog turn reuses the original input.
	require.Equal(t, 1, d.sendCount())
	assert.Equal(t, "change my speed", d.calls[0].Input.Text)
}

func TestDispatchLPALoopSoftError(t *testing.T) {
	d := &fakeDialog{}
	e := &fakeERP{
		customer: &erp.Customer{ServiceProfile: "fttn-25"},
		loop:     &erp.Loop{Err: "404: customer not qualified"},
	}
	resp := directiveResponse("LPA")

	out, err := newTestDispatcher(d, e).Dispatch(context.Background(), resp)
	require.NoError(t, err)

	api := out.Context.API
	assert.Equal(t, "404: customer not qualified", api.LPAError)
	assert.Empty(t, api.Run)
	// The recommendation never runs on a failed loop lookup.
	assert.Equal(t, []string{"customer", "loop"}, e.called)
	assert.Equal(t, 1, d.sendCount())
}

func TestDispatchLPATechChange(t *testing.T) {
	tests := []struct {
		name           string
		serviceProfile string
		newProfileID   string
		wantResult     string
		wantTechChange string
	}{
		{
			name:           "dsl always accepted with tech change",
			serviceProfile: "dsl-100",
			newProfileID:   "fttn-10",
			wantResult:     "Accepted",
			wantTechChange: "YES",
		},
		{
			name:           "downgrade accepted",
			serviceProfile: "fttn-50",
			newProfileID:   "fttn-25",
			wantResult:     "Accepted",
		},
		{
			name:           "same speed rejected",
			serviceProfile: "fttn-25",
			newProfileID:   "fttn-25",
			wantResult:     "Rejected. Within guidelines.",
		},
		{
			name:           "higher speed token rejected",
			serviceProfile: "fttn-25",
			newProfileID:   "fttn-50",
			wantResult:     "Rejected. Within guidelines.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDialog{}
			e := &fakeERP{
				customer: &erp.Customer{ServiceProfile: tt.serviceProfile},
				loop:     &erp.Loop{Length: "3400"},
				rec:      &erp.Recommendation{ID: tt.newProfileID, Name: "n", Profile: "p", MRC: "$1"},
			}
			out, err := newTestDispatcher(d, e).Dispatch(context.Background(), directiveResponse("LPA"))
			require.NoError(t, err)
			api := out.Context.API
			assert.Equal(t, tt.wantResult, api.LPAResult)
			assert.Equal(t, tt.wantTechChange, api.TechChange)
		})
	}
}

func TestDispatchLPATransportError(t *testing.T) {
	e := &fakeERP{transportErr: assert.AnError}
	_, err := newTestDispatcher(&fakeDialog{}, e).Dispatch(context.Background(), directiveResponse("LPA"))
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrCodeActionTransport))
}

func TestDispatchCRM(t *testing.T) {
	d := &fakeDialog{}
	e := &fakeERP{charge: &erp.Charge{Current: "$55", New: "$48"}}
	resp := directiveResponse("CRM")

	out, err := newTestDispatcher(d, e).Dispatch(context.Background(), resp)
	require.NoError(t, err)

	api := out.Context.API
	assert.Equal(t, "$55", api.OldBillAmt)
	assert.Equal(t, "$48", api.NewBillAmt)
	assert.Empty(t, api.Run)
	assert.Equal(t, []string{"charge"}, e.called)
	assert.Equal(t, 1, d.sendCount())
}

func TestDispatchCRMUsesEarlierRecommendation(t *testing.T) {
	// A charge backend that only reports the current amount leaves
	// NEWBILLAMT to whatever NewMRC an earlier LPA run put in context.
	d := &fakeDialog{}
	e := &fakeERP{charge: &erp.Charge{Current: "$55"}}
	resp := directiveResponse("CRM")
	resp.Context.API.NewMRC = "$60"

	out, err := newTestDispatcher(d, e).Dispatch(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, "$55", out.Context.API.OldBillAmt)
	assert.Equal(t, "$60", out.Context.API.NewBillAmt)
}

func TestDispatchCRMSoftError(t *testing.T) {
	d := &fakeDialog{}
	e := &fakeERP{charge: &erp.Charge{Err: "no billing record"}}

	out, err := newTestDispatcher(d, e).Dispatch(context.Background(), directiveResponse("CRM"))
	require.NoError(t, err)
	api := out.Context.API
	assert.Equal(t, "no billing record", api.Error)
	assert.Empty(t, api.Run)
	assert.Equal(t, 1, d.sendCount())
}

func TestDispatchBBNMS(t *testing.T) {
	d := &fakeDialog{}
	e := &fakeERP{order: &erp.Order{Number: "2346771608A"}}
	resp := directiveResponse("BBNMS")
	resp.Context.API.NewProfileName = "Internet 50"

	out, err := newTestDispatcher(d, e).Dispatch(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, "2346771608A", out.Context.API.OrderNumber)
	assert.Empty(t, out.Context.API.Run)
	assert.Equal(t, []string{"order"}, e.called)
	assert.Equal(t, 1, d.sendCount())
}

func TestDispatchBBNMSSoftError(t *testing.T) {
	d := &fakeDialog{}
	e := &fakeERP{order: &erp.Order{Err: "order rejected"}}

	out, err := newTestDispatcher(d, e).Dispatch(context.Background(), directiveResponse("BBNMS"))
	require.NoError(t, err)
	assert.Equal(t, "order rejected", out.Context.API.Error)
	assert.Empty(t, out.Context.API.Run)
}

func TestDispatchSecondTurnEngineFailure(t *testing.T) {
	d := &fakeDialog{err: assert.AnError}
	e := &fakeERP{order: &erp.Order{Number: "1"}}

	_, err := newTestDispatcher(d, e).Dispatch(context.Background(), directiveResponse("BBNMS"))
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrCodeEngineUnavailable))
}

func TestSpeedToken(t *testing.T) {
	assert.Equal(t, "-50", speedToken("fttn-50"))
	assert.Equal(t, "-100", speedToken("vdsl-pro-100"))
	assert.Equal(t, "e", speedToken("profile"))
	assert.Equal(t, "", speedToken(""))
}
