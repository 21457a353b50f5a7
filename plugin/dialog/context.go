// Package dialog provides the client and wire types for the dialog-decision
// engine. The conversation context defined here is the single unit of state
// carried across turns; the engine owns fields the orchestrator does not
// recognize, so unknown keys round-trip untouched.
package dialog

import (
	"encoding/json"
	"strconv"
)

// Context is the conversation context exchanged with the dialog engine and
// persisted between turns.
type Context struct {
	// SmartChat holds channel-provided profile facts (ATTUID, BAN, ...).
	SmartChat map[string]string
	// Confirmed holds dialog-confirmed slot values, e.g. the account BAN.
	Confirmed map[string]string
	// API holds the pending directive and accumulated action results.
	API *APIState
	// Emotion holds the latest emotion extraction result (alEmotion on the wire).
	Emotion map[string]any
	// Entities holds the latest entity extraction result (alentity on the wire).
	Entities map[string]any
	// Extra preserves engine-owned fields verbatim.
	Extra map[string]json.RawMessage
}

// APIState is the api substructure of the context. The flat upper-case field
// names are the wire contract shared with the dialog tree and the ERP
// simulator; they are not idiomatic but must not be renamed.
type APIState struct {
	Run            string // RUN: pending directive, cleared after dispatch
	AlchemyText    string // alchemytext: one-shot entity-extraction prefix
	LPAError       string // LPAERROR
	Loop           string // LOOP
	Profile        string // PROFILE
	NewProfileName string
	NewProfileID   string
	NewMRC         string
	CurMRC         string
	OldBillAmt     string // OLDBILLAMT
	NewBillAmt     string // NEWBILLAMT
	OrderNumber    string // ORDNMBR
	TechChange     string // TECHCHANGE
	LPAResult      string // LPARESULT
	Error          string // ERROR: soft-error marker merged from an action result
	CRM            map[string]string
	Extra          map[string]json.RawMessage
}

// EnsureAPI returns the context's APIState, allocating it when absent.
func (c *Context) EnsureAPI() *APIState {
	if c.API == nil {
		c.API = &APIState{}
	}
	return c.API
}

// Clone returns a deep copy of the context.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	clone := &Context{
		SmartChat: cloneStringMap(c.SmartChat),
		Confirmed: cloneStringMap(c.Confirmed),
		API:       c.API.Clone(),
		Emotion:   cloneAnyMap(c.Emotion),
		Entities:  cloneAnyMap(c.Entities),
		Extra:     cloneRawMap(c.Extra),
	}
	return clone
}

// Clone returns a deep copy of the api state.
func (a *APIState) Clone() *APIState {
	if a == nil {
		return nil
	}
	clone := *a
	clone.CRM = cloneStringMap(a.CRM)
	clone.Extra = cloneRawMap(a.Extra)
	return &clone
}

const (
	keySmartChat = "smartchat"
	keyConfirmed = "confirmed"
	keyAPI       = "api"
	keyEmotion   = "alEmotion"
	keyEntities  = "alentity"
)

// MarshalJSON emits the typed substructures under their reserved keys and the
// engine-owned extras as-is.
func (c *Context) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+5)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.SmartChat != nil {
		out[keySmartChat] = c.SmartChat
	}
	if c.Confirmed != nil {
		out[keyConfirmed] = c.Confirmed
	}
	if c.API != nil {
		out[keyAPI] = c.API
	}
	if c.Emotion != nil {
		out[keyEmotion] = c.Emotion
	}
	if c.Entities != nil {
		out[keyEntities] = c.Entities
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits reserved substructures from engine-owned extras.
func (c *Context) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Context{}
	for key, value := range raw {
		switch key {
		case keySmartChat:
			if err := json.Unmarshal(value, &c.SmartChat); err != nil {
				return err
			}
		case keyConfirmed:
			if err := json.Unmarshal(value, &c.Confirmed); err != nil {
				return err
			}
		case keyAPI:
			if err := json.Unmarshal(value, &c.API); err != nil {
				return err
			}
		case keyEmotion:
			if err := json.Unmarshal(value, &c.Emotion); err != nil {
				return err
			}
		case keyEntities:
			if err := json.Unmarshal(value, &c.Entities); err != nil {
				return err
			}
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[key] = value
		}
	}
	return nil
}

// apiKeys maps the APIState fields to their wire names.
var apiKeys = []struct {
	name string
	get  func(*APIState) string
	set  func(*APIState, string)
}{
	{"RUN", func(a *APIState) string { return a.Run }, func(a *APIState, v string) { a.Run = v }},
	{"alchemytext", func(a *APIState) string { return a.AlchemyText }, func(a *APIState, v string) { a.AlchemyText = v }},
	{"LPAERROR", func(a *APIState) string { return a.LPAError }, func(a *APIState, v string) { a.LPAError = v }},
	{"LOOP", func(a *APIState) string { return a.Loop }, func(a *APIState, v string) { a.Loop = v }},
	{"PROFILE", func(a *APIState) string { return a.Profile }, func(a *APIState, v string) { a.Profile = v }},
	{"NewProfileName", func(a *APIState) string { return a.NewProfileName }, func(a *APIState, v string) { a.NewProfileName = v }},
	{"NewProfileID", func(a *APIState) string { return a.NewProfileID }, func(a *APIState, v string) { a.NewProfileID = v }},
	{"NewMRC", func(a *APIState) string { return a.NewMRC }, func(a *APIState, v string) { a.NewMRC = v }},
	{"CurMRC", func(a *APIState) string { return a.CurMRC }, func(a *APIState, v string) { a.CurMRC = v }},
	{"OLDBILLAMT", func(a *APIState) string { return a.OldBillAmt }, func(a *APIState, v string) { a.OldBillAmt = v }},
	{"NEWBILLAMT", func(a *APIState) string { return a.NewBillAmt }, func(a *APIState, v string) { a.NewBillAmt = v }},
	{"ORDNMBR", func(a *APIState) string { return a.OrderNumber }, func(a *APIState, v string) { a.OrderNumber = v }},
	{"TECHCHANGE", func(a *APIState) string { return a.TechChange }, func(a *APIState, v string) { a.TechChange = v }},
	{"LPARESULT", func(a *APIState) string { return a.LPAResult }, func(a *APIState, v string) { a.LPAResult = v }},
	{"ERROR", func(a *APIState) string { return a.Error }, func(a *APIState, v string) { a.Error = v }},
}

// MarshalJSON emits non-empty fields under their wire names plus extras.
// An empty RUN is omitted entirely, which is what "directive cleared" means
// on the wire.
func (a *APIState) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+len(apiKeys)+1)
	for k, v := range a.Extra {
		out[k] = v
	}
	for _, field := range apiKeys {
		if v := field.get(a); v != "" {
			out[field.name] = v
		}
	}
	if a.CRM != nil {
		out["crm"] = a.CRM
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits known wire fields from extras. Scalar values that are
// not strings (the simulator reports numeric loop lengths) are stringified.
func (a *APIState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = APIState{}
	for _, field := range apiKeys {
		if value, ok := raw[field.name]; ok {
			field.set(a, rawToString(value))
			delete(raw, field.name)
		}
	}
	if value, ok := raw["crm"]; ok {
		if err := json.Unmarshal(value, &a.CRM); err != nil {
			return err
		}
		delete(raw, "crm")
	}
	if len(raw) > 0 {
		a.Extra = raw
	}
	return nil
}

// rawToString converts a scalar JSON value to its string form.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return string(raw)
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	clone := make(map[string]string, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

func cloneRawMap(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	clone := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
