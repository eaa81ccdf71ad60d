package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/ruleforge/pkg/memory"
	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

func sensorRule(name string, threshold float64) *rule.Rule {
	return &rule.Rule{
		Name: name,
		Condition: rule.Condition{
			Kind: rule.ConditionSingle,
			Pattern: &rule.Pattern{
				Kind: rule.PatternSimple, FactType: "Sensor", Field: "value",
				Op: value.OpGreater, Literal: value.Float(threshold),
			},
		},
		Actions: []rule.Action{
			{Kind: rule.ActionSet, Field: "alert", Value: value.Bool(true)},
		},
		NoLoop: true,
	}
}

func TestEngineFiresAndUpdatesFact(t *testing.T) {
	wm := memory.New()
	handle := wm.Insert("Sensor", map[string]value.Value{"value": value.Float(35)})

	e := New([]*rule.Rule{sensorRule("HighTemp", 30)}, wm, &ExecutionOptions{MaxCycles: 10})
	err := e.Run(context.Background())
	require.NoError(t, err)

	f, ok := wm.Get(handle)
	require.True(t, ok)
	alert, ok := f.Fields["alert"]
	require.True(t, ok)
	assert.Equal(t, value.Bool(true), alert)
	assert.Equal(t, 1, e.Stats.ActivationsFired)
}

func TestEngineMaxCyclesOneStopsAfterSinglePass(t *testing.T) {
	wm := memory.New()
	wm.Insert("Sensor", map[string]value.Value{"value": value.Float(35)})
	wm.Insert("Sensor", map[string]value.Value{"value": value.Float(40)})

	rules := []*rule.Rule{sensorRule("HighTemp", 30)}
	rules[0].NoLoop = false // both facts match; without no-loop, two activations queue

	e := New(rules, wm, &ExecutionOptions{MaxCycles: 1})
	err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, e.Stats.ActivationsFired)
}

func TestEngineInsertLogicalFactRecordsJustification(t *testing.T) {
	wm := memory.New()
	wm.Insert("Base", map[string]value.Value{"ready": value.Bool(true)})

	r := &rule.Rule{
		Name: "DeriveAlert",
		Condition: rule.Condition{
			Kind: rule.ConditionSingle,
			Pattern: &rule.Pattern{
				Kind: rule.PatternSimple, FactType: "Base", Field: "ready",
				Op: value.OpEqual, Literal: value.Bool(true),
			},
		},
		Actions: []rule.Action{
			{Kind: rule.ActionInsertLogicalFact, FactType: "Alert", Fields: map[string]value.Value{"level": value.Str("high")}},
		},
		NoLoop: true,
	}

	e := New([]*rule.Rule{r}, wm, &ExecutionOptions{MaxCycles: 5})
	err := e.Run(context.Background())
	require.NoError(t, err)

	alerts := wm.GetByType("Alert")
	require.Len(t, alerts, 1)
	assert.Equal(t, value.Str("high"), alerts[0].Fields["level"])
	assert.True(t, e.TMS.HasValidJustification(alerts[0].Handle))
}

func TestEngineProveConsumesLiveWorkingMemory(t *testing.T) {
	wm := memory.New()
	wm.Insert("Customer", map[string]value.Value{"Age": value.Int(70)})

	seniorDiscount := &rule.Rule{
		Name:     "SeniorDiscount",
		Salience: 5,
		Condition: rule.Condition{
			Kind: rule.ConditionSingle,
			Pattern: &rule.Pattern{
				Kind: rule.PatternSimple, FactType: "Customer", Field: "Age",
				Op: value.OpGreaterEqual, Literal: value.Int(65),
			},
		},
		Actions: []rule.Action{
			{Kind: rule.ActionSet, Field: "Customer.Tier", Value: value.Str("gold")},
		},
	}

	e := New([]*rule.Rule{seniorDiscount}, wm, &ExecutionOptions{MaxCycles: 5})

	result, err := e.Prove(`Customer.Tier == "gold"`)
	require.NoError(t, err)
	assert.True(t, result.Provable)
	require.Len(t, result.ProofTrace, 1)
	assert.Equal(t, "SeniorDiscount", result.ProofTrace[0].Rule)
}

func TestEngineDetectsHandleRetractedMidActivation(t *testing.T) {
	wm := memory.New()
	wm.Insert("Base", map[string]value.Value{"ready": value.Bool(true)})

	r := &rule.Rule{
		Name: "RetractThenSet",
		Condition: rule.Condition{
			Kind: rule.ConditionSingle,
			Pattern: &rule.Pattern{
				Kind: rule.PatternSimple, FactType: "Base", Field: "ready",
				Op: value.OpEqual, Literal: value.Bool(true),
			},
		},
		Actions: []rule.Action{
			{Kind: rule.ActionRetract},
			{Kind: rule.ActionSet, Field: "ready", Value: value.Bool(false)},
		},
		NoLoop: true,
	}

	e := New([]*rule.Rule{r}, wm, &ExecutionOptions{MaxCycles: 5})
	err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandleRetractedMidActivation)
}
