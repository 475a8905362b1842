package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionFlagInference(t *testing.T) {
	var p Profile
	err := json.Unmarshal([]byte(`{"age":30,"conditions":{"Diabetes":1,"Hypertension":0}}`), &p)
	require.NoError(t, err)

	assert.Equal(t, []Condition{Diabetes}, p.ConditionList())
}

func TestTopLevelConditionFlags(t *testing.T) {
	var p Profile
	err := json.Unmarshal([]byte(`{"age":30,"Diabetes":1,"Hypertension":0,"heart_disease":"yes","conditions":{"Acne":true}}`), &p)
	require.NoError(t, err)

	assert.Equal(t, 30, p.Age)
	assert.Equal(t, []Condition{Acne, Diabetes, HeartDisease}, p.ConditionList())

	err = json.Unmarshal([]byte(`{"age":30,"Diabetes":[1]}`), &p)
	assert.ErrorIs(t, err, ErrMalformed)

	var plain Profile
	require.NoError(t, json.Unmarshal([]byte(`{"age":30,"Hypertension":0}`), &plain))
	assert.Empty(t, plain.ConditionList())
}

func TestConditionFlagsUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []Condition
	}{
		{"Booleans", `{"Diabetes": true, "Acne": false}`, []Condition{Diabetes}},
		{"Strings", `{"Heart_Disease": "Yes", "Kidney Disease": "true", "Hypertension": "no"}`, []Condition{HeartDisease, KidneyDisease}},
		{"StringOne", `{"weight-loss": "1"}`, []Condition{WeightLoss}},
		{"NumbersOtherThanOne", `{"Diabetes": 2, "Acne": 1}`, []Condition{Acne}},
		{"Null", `{"Diabetes": null}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f ConditionFlags
			require.NoError(t, json.Unmarshal([]byte(tt.json), &f))
			p := Profile{Conditions: f}
			assert.Equal(t, tt.want, p.ConditionList())
		})
	}

	t.Run("UnknownCondition", func(t *testing.T) {
		var f ConditionFlags
		err := json.Unmarshal([]byte(`{"Gout": 1}`), &f)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("UnsupportedValue", func(t *testing.T) {
		var f ConditionFlags
		err := json.Unmarshal([]byte(`{"Diabetes": [1]}`), &f)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestConditionFlagsMarshal(t *testing.T) {
	f := ConditionFlags{HeartDisease: true, Acne: false}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Heart Disease":1}`, string(data))
}

func TestValidate(t *testing.T) {
	valid := Profile{Age: 25, Gender: "female", Height: 165, Weight: 60, ActivityLevel: "light", DietaryPreference: "veg", BudgetPreference: "low"}
	assert.NoError(t, valid.Validate())

	err := Profile{Age: 25}.Validate()
	require.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "gender")
	assert.Contains(t, err.Error(), "budget_preference")
	assert.NotContains(t, err.Error(), "age")
}

func TestParseConditions(t *testing.T) {
	got := ParseConditions([]string{"diabetes", " Diabetes ", "", "heart_disease", "Celiac"})
	assert.Equal(t, []Condition{Diabetes, HeartDisease, Condition("Celiac")}, got)
}

func TestParseKeyValues(t *testing.T) {
	p, err := ParseKeyValues([]string{"age=40", "gender=male", "height=172.5", "weight=85", "activity=sedentary", "diet=non-veg", "budget=high", "conditions=hypertension,Heart Disease"})
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, 172.5, p.Height)
	assert.Equal(t, []Condition{HeartDisease, Hypertension}, p.ConditionList())

	_, err = ParseKeyValues([]string{"age"})
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = ParseKeyValues([]string{"shoe=42"})
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = ParseKeyValues([]string{"conditions=gout"})
	assert.ErrorIs(t, err, ErrMalformed)
}
