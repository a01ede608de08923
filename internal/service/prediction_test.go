package service

import (
	"errors"
	"testing"

	"healthtrack-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = "```json\n" + `{
  "conditions": [
    {"name": "Common cold", "probability": 70, "explanation": "Viral upper respiratory infection"},
    {"name": "Influenza", "probability": 40, "explanation": "Fever with cough"}
  ],
  "riskLevel": "low",
  "recommendations": ["Rest", "Hydrate"],
  "disclaimer": "Not a diagnosis."
}` + "\n```"

func TestParsePrediction_Valid(t *testing.T) {
	p, err := ParsePrediction(validReply)
	require.NoError(t, err)

	assert.Equal(t, model.Prediction{
		Conditions: []model.Condition{
			{Name: "Common cold", Probability: 70, Explanation: "Viral upper respiratory infection"},
			{Name: "Influenza", Probability: 40, Explanation: "Fever with cough"},
		},
		RiskLevel:       model.RiskLow,
		Recommendations: []string{"Rest", "Hydrate"},
		Disclaimer:      "Not a diagnosis.",
	}, p)
}

func TestParsePrediction_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no json", "I am unable to assess these symptoms."},
		{"wrong types", `{"conditions": "many", "riskLevel": "low"}`},
		{"unknown risk level", `{"conditions": [], "riskLevel": "severe", "recommendations": [], "disclaimer": "x"}`},
		{"too many conditions", `{"conditions": [{"name":"a","probability":1},{"name":"b","probability":1},{"name":"c","probability":1},{"name":"d","probability":1}], "riskLevel": "low"}`},
		{"probability above range", `{"conditions": [{"name":"a","probability":140}], "riskLevel": "high"}`},
		{"negative probability", `{"conditions": [{"name":"a","probability":-5}], "riskLevel": "high"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrediction(tt.reply)
			require.Error(t, err)
			var pf *ParseFailure
			assert.True(t, errors.As(err, &pf), "want *ParseFailure, got %T", err)
			assert.Equal(t, tt.reply, pf.Raw)
		})
	}
}

func TestParsePrediction_Normalizes(t *testing.T) {
	p, err := ParsePrediction(`{"conditions":[{"name":"Migraine","probability":64.6,"explanation":""}],"riskLevel":" Medium "}`)
	require.NoError(t, err)
	assert.Equal(t, model.RiskMedium, p.RiskLevel)
	assert.Equal(t, 65, p.Conditions[0].Probability)
	assert.Equal(t, StandardDisclaimer, p.Disclaimer)
	assert.NotNil(t, p.Recommendations)

	// 空白免责声明同样被替换，模型自带的声明原样保留
	p, err = ParsePrediction(`{"conditions":[],"riskLevel":"low","recommendations":["Rest"],"disclaimer":"   "}`)
	require.NoError(t, err)
	assert.Equal(t, StandardDisclaimer, p.Disclaimer)
	p, err = ParsePrediction(`{"conditions":[],"riskLevel":"low","disclaimer":"Consult a doctor."}`)
	require.NoError(t, err)
	assert.Equal(t, "Consult a doctor.", p.Disclaimer)
}

func TestFallbackPrediction(t *testing.T) {
	p := FallbackPrediction()
	assert.Equal(t, model.RiskMedium, p.RiskLevel)
	require.Len(t, p.Conditions, 1)
	assert.Equal(t, 60, p.Conditions[0].Probability)
	assert.Len(t, p.Recommendations, 3)
	assert.Equal(t, StandardDisclaimer, p.Disclaimer)
}
