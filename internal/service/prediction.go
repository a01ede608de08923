package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"healthtrack-go/internal/model"
	"healthtrack-go/pkg/llm"
)

// StandardDisclaimer 是每份评估必须附带的免责声明。
const StandardDisclaimer = "This is not a medical diagnosis. Please consult a qualified healthcare professional for proper medical advice."

// FallbackPrediction 返回模型回复无法解析时使用的固定评估。
func FallbackPrediction() model.Prediction {
	return model.Prediction{
		Conditions: []model.Condition{{
			Name:        "Unable to determine specific conditions",
			Probability: 60,
			Explanation: "Please consult a healthcare professional for proper evaluation.",
		}},
		RiskLevel: model.RiskMedium,
		Recommendations: []string{
			"Consult with a healthcare provider",
			"Monitor your symptoms",
			"Seek immediate care if symptoms worsen",
		},
		Disclaimer: StandardDisclaimer,
	}
}

// ParseFailure 表示模型回复无法解析为结构化评估。
type ParseFailure struct {
	Reason string
	Raw    string
	Err    error
}

func (f *ParseFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("parse prediction: %s: %v", f.Reason, f.Err)
	}
	return "parse prediction: " + f.Reason
}

func (f *ParseFailure) Unwrap() error {
	return f.Err
}

// rawPrediction 接受模型常见的宽松写法（例如小数概率），再归一化。
type rawPrediction struct {
	Conditions []struct {
		Name        string  `json:"name"`
		Probability float64 `json:"probability"`
		Explanation string  `json:"explanation"`
	} `json:"conditions"`
	RiskLevel       string   `json:"riskLevel"`
	Recommendations []string `json:"recommendations"`
	Disclaimer      string   `json:"disclaimer"`
}

// ParsePrediction 从模型的自由文本回复中提取并校验评估对象。
// 任何失败都以 *ParseFailure 返回，由调用方决定降级还是上抛。
func ParsePrediction(reply string) (model.Prediction, error) {
	obj, err := llm.ExtractObject(reply)
	if err != nil {
		return model.Prediction{}, &ParseFailure{Reason: "no JSON object", Raw: reply, Err: err}
	}

	var raw rawPrediction
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return model.Prediction{}, &ParseFailure{Reason: "invalid shape", Raw: reply, Err: err}
	}

	p := model.Prediction{
		RiskLevel:       strings.ToLower(strings.TrimSpace(raw.RiskLevel)),
		Recommendations: raw.Recommendations,
		Disclaimer:      strings.TrimSpace(raw.Disclaimer),
	}
	if !model.ValidRiskLevel(p.RiskLevel) {
		return model.Prediction{}, &ParseFailure{Reason: fmt.Sprintf("invalid riskLevel %q", raw.RiskLevel), Raw: reply}
	}
	if len(raw.Conditions) > model.MaxConditions {
		return model.Prediction{}, &ParseFailure{Reason: fmt.Sprintf("%d conditions exceeds limit", len(raw.Conditions)), Raw: reply}
	}

	p.Conditions = make([]model.Condition, 0, len(raw.Conditions))
	for _, c := range raw.Conditions {
		prob := math.Round(c.Probability)
		if prob < 0 || prob > 100 {
			return model.Prediction{}, &ParseFailure{Reason: fmt.Sprintf("probability %v out of range", c.Probability), Raw: reply}
		}
		if strings.TrimSpace(c.Name) == "" {
			return model.Prediction{}, &ParseFailure{Reason: "condition without name", Raw: reply}
		}
		p.Conditions = append(p.Conditions, model.Condition{
			Name:        c.Name,
			Probability: int(prob),
			Explanation: c.Explanation,
		})
	}
	if p.Recommendations == nil {
		p.Recommendations = []string{}
	}
	if p.Disclaimer == "" {
		p.Disclaimer = StandardDisclaimer
	}
	return p, nil
}
