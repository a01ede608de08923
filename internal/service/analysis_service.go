// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthtrack-go/internal/model"
	"healthtrack-go/pkg/llm"
	"healthtrack-go/pkg/log"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("healthtrack-go/internal/service")

// 分析服务的错误分类，handler 据此映射 HTTP 状态码。
var (
	ErrNoSymptoms        = errors.New("at least one symptom is required")
	ErrMissingCredential = errors.New("LLM API key is not configured")
	ErrRateLimited       = errors.New("upstream rate limit exceeded")
	ErrQuotaExhausted    = errors.New("upstream credits exhausted")
	ErrUpstream          = errors.New("AI gateway error")
)

const systemPrompt = `You are a medical information assistant. Based on the symptoms provided, give an educational risk assessment. This is NOT a medical diagnosis.

Provide:
1. Up to 3 possible conditions, each with a probability score from 0 to 100
2. An overall risk level: "low", "medium" or "high"
3. A brief explanation for each condition
4. Recommendations for next steps

Always include a disclaimer that this is not a medical diagnosis and the user should consult a healthcare professional.

Respond ONLY with a JSON object in exactly this shape:
{
  "conditions": [
    {"name": "Condition name", "probability": 75, "explanation": "Brief explanation"}
  ],
  "riskLevel": "low",
  "recommendations": ["Recommendation 1", "Recommendation 2"],
  "disclaimer": "This is not a medical diagnosis. Please consult a qualified healthcare professional for proper medical advice."
}`

// Analysis 是一次分析的结果。Fallback 为 true 时 Prediction 是固定的降级评估。
type Analysis struct {
	Prediction model.Prediction
	Fallback   bool
}

// AnalysisService 将症状转发给上游模型并整理为结构化评估。
type AnalysisService interface {
	Analyze(ctx context.Context, symptoms []string) (*Analysis, error)
}

// AnalysisOptions 控制上游调用的重试策略。
type AnalysisOptions struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

type analysisService struct {
	client llm.Client
	opts   AnalysisOptions
}

// NewAnalysisService 创建一个新的 AnalysisService 实例。
func NewAnalysisService(client llm.Client, opts AnalysisOptions) AnalysisService {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	return &analysisService{client: client, opts: opts}
}

// Analyze 执行一次分析：构造提示词，调用上游（仅对 429 做有限次退避重试），解析回复。
// 解析失败不是错误，返回 Fallback 评估。
func (s *analysisService) Analyze(ctx context.Context, symptoms []string) (*Analysis, error) {
	symptoms = NormalizeSymptoms(symptoms)
	if len(symptoms) == 0 {
		return nil, ErrNoSymptoms
	}

	ctx, span := tracer.Start(ctx, "AnalysisService.Analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("symptoms.count", len(symptoms)))

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: "Symptoms: " + strings.Join(symptoms, ", ")},
	}

	reply, err := s.complete(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Int("llm.status_code", llm.StatusOf(err)))
		span.SetStatus(codes.Error, "upstream call failed")
		return nil, mapUpstreamError(err)
	}
	log.Debugw("[AnalysisService] 收到模型回复", "replyBytes", len(reply))

	prediction, err := ParsePrediction(reply)
	if err != nil {
		var pf *ParseFailure
		if errors.As(err, &pf) {
			log.Warnw("[AnalysisService] 模型回复解析失败，使用降级评估", "reason", pf.Reason)
			span.SetAttributes(attribute.Bool("assessment.fallback", true))
			return &Analysis{Prediction: FallbackPrediction(), Fallback: true}, nil
		}
		return nil, err
	}
	return &Analysis{Prediction: prediction}, nil
}

func (s *analysisService) complete(ctx context.Context, messages []llm.Message) (string, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.opts.MaxRetries)), ctx)

	var reply string
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		out, err := s.client.Complete(ctx, messages)
		if err == nil {
			reply = out
			return nil
		}
		var llmErr *llm.Error
		if errors.As(err, &llmErr) && llmErr.IsRetryable() {
			log.Warnw("[AnalysisService] 上游限流，准备重试", "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	return reply, err
}

func mapUpstreamError(err error) error {
	if errors.Is(err, llm.ErrNoAPIKey) {
		return ErrMissingCredential
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Type {
		case llm.ErrorTypeRateLimited:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case llm.ErrorTypeQuotaExhausted:
			return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		}
	}
	log.Errorw("[AnalysisService] 上游调用失败", "status", llm.StatusOf(err), "error", err)
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// NormalizeSymptoms 去除空白标签，保留原有顺序。
func NormalizeSymptoms(symptoms []string) []string {
	out := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
