package explain

import (
	"context"
	"errors"
	"testing"

	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
)

type stubExplainer struct {
	id         string
	weights    []model.FeatureWeight
	fidelity   float64
	confidence float64
	err        error
}

func (s stubExplainer) ID() string { return s.id }
func (s stubExplainer) Explain(ctx context.Context, req model.Request, resp model.Response, claims []model.Claim) ([]model.FeatureWeight, float64, float64, error) {
	return s.weights, s.fidelity, s.confidence, s.err
}

func TestAggregateNoExplainers(t *testing.T) {
	rec, err := Aggregate(context.Background(), nil, model.Request{}, model.Response{}, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Error("expected nil record with no explainers")
	}
}

func TestAggregateAllExplainersFail(t *testing.T) {
	explainers := []Explainer{stubExplainer{id: "a", err: errors.New("boom")}}
	rec, err := Aggregate(context.Background(), explainers, model.Request{}, model.Response{}, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Error("expected nil record when every explainer fails")
	}
}

func TestAggregateSingleMethodDownweighted(t *testing.T) {
	explainers := []Explainer{
		stubExplainer{id: "shap", weights: []model.FeatureWeight{{FeatureID: "f1", Weight: 0.8}, {FeatureID: "f2", Weight: 0.2}}, fidelity: 0.9, confidence: 0.95},
	}
	rec, err := Aggregate(context.Background(), explainers, model.Request{}, model.Response{}, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if !rec.SingleMethod {
		t.Error("expected SingleMethod to be true")
	}
	if rec.Confidence >= 0.95 {
		t.Errorf("expected single-method confidence to be downweighted below the method's own confidence, got %v", rec.Confidence)
	}
}

func TestAggregateTopKTruncation(t *testing.T) {
	weights := []model.FeatureWeight{
		{FeatureID: "f1", Weight: 0.5},
		{FeatureID: "f2", Weight: 0.3},
		{FeatureID: "f3", Weight: 0.1},
		{FeatureID: "f4", Weight: 0.1},
	}
	explainers := []Explainer{stubExplainer{id: "a", weights: weights, fidelity: 0.8}}
	rec, err := Aggregate(context.Background(), explainers, model.Request{}, model.Response{}, nil, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.TopFeatures) != 2 {
		t.Fatalf("expected top 2 features, got %d", len(rec.TopFeatures))
	}
	if rec.TopFeatures[0].FeatureID != "f1" {
		t.Errorf("expected f1 to rank first, got %s", rec.TopFeatures[0].FeatureID)
	}
}

func TestAggregateMultiMethodStability(t *testing.T) {
	explainers := []Explainer{
		stubExplainer{id: "a", weights: []model.FeatureWeight{{FeatureID: "f1", Weight: 1.0}}, fidelity: 0.9, confidence: 0.9},
		stubExplainer{id: "b", weights: []model.FeatureWeight{{FeatureID: "f1", Weight: 1.0}}, fidelity: 0.9, confidence: 0.9},
	}
	rec, err := Aggregate(context.Background(), explainers, model.Request{}, model.Response{}, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SingleMethod {
		t.Error("expected SingleMethod to be false with two methods")
	}
	if rec.Stability < 0.99 {
		t.Errorf("expected near-perfect stability for identical method outputs, got %v", rec.Stability)
	}
}
