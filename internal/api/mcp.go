package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/pbaille/nutriscan/internal/assess"
	"github.com/pbaille/nutriscan/internal/classifier"
	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/nutrient"
	"github.com/pbaille/nutriscan/internal/session"
)

// ServerInfo identifies the tool surface
var ServerInfo = protocol.Implementation{
	Name:    "nutriscan",
	Version: "1.0.0",
}

// AggregateFoodsParams are the arguments of aggregate_foods
type AggregateFoodsParams struct {
	Foods     []string       `json:"foods,omitempty" description:"Foods eaten in one day"`
	Log       domain.FoodLog `json:"log,omitempty" description:"Foods per date (YYYY-MM-DD), averaged over days"`
	Allergies []string       `json:"allergies,omitempty" description:"Foods to leave out"`
}

// SuggestFoodsParams are the arguments of suggest_foods
type SuggestFoodsParams struct {
	Label     domain.Label `json:"label" description:"Deficiency label"`
	Allergies []string     `json:"allergies,omitempty" description:"Foods to leave out"`
}

type toolHandler func(ctx context.Context, sess *session.Session, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

func (s *Server) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"aggregate_foods":    s.handleAggregateFoods,
		"predict_deficiency": s.handlePredictDeficiency,
		"suggest_foods":      s.handleSuggestFoods,
	}
}

func (s *Server) mcp(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		writeErr(w, err)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	handler, ok := s.tools()[request.Name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tool: %s", request.Name))
		return
	}

	result, err := handler(r.Context(), sess, &request)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// extractParams converts the request arguments into target
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: %v", classifier.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) handleAggregateFoods(ctx context.Context, sess *session.Session, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params AggregateFoodsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	allergies := domain.NewAllergySet(params.Allergies)
	for name := range sess.Allergies() {
		allergies[name] = true
	}

	agg := s.Assess.Aggregator()
	var totals domain.NutrientTotals
	var notices []nutrient.Notice
	if len(params.Foods) > 0 {
		totals, notices = agg.Aggregate(params.Foods, allergies)
	} else {
		totals, notices = agg.AggregateLog(params.Log, allergies)
	}

	return createJSONResponse(map[string]interface{}{
		"totals":     totals,
		"food_score": classifier.FoodScore(totals),
		"comparison": domain.CompareToRDA(totals),
		"notices":    notices,
	})
}

func (s *Server) handlePredictDeficiency(ctx context.Context, sess *session.Session, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var in assess.Input
	if err := extractParams(req, &in); err != nil {
		return nil, err
	}

	res, err := s.Assess.Assess(ctx, sess, in)
	if err != nil {
		return nil, err
	}
	return createJSONResponse(res)
}

func (s *Server) handleSuggestFoods(ctx context.Context, sess *session.Session, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SuggestFoodsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.Label == "" {
		return nil, fmt.Errorf("%w: label is required", classifier.ErrInvalidInput)
	}

	allergies := domain.NewAllergySet(params.Allergies)
	for name := range sess.Allergies() {
		allergies[name] = true
	}

	return createJSONResponse(s.Assess.Suggestions().For(params.Label, allergies))
}

func createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
