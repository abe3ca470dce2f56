package flowgraph

import (
	"errors"
	"testing"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/rules"
)

func messageNode(id, text string) models.FlowNode {
	return models.FlowNode{ID: id, Type: models.NodeSendMessage, Data: map[string]any{"text": text}}
}

func TestCompileValidGraph(t *testing.T) {
	def := models.FlowDefinition{
		StartNodeID: "n1",
		Nodes: []models.FlowNode{
			messageNode("n1", "Welcome"),
			{ID: "n2", Type: models.NodeAskQuestion, Data: map[string]any{"question": "Your city?", "variable_name": "city"}},
			{ID: "n3", Type: models.NodeEnd},
		},
		Edges: []models.FlowEdge{
			{Source: "n1", Target: "n2"},
			{Source: "n2", Target: "n3"},
		},
	}
	g, err := Compile(def, nil)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	node, ok := g.Node("n2")
	if !ok {
		t.Fatal("expected node n2 present")
	}
	cfg, ok := node.Config.(AskQuestionConfig)
	if !ok {
		t.Fatalf("expected AskQuestionConfig, got %T", node.Config)
	}
	if cfg.VariableName != "city" {
		t.Errorf("expected variable name city, got %q", cfg.VariableName)
	}
}

func TestCompileAcceptsCamelCaseKeys(t *testing.T) {
	def := models.FlowDefinition{
		StartNodeID: "q",
		Nodes: []models.FlowNode{
			{ID: "q", Type: models.NodeAskQuestion, Data: map[string]any{"question": "Your city?", "variableName": "city", "inputType": "text"}},
			{ID: "s", Type: models.NodeSetVariable, Data: map[string]any{"variableName": "stage", "value": "asked"}},
		},
	}
	g, err := Compile(def, nil)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	node, _ := g.Node("q")
	ask, ok := node.Config.(AskQuestionConfig)
	if !ok {
		t.Fatalf("expected AskQuestionConfig, got %T", node.Config)
	}
	if ask.VariableName != "city" {
		t.Errorf("expected camelCase variableName decoded, got %q", ask.VariableName)
	}
	if ask.InputType != "text" {
		t.Errorf("expected camelCase inputType decoded, got %q", ask.InputType)
	}
	node, _ = g.Node("s")
	set, ok := node.Config.(SetVariableConfig)
	if !ok {
		t.Fatalf("expected SetVariableConfig, got %T", node.Config)
	}
	if set.Name != "stage" {
		t.Errorf("expected camelCase set-variable name decoded, got %q", set.Name)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		def     models.FlowDefinition
		wantErr error
	}{
		{
			"no nodes",
			models.FlowDefinition{StartNodeID: "n1"},
			ErrNoNodes,
		},
		{
			"missing start node",
			models.FlowDefinition{StartNodeID: "nope", Nodes: []models.FlowNode{messageNode("n1", "hi")}},
			ErrMissingStartNode,
		},
		{
			"duplicate node id",
			models.FlowDefinition{StartNodeID: "n1", Nodes: []models.FlowNode{messageNode("n1", "a"), messageNode("n1", "b")}},
			ErrDuplicateNodeID,
		},
		{
			"dangling edge",
			models.FlowDefinition{
				StartNodeID: "n1",
				Nodes:       []models.FlowNode{messageNode("n1", "a")},
				Edges:       []models.FlowEdge{{Source: "n1", Target: "ghost"}},
			},
			ErrDanglingEdge,
		},
		{
			"unsupported node type rejected at load",
			models.FlowDefinition{
				StartNodeID: "n1",
				Nodes: []models.FlowNode{
					messageNode("n1", "a"),
					{ID: "n2", Type: models.NodeHTTPRequest, Data: map[string]any{"url": "https://example.com"}},
				},
			},
			ErrUnsupportedNodeType,
		},
		{
			"missing required field",
			models.FlowDefinition{
				StartNodeID: "n1",
				Nodes:       []models.FlowNode{{ID: "n1", Type: models.NodeSendMessage}},
			},
			ErrInvalidNodeData,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.def, nil)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestResolveNext(t *testing.T) {
	def := models.FlowDefinition{
		StartNodeID: "q",
		Nodes: []models.FlowNode{
			{ID: "q", Type: models.NodeAskQuestion, Data: map[string]any{"question": "Plan?", "variable_name": "plan"}},
			messageNode("pro", "Pro it is"),
			messageNode("basic", "Basic it is"),
			messageNode("other", "Let me check"),
		},
		Edges: []models.FlowEdge{
			{Source: "q", Target: "pro", Condition: `plan == "pro"`},
			{Source: "q", Target: "basic", Condition: `plan == "basic"`},
			{Source: "q", Target: "other"},
		},
	}
	g, err := Compile(def, nil)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	tests := []struct {
		name string
		env  Env
		want string
	}{
		{"first satisfied condition", Env{Variables: map[string]any{"plan": "pro"}}, "pro"},
		{"second condition", Env{Variables: map[string]any{"plan": "basic"}}, "basic"},
		{"case-insensitive comparison", Env{Variables: map[string]any{"plan": "PRO"}}, "pro"},
		{"raw text fallback when variable absent", Env{RawText: "pro"}, "pro"},
		{"unconditioned fallback", Env{Variables: map[string]any{"plan": "enterprise"}}, "other"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := g.ResolveNext("q", tc.env)
			if !ok || got != tc.want {
				t.Errorf("ResolveNext() = %q/%v, want %q", got, ok, tc.want)
			}
		})
	}

	// Zero outgoing edges means the flow ends.
	if _, ok := g.ResolveNext("pro", Env{}); ok {
		t.Error("expected no next node after a terminal node")
	}
}

func TestResolveNextSingleEdgeIsUnconditional(t *testing.T) {
	def := models.FlowDefinition{
		StartNodeID: "a",
		Nodes:       []models.FlowNode{messageNode("a", "1"), messageNode("b", "2")},
		Edges:       []models.FlowEdge{{Source: "a", Target: "b", Condition: `never == "matches"`}},
	}
	g, err := Compile(def, nil)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	got, ok := g.ResolveNext("a", Env{Variables: map[string]any{}})
	if !ok || got != "b" {
		t.Errorf("single edge should be taken unconditionally, got %q/%v", got, ok)
	}
}

func TestConditionGrammar(t *testing.T) {
	tests := []struct {
		cond string
		env  Env
		want bool
	}{
		{`city != "pune"`, Env{Variables: map[string]any{"city": "mumbai"}}, true},
		{`city != "pune"`, Env{Variables: map[string]any{"city": "Pune"}}, false},
		{`note contains "urgent"`, Env{Variables: map[string]any{"note": "This is URGENT please"}}, true},
		{`note contains "urgent"`, Env{Variables: map[string]any{"note": "all fine"}}, false},
		{`count == 3`, Env{Variables: map[string]any{"count": 3}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.cond, func(t *testing.T) {
			c := ParseCondition(tc.cond, nil)
			if got := c.Evaluate(tc.env); got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestConditionExprFallback(t *testing.T) {
	ev := rules.NewExprEvaluator()
	c := ParseCondition(`len(city) > 3 && city != "pune"`, ev)
	env := Env{Variables: map[string]any{"city": "mumbai"}, Evaluator: ev}
	if !c.Evaluate(env) {
		t.Error("expected extended expression to evaluate true")
	}
	env.Variables["city"] = "goa"
	if c.Evaluate(env) {
		t.Error("expected extended expression to evaluate false")
	}
}

func TestMalformedConditionNeverTrue(t *testing.T) {
	c := ParseCondition("%%% not a condition %%%", nil)
	if c.Evaluate(Env{Variables: map[string]any{"x": "y"}, RawText: "anything"}) {
		t.Error("malformed condition must never be satisfied")
	}
}
