package exprparser

import (
	"testing"

	"framexpr/internal/bytecode"
	"framexpr/internal/model"
)

func buildScope(t *testing.T) (*model.Graph, []*model.Aspect, *model.Aspect) {
	t.Helper()
	g := model.NewGraph()
	f := g.AddFunction(&model.Function{Name: "F"})
	b := &model.Aspect{Name: "B", Text: "1"}
	self := &model.Aspect{Name: "A", Text: ""}
	if _, err := g.AddCoupling(&model.Coupling{From: f, To: f, ToConnector: model.ConnI, Aspects: []*model.Aspect{b, self}}); err != nil {
		t.Fatalf("AddCoupling: %v", err)
	}
	scope := g.Scope(f)
	return g, scope, self
}

func TestCompileSimpleArithmeticIsStatic(t *testing.T) {
	g, scope, self := buildScope(t)
	chunk, err := Compile(g, scope, self, "1 + 2*3", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !chunk.IsStatic {
		t.Error("pure arithmetic expression should be static")
	}
	if len(chunk.Code) == 0 {
		t.Error("expected emitted code")
	}
}

func TestCompileTernaryEncoding(t *testing.T) {
	g, scope, self := buildScope(t)
	chunk, err := Compile(g, scope, self, "1 > 2 ? 3 : 4", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	foundJumpIfFalse, foundJump, foundPopFalse := false, false, false
	for _, b := range chunk.Code {
		switch bytecode.OpCode(b) {
		case bytecode.OpJumpIfFalse:
			foundJumpIfFalse = true
		case bytecode.OpJump:
			foundJump = true
		case bytecode.OpPopFalse:
			foundPopFalse = true
		}
	}
	if !foundJumpIfFalse || !foundJump || !foundPopFalse {
		t.Errorf("ternary did not emit the expected jump triple: %v", chunk.Code)
	}
}

func TestCompileUnknownAspectFails(t *testing.T) {
	g, scope, self := buildScope(t)
	if _, err := Compile(g, scope, self, "[Nonexistent]", nil); err == nil {
		t.Fatal("expected Unknown aspect error")
	}
}

func TestCompileKnownAspectMarksDynamicWhenUnknownStatic(t *testing.T) {
	g, scope, self := buildScope(t)
	chunk, err := Compile(g, scope, self, "[B] + 1", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if chunk.IsStatic {
		t.Error("a variable reference with no staticOf lookup should conservatively mark dynamic")
	}
}

func TestCompileSelfReferenceRequiresNegativeOffset(t *testing.T) {
	g, scope, self := buildScope(t)
	if _, err := Compile(g, scope, self, "[@t-1] + 1", nil); err != nil {
		t.Fatalf("valid self-reference should compile: %v", err)
	}
	if _, err := Compile(g, scope, self, "[@t+1] + 1", nil); err == nil {
		t.Fatal("forward self-reference should fail to compile")
	}
}

func TestCompileReplaceUndefinedOperator(t *testing.T) {
	g, scope, self := buildScope(t)
	chunk, err := Compile(g, scope, self, "[B] | 42", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	found := false
	for _, b := range chunk.Code {
		if bytecode.OpCode(b) == bytecode.OpReplaceUndefined {
			found = true
		}
	}
	if !found {
		t.Error("expected REPLACE_UNDEFINED opcode")
	}
}

func TestCompileStatisticReference(t *testing.T) {
	g, scope, self := buildScope(t)
	chunk, err := Compile(g, scope, self, "[MAXNZ$?]", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(chunk.VarRefs) != 1 || chunk.VarRefs[0].Kind != bytecode.RefStatistic {
		t.Fatalf("expected one statistic VarRef, got %+v", chunk.VarRefs)
	}
	if chunk.VarRefs[0].Statistic != "MAXNZ" {
		t.Errorf("Statistic = %q, want MAXNZ", chunk.VarRefs[0].Statistic)
	}
}

func TestCompileUnmatchedParen(t *testing.T) {
	g, scope, self := buildScope(t)
	if _, err := Compile(g, scope, self, "(1 + 2", nil); err == nil {
		t.Fatal("expected Missing ')' error")
	}
	if _, err := Compile(g, scope, self, "1 + 2)", nil); err == nil {
		t.Fatal("expected Unmatched ')' error")
	}
}

func TestCompileReducingMonadicOverConcat(t *testing.T) {
	g, scope, self := buildScope(t)
	chunk, err := Compile(g, scope, self, "min 3;7;2", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	concatCount := 0
	minCount := 0
	for _, b := range chunk.Code {
		switch bytecode.OpCode(b) {
		case bytecode.OpConcat:
			concatCount++
		case bytecode.OpMin:
			minCount++
		}
	}
	if concatCount != 2 || minCount != 1 {
		t.Errorf("min 3;7;2 emitted %d CONCAT and %d MIN, want 2 and 1", concatCount, minCount)
	}
}

func TestCompileReservedSymbolsMarkDynamic(t *testing.T) {
	g, scope, self := buildScope(t)
	chunk, err := Compile(g, scope, self, "t + 1", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if chunk.IsStatic {
		t.Error("an expression referencing t should not be static")
	}
}

func TestCacheReturnsIdenticalChunkForIdenticalKey(t *testing.T) {
	g, scope, self := buildScope(t)
	cache := NewCache()
	c1, err := CompileCached(cache, g, scope, self, "1+1", nil)
	if err != nil {
		t.Fatalf("CompileCached: %v", err)
	}
	c2, err := CompileCached(cache, g, scope, self, "1+1", nil)
	if err != nil {
		t.Fatalf("CompileCached: %v", err)
	}
	if c1 != c2 {
		t.Error("identical text+scope should hit the cache and return the same *Chunk")
	}
}
