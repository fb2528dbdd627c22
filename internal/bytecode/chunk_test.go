package bytecode

import "testing"

func TestWriteOpAndByte(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpAdd, DebugInfo{Pos: 0, Len: 1})
	c.WriteByte(7, DebugInfo{Pos: 1, Len: 1})
	if len(c.Code) != 2 || OpCode(c.Code[0]) != OpAdd || c.Code[1] != 7 {
		t.Fatalf("unexpected code %v", c.Code)
	}
	if len(c.Debug) != 2 {
		t.Fatalf("debug info not kept in lockstep with code, got %d entries", len(c.Debug))
	}
}

func TestAddConstantIndices(t *testing.T) {
	c := NewChunk()
	i0 := c.AddConstant(1.5)
	i1 := c.AddConstant(-2.5)
	if i0 != 0 || i1 != 1 {
		t.Fatalf("AddConstant indices = %d, %d, want 0, 1", i0, i1)
	}
	if c.Constants[i0] != 1.5 || c.Constants[i1] != -2.5 {
		t.Fatalf("constants mismatch: %v", c.Constants)
	}
}

func TestJumpPatching(t *testing.T) {
	c := NewChunk()
	at := c.WriteJumpOperand(DebugInfo{})
	c.WriteOp(OpPushTrue, DebugInfo{})
	c.WriteOp(OpPushTrue, DebugInfo{})
	c.PatchJump(at)
	dist := int(c.Code[at])<<8 | int(c.Code[at+1])
	if dist != 2 {
		t.Errorf("patched jump distance = %d, want 2", dist)
	}
}

func TestGetDebugInfoOutOfRange(t *testing.T) {
	c := NewChunk()
	if got := c.GetDebugInfo(5); got != (DebugInfo{}) {
		t.Errorf("GetDebugInfo out of range = %+v, want zero value", got)
	}
}

func TestOpCodeString(t *testing.T) {
	if OpAdd.String() != "ADD" {
		t.Errorf("OpAdd.String() = %q, want ADD", OpAdd.String())
	}
	if OpCode(250).String() != "OP_UNKNOWN" {
		t.Errorf("unknown opcode String() = %q, want OP_UNKNOWN", OpCode(250).String())
	}
}
