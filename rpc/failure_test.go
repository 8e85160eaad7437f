package rpc

import (
	"testing"

	"github.com/golemcloud/golem-cloud-cli/canon"
)

func TestFailurePayload(t *testing.T) {
	f := &InvocationFailure{Function: "calc.div", Kind: FailureRemote, Message: "division by zero"}
	msg := "invoke calc.div: division by zero"
	str := canon.Primitive(canon.KindString)
	u32 := canon.Primitive(canon.KindU32)

	tests := []struct {
		name  string
		shape *canon.Shape
		want  canon.Value
	}{
		{"string", str, canon.String(msg)},
		{"enum", &canon.Shape{Kind: canon.KindEnum, Name: "code", Names: []string{"a", "b"}}, canon.Enum(0)},
		{"variant with string case", &canon.Shape{Kind: canon.KindVariant, Name: "e", Cases: []canon.ShapeCase{
			{Name: "code", Shape: u32}, {Name: "text", Shape: str},
		}}, canon.Variant(1, canon.String(msg))},
		{"variant without string case", &canon.Shape{Kind: canon.KindVariant, Name: "e", Cases: []canon.ShapeCase{
			{Name: "code", Shape: u32}, {Name: "none"},
		}}, canon.Variant(0, canon.U32(0))},
		{"record", &canon.Shape{Kind: canon.KindRecord, Name: "r", Fields: []canon.ShapeField{
			{Name: "code", Shape: u32}, {Name: "text", Shape: str}, {Name: "extra", Shape: str},
		}}, canon.Record(canon.U32(0), canon.String(msg), canon.String(""))},
		{"other", u32, canon.U32(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FailurePayload(tt.shape, f)
			if !got.Equal(tt.want) {
				t.Errorf("FailurePayload = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorResult(t *testing.T) {
	f := &InvocationFailure{Function: "svc.ping", Kind: FailureTransport, Message: "down"}

	unit := &canon.Shape{Kind: canon.KindResult, ID: -1}
	if got := ErrorResult(unit, f); !got.Equal(canon.Err()) {
		t.Errorf("ErrorResult(result) = %v, want err", got)
	}
	withErr := &canon.Shape{Kind: canon.KindResult, ID: -1, Err: canon.Primitive(canon.KindString)}
	want := canon.Err(canon.String("invoke svc.ping: down"))
	if got := ErrorResult(withErr, f); !got.Equal(want) {
		t.Errorf("ErrorResult = %v, want %v", got, want)
	}
}

func TestHasErrorChannel(t *testing.T) {
	tests := []struct {
		name  string
		shape *canon.Shape
		want  bool
	}{
		{"unit", nil, false},
		{"s32", canon.Primitive(canon.KindS32), false},
		{"result", &canon.Shape{Kind: canon.KindResult, ID: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasErrorChannel(tt.shape); got != tt.want {
				t.Errorf("HasErrorChannel = %v, want %v", got, tt.want)
			}
		})
	}
}
