package rpc

import (
	"github.com/golemcloud/golem-cloud-cli/canon"
)

// ErrorResult maps f into the error case of a result<Ok, Err> shape. Stubs
// return it in place of a trap when the callee declares an error channel.
func ErrorResult(result *canon.Shape, f *InvocationFailure) canon.Value {
	if result.Err == nil {
		return canon.Err()
	}
	return canon.Err(FailurePayload(result.Err, f))
}

// FailurePayload builds a value of shape s that describes f:
//
//	string   the failure message
//	enum     the first case
//	variant  the first case with a string payload carrying the message,
//	         else the first case with a zero payload
//	record   zero fields with the first string field set to the message
//	other    the zero value
func FailurePayload(s *canon.Shape, f *InvocationFailure) canon.Value {
	msg := f.Error()
	switch s.Kind {
	case canon.KindString:
		return canon.String(msg)
	case canon.KindEnum:
		return canon.Enum(0)
	case canon.KindVariant:
		for i, c := range s.Cases {
			if c.Shape != nil && c.Shape.Kind == canon.KindString {
				return canon.Variant(uint32(i), canon.String(msg))
			}
		}
		if c := s.Cases[0]; c.Shape != nil {
			return canon.Variant(0, canon.Zero(c.Shape))
		}
		return canon.Variant(0)
	case canon.KindRecord:
		fields := make([]canon.Value, len(s.Fields))
		set := false
		for i, fld := range s.Fields {
			if !set && fld.Shape.Kind == canon.KindString {
				fields[i] = canon.String(msg)
				set = true
				continue
			}
			fields[i] = canon.Zero(fld.Shape)
		}
		return canon.Record(fields...)
	}
	return canon.Zero(s)
}

// HasErrorChannel reports whether a function returning result can report
// failures as values.
func HasErrorChannel(result *canon.Shape) bool {
	return result != nil && result.Kind == canon.KindResult
}
