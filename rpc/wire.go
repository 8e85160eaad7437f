package rpc

import (
	"context"

	"go.uber.org/zap"

	"github.com/golemcloud/golem-cloud-cli/canon"
)

// Transport moves one encoded request to the callee and returns the encoded
// response. It is the only piece a platform needs to supply to use
// WireInvoker.
type Transport interface {
	RoundTrip(ctx context.Context, function string, request []byte) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, function string, request []byte) ([]byte, error)

func (f TransportFunc) RoundTrip(ctx context.Context, function string, request []byte) ([]byte, error) {
	return f(ctx, function, request)
}

// Wire format: the request is the argument list marshalled as a tuple. The
// response is a result whose ok payload is the return value (absent for unit
// functions) and whose err payload is a string describing a remote failure.

// EncodeRequest marshals an argument list.
func EncodeRequest(args []canon.Value) []byte {
	return canon.Marshal(canon.Tuple(args...))
}

// DecodeRequest unmarshals an argument list produced by EncodeRequest.
func DecodeRequest(data []byte) ([]canon.Value, error) {
	v, err := canon.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if v.Kind() != canon.KindTuple {
		return nil, &InvocationFailure{Kind: FailureProtocol, Message: "request is not an argument tuple"}
	}
	return v.Elems(), nil
}

// EncodeResponse marshals the outcome of a call. A non-nil err is sent as
// a remote failure.
func EncodeResponse(result canon.Value, hasResult bool, err error) []byte {
	switch {
	case err != nil:
		return canon.Marshal(canon.Err(canon.String(err.Error())))
	case hasResult:
		return canon.Marshal(canon.Ok(result))
	}
	return canon.Marshal(canon.Ok())
}

// DecodeResponse unmarshals a response for function.
func DecodeResponse(function string, data []byte) (canon.Value, error) {
	v, err := canon.Unmarshal(data)
	if err != nil {
		return canon.Value{}, &InvocationFailure{Function: function, Kind: FailureProtocol, Cause: err}
	}
	if v.Kind() != canon.KindResult {
		return canon.Value{}, &InvocationFailure{Function: function, Kind: FailureProtocol,
			Message: "response is not a result, got " + v.Kind().String()}
	}
	payload, has := v.Payload()
	if v.IsErr() {
		msg := "remote call failed"
		if has && payload.Kind() == canon.KindString {
			msg = payload.Str()
		}
		return canon.Value{}, &InvocationFailure{Function: function, Kind: FailureRemote, Message: msg}
	}
	if !has {
		return canon.Value{}, nil
	}
	return payload, nil
}

// WireInvoker implements Invoker on top of a byte Transport.
type WireInvoker struct {
	transport Transport
}

// NewWireInvoker creates an invoker that encodes calls for t.
func NewWireInvoker(t Transport) *WireInvoker {
	return &WireInvoker{transport: t}
}

func (w *WireInvoker) Invoke(ctx context.Context, function string, args []canon.Value) (canon.Value, error) {
	req := EncodeRequest(args)
	Logger().Debug("invoke",
		zap.String("function", function),
		zap.Int("args", len(args)),
		zap.Int("bytes", len(req)))

	resp, err := w.transport.RoundTrip(ctx, function, req)
	if err != nil {
		return canon.Value{}, AsFailure(function, err)
	}
	return DecodeResponse(function, resp)
}

// Serve adapts an Invoker into a Transport, decoding requests and encoding
// responses. It lets a local implementation stand behind a WireInvoker.
func Serve(inv Invoker) Transport {
	return TransportFunc(func(ctx context.Context, function string, request []byte) ([]byte, error) {
		args, err := DecodeRequest(request)
		if err != nil {
			return nil, err
		}
		result, err := inv.Invoke(ctx, function, args)
		return EncodeResponse(result, true, err), nil
	})
}
