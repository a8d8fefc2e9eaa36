package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/image"
)

// InspectionServiceName is the fully-qualified name of the inspection service.
const InspectionServiceName = "garnet.v1.InspectionService"

// Procedure paths served by InspectService.
const (
	ListClassesProcedure   = "/" + InspectionServiceName + "/ListClasses"
	GetClassProcedure      = "/" + InspectionServiceName + "/GetClass"
	ListSymbolsProcedure   = "/" + InspectionServiceName + "/ListSymbols"
	SendProcedure          = "/" + InspectionServiceName + "/Send"
	SnapshotProcedure      = "/" + InspectionServiceName + "/Snapshot"
	SaveSnapshotProcedure  = "/" + InspectionServiceName + "/SaveSnapshot"
	ListSnapshotsProcedure = "/" + InspectionServiceName + "/ListSnapshots"
)

// InspectService exposes a read-mostly view of a running VM.
type InspectService struct {
	worker *VMWorker
	store  *image.Store
}

// NewInspectService creates an InspectService. store may be nil, in which
// case the snapshot store procedures fail with FailedPrecondition.
func NewInspectService(worker *VMWorker, store *image.Store) *InspectService {
	return &InspectService{worker: worker, store: store}
}

// ListClasses returns every named class and module, sorted by name.
func (s *InspectService) ListClasses(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.ListValue], error) {
	result, err := s.worker.Do(ctx, func(v *vm.VM) (any, error) {
		return v.Describe(), nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	snap := result.(*vm.Snapshot)

	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(snap.Classes))}
	for i := range snap.Classes {
		list.Values = append(list.Values, structpb.NewStructValue(classToStruct(&snap.Classes[i])))
	}
	return connect.NewResponse(list), nil
}

// GetClass describes a single class by qualified name.
func (s *InspectService) GetClass(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	name := req.Msg.GetValue()
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("name is required"))
	}

	result, err := s.worker.Do(ctx, func(v *vm.VM) (any, error) {
		info, ok := v.DescribeClass(name)
		if !ok {
			return nil, nil
		}
		return info, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if result == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("class %q not found", name))
	}
	return connect.NewResponse(classToStruct(result.(*vm.ClassInfo))), nil
}

// ListSymbols returns every interned symbol, sorted.
func (s *InspectService) ListSymbols(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.ListValue], error) {
	result, err := s.worker.Do(ctx, func(v *vm.VM) (any, error) {
		return v.Describe().Symbols, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(stringList(result.([]string))), nil
}

// Send dispatches a message and returns the inspected result.
//
// The request carries "receiver" (a constant path, or "main" for the top
// self), "method", and an optional "args" list of scalars.
func (s *InspectService) Send(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	method := fields["method"].GetStringValue()
	if method == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("method is required"))
	}
	receiver := fields["receiver"].GetStringValue()
	rawArgs := fields["args"].GetListValue().GetValues()

	type sendResult struct {
		inspect string
		class   string
	}

	result, err := s.worker.Do(ctx, func(v *vm.VM) (any, error) {
		recv, err := resolveReceiver(v, receiver)
		if err != nil {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		args := make([]vm.Value, len(rawArgs))
		for i, a := range rawArgs {
			args[i] = fromProto(v, a)
		}

		// Compiled call sites register their selectors as method_missing
		// candidates; do the same for remote sends.
		v.InstallMethodMissing(v.BasicObjectClass, method)

		out, err := v.Run(func() (vm.Value, error) {
			return v.Send(recv, method, args...)
		})
		if err != nil {
			return nil, err
		}
		return sendResult{inspect: v.Inspect(out), class: v.RealClassOf(out).Path()}, nil
	})
	if err != nil {
		return nil, sendError(err)
	}

	res := result.(sendResult)
	out, err := structpb.NewStruct(map[string]any{
		"result": res.inspect,
		"class":  res.class,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// Snapshot returns the VM's current image bytes.
func (s *InspectService) Snapshot(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.BytesValue], error) {
	snap, err := s.describe(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	data, err := image.Marshal(snap)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(wrapperspb.Bytes(data)), nil
}

// SaveSnapshot stores the VM's current snapshot under a label.
func (s *InspectService) SaveSnapshot(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no snapshot store configured"))
	}
	label := req.Msg.GetValue()
	if label == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("label is required"))
	}

	snap, err := s.describe(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if err := s.store.Put(ctx, label, snap); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	digest, err := image.Digest(snap)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"label":   label,
		"digest":  hex.EncodeToString(digest[:]),
		"classes": len(snap.Classes),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// ListSnapshots lists stored snapshots, newest first.
func (s *InspectService) ListSnapshots(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.ListValue], error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("no snapshot store configured"))
	}
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	list := &structpb.ListValue{}
	for _, e := range entries {
		list.Values = append(list.Values, structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				"label":      structpb.NewStringValue(e.Label),
				"created_at": structpb.NewStringValue(e.CreatedAt.UTC().Format(time.RFC3339Nano)),
				"size":       structpb.NewNumberValue(float64(e.Size)),
			},
		}))
	}
	return connect.NewResponse(list), nil
}

func (s *InspectService) describe(ctx context.Context) (*vm.Snapshot, error) {
	result, err := s.worker.Do(ctx, func(v *vm.VM) (any, error) {
		return v.Describe(), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*vm.Snapshot), nil
}

// ---------------------------------------------------------------------------
// Conversion helpers
// ---------------------------------------------------------------------------

// resolveReceiver maps "main" or "" to the top self and anything else to a
// constant path such as "Outer::Inner".
func resolveReceiver(v *vm.VM, path string) (vm.Value, error) {
	if path == "" || path == "main" {
		return v.TopSelf, nil
	}
	return v.ConstGetPath(path)
}

func fromProto(v *vm.VM, p *structpb.Value) vm.Value {
	switch k := p.GetKind().(type) {
	case *structpb.Value_StringValue:
		return v.String(k.StringValue)
	case *structpb.Value_NumberValue:
		return v.Number(k.NumberValue)
	case *structpb.Value_BoolValue:
		return v.Bool(k.BoolValue)
	case *structpb.Value_ListValue:
		elems := make([]vm.Value, len(k.ListValue.GetValues()))
		for i, e := range k.ListValue.GetValues() {
			elems[i] = fromProto(v, e)
		}
		return v.Array(elems...)
	default:
		return v.Nil
	}
}

// sendError maps a dispatch failure to a connect code. Hosted exceptions
// become FailedPrecondition.
func sendError(err error) error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}
	var ex *vm.Exception
	if errors.As(err, &ex) {
		return connect.NewError(connect.CodeFailedPrecondition, ex)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func classToStruct(info *vm.ClassInfo) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"name":      structpb.NewStringValue(info.Name),
		"kind":      structpb.NewStringValue(info.Kind),
		"ancestors": structpb.NewListValue(stringList(info.Ancestors)),
		"methods":   structpb.NewListValue(stringList(info.Methods)),
		"constants": structpb.NewListValue(stringList(info.Constants)),
		"includes":  structpb.NewListValue(stringList(info.Includes)),
	}
	if info.Superclass != "" {
		fields["superclass"] = structpb.NewStringValue(info.Superclass)
	}
	return &structpb.Struct{Fields: fields}
}

func stringList(ss []string) *structpb.ListValue {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(ss))}
	for i, s := range ss {
		list.Values[i] = structpb.NewStringValue(s)
	}
	return list
}
