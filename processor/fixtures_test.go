package processor

import (
	"context"
	"io"
	"time"

	lapiv2 "github.com/chainsafe/canton-middleware/pkg/canton/lapi/v2"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Ledger value and event constructors shared across the processor tests.

type recordField struct {
	label string
	value *lapiv2.Value
}

func textValue(s string) *lapiv2.Value {
	return &lapiv2.Value{Sum: &lapiv2.Value_Text{Text: s}}
}

func numericValue(s string) *lapiv2.Value {
	return &lapiv2.Value{Sum: &lapiv2.Value_Numeric{Numeric: s}}
}

func partyValue(s string) *lapiv2.Value {
	return &lapiv2.Value{Sum: &lapiv2.Value_Party{Party: s}}
}

func contractIDValue(s string) *lapiv2.Value {
	return &lapiv2.Value{Sum: &lapiv2.Value_ContractId{ContractId: s}}
}

func variantValue(constructor string) *lapiv2.Value {
	return &lapiv2.Value{Sum: &lapiv2.Value_Variant{Variant: &lapiv2.Variant{Constructor: constructor}}}
}

func recordValue(fields []recordField) *lapiv2.Value {
	r := &lapiv2.Record{}
	for _, f := range fields {
		r.Fields = append(r.Fields, &lapiv2.RecordField{Label: f.label, Value: f.value})
	}
	return &lapiv2.Value{Sum: &lapiv2.Value_Record{Record: r}}
}

func createdEvent(module, entity string, fields []recordField) *lapiv2.CreatedEvent {
	created := &lapiv2.CreatedEvent{
		TemplateId:      &lapiv2.Identifier{ModuleName: module, EntityName: entity},
		CreateArguments: &lapiv2.Record{},
	}
	for _, f := range fields {
		created.CreateArguments.Fields = append(created.CreateArguments.Fields,
			&lapiv2.RecordField{Label: f.label, Value: f.value})
	}
	return created
}

func createdEventWithCID(module, entity, cid string, fields []recordField) *lapiv2.CreatedEvent {
	created := createdEvent(module, entity, fields)
	created.ContractId = cid
	return created
}

func txResponse(offset int64, at time.Time, created ...*lapiv2.CreatedEvent) *lapiv2.GetUpdatesResponse {
	tx := &lapiv2.Transaction{
		Offset:      offset,
		EffectiveAt: timestamppb.New(at),
	}
	for _, c := range created {
		tx.Events = append(tx.Events, &lapiv2.Event{Event: &lapiv2.Event_Created{Created: c}})
	}
	return &lapiv2.GetUpdatesResponse{Update: &lapiv2.GetUpdatesResponse_Transaction{Transaction: tx}}
}

func acsResponse(created *lapiv2.CreatedEvent) *lapiv2.GetActiveContractsResponse {
	return &lapiv2.GetActiveContractsResponse{
		ContractEntry: &lapiv2.GetActiveContractsResponse_ActiveContract{
			ActiveContract: &lapiv2.ActiveContract{CreatedEvent: created},
		},
	}
}

// Fakes over the narrow ledger client interfaces. The embedded
// grpc.ClientStream is never touched; only Recv is.

type fakeUpdateStream struct {
	grpc.ClientStream
	resps    []*lapiv2.GetUpdatesResponse
	idx      int
	finalErr error // returned once resps drain; io.EOF when nil
}

func (s *fakeUpdateStream) Recv() (*lapiv2.GetUpdatesResponse, error) {
	if s.idx >= len(s.resps) {
		if s.finalErr != nil {
			return nil, s.finalErr
		}
		return nil, io.EOF
	}
	r := s.resps[s.idx]
	s.idx++
	return r, nil
}

type fakeUpdatesClient struct {
	resps    []*lapiv2.GetUpdatesResponse
	openErr  error
	finalErr error
	gotReq   *lapiv2.GetUpdatesRequest
}

func (f *fakeUpdatesClient) GetUpdates(ctx context.Context, in *lapiv2.GetUpdatesRequest, opts ...grpc.CallOption) (lapiv2.UpdateService_GetUpdatesClient, error) {
	f.gotReq = in
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeUpdateStream{resps: f.resps, finalErr: f.finalErr}, nil
}

type fakeACSStream struct {
	grpc.ClientStream
	resps    []*lapiv2.GetActiveContractsResponse
	idx      int
	finalErr error
}

func (s *fakeACSStream) Recv() (*lapiv2.GetActiveContractsResponse, error) {
	if s.idx >= len(s.resps) {
		if s.finalErr != nil {
			return nil, s.finalErr
		}
		return nil, io.EOF
	}
	r := s.resps[s.idx]
	s.idx++
	return r, nil
}

type fakeStateClient struct {
	ledgerEnd    int64
	ledgerEndErr error
	acsResps     []*lapiv2.GetActiveContractsResponse
	acsOpenErr   error
	acsFinalErr  error
	gotACSReq    *lapiv2.GetActiveContractsRequest
}

func (f *fakeStateClient) GetLedgerEnd(ctx context.Context, in *lapiv2.GetLedgerEndRequest, opts ...grpc.CallOption) (*lapiv2.GetLedgerEndResponse, error) {
	if f.ledgerEndErr != nil {
		return nil, f.ledgerEndErr
	}
	return &lapiv2.GetLedgerEndResponse{Offset: f.ledgerEnd}, nil
}

func (f *fakeStateClient) GetActiveContracts(ctx context.Context, in *lapiv2.GetActiveContractsRequest, opts ...grpc.CallOption) (lapiv2.StateService_GetActiveContractsClient, error) {
	f.gotACSReq = in
	if f.acsOpenErr != nil {
		return nil, f.acsOpenErr
	}
	return &fakeACSStream{resps: f.acsResps, finalErr: f.acsFinalErr}, nil
}
