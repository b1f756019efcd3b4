package segment

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type memStore struct {
	byID   map[uuid.UUID]Segment
	byCode map[string]Segment
	def    *Segment
}

func (m *memStore) SegmentByID(_ context.Context, id uuid.UUID) (Segment, bool, error) {
	s, ok := m.byID[id]
	return s, ok, nil
}

func (m *memStore) SegmentByCode(_ context.Context, code string) (Segment, bool, error) {
	s, ok := m.byCode[code]
	return s, ok, nil
}

func (m *memStore) DefaultSegment(_ context.Context) (Segment, bool, error) {
	if m.def == nil {
		return Segment{}, false, nil
	}
	return *m.def, true, nil
}

func TestResolveExplicitReferenceWins(t *testing.T) {
	id := uuid.New()
	store := &memStore{
		byID:   map[uuid.UUID]Segment{id: {ID: id, Code: CodeCorporate, Tier: 2}},
		byCode: map[string]Segment{CodeRetail: {Code: CodeRetail}},
	}
	seg, err := NewResolver(store).Resolve(context.Background(), &id, "individual")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if seg.Code != CodeCorporate {
		t.Fatalf("expected %s, got %s", CodeCorporate, seg.Code)
	}
}

func TestResolveAccountTypeTable(t *testing.T) {
	store := &memStore{
		byCode: map[string]Segment{CodePrintPartner: {Code: CodePrintPartner, Tier: 3}},
	}
	seg, err := NewResolver(store).Resolve(context.Background(), nil, "Print_Partner")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if seg.Code != CodePrintPartner {
		t.Fatalf("expected %s, got %s", CodePrintPartner, seg.Code)
	}
}

func TestResolveDefaultThenFallback(t *testing.T) {
	def := Segment{Code: "WHOLESALE", IsDefault: true}
	seg, err := NewResolver(&memStore{def: &def}).Resolve(context.Background(), nil, "unknown-type")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if seg.Code != "WHOLESALE" {
		t.Fatalf("expected default segment, got %s", seg.Code)
	}

	seg, err = NewResolver(&memStore{}).Resolve(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if seg.Code != CodeRetail {
		t.Fatalf("expected retail fallback, got %s", seg.Code)
	}
	if seg.PaymentTerms != "PREPAID" {
		t.Fatalf("expected prepaid fallback terms, got %s", seg.PaymentTerms)
	}
}
