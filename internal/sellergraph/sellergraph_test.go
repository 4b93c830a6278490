package sellergraph

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// makeNodeRecord builds a *neo4j.Record carrying a single "n" node value,
// mirroring the shape RETURN n queries actually produce.
func makeNodeRecord(props map[string]any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"n"},
		Values: []any{dbtype.Node{Props: props}},
	}
}

func TestRelatedItemFromRecordDecodesNodeProps(t *testing.T) {
	rec := makeNodeRecord(map[string]any{
		"id":          "item-1",
		"marketplace": "mercari",
		"name":        "vintage camera",
		"gallery_id":  "g1",
	})

	item, err := relatedItemFromRecord(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ItemID != "item-1" || item.Marketplace != "mercari" || item.Name != "vintage camera" || item.GalleryID != "g1" {
		t.Fatalf("unexpected decoded item: %+v", item)
	}
}

func TestRelatedItemFromRecordMissingPropsDefaultToEmpty(t *testing.T) {
	rec := makeNodeRecord(map[string]any{"id": "item-2"})

	item, err := relatedItemFromRecord(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ItemID != "item-2" || item.Name != "" || item.Marketplace != "" {
		t.Fatalf("expected missing props to decode as empty strings, got %+v", item)
	}
}

func TestRelatedItemFromRecordMissingNodeKeyIsError(t *testing.T) {
	rec := &neo4j.Record{Keys: []string{"other"}, Values: []any{"not a node"}}

	if _, err := relatedItemFromRecord(rec); err == nil {
		t.Fatal("expected an error when the record has no \"n\" key")
	}
}

func TestRelatedItemFromRecordWrongValueTypeIsError(t *testing.T) {
	rec := &neo4j.Record{Keys: []string{"n"}, Values: []any{"not a node"}}

	if _, err := relatedItemFromRecord(rec); err == nil {
		t.Fatal("expected an error when the \"n\" value isn't a dbtype.Node")
	}
}

func TestRelatedItemToMapRoundTripsAllFields(t *testing.T) {
	item := RelatedItem{ItemID: "i1", Marketplace: "mercari", Name: "lens", GalleryID: "g1"}
	m := relatedItemToMap(item)

	if m["id"] != "i1" || m["marketplace"] != "mercari" || m["name"] != "lens" || m["gallery_id"] != "g1" {
		t.Fatalf("unexpected map: %+v", m)
	}
}
