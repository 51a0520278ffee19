package pipeline

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/visibility"
)

// Facet names of the statistics pipeline.
const (
	FacetTotal         = "total"
	FacetAdminOnly     = "adminOnly"
	FacetRegular       = "regular"
	FacetByCategory    = "byCategory"
	FacetByType        = "byType"
	FacetByEnvironment = "byEnvironment"
)

// StatsSpec describes one statistics request.
type StatsSpec struct {
	Policy visibility.Policy
}

// Group is one grouped count. Name is nil for documents lacking the field.
type Group struct {
	Name  any   `bson:"_id"   json:"name"`
	Count int64 `bson:"count" json:"count"`
}

// Stats is the fixed-shape statistics record.
// ByEnvironment is nil (and omitted) for non-privileged callers.
type Stats struct {
	TotalCount     int64   `json:"totalCount"`
	AdminOnlyCount int64   `json:"adminOnlyCount"`
	RegularCount   int64   `json:"regularCount"`
	ByCategory     []Group `json:"byCategory"`
	ByType         []Group `json:"byType"`
	ByEnvironment  []Group `json:"byEnvironment,omitempty"`
}

func countFacet(match bson.D) bson.A {
	out := bson.A{}
	if match != nil {
		out = append(out, bson.D{{Key: "$match", Value: match}})
	}

	return append(out, bson.D{{Key: "$count", Value: "count"}})
}

func groupFacet(field string) bson.A {
	return bson.A{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
}

// BuildStats returns the statistics pipeline: the adminOnly constraint of the
// policy, then one $facet of independent counts over the same document set.
func BuildStats(spec StatsSpec) mongo.Pipeline {
	facets := bson.D{
		{Key: FacetTotal, Value: countFacet(nil)},
		{Key: FacetAdminOnly, Value: countFacet(bson.D{{Key: models.KeyAdminOnly, Value: true}})},
		{Key: FacetRegular, Value: countFacet(bson.D{{Key: models.KeyAdminOnly, Value: bson.D{{Key: "$ne", Value: true}}}})},
		{Key: FacetByCategory, Value: groupFacet(models.KeyCategory)},
		{Key: FacetByType, Value: groupFacet(models.KeyType)},
	}

	if spec.Policy.Privileged {
		facets = append(facets, bson.E{Key: FacetByEnvironment, Value: groupFacet(models.KeyEnvironment)})
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: Filter(spec.Policy.AdminOnlyConstraint())}},
		{{Key: "$facet", Value: facets}},
	}
}
