package pipeline

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/query"
	"github.com/mdr-platform/settings-service/internal/visibility"
)

// Listing defaults.
const (
	DefaultPage      = 1
	DefaultPageSize  = 50
	DefaultSortField = models.KeyName
)

// Computed listing fields.
const (
	FieldValueType      = "valueType"
	FieldHasDescription = "hasDescription"
)

// SearchFields are matched by the free text search term.
var SearchFields = []string{models.KeyName, models.KeyDescription, models.KeyCategory} //nolint:gochecknoglobals

// ListSpec describes one listing request.
type ListSpec struct {
	Policy    visibility.Policy
	Category  string
	Type      string
	Search    string
	Page      int64
	PageSize  int64
	SortField string
	SortDesc  bool
}

// WithDefaults fills page, page size and sort field.
func (s ListSpec) WithDefaults() ListSpec {
	if s.Page < 1 {
		s.Page = DefaultPage
	}

	if s.PageSize < 1 {
		s.PageSize = DefaultPageSize
	}

	if s.SortField == "" {
		s.SortField = DefaultSortField
	}

	return s
}

// Skip is the number of documents before the requested page.
func (s ListSpec) Skip() int64 {
	return query.Skip(s.Page, s.PageSize)
}

// Match is the policy constraint plus the category and type equality filters.
func (s ListSpec) Match() query.Expr {
	out := []query.Expr{s.Policy.Constraints()}

	if s.Category != "" {
		out = append(out, query.Eq(models.KeyCategory, s.Category))
	}

	if s.Type != "" {
		out = append(out, query.Eq(models.KeyType, s.Type))
	}

	return query.Conj(out...)
}

// SearchExpr matches the term in any search field; nil without a term.
func (s ListSpec) SearchExpr() query.Expr {
	if s.Search == "" {
		return nil
	}

	out := make(query.Or, 0, len(SearchFields))
	for _, f := range SearchFields {
		out = append(out, query.Contains(f, s.Search))
	}

	return out
}

// ListResult is one page of a listing.
type ListResult struct {
	Settings   []models.Setting `json:"settings"`
	Total      int64            `json:"total"`
	Page       int64            `json:"page"`
	PageSize   int64            `json:"pageSize"`
	TotalPages int64            `json:"totalPages"`
}

// NewListResult computes the page count for a window.
func NewListResult(settings []models.Setting, total int64, spec ListSpec) ListResult {
	if settings == nil {
		settings = []models.Setting{}
	}

	return ListResult{
		Settings:   settings,
		Total:      total,
		Page:       spec.Page,
		PageSize:   spec.PageSize,
		TotalPages: TotalPages(total, spec.PageSize),
	}
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total, pageSize int64) int64 {
	if pageSize < 1 {
		return 0
	}

	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}

	return pages
}

// BuildList returns the listing pipeline:
// match, optional search, computed fields, then one $facet producing the page
// and the total count from the same document set.
func BuildList(spec ListSpec) mongo.Pipeline {
	spec = spec.WithDefaults()

	p := mongo.Pipeline{
		{{Key: "$match", Value: Filter(spec.Match())}},
	}

	if search := spec.SearchExpr(); search != nil {
		p = append(p, bson.D{{Key: "$match", Value: Filter(search)}})
	}

	p = append(p, bson.D{{Key: "$addFields", Value: bson.D{
		{Key: FieldValueType, Value: bson.D{{Key: "$type", Value: "$" + models.KeyValue}}},
		{Key: FieldHasDescription, Value: bson.D{{Key: "$ne", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$" + models.KeyDescription, ""}}},
			"",
		}}}},
	}}})

	dir := 1
	if spec.SortDesc {
		dir = -1
	}

	sort := bson.D{{Key: spec.SortField, Value: dir}}
	if spec.SortField != query.IDField {
		sort = append(sort, bson.E{Key: query.IDField, Value: 1})
	}

	data := bson.A{
		bson.D{{Key: "$sort", Value: sort}},
		bson.D{{Key: "$skip", Value: spec.Skip()}},
		bson.D{{Key: "$limit", Value: spec.PageSize}},
	}

	if spec.Policy.StripsEnvironment() {
		data = append(data, bson.D{{Key: "$project", Value: bson.D{{Key: models.KeyEnvironment, Value: 0}}}})
	}

	p = append(p, bson.D{{Key: "$facet", Value: bson.D{
		{Key: "data", Value: data},
		{Key: "total", Value: bson.A{bson.D{{Key: "$count", Value: "count"}}}},
	}}})

	return p
}
