package sluggable

import (
	"context"

	"github.com/dalemusser/tourdesk/internal/app/system/listquery"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Filter is the conjunction of list constraints. Zero values are ignored.
type Filter struct {
	// Status matches exactly. Public read paths set it to the visible status
	// and never take it from the caller.
	Status   string
	Featured *bool
	Search   string
	// SearchFields are the BSON fields Search is matched against.
	SearchFields []string
	// Equals matches each BSON field to its value; array fields match when
	// any element equals the value.
	Equals map[string]string
}

// BSON renders f as a MongoDB filter.
func (f Filter) BSON() bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Featured != nil {
		q["featured"] = *f.Featured
	}
	for field, v := range f.Equals {
		if v != "" {
			q[field] = v
		}
	}
	if sf := listquery.SearchFilter(f.Search, f.SearchFields...); sf != nil {
		q["$or"] = sf["$or"]
	}
	return q
}

// Stats summarizes a collection for the back-office dashboard.
type Stats struct {
	Total      int64            `json:"total"`
	Featured   int64            `json:"featured"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByCategory map[string]int64 `json:"byCategory,omitempty"`
	ByRegion   map[string]int64 `json:"byRegion,omitempty"`
	TotalViews int64            `json:"totalViews"`
}

// StatsOptions selects the optional groupings of Stats.
type StatsOptions struct {
	CategoryField string
	RegionField   string
	Views         bool
}

// Stats computes counts by status (and optionally category and region),
// the featured count and the sum of views.
func (s *Collection[T]) Stats(ctx context.Context, opts StatsOptions) (Stats, error) {
	var st Stats
	var err error

	if st.Total, err = s.Count(ctx, nil); err != nil {
		return Stats{}, err
	}
	if st.Featured, err = s.Count(ctx, bson.M{"featured": true}); err != nil {
		return Stats{}, err
	}
	if st.ByStatus, err = s.CountBy(ctx, "status"); err != nil {
		return Stats{}, err
	}
	if opts.CategoryField != "" {
		if st.ByCategory, err = s.CountBy(ctx, opts.CategoryField); err != nil {
			return Stats{}, err
		}
	}
	if opts.RegionField != "" {
		if st.ByRegion, err = s.CountBy(ctx, opts.RegionField); err != nil {
			return Stats{}, err
		}
	}
	if opts.Views {
		if st.TotalViews, err = s.sumViews(ctx); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}

func (s *Collection[T]) sumViews(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "views": bson.M{"$sum": "$views"}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		Views int64 `bson:"views"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Views, nil
}
