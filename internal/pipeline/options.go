package pipeline

import (
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collation orders strings by locale with numeric awareness ("JOB_2" < "JOB_10").
func Collation() *options.Collation {
	return &options.Collation{Locale: "en_US", NumericOrdering: true}
}

// AggregateOptions lets sort and group stages spill to disk.
func AggregateOptions() *options.AggregateOptions {
	return options.Aggregate().SetAllowDiskUse(true).SetCollation(Collation())
}
