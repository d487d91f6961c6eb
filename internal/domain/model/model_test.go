package model_test

import (
	"sort"
	"testing"

	"github.com/okian/combatpower/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestScoreEntryOrdering(t *testing.T) {
	convey.Convey("Given unsorted ranking entries", t, func() {
		entries := []model.ScoreEntry{
			{ID: 3, Score: 200000},
			{ID: 1, Score: 150000},
			{ID: 2, Score: 200000},
			{ID: 4, Score: 320000},
		}

		convey.Convey("When sorted with RanksBefore", func() {
			sort.Slice(entries, func(i, j int) bool { return entries[i].RanksBefore(entries[j]) })

			convey.Convey("Then higher scores lead and ties fall back to the older id", func() {
				ids := []int64{}
				for _, e := range entries {
					ids = append(ids, e.ID)
				}
				convey.So(ids, convey.ShouldResemble, []int64{4, 2, 3, 1})
			})
		})
	})
}
