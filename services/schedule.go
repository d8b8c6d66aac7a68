package services

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	"recurringepics/utils"
)

// cronParser は5フィールドのcron式 (分 時 日 月 曜日) を解析します
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ScheduledRun は次回以降の実行予定と、その時に作成されるエピックの対象月です
type ScheduledRun struct {
	At        time.Time
	Year      int
	Month     time.Month
	Suffix    string
	StartDate time.Time
	EndDate   time.Time
}

// NextRuns はcron式から from 以降の実行予定を n 件計算します
func NextRuns(expr string, from time.Time, n int) ([]ScheduledRun, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "cron式の解析エラー %q", expr)
	}

	runs := make([]ScheduledRun, 0, n)
	next := from
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		if next.IsZero() {
			break
		}
		year, month := next.Year(), next.Month()
		runs = append(runs, ScheduledRun{
			At:        next,
			Year:      year,
			Month:     month,
			Suffix:    utils.MonthSuffix(year, month),
			StartDate: utils.FirstWorkingDay(year, month),
			EndDate:   utils.LastWorkingDay(year, month),
		})
	}
	return runs, nil
}
