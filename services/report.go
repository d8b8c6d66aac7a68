package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"recurringepics/utils"
)

var reportHeaders = []string{"Kind", "Template", "Status", "Key", "Summary", "Start Date", "End Date", "Stories", "Error"}

// WriteReportCSV は実行結果をCSVファイルに書き出します
func WriteReportCSV(path string, result *CreateResult) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "CSV作成エラー: %s", path)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "CSVクローズエラー: %s", path)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(reportRecords(result)); err != nil {
		return errors.Wrapf(err, "CSV書き込みエラー: %s", path)
	}

	utils.LogInfo("実行結果CSVを書き出しました: %s", path)
	return nil
}

// reportRecords はヘッダーを含むCSVの行を作成します
func reportRecords(result *CreateResult) [][]string {
	records := [][]string{reportHeaders}
	start, end := utils.FormatDate(result.StartDate), utils.FormatDate(result.EndDate)

	for _, c := range result.Closed {
		status := "closed"
		if !c.Closed {
			status = "not-closed"
		}
		records = append(records, []string{"close", "", status, c.Key, c.Summary, "", "", "", errString(c.Err)})
	}

	for _, o := range result.Outcomes {
		stories := make([]string, 0, len(o.Stories))
		for _, s := range o.Stories {
			if s.Key != "" {
				stories = append(stories, s.Key)
			} else if s.Err != nil {
				stories = append(stories, "ERROR")
			}
		}
		records = append(records, []string{
			"epic", o.Template, string(o.Status), o.Key, o.Summary,
			start, end, strings.Join(stories, " "), errString(o.Err),
		})
	}
	return records
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}
