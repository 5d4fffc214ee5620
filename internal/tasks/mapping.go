package tasks

import (
	"encoding/json"

	"github.com/onenotify/onenotify/pkg/repository"
)

func scanGroup(s repository.Scanner) (TaskGroup, error) {
	var g TaskGroup
	err := s.Scan(&g.NPJ, &g.NotificationDate)
	return g, err
}

func scanCount(s repository.Scanner) (int, error) {
	var n int
	err := s.Scan(&n)
	return n, err
}

func scanNPJ(s repository.Scanner) (string, error) {
	var npj string
	err := s.Scan(&npj)
	return npj, err
}

// DistinctGroups collapses per-row claim results into their distinct
// (NPJ, date) groups, preserving first-seen order.
func DistinctGroups(rows []TaskGroup) []TaskGroup {
	seen := make(map[TaskGroup]struct{}, len(rows))
	groups := make([]TaskGroup, 0, len(rows))

	for _, row := range rows {
		key := TaskGroup{NPJ: row.NPJ, NotificationDate: row.NotificationDate}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		groups = append(groups, row)
	}
	return groups
}

func marshalResult(result Result) ([]byte, []byte, error) {
	if result.DocketEntries == nil {
		result.DocketEntries = []DocketEntry{}
	}
	if result.Documents == nil {
		result.Documents = []DocumentFile{}
	}

	docket, err := json.Marshal(result.DocketEntries)
	if err != nil {
		return nil, nil, err
	}

	documents, err := json.Marshal(result.Documents)
	if err != nil {
		return nil, nil, err
	}

	return docket, documents, nil
}
