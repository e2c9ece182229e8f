package fixes

import (
	"sort"

	"github.com/jonathan/preflight-agent/internal/types"
)

// Selection is the set of issue ids the user chose to fix.
type Selection map[string]struct{}

// NewSelection builds a selection from issue ids. Duplicates collapse.
func NewSelection(issueIDs ...string) Selection {
	s := make(Selection, len(issueIDs))
	for _, id := range issueIDs {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts an issue id.
func (s Selection) Add(issueID string) {
	s[issueID] = struct{}{}
}

// Remove deletes an issue id.
func (s Selection) Remove(issueID string) {
	delete(s, issueID)
}

// Contains reports whether the issue id is selected.
func (s Selection) Contains(issueID string) bool {
	_, ok := s[issueID]
	return ok
}

// Len returns the number of selected issues.
func (s Selection) Len() int {
	return len(s)
}

// IDs returns the selected issue ids sorted.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SelectFixable returns a selection of every auto-fixable issue.
func SelectFixable(issues []types.Issue) Selection {
	s := make(Selection)
	for _, issue := range issues {
		if issue.AutoFixable {
			s.Add(issue.ID)
		}
	}
	return s
}

// FixTypes maps the selected issues to their fix operations. The result is
// deduplicated and sorted, so it does not depend on the order of issues.
// Selected issues with no catalog entry are returned in unmapped.
func (s Selection) FixTypes(issues []types.Issue) (fixTypes []string, unmapped []types.Issue) {
	seen := make(map[string]bool)
	for _, issue := range issues {
		if !s.Contains(issue.ID) {
			continue
		}
		fix, ok := FixForIssueType(issue.Type)
		if !ok {
			unmapped = append(unmapped, issue)
			continue
		}
		if !seen[fix] {
			seen[fix] = true
			fixTypes = append(fixTypes, fix)
		}
	}
	sort.Strings(fixTypes)
	return fixTypes, unmapped
}
