package applier

import (
	"fmt"
	"sort"
	"strings"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
)

// operationStats tracks the results of all the operations of one type.
type operationStats struct {
	// errCount tracks the number of operations which returned an error
	errCount uint64
	// resultByStatus tracks the number of operations by result status.
	// Possible values: Succeeded, Failed, Skipped, Progressing.
	resultByStatus map[v1alpha1.ResultStatus]uint64
}

func (s operationStats) string(op v1alpha1.OperationType) string {
	var strs []string
	if s.errCount > 0 {
		strs = append(strs, fmt.Sprintf("%s including an error: %d", op, s.errCount))
	}
	var keys []string
	for k := range s.resultByStatus {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		rs := v1alpha1.ResultStatus(k)
		if s.resultByStatus[rs] > 0 {
			strs = append(strs, fmt.Sprintf("%s operations (Status: %v): %d", op, rs, s.resultByStatus[rs]))
		}
	}
	return strings.Join(strs, ", ")
}

func (s operationStats) empty() bool {
	return s.errCount == 0 && len(s.resultByStatus) == 0
}

// applyStats tracks the stats for all the operations of one Apply call.
type applyStats struct {
	byOperation map[v1alpha1.OperationType]*operationStats
	// retries tracks the number of API calls which were retried
	retries uint64
}

func newApplyStats() *applyStats {
	return &applyStats{
		byOperation: map[v1alpha1.OperationType]*operationStats{},
	}
}

func (s *applyStats) add(result v1alpha1.SyncResult, hasErr bool) {
	opStats, found := s.byOperation[result.Operation]
	if !found {
		opStats = &operationStats{resultByStatus: map[v1alpha1.ResultStatus]uint64{}}
		s.byOperation[result.Operation] = opStats
	}
	if hasErr {
		opStats.errCount++
	}
	opStats.resultByStatus[result.Status]++
}

func (s *applyStats) string() string {
	var strs []string
	// In the order Apply runs them.
	for _, op := range []v1alpha1.OperationType{
		v1alpha1.OperationCreate,
		v1alpha1.OperationUpdate,
		v1alpha1.OperationNoOp,
		v1alpha1.OperationDelete,
	} {
		if opStats, found := s.byOperation[op]; found && !opStats.empty() {
			strs = append(strs, opStats.string(op))
		}
	}
	if s.retries > 0 {
		strs = append(strs, fmt.Sprintf("retried API calls: %d", s.retries))
	}
	return strings.Join(strs, ", ")
}

func (s *applyStats) empty() bool {
	for _, opStats := range s.byOperation {
		if !opStats.empty() {
			return false
		}
	}
	return s.retries == 0
}
