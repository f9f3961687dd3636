package status

import (
	"fmt"
	"sort"
	"sync"
)

var (
	codesMu sync.Mutex
	codes   = map[string]bool{}
)

// register marks the passed error code as used. Panics if the code has already
// been registered, so duplicate codes keep the binary from starting at all.
func register(code string) {
	codesMu.Lock()
	defer codesMu.Unlock()
	if codes[code] {
		panic(fmt.Sprintf("duplicate error code %s%s", codePrefix, code))
	}
	codes[code] = true
}

// CodeRegistry returns the sorted list of registered error codes.
func CodeRegistry() []string {
	codesMu.Lock()
	defer codesMu.Unlock()
	var result []string
	for code := range codes {
		result = append(result, code)
	}
	sort.Strings(result)
	return result
}
