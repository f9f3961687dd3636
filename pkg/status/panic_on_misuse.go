package status

import (
	"k8s.io/klog/v2"
)

// panicOnMisuse determines whether to panic when this package is used
// incorrectly. Production binaries log instead.
var panicOnMisuse = false

// EnablePanicOnMisuse makes misuse of the error builders panic. Call it from
// tests.
func EnablePanicOnMisuse() {
	panicOnMisuse = true
}

// reportMisuse either panics, or logs an error with klog.Error depending on
// whether panicOnMisuse is true.
func reportMisuse(message string) {
	if panicOnMisuse {
		panic(message)
	}
	klog.Error(message)
}
