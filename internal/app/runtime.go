package app

import "os"

const testModeEnv = "RECORDS_TEST_MODE"

// InTestMode reports whether external connections (PostgreSQL, Redis)
// should be skipped.
func InTestMode() bool {
	return os.Getenv(testModeEnv) == "1"
}
