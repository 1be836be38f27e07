// Package config resolves the run configuration for conform.
//
// # Configuration Precedence
//
// Values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--start, --end, --skip, --shutdown, --no-color, etc.)
//  2. Environment variables (CONFORM_*, NO_COLOR)
//  3. YAML config file (--config, or .conform.yaml in the working directory)
//  4. Hardcoded defaults
//
// The defaults reproduce the layout the harness was first written for:
// binaries built in ./src, fixtures in ./project_tests_1M and artifacts
// in ./logs, tests 1 through 41.
//
// # Index Sets
//
// The control, shutdown and skip sets are lists of test indices. In YAML
// they are sequences; in environment variables and flags they are comma
// separated ("1,2,10"). Inclusive ranges such as "18-19" are accepted in
// the comma form.
//
// # Environment Variables
//
//   - CONFORM_EXEC_DIR, CONFORM_FIXTURE_DIR, CONFORM_LOG_DIR
//   - CONFORM_START, CONFORM_END
//   - CONFORM_CONTROL, CONFORM_SHUTDOWN, CONFORM_SKIP
//   - CONFORM_CLEAN: clean target passed to the build command
//   - CONFORM_SHUTDOWN_TIMEOUT: Go duration bounding the shutdown wait
//   - CONFORM_THEME: default, orca or mono
//   - CONFORM_NO_COLOR or NO_COLOR: "true" or "1" disables colors
//   - CONFORM_DEBUG: any non-empty value enables debug output
package config
