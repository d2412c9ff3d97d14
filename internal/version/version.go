// Package version records the strata release version.
package version

// Version is the current release. The maint bump command rewrites it
// together with the other release targets.
const Version = "1.7.0"
