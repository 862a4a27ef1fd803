// Package projects stores project records and the artifact URLs the
// conversion pipeline publishes for them.
package projects
