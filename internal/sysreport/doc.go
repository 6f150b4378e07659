// Package sysreport samples host resource usage from /proc and keeps a
// retention-bounded history of samples as daily YAML streams.
package sysreport
