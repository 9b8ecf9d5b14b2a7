// Package util holds small generic helpers shared by chatstream packages:
// pointer construction for optional request fields, first-non-zero
// selection, and masking of secrets before they reach logs.
package util
