// Package chattest provides test doubles for the chat package: a gin-based
// fake NDJSON upstream served over httptest, and an in-memory Transport
// whose response bodies the test feeds line by line.
package chattest
