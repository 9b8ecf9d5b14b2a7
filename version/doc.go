// Package version reports the build identity of chatstream binaries.
//
// Values are injected at link time and completed from the module's
// embedded VCS metadata:
//
//	go build -ldflags "-X github.com/kbukum/chatstream/version.Version=1.2.0" ./cmd/chatstream
package version
