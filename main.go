/*
main.go

certiwipe: NIST SP 800-88 device sanitization with signed certificates.
*/
package main

import (
	"github.com/CodeMonkeyCybersecurity/certiwipe/cmd"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/logger"
)

func main() {
	logger.InitializeWithFallback()
	cmd.Execute()
}
