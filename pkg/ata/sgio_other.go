//go:build !linux

// pkg/ata/sgio_other.go

package ata

import (
	"context"
	"errors"
)

// Supported reports whether this build can issue pass-through commands.
const Supported = false

var errNoPassthrough = errors.New("ATA pass-through is only implemented on linux")

func IssueSGIO(_ context.Context, _ uintptr, cmd *Command) (*Result, error) {
	return nil, errNoPassthrough
}
