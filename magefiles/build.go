//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the multirow project using Mage.
//
// Usage:
//
//	mage build          Compile the multirow binary to bin/
//	mage install        Install multirow to GOPATH/bin
//	mage test:all       Run every test
//	mage test:unit      Run tests without external databases
//	mage test:stores    Run the store suites, including server backends
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "multirow"
	binaryDir  = "bin"
	cmdDir     = "./cmd/multirow"
	versionVar = "github.com/mesh-intelligence/multirow/internal/cli.Version"
)

// ldflags stamps the version from MULTIROW_VERSION, or from git describe.
func ldflags() string {
	version := os.Getenv("MULTIROW_VERSION")
	if version == "" {
		out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
		if err != nil || out == "" {
			return ""
		}
		version = out
	}
	return "-X " + versionVar + "=" + version
}

// Build compiles the multirow binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if flags := ldflags(); flags != "" {
		args = append(args, "-ldflags", flags)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
